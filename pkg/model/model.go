package model

import "learnedkv/pkg/common"

// Model 抽象一个 key -> position 的预测模型
type Model[K common.Key] interface {
	Predict(key K) int
	ErrorBound() int
	SizeInBytes() int
}

type DiagnosticPoint[K common.Key] struct {
	Key          K
	RealPos      int
	PredictedPos int
	Error        int
}

// Diagnose samples at most maxPoints keys and reports how far the model's
// prediction is from each key's rank. Duplicate keys report their first rank.
func Diagnose[K common.Key](m Model[K], keys []K, maxPoints int) []DiagnosticPoint[K] {
	if len(keys) == 0 {
		return nil
	}
	// 采样导出，避免数据量过大
	step := 1
	if maxPoints > 0 && len(keys) > maxPoints {
		step = len(keys) / maxPoints
	}

	results := make([]DiagnosticPoint[K], 0, len(keys)/step+1)
	for i := 0; i < len(keys); i += step {
		rank := i
		for rank > 0 && keys[rank-1] == keys[i] {
			rank--
		}
		pred := m.Predict(keys[i])
		results = append(results, DiagnosticPoint[K]{
			Key:          keys[i],
			RealPos:      rank,
			PredictedPos: pred,
			Error:        rank - pred,
		})
	}
	return results
}
