package core

import "learnedkv/pkg/common"

// Index 抽象接口，屏蔽 B 树与学习型索引的差异
type Index[K common.Key, V any] interface {
	Put(key K, value V) error
	Delete(key K) error
	Get(key K) (V, bool)
	Scan(lo, hi K, fn func(key K, value V) bool)
	Len() int
	Type() string // "BTree", "Learned-Dynamic"
}

var (
	_ Index[int64, []byte] = (*DynamicIndex[int64, []byte])(nil)
	_ Index[int64, []byte] = (*BTreeMap[int64, []byte])(nil)
)
