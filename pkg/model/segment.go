package model

import (
	"fmt"
	"math"
	"unsafe"

	"learnedkv/pkg/common"
)

// Segment is a linear model covering the keys in [Key, next.Key).
type Segment[K common.Key] struct {
	Key       K
	Slope     float64
	Intercept int64
}

// Predict returns floor(Slope*(k-Key)) + Intercept, saturating at
// MaxInt64. Keys below Key are predicted at Intercept.
func (s Segment[K]) Predict(k K) int64 {
	if k <= s.Key {
		return s.Intercept
	}
	f := math.Floor(s.Slope * float64(uint64(k)-uint64(s.Key)))
	if f >= 0x1p63 {
		return math.MaxInt64
	}
	return addSat(int64(f), s.Intercept)
}

func addSat(a, b int64) int64 {
	c := a + b
	switch {
	case a > 0 && b > 0 && c < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && c >= 0:
		return math.MinInt64
	}
	return c
}

func (s Segment[K]) String() string {
	return fmt.Sprintf("Segment{Key: %d, Slope: %.15f, Intercept: %d}", s.Key, s.Slope, s.Intercept)
}

// SegmentSize is the in-memory footprint of one segment for key type K.
func SegmentSize[K common.Key]() int {
	var s Segment[K]
	return int(unsafe.Sizeof(s))
}
