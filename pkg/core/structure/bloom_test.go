package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBloomFilterNoFalseNegatives(t *testing.T) {
	bf := NewBloomFilter[uint64](1000, 0.01)
	for k := uint64(0); k < 1000; k++ {
		bf.Add(k * 7919)
	}
	for k := uint64(0); k < 1000; k++ {
		assert.True(t, bf.Contains(k*7919), "key %d", k*7919)
	}

	falsePositives := 0
	for k := uint64(0); k < 10000; k++ {
		if bf.Contains(k*7919 + 1) {
			falsePositives++
		}
	}
	assert.Less(t, falsePositives, 500, "false positive rate far above target")

	stats := bf.Stats()
	assert.Equal(t, uint(1000), stats["bloom_count"])
	assert.Greater(t, bf.SizeInBytes(), 0)
}

func TestBloomFilterSignedKeys(t *testing.T) {
	bf := NewBloomFilter[int32](0, 0.1)
	bf.Add(-5)
	assert.True(t, bf.Contains(-5))
}

func TestBitIndexAboveUint32(t *testing.T) {
	tests := []struct {
		desc   string
		h1, h2 uint64
		i, m   uint
		want   uint
	}{
		{desc: "small filter", h1: 10, h2: 3, i: 2, m: 7, want: 2},
		{desc: "past 2^32", h1: 1 << 31, h2: 1<<31 | 1, i: 3, m: 1 << 34, want: 1<<33 + 3},
		{desc: "hash above m", h1: 1<<40 + 5, h2: 1, i: 0, m: 1 << 36, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			got := bitIndex(tc.h1, tc.h2, tc.i, tc.m)
			assert.Equal(t, tc.want, got)
			assert.Less(t, got, tc.m)
		})
	}
}
