package model

import (
	"context"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnedkv/pkg/common"
)

func randomKeys(rng *rand.Rand, n int, spread int64) []uint64 {
	keys := make([]uint64, n)
	for i := range keys {
		keys[i] = uint64(rng.Int63n(spread))
	}
	slices.Sort(keys)
	return keys
}

// checkBound asserts every distinct key is predicted within epsilon+1 of
// its first rank by the segment covering it.
func checkBound[K common.Key](t *testing.T, keys []K, segs []Segment[K], epsilon int) {
	t.Helper()
	for i := 0; i < len(keys); i++ {
		if i > 0 && keys[i] == keys[i-1] {
			continue
		}
		j, found := slices.BinarySearchFunc(segs, keys[i], func(s Segment[K], k K) int {
			switch {
			case s.Key < k:
				return -1
			case s.Key > k:
				return 1
			}
			return 0
		})
		if !found {
			j--
		}
		require.GreaterOrEqual(t, j, 0, "key %d below first segment", keys[i])
		pred := segs[j].Predict(keys[i])
		diff := pred - int64(i)
		require.LessOrEqual(t, abs(diff), int64(epsilon+1), "key %d rank %d predicted %d", keys[i], i, pred)
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestSegmentKeysErrorBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tests := []struct {
		desc    string
		keys    []uint64
		epsilon int
	}{
		{desc: "dense eps 1", keys: randomKeys(rng, 5000, 1<<20), epsilon: 1},
		{desc: "sparse eps 4", keys: randomKeys(rng, 5000, 1<<40), epsilon: 4},
		{desc: "many duplicates eps 8", keys: randomKeys(rng, 5000, 300), epsilon: 8},
		{desc: "eps 64", keys: randomKeys(rng, 20000, 1<<32), epsilon: 64},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			segs, err := SegmentKeys(tc.keys, tc.epsilon)
			require.NoError(t, err)
			require.NotEmpty(t, segs)
			assert.Equal(t, tc.keys[0], segs[0].Key)
			for i := 1; i < len(segs); i++ {
				require.Less(t, segs[i-1].Key, segs[i].Key, "segment keys strictly increase")
			}
			checkBound(t, tc.keys, segs, tc.epsilon)
		})
	}
}

func TestSegmentKeysEdgeCases(t *testing.T) {
	segs, err := SegmentKeys([]uint64{}, 4)
	require.NoError(t, err)
	assert.Empty(t, segs)

	segs, err = SegmentKeys([]uint64{42}, 4)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, Segment[uint64]{Key: 42, Slope: 0, Intercept: 0}, segs[0])

	isegs, err := SegmentKeys([]int32{1, 3, 5, 7, 9, 11}, 2)
	require.NoError(t, err)
	require.Len(t, isegs, 1, "arithmetic progression is one segment")
	assert.InDelta(t, 3, isegs[0].Predict(7), 1)

	_, err = SegmentKeys([]int{3, 1}, 2)
	assert.ErrorIs(t, err, ErrNotIncreasing)
	assert.ErrorIs(t, err, common.ErrPrecondition)

	_, err = SegmentKeys([]int{1, 2}, 0)
	assert.ErrorIs(t, err, ErrInvalidEpsilon)
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestSegmentKeysExtremeValues(t *testing.T) {
	keys := []uint64{0, 1, 2, math.MaxUint64 / 2, math.MaxUint64 - 1, math.MaxUint64}
	segs, err := SegmentKeys(keys, 1)
	require.NoError(t, err)
	checkBound(t, keys, segs, 1)

	signed := []int64{math.MinInt64, -5, 0, 5, math.MaxInt64}
	ssegs, err := SegmentKeys(signed, 1)
	require.NoError(t, err)
	checkBound(t, signed, ssegs, 1)
}

func TestSegmentKeysGapNearMaxUint64(t *testing.T) {
	tests := []struct {
		name    string
		keys    []uint64
		epsilon int
	}{
		{name: "three and three", keys: []uint64{980, 984, 998, math.MaxUint64 - 999, math.MaxUint64 - 987, math.MaxUint64 - 978}, epsilon: 1},
		{name: "one low", keys: []uint64{7, math.MaxUint64 - 4, math.MaxUint64 - 2, math.MaxUint64}, epsilon: 1},
		{name: "wide epsilon", keys: []uint64{0, 1, 2, 3, math.MaxUint64 - 3, math.MaxUint64 - 2, math.MaxUint64 - 1, math.MaxUint64}, epsilon: 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			segs, err := SegmentKeys(tc.keys, tc.epsilon)
			require.NoError(t, err)
			checkBound(t, tc.keys, segs, tc.epsilon)
			for _, s := range segs {
				assert.GreaterOrEqual(t, s.Intercept, int64(-tc.epsilon-1), "%v", s)
				assert.LessOrEqual(t, s.Intercept, int64(len(tc.keys)+tc.epsilon+1), "%v", s)
				assert.False(t, math.IsNaN(s.Slope) || math.IsInf(s.Slope, 0), "%v", s)
			}
		})
	}
}

func TestSegmentKeysDuplicateRunAtMax(t *testing.T) {
	// x+1 溢出时不追加额外点
	keys := []uint8{1, 2, 255, 255, 255}
	segs, err := SegmentKeys(keys, 1)
	require.NoError(t, err)
	checkBound(t, keys, segs, 1)
}

func TestSegmentKeysDeterministic(t *testing.T) {
	keys := randomKeys(rand.New(rand.NewSource(3)), 10000, 1<<30)
	a, err := SegmentKeys(keys, 16)
	require.NoError(t, err)
	b, err := SegmentKeys(keys, 16)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSegmentCountShrinksWithEpsilon(t *testing.T) {
	keys := randomKeys(rand.New(rand.NewSource(5)), 20000, 1<<30)
	prev := math.MaxInt
	for _, eps := range []int{1, 4, 16, 64} {
		segs, err := SegmentKeys(keys, eps)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(segs), prev, "eps %d", eps)
		prev = len(segs)
	}
}

func TestSegmentPoints(t *testing.T) {
	xs := []int64{-10, -4, 0, 3, 100, 101}
	segs, err := SegmentPoints(len(xs), 1, func(i int) (int64, int64) {
		return xs[i], int64(i)
	})
	require.NoError(t, err)
	checkBound(t, xs, segs, 1)

	_, err = SegmentPoints(2, 1, func(i int) (int64, int64) {
		return 5, int64(i)
	})
	assert.ErrorIs(t, err, ErrNotIncreasing)
}

func TestSegmentKeysParallel(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	keys := randomKeys(rng, 3*minChunk+123, 1<<36)

	segs, err := SegmentKeysParallel(context.Background(), keys, 8, 3)
	require.NoError(t, err)
	checkBound(t, keys, segs, 8)
	for i := 1; i < len(segs); i++ {
		require.Less(t, segs[i-1].Key, segs[i].Key)
	}

	again, err := SegmentKeysParallel(context.Background(), keys, 8, 3)
	require.NoError(t, err)
	assert.Equal(t, segs, again, "deterministic for a fixed parallelism")

	seq, err := SegmentKeysParallel(context.Background(), keys, 8, 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(segs), len(seq))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = SegmentKeysParallel(ctx, keys, 8, 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChunkBoundsKeepRunsTogether(t *testing.T) {
	keys := make([]int, 4*minChunk)
	for i := range keys {
		keys[i] = i / 1000
	}
	bounds := chunkBounds(keys, 4)
	require.Greater(t, len(bounds), 2)
	assert.Equal(t, 0, bounds[0])
	assert.Equal(t, len(keys), bounds[len(bounds)-1])
	for _, b := range bounds[1 : len(bounds)-1] {
		assert.NotEqual(t, keys[b-1], keys[b], "bound %d splits a run", b)
	}

	assert.Equal(t, []int{0, 10}, chunkBounds(keys[:10], 8))
}
