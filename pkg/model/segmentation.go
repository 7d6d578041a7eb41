package model

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"learnedkv/pkg/common"
)

// ErrInvalidEpsilon is returned for a non-positive error bound.
var ErrInvalidEpsilon = fmt.Errorf("%w: epsilon must be positive", common.ErrConfiguration)

// minChunk is the smallest partition worth a goroutine.
const minChunk = 1 << 16

// SegmentPoints segments n strictly increasing points produced by at.
func SegmentPoints[K common.Key](n, epsilon int, at func(i int) (K, int64)) ([]Segment[K], error) {
	if epsilon <= 0 {
		return nil, ErrInvalidEpsilon
	}
	if n == 0 {
		return nil, nil
	}
	b := newBuilder[K](epsilon)
	for i := 0; i < n; i++ {
		x, y := at(i)
		if err := b.add(x, y); err != nil {
			return nil, err
		}
	}
	return b.finish(), nil
}

// SegmentKeys segments a non-decreasing key slice, using each key's rank as
// its position. A run of equal keys contributes its first rank; when the run
// is followed by a gap, the successor x+1 is mapped to the rank after the
// run so that absent keys stay bracketed.
func SegmentKeys[K common.Key](keys []K, epsilon int) ([]Segment[K], error) {
	if epsilon <= 0 {
		return nil, ErrInvalidEpsilon
	}
	if len(keys) == 0 {
		return nil, nil
	}
	b := newBuilder[K](epsilon)
	if err := keyPoints(keys, 0, len(keys), b.add); err != nil {
		return nil, err
	}
	return b.finish(), nil
}

// SegmentKeysParallel splits keys into at most parallelism chunks that never
// cut a run of equal keys, segments the chunks concurrently and concatenates
// the results. Output is deterministic for a given parallelism but may hold
// a few more segments than SegmentKeys because of the chunk boundaries.
func SegmentKeysParallel[K common.Key](ctx context.Context, keys []K, epsilon, parallelism int) ([]Segment[K], error) {
	if epsilon <= 0 {
		return nil, ErrInvalidEpsilon
	}
	bounds := chunkBounds(keys, parallelism)
	if len(bounds) <= 2 {
		return SegmentKeys(keys, epsilon)
	}

	parts := make([][]Segment[K], len(bounds)-1)
	g, ctx := errgroup.WithContext(ctx)
	for c := 0; c < len(bounds)-1; c++ {
		start, end := bounds[c], bounds[c+1]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b := newBuilder[K](epsilon)
			if err := keyPoints(keys, start, end, b.add); err != nil {
				return err
			}
			parts[c] = b.finish()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]Segment[K], 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

// chunkBounds returns partition boundaries [0, b1, ..., n], each at the start
// of a run of equal keys.
func chunkBounds[K common.Key](keys []K, parallelism int) []int {
	n := len(keys)
	if parallelism <= 1 || n < 2*minChunk {
		return []int{0, n}
	}
	if parallelism > n/minChunk {
		parallelism = n / minChunk
	}
	size := n / parallelism
	bounds := []int{0}
	for c := 1; c < parallelism; c++ {
		b := c * size
		if b <= bounds[len(bounds)-1] {
			continue
		}
		for b < n && keys[b] == keys[b-1] {
			b++
		}
		if b >= n {
			break
		}
		bounds = append(bounds, b)
	}
	return append(bounds, n)
}

// keyPoints emits the points of keys[start:end]. start must begin a run.
func keyPoints[K common.Key](keys []K, start, end int, emit func(K, int64) error) error {
	for i := start; i < end; {
		x := keys[i]
		j := i + 1
		for j < len(keys) && keys[j] == x {
			j++
		}
		if j < len(keys) && keys[j] < x {
			return ErrNotIncreasing
		}
		if err := emit(x, int64(i)); err != nil {
			return err
		}
		next := x + 1
		if j-i > 1 && next > x && (j == len(keys) || next < keys[j]) {
			if err := emit(next, int64(j)); err != nil {
				return err
			}
		}
		i = j
	}
	return nil
}

type builder[K common.Key] struct {
	pla  *PLA[K]
	segs []Segment[K]
}

func newBuilder[K common.Key](epsilon int) *builder[K] {
	return &builder[K]{pla: NewPLA[K](epsilon)}
}

func (b *builder[K]) add(x K, y int64) error {
	ok, err := b.pla.Add(x, y)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	b.segs = append(b.segs, b.pla.Segment())
	_, err = b.pla.Add(x, y)
	return err
}

func (b *builder[K]) finish() []Segment[K] {
	if b.pla.Len() > 0 {
		b.segs = append(b.segs, b.pla.Segment())
		b.pla.Reset()
	}
	return b.segs
}
