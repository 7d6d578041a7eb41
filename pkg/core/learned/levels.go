package learned

import (
	"context"
	"fmt"

	"learnedkv/pkg/common"
	"learnedkv/pkg/model"
)

// buildLevels segments the data keys into level 0, then keeps segmenting
// the first keys of the previous level until one root segment remains.
// Levels are stored bottom-up in one flat slice; offsets[l] is where level
// l begins and offsets[len-1] is the total segment count.
func buildLevels[K common.Key](ctx context.Context, keys []K, opts Options) ([]model.Segment[K], []int, error) {
	if len(keys) == 0 {
		return []model.Segment[K]{{}}, []int{0, 1}, nil
	}

	segments, err := model.SegmentKeysParallel(ctx, keys, opts.Epsilon, opts.Parallelism)
	if err != nil {
		return nil, nil, err
	}
	offsets := []int{0, len(segments)}

	for last := len(segments); last > 1; {
		begin := offsets[len(offsets)-2]
		below := segments[begin : begin+last]
		level, err := model.SegmentPoints(last, opts.EpsilonRecursive, func(i int) (K, int64) {
			return below[i].Key, int64(i)
		})
		if err != nil {
			return nil, nil, err
		}
		if len(level) >= last {
			return nil, nil, fmt.Errorf("learned: level %d did not shrink (%d -> %d segments)", len(offsets)-1, last, len(level))
		}
		segments = append(segments, level...)
		offsets = append(offsets, len(segments))
		last = len(level)
	}
	return segments, offsets, nil
}
