package core

import (
	"learnedkv/pkg/common"
	"learnedkv/pkg/core/memory"
)

// cursor walks one sorted run of items.
type cursor[K common.Key, V any] struct {
	items []memory.Item[K, V]
	pos   int
}

func (c *cursor[K, V]) valid() bool {
	return c.pos < len(c.items)
}

func (c *cursor[K, V]) item() memory.Item[K, V] {
	return c.items[c.pos]
}

// mergeSources merges sorted runs of distinct keys, given newest first.
// For a key held by several runs only the newest entry is emitted. fn
// returning false stops the merge.
func mergeSources[K common.Key, V any](sources [][]memory.Item[K, V], fn func(memory.Item[K, V]) bool) {
	iters := make([]*cursor[K, V], 0, len(sources))
	for _, s := range sources {
		if len(s) > 0 {
			iters = append(iters, &cursor[K, V]{items: s})
		}
	}

	for len(iters) > 0 {
		best := 0
		for i := 1; i < len(iters); i++ {
			// 相同 key 保留较新的来源
			if iters[i].item().Key < iters[best].item().Key {
				best = i
			}
		}
		winner := iters[best].item()
		if !fn(winner) {
			return
		}

		live := iters[:0]
		for _, it := range iters {
			if it.item().Key == winner.Key {
				it.pos++
			}
			if it.valid() {
				live = append(live, it)
			}
		}
		iters = live
	}
}

// mergeItems merges runs given newest first into one sorted run. With
// dropTombstones set, deleted keys are left out of the result.
func mergeItems[K common.Key, V any](dropTombstones bool, sources ...[]memory.Item[K, V]) []memory.Item[K, V] {
	total := 0
	for _, s := range sources {
		total += len(s)
	}
	out := make([]memory.Item[K, V], 0, total)
	mergeSources(sources, func(it memory.Item[K, V]) bool {
		if dropTombstones && it.Entry.Tombstone {
			return true
		}
		out = append(out, it)
		return true
	})
	return out
}
