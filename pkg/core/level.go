package core

import (
	"context"
	"fmt"
	"math"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"

	"learnedkv/pkg/common"
	"learnedkv/pkg/core/learned"
	"learnedkv/pkg/core/memory"
	"learnedkv/pkg/core/structure"
)

// level is one immutable run of the dynamic index: sorted distinct keys,
// their values, the positions holding tombstones and the learned index
// over the keys. A nil *level is an empty level.
type level[K common.Key, V any] struct {
	keys       []K
	values     []V
	tombstones *roaring.Bitmap
	bloom      *structure.BloomFilter[K]
	index      *learned.Index[K]
}

// newLevel builds a level from items sorted by distinct key. It returns nil
// for an empty input.
func newLevel[K common.Key, V any](ctx context.Context, items []memory.Item[K, V], o options) (*level[K, V], error) {
	if len(items) == 0 {
		return nil, nil
	}
	if uint64(len(items)) > math.MaxUint32 {
		return nil, fmt.Errorf("core: level of %d entries exceeds tombstone bitmap range", len(items))
	}

	lv := &level[K, V]{
		keys:       make([]K, len(items)),
		values:     make([]V, len(items)),
		tombstones: roaring.New(),
	}
	if o.bloomFalseProb > 0 {
		lv.bloom = structure.NewBloomFilter[K](uint(len(items)), o.bloomFalseProb)
	}
	for i, it := range items {
		lv.keys[i] = it.Key
		if it.Entry.Tombstone {
			lv.tombstones.Add(uint32(i))
		} else {
			lv.values[i] = it.Entry.Value
		}
		if lv.bloom != nil {
			lv.bloom.Add(it.Key)
		}
	}
	lv.tombstones.RunOptimize()

	idx, err := learned.BuildWithOptions(ctx, lv.keys, o.index)
	if err != nil {
		return nil, err
	}
	lv.index = idx
	return lv, nil
}

func (lv *level[K, V]) len() int {
	if lv == nil {
		return 0
	}
	return len(lv.keys)
}

func (lv *level[K, V]) entry(i int) memory.Entry[V] {
	if lv.tombstones.Contains(uint32(i)) {
		return memory.Tombstone[V]()
	}
	return memory.Live(lv.values[i])
}

// get returns the entry stored for key, which may be a tombstone.
func (lv *level[K, V]) get(key K) (memory.Entry[V], bool) {
	if lv == nil {
		return memory.Entry[V]{}, false
	}
	if lv.bloom != nil && !lv.bloom.Contains(key) {
		return memory.Entry[V]{}, false
	}
	i := lv.index.LowerBound(key)
	if i == len(lv.keys) || lv.keys[i] != key {
		return memory.Entry[V]{}, false
	}
	return lv.entry(i), true
}

// items returns the level content as buffer items, tombstones included.
func (lv *level[K, V]) items() []memory.Item[K, V] {
	if lv == nil {
		return nil
	}
	out := make([]memory.Item[K, V], len(lv.keys))
	for i, k := range lv.keys {
		out[i] = memory.Item[K, V]{Key: k, Entry: lv.entry(i)}
	}
	return out
}

// itemsBetween returns the entries with lo <= key <= hi.
func (lv *level[K, V]) itemsBetween(lo, hi K) []memory.Item[K, V] {
	if lv == nil {
		return nil
	}
	begin, end := lv.index.LowerBound(lo), lv.index.UpperBound(hi)
	if begin >= end {
		return nil
	}
	out := make([]memory.Item[K, V], 0, end-begin)
	for i := begin; i < end; i++ {
		out = append(out, memory.Item[K, V]{Key: lv.keys[i], Entry: lv.entry(i)})
	}
	return out
}

func (lv *level[K, V]) tombstoneCount() int {
	if lv == nil {
		return 0
	}
	return int(lv.tombstones.GetCardinality())
}

// indexSize is the footprint of the learned index only.
func (lv *level[K, V]) indexSize() int {
	if lv == nil {
		return 0
	}
	return lv.index.SizeInBytes()
}

// sizeInBytes counts keys, values, tombstones, the bloom filter and the index.
func (lv *level[K, V]) sizeInBytes() int {
	if lv == nil {
		return 0
	}
	size := len(lv.keys)*(keySize[K]()+valueSize[V]()) +
		int(lv.tombstones.GetSizeInBytes()) +
		lv.index.SizeInBytes()
	if lv.bloom != nil {
		size += lv.bloom.SizeInBytes()
	}
	return size
}

func keySize[K common.Key]() int {
	var k K
	return int(unsafe.Sizeof(k))
}

// valueSize is the shallow size of V; memory referenced by V is not counted.
func valueSize[V any]() int {
	var v V
	return int(unsafe.Sizeof(v))
}
