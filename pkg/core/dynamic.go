package core

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"learnedkv/pkg/common"
	"learnedkv/pkg/core/memory"
	"learnedkv/pkg/monitor"
)

// snapshot is the published state of a DynamicIndex. Its levels are never
// modified; only the buffer accepts writes until the next merge replaces
// the whole snapshot.
type snapshot[K common.Key, V any] struct {
	buffer *memory.MemTable[K, V]
	levels []*level[K, V]
}

// DynamicIndex is an updatable map from K to V: a sorted write buffer in
// front of leveled immutable runs, each with its own learned index. Level
// i holds at most base^(i+1)*bufferCapacity entries.
//
// Writes are serialized. Reads never block on a merge: a merge builds the
// replacement levels aside and then swaps the snapshot.
type DynamicIndex[K common.Key, V any] struct {
	writeMu sync.Mutex
	state   atomic.Pointer[snapshot[K, V]]

	opts   options
	logger *zap.Logger
	stats  *monitor.WorkloadStats
}

// NewDynamic returns an empty dynamic index.
func NewDynamic[K common.Key, V any](opts ...Option) (*DynamicIndex[K, V], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = zap.L()
	}

	d := &DynamicIndex[K, V]{
		opts:   o,
		logger: o.logger,
		stats:  monitor.NewWorkloadStats(),
	}
	d.state.Store(&snapshot[K, V]{buffer: d.newBuffer()})
	return d, nil
}

// BulkLoad builds a dynamic index from pairs sorted by key. When a key
// occurs more than once its last occurrence wins. All entries go into the
// smallest level able to hold them.
func BulkLoad[K common.Key, V any](pairs []common.Record[K, V], opts ...Option) (*DynamicIndex[K, V], error) {
	d, err := NewDynamic[K, V](opts...)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return d, nil
	}

	items := make([]memory.Item[K, V], 0, len(pairs))
	for i, p := range pairs {
		if i > 0 && p.Key < pairs[i-1].Key {
			return nil, fmt.Errorf("%w (position %d)", ErrUnsorted, i)
		}
		it := memory.Item[K, V]{Key: p.Key, Entry: memory.Live(p.Value)}
		if n := len(items); n > 0 && items[n-1].Key == p.Key {
			items[n-1] = it
			continue
		}
		items = append(items, it)
	}

	target := 0
	for d.capacity(target) < len(items) {
		target++
	}

	start := time.Now()
	lv, err := newLevel(context.Background(), items, d.opts)
	if err != nil {
		return nil, err
	}
	levels := make([]*level[K, V], target+1)
	levels[target] = lv
	d.state.Store(&snapshot[K, V]{buffer: d.newBuffer(), levels: levels})

	d.logger.Debug("bulk load",
		zap.Int("level", target),
		zap.Int("entries", len(items)),
		zap.Int("segments", lv.index.LevelSize(0)),
		zap.Duration("took", time.Since(start)),
	)
	return d, nil
}

func (d *DynamicIndex[K, V]) newBuffer() *memory.MemTable[K, V] {
	return memory.NewMemTable[K, V](d.opts.bufferDegree, d.opts.bufferCapacity)
}

// capacity returns base^(i+1)*bufferCapacity, saturating at MaxInt.
func (d *DynamicIndex[K, V]) capacity(i int) int {
	c := d.opts.bufferCapacity
	for j := 0; j <= i; j++ {
		if c > math.MaxInt/d.opts.base {
			return math.MaxInt
		}
		c *= d.opts.base
	}
	return c
}

// Put inserts key or overwrites its value. A full buffer is merged into
// the levels first; if that merge fails nothing changes.
func (d *DynamicIndex[K, V]) Put(key K, value V) error {
	d.stats.RecordWrite()
	return d.write(key, memory.Live(value))
}

// Delete erases key. The tombstone shadows older copies until a merge
// reaches the deepest level holding data.
func (d *DynamicIndex[K, V]) Delete(key K) error {
	d.stats.RecordDelete()
	return d.write(key, memory.Tombstone[V]())
}

func (d *DynamicIndex[K, V]) write(key K, e memory.Entry[V]) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	s := d.state.Load()
	if s.buffer.Full() {
		if _, ok := s.buffer.Get(key); !ok {
			next, err := d.flushLocked(s)
			if err != nil {
				return err
			}
			s = next
		}
	}
	if e.Tombstone {
		s.buffer.Delete(key)
	} else {
		s.buffer.Put(key, e.Value)
	}
	return nil
}

// Flush merges the buffer into the levels now.
func (d *DynamicIndex[K, V]) Flush() error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	s := d.state.Load()
	if s.buffer.Count() == 0 {
		return nil
	}
	_, err := d.flushLocked(s)
	return err
}

// flushLocked carries the buffer down the levels. Every level the carry
// passes is emptied into it; the carry settles in the first level whose
// capacity fits it. Tombstones are dropped when no deeper level holds data.
// The new snapshot is published only when every level built.
func (d *DynamicIndex[K, V]) flushLocked(s *snapshot[K, V]) (*snapshot[K, V], error) {
	start := time.Now()
	carry := s.buffer.Items()
	levels := slices.Clone(s.levels)

	target := 0
	for ; ; target++ {
		if target == len(levels) {
			levels = append(levels, nil)
		}
		deeper := false
		for _, lv := range levels[target+1:] {
			if lv.len() > 0 {
				deeper = true
				break
			}
		}

		carry = mergeItems(!deeper, carry, levels[target].items())
		if len(carry) <= d.capacity(target) {
			break
		}
		levels[target] = nil
	}

	lv, err := newLevel(context.Background(), carry, d.opts)
	if err != nil {
		return nil, fmt.Errorf("core: merge into level %d: %w", target, err)
	}
	levels[target] = lv
	for len(levels) > 0 && levels[len(levels)-1] == nil {
		levels = levels[:len(levels)-1]
	}

	next := &snapshot[K, V]{buffer: d.newBuffer(), levels: levels}
	d.state.Store(next)
	d.stats.RecordMerge(len(carry))

	d.logger.Debug("merge",
		zap.Int("level", target),
		zap.Int("entries", len(carry)),
		zap.Int("tombstones", lv.tombstoneCount()),
		zap.Duration("took", time.Since(start)),
	)
	return next, nil
}

// Get returns the value of key. The buffer is searched first, then the
// levels from the smallest; the first entry found decides, and a
// tombstone there means the key is absent.
func (d *DynamicIndex[K, V]) Get(key K) (V, bool) {
	d.stats.RecordRead()
	s := d.state.Load()

	e, ok := s.buffer.Get(key)
	for i := 0; !ok && i < len(s.levels); i++ {
		e, ok = s.levels[i].get(key)
	}
	if !ok || e.Tombstone {
		var zero V
		return zero, false
	}
	d.stats.RecordHit()
	return e.Value, true
}

// Find is Get reporting a miss as ErrNotFound.
func (d *DynamicIndex[K, V]) Find(key K) (V, error) {
	v, ok := d.Get(key)
	if !ok {
		return v, fmt.Errorf("%w: %d", ErrNotFound, key)
	}
	return v, nil
}

// Scan calls fn for each live key in [lo, hi] in ascending order until fn
// returns false.
func (d *DynamicIndex[K, V]) Scan(lo, hi K, fn func(key K, value V) bool) {
	if hi < lo {
		return
	}
	s := d.state.Load()

	sources := make([][]memory.Item[K, V], 0, len(s.levels)+1)
	var buffered []memory.Item[K, V]
	s.buffer.Scan(lo, hi, func(key K, e memory.Entry[V]) bool {
		buffered = append(buffered, memory.Item[K, V]{Key: key, Entry: e})
		return true
	})
	sources = append(sources, buffered)
	for _, lv := range s.levels {
		sources = append(sources, lv.itemsBetween(lo, hi))
	}
	visitLive(sources, fn)
}

// Ascend calls fn for every live key in ascending order until fn returns
// false.
func (d *DynamicIndex[K, V]) Ascend(fn func(key K, value V) bool) {
	s := d.state.Load()
	visitLive(s.sources(), fn)
}

func (s *snapshot[K, V]) sources() [][]memory.Item[K, V] {
	sources := make([][]memory.Item[K, V], 0, len(s.levels)+1)
	sources = append(sources, s.buffer.Items())
	for _, lv := range s.levels {
		sources = append(sources, lv.items())
	}
	return sources
}

func visitLive[K common.Key, V any](sources [][]memory.Item[K, V], fn func(K, V) bool) {
	mergeSources(sources, func(it memory.Item[K, V]) bool {
		if it.Entry.Tombstone {
			return true
		}
		return fn(it.Key, it.Entry.Value)
	})
}

// Len returns the number of live keys. It walks every level.
func (d *DynamicIndex[K, V]) Len() int {
	n := 0
	d.Ascend(func(K, V) bool {
		n++
		return true
	})
	return n
}

// SizeInBytes is the memory held by the buffer and the levels: keys,
// values, tombstone bitmaps, bloom filters and learned indexes.
func (d *DynamicIndex[K, V]) SizeInBytes() int {
	s := d.state.Load()
	size := s.buffer.Count() * (keySize[K]() + valueSize[V]() + 1)
	for _, lv := range s.levels {
		size += lv.sizeInBytes()
	}
	return size
}

// IndexSizeInBytes is the footprint of the learned indexes alone.
func (d *DynamicIndex[K, V]) IndexSizeInBytes() int {
	s := d.state.Load()
	size := 0
	for _, lv := range s.levels {
		size += lv.indexSize()
	}
	return size
}

func (d *DynamicIndex[K, V]) Type() string {
	return "Learned-Dynamic"
}

type LevelInfo struct {
	Level      int
	Capacity   int
	Entries    int
	Tombstones int
	Segments   int
	Height     int
	IndexBytes int
}

// Levels describes every level, empty ones included.
func (d *DynamicIndex[K, V]) Levels() []LevelInfo {
	s := d.state.Load()
	infos := make([]LevelInfo, len(s.levels))
	for i, lv := range s.levels {
		info := LevelInfo{
			Level:      i,
			Capacity:   d.capacity(i),
			Entries:    lv.len(),
			Tombstones: lv.tombstoneCount(),
			IndexBytes: lv.indexSize(),
		}
		if lv != nil {
			info.Segments = lv.index.LevelSize(0)
			info.Height = lv.index.Height()
		}
		infos[i] = info
	}
	return infos
}

// Workload returns a copy of the operation counters.
func (d *DynamicIndex[K, V]) Workload() monitor.WorkloadStats {
	return d.stats.Snapshot()
}

func (d *DynamicIndex[K, V]) Stats() map[string]interface{} {
	s := d.state.Load()
	entries, tombstones, nonEmpty := 0, 0, 0
	for _, lv := range s.levels {
		entries += lv.len()
		tombstones += lv.tombstoneCount()
		if lv.len() > 0 {
			nonEmpty++
		}
	}
	w := d.stats.Snapshot()
	return map[string]interface{}{
		"buffer_record_count": s.buffer.Count(),
		"buffer_capacity":     d.opts.bufferCapacity,
		"level_count":         len(s.levels),
		"levels_non_empty":    nonEmpty,
		"level_entries":       entries,
		"level_tombstones":    tombstones,
		"size_bytes":          d.SizeInBytes(),
		"index_size_bytes":    d.IndexSizeInBytes(),
		"merge_count":         w.MergeCount,
		"write_amplification": d.stats.WriteAmplification(),
		"rw_ratio":            d.stats.GetReadWriteRatio(),
		"epsilon":             d.opts.index.Epsilon,
		"base":                d.opts.base,
	}
}
