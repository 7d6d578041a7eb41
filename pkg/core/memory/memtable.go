package memory

import (
	"sync"

	"github.com/google/btree"

	"learnedkv/pkg/common"
)

// Entry is either a live value or a tombstone marking a logical delete.
type Entry[V any] struct {
	Value     V
	Tombstone bool
}

func Live[V any](v V) Entry[V] {
	return Entry[V]{Value: v}
}

func Tombstone[V any]() Entry[V] {
	return Entry[V]{Tombstone: true}
}

type Item[K common.Key, V any] struct {
	Key   K
	Entry Entry[V]
}

func less[K common.Key, V any](a, b Item[K, V]) bool {
	return a.Key < b.Key
}

// MemTable is the write buffer: a small sorted map absorbing recent puts
// and tombstones until it is merged into the first level.
type MemTable[K common.Key, V any] struct {
	tree     *btree.BTreeG[Item[K, V]]
	lock     sync.RWMutex
	capacity int
}

func NewMemTable[K common.Key, V any](degree, capacity int) *MemTable[K, V] {
	return &MemTable[K, V]{
		tree:     btree.NewG(degree, less[K, V]),
		capacity: capacity,
	}
}

func (mt *MemTable[K, V]) Put(key K, val V) {
	mt.set(key, Live(val))
}

// Delete records a tombstone for key, replacing any buffered value.
func (mt *MemTable[K, V]) Delete(key K) {
	mt.set(key, Tombstone[V]())
}

func (mt *MemTable[K, V]) set(key K, e Entry[V]) {
	mt.lock.Lock()
	defer mt.lock.Unlock()
	mt.tree.ReplaceOrInsert(Item[K, V]{Key: key, Entry: e})
}

// Get returns the buffered entry for key, which may be a tombstone.
func (mt *MemTable[K, V]) Get(key K) (Entry[V], bool) {
	mt.lock.RLock()
	defer mt.lock.RUnlock()

	res, ok := mt.tree.Get(Item[K, V]{Key: key})
	if !ok {
		return Entry[V]{}, false
	}
	return res.Entry, true
}

func (mt *MemTable[K, V]) Count() int {
	mt.lock.RLock()
	defer mt.lock.RUnlock()
	return mt.tree.Len()
}

func (mt *MemTable[K, V]) Capacity() int {
	return mt.capacity
}

// Full reports whether the buffer reached its capacity.
func (mt *MemTable[K, V]) Full() bool {
	return mt.Count() >= mt.capacity
}

func (mt *MemTable[K, V]) Iterator(fn func(key K, e Entry[V]) bool) {
	mt.lock.RLock()
	defer mt.lock.RUnlock()

	mt.tree.Ascend(func(i Item[K, V]) bool {
		return fn(i.Key, i.Entry)
	})
}

// Scan visits the entries with lo <= key <= hi in ascending order.
func (mt *MemTable[K, V]) Scan(lo, hi K, fn func(key K, e Entry[V]) bool) {
	mt.lock.RLock()
	defer mt.lock.RUnlock()

	mt.tree.AscendGreaterOrEqual(Item[K, V]{Key: lo}, func(i Item[K, V]) bool {
		if i.Key > hi {
			return false
		}
		return fn(i.Key, i.Entry)
	})
}

// Items returns a sorted copy of the buffer.
func (mt *MemTable[K, V]) Items() []Item[K, V] {
	mt.lock.RLock()
	defer mt.lock.RUnlock()

	items := make([]Item[K, V], 0, mt.tree.Len())
	mt.tree.Ascend(func(i Item[K, V]) bool {
		items = append(items, i)
		return true
	})
	return items
}
