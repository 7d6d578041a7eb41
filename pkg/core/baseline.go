package core

import (
	"sync"

	"github.com/google/btree"

	"learnedkv/pkg/common"
)

type btreeItem[K common.Key, V any] struct {
	key   K
	value V
}

// BTreeMap is the comparison baseline: a plain B-tree map behind one lock.
type BTreeMap[K common.Key, V any] struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[btreeItem[K, V]]
}

func NewBTreeMap[K common.Key, V any](degree int) *BTreeMap[K, V] {
	return &BTreeMap[K, V]{
		tree: btree.NewG(degree, func(a, b btreeItem[K, V]) bool {
			return a.key < b.key
		}),
	}
}

func (m *BTreeMap[K, V]) Put(key K, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.ReplaceOrInsert(btreeItem[K, V]{key: key, value: value})
	return nil
}

func (m *BTreeMap[K, V]) Delete(key K) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Delete(btreeItem[K, V]{key: key})
	return nil
}

func (m *BTreeMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.tree.Get(btreeItem[K, V]{key: key})
	return it.value, ok
}

func (m *BTreeMap[K, V]) Scan(lo, hi K, fn func(key K, value V) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.tree.AscendGreaterOrEqual(btreeItem[K, V]{key: lo}, func(it btreeItem[K, V]) bool {
		if it.key > hi {
			return false
		}
		return fn(it.key, it.value)
	})
}

func (m *BTreeMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

func (m *BTreeMap[K, V]) Type() string {
	return "BTree"
}
