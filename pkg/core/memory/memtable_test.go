package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemTablePutGetDelete(t *testing.T) {
	mt := NewMemTable[int64, string](4, 3)

	mt.Put(5, "five")
	mt.Put(1, "one")
	e, ok := mt.Get(5)
	require.True(t, ok)
	assert.Equal(t, Live("five"), e)

	mt.Put(5, "FIVE")
	e, _ = mt.Get(5)
	assert.Equal(t, "FIVE", e.Value)
	assert.Equal(t, 2, mt.Count())
	assert.False(t, mt.Full())

	mt.Delete(9)
	e, ok = mt.Get(9)
	require.True(t, ok, "tombstones are buffered entries")
	assert.True(t, e.Tombstone)
	assert.True(t, mt.Full())
	assert.Equal(t, 3, mt.Capacity())

	_, ok = mt.Get(2)
	assert.False(t, ok)
}

func TestMemTableOrderedIteration(t *testing.T) {
	mt := NewMemTable[uint32, int](2, 100)
	for _, k := range []uint32{40, 10, 30, 20, 50} {
		mt.Put(k, int(k))
	}
	mt.Delete(30)

	items := mt.Items()
	keys := make([]uint32, len(items))
	for i, it := range items {
		keys[i] = it.Key
	}
	assert.Equal(t, []uint32{10, 20, 30, 40, 50}, keys)
	assert.True(t, items[2].Entry.Tombstone)

	var scanned []uint32
	mt.Scan(15, 40, func(k uint32, _ Entry[int]) bool {
		scanned = append(scanned, k)
		return true
	})
	assert.Equal(t, []uint32{20, 30, 40}, scanned)

	var first []uint32
	mt.Iterator(func(k uint32, _ Entry[int]) bool {
		first = append(first, k)
		return len(first) < 2
	})
	assert.Equal(t, []uint32{10, 20}, first)
}
