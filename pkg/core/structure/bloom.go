package structure

import (
	"hash/fnv"
	"math"

	"github.com/bits-and-blooms/bitset"

	"learnedkv/pkg/common"
)

// BloomFilter over fixed-width keys. It is filled once while a level is
// built and only read afterwards, so it carries no lock.
type BloomFilter[K common.Key] struct {
	bits  *bitset.BitSet
	k     uint
	m     uint
	count uint
}

func NewBloomFilter[K common.Key](n uint, p float64) *BloomFilter[K] {
	if n == 0 {
		n = 1
	}
	// 理论最佳公式
	// m = - (n * ln(p)) / (ln(2)^2)
	// k = (m / n) * ln(2)
	m := uint(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m == 0 {
		m = 1
	}
	k := uint(math.Ceil((float64(m) / float64(n)) * math.Ln2))
	if k == 0 {
		k = 1
	}

	return &BloomFilter[K]{
		bits: bitset.New(m),
		k:    k,
		m:    m,
	}
}

func (bf *BloomFilter[K]) Add(key K) {
	h1, h2 := hashes(uint64(key))
	for i := uint(0); i < bf.k; i++ {
		bf.bits.Set(bitIndex(h1, h2, i, bf.m))
	}
	bf.count++
}

func (bf *BloomFilter[K]) Contains(key K) bool {
	h1, h2 := hashes(uint64(key))
	for i := uint(0); i < bf.k; i++ {
		if !bf.bits.Test(bitIndex(h1, h2, i, bf.m)) {
			return false
		}
	}
	return true
}

// SizeInBytes is the size of the bit array.
func (bf *BloomFilter[K]) SizeInBytes() int {
	return int((bf.bits.Len() + 63) / 64 * 8)
}

// bitIndex is the i-th probe of double hashing, taken modulo m in 64 bits
// so filters larger than 2^32 bits stay fully addressable.
func bitIndex(h1, h2 uint64, i, m uint) uint {
	return uint((h1 + uint64(i)*h2) % uint64(m))
}

func hashes(n uint64) (uint64, uint64) {
	h := fnv.New64a()
	h.Write([]byte{
		byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24),
		byte(n >> 32), byte(n >> 40), byte(n >> 48), byte(n >> 56),
	})
	h2 := n ^ (n >> 29) ^ (n << 17)
	// 保证步长为奇数，避免所有探测落在同一位
	return h.Sum64(), h2 | 1
}

func (bf *BloomFilter[K]) Stats() map[string]interface{} {
	return map[string]interface{}{
		"bloom_bits_size": bf.m,
		"bloom_hashes":    bf.k,
		"bloom_count":     bf.count,
	}
}
