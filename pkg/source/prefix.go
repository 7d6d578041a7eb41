package source

import "encoding/binary"

// PrefixKey packs the first 8 bytes of s into a big-endian uint64, padding
// short strings with zeros. Byte-wise string order maps onto key order;
// strings sharing an 8-byte prefix collapse onto the same key.
func PrefixKey(s string) uint64 {
	var buf [8]byte
	copy(buf[:], s)
	return binary.BigEndian.Uint64(buf[:])
}

// PrefixKeys encodes every string with PrefixKey.
func PrefixKeys(lines []string) []uint64 {
	keys := make([]uint64, len(lines))
	for i, s := range lines {
		keys[i] = PrefixKey(s)
	}
	return keys
}
