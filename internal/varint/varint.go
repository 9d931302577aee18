// Package varint provides the base-128 varint and zigzag helpers shared by
// every wire format in this module. The encoding is bit-for-bit the same
// scheme encoding/binary already implements, so this package is a thin,
// domain-named wrapper rather than a reimplementation.
package varint

import "encoding/binary"

// MaxLen32 is the maximum number of bytes a varint-encoded uint32 can take.
const MaxLen32 = binary.MaxVarintLen32

// MaxLen64 is the maximum number of bytes a varint-encoded uint64 can take.
const MaxLen64 = binary.MaxVarintLen64

// Put appends the varint encoding of v to dst and returns the extended slice.
func Put(dst []byte, v uint64) []byte {
	var buf [MaxLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(dst, buf[:n]...)
}

// Get reads a varint from src, returning the value and the number of bytes
// consumed, or n <= 0 if src does not hold a complete, valid varint.
func Get(src []byte) (uint64, int) {
	return binary.Uvarint(src)
}

// Zigzag32 maps a signed 32-bit value to an unsigned one so that small
// magnitude values (positive or negative) encode in few varint bytes.
func Zigzag32(v int32) uint32 {
	return (uint32(v) << 1) ^ uint32(v>>31)
}

// Unzigzag32 reverses Zigzag32.
func Unzigzag32(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

// Zigzag64 maps a signed 64-bit value to an unsigned one.
func Zigzag64(v int64) uint64 {
	return (uint64(v) << 1) ^ uint64(v>>63)
}

// Unzigzag64 reverses Zigzag64.
func Unzigzag64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}
