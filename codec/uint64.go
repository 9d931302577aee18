package codec

import "github.com/romange/beeristore/internal/varint"

// EncodeUInt64Stream serializes values as two independently chunk-encoded
// UInt32 streams, one for the low 32 bits and one for the high 32 bits.
// Values that fit in 32 bits (the overwhelming common case for row counts,
// offsets, and most integer columns) make the high stream one long
// REPEATED-zero chunk, which costs a handful of bytes regardless of row
// count.
func EncodeUInt64Stream(values []uint64) []byte {
	low := make([]uint32, len(values))
	high := make([]uint32, len(values))
	for i, v := range values {
		low[i] = uint32(v)
		high[i] = uint32(v >> 32)
	}

	lowEnc := EncodeUInt32Stream(low)
	highEnc := EncodeUInt32Stream(high)

	out := varint.Put(nil, uint64(len(lowEnc)))
	out = append(out, lowEnc...)
	out = append(out, highEnc...)
	return out
}

// DecodeUInt64Stream is the inverse of EncodeUInt64Stream.
func DecodeUInt64Stream(src []byte) ([]uint64, int) {
	lowLen, n := varint.Get(src)
	pos := n

	low, consumed := DecodeUInt32Stream(src[pos : pos+int(lowLen)])
	if consumed != int(lowLen) {
		panic("codec: malformed uint64 stream: low substream length mismatch")
	}
	pos += int(lowLen)

	high, consumed := DecodeUInt32Stream(src[pos:])
	pos += consumed

	values := make([]uint64, len(low))
	for i := range values {
		values[i] = uint64(low[i]) | uint64(high[i])<<32
	}
	return values, pos
}
