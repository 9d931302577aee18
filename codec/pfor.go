package codec

import (
	"github.com/romange/beeristore/internal/bitpack"
	"github.com/romange/beeristore/internal/varint"
)

// pforBlockSize is the fixed number of values FastPFOR processes together;
// each block picks its own base, shift, and bit width.
const pforBlockSize = 128

// encodePFOR packs values using a block-at-a-time scheme: every full
// 128-value block subtracts a per-block base, right-shifts by the common
// number of trailing zero bits, then bit-packs the result at a width chosen
// to minimize exceptions*(maxWidth-width) + width*128 + per-exception
// overhead (spec's FastPFOR cost function). A trailing partial block (< 128
// values) is varbyte-encoded instead, since it is too small to amortize a
// block header.
func encodePFOR(values []uint32) []byte {
	out := varint.Put(nil, uint64(len(values)))

	i := 0
	for ; i+pforBlockSize <= len(values); i += pforBlockSize {
		out = encodePFORBlock(out, values[i:i+pforBlockSize])
	}
	for ; i < len(values); i++ {
		out = varint.Put(out, uint64(values[i]))
	}
	return out
}

func encodePFORBlock(out []byte, block []uint32) []byte {
	base := block[0]
	for _, v := range block {
		if v < base {
			base = v
		}
	}

	reduced := make([]uint32, len(block))
	var orAll uint32
	for i, v := range block {
		reduced[i] = v - base
		orAll |= reduced[i]
	}

	tz := uint8(0)
	if orAll != 0 {
		for tz < 31 && orAll&(1<<tz) == 0 {
			tz++
		}
	}

	shifted := make([]uint32, len(block))
	var maxShifted uint32
	for i, v := range reduced {
		shifted[i] = v >> tz
		if shifted[i] > maxShifted {
			maxShifted = shifted[i]
		}
	}
	maxb := bitpack.BitWidth32(maxShifted)

	bestB, bestExceptions := maxb, 0
	bestCost := int(maxb)*pforBlockSize + 8
	for b := uint8(0); b <= maxb; b++ {
		limit := uint32(1) << b
		exceptions := 0
		for _, v := range shifted {
			if b == 32 || v >= limit {
				exceptions++
			}
		}
		cost := int(b)*pforBlockSize + exceptions*(int(maxb)-int(b)) + 8*exceptions + 8
		if cost < bestCost {
			bestCost = cost
			bestB = b
			bestExceptions = exceptions
		}
	}

	out = varint.Put(out, uint64(base))
	out = append(out, tz, bestB, maxb)
	out = append(out, byte(bestExceptions), byte(bestExceptions>>8))

	main := make([]uint32, len(block))
	limit := uint32(1) << bestB
	if bestB == 32 {
		limit = 0 // unreachable in practice (maxb<=32), guards overflow
	}
	exceptionPos := make([]byte, 0, bestExceptions)
	exceptionVal := make([]uint32, 0, bestExceptions)
	for i, v := range shifted {
		if bestB < 32 && v >= limit {
			main[i] = 0
			exceptionPos = append(exceptionPos, byte(i))
			exceptionVal = append(exceptionVal, v)
		} else {
			main[i] = v
		}
	}

	mainBytes := make([]byte, bitpack.PackedByteCount(len(main), bestB)+bitpack.Margin)
	n := bitpack.Pack32(mainBytes, main, bestB)
	out = append(out, mainBytes[:n]...)

	out = append(out, exceptionPos...)
	if bestExceptions > 0 {
		excBytes := make([]byte, bitpack.PackedByteCount(len(exceptionVal), maxb)+bitpack.Margin)
		n := bitpack.Pack32(excBytes, exceptionVal, maxb)
		out = append(out, excBytes[:n]...)
	}

	return out
}

// decodePFOR is the inverse of encodePFOR; it returns the decoded values and
// the number of input bytes consumed.
func decodePFOR(src []byte) ([]uint32, int) {
	total, n := varint.Get(src)
	pos := n
	values := make([]uint32, 0, total)

	remaining := int(total)
	for remaining >= pforBlockSize {
		block, consumed := decodePFORBlock(src[pos:])
		values = append(values, block...)
		pos += consumed
		remaining -= pforBlockSize
	}
	for ; remaining > 0; remaining-- {
		v, n := varint.Get(src[pos:])
		pos += n
		values = append(values, uint32(v))
	}
	return values, pos
}

func decodePFORBlock(src []byte) ([]uint32, int) {
	base, n := varint.Get(src)
	pos := n
	tz := src[pos]
	b := src[pos+1]
	maxb := src[pos+2]
	exceptions := int(src[pos+3]) | int(src[pos+4])<<8
	pos += 5

	main := make([]uint32, pforBlockSize)
	pos += bitpack.Unpack32(src[pos:], pforBlockSize, b, main)

	positions := src[pos : pos+exceptions]
	pos += exceptions

	var excVals []uint32
	if exceptions > 0 {
		excVals = make([]uint32, exceptions)
		pos += bitpack.Unpack32(src[pos:], exceptions, maxb, excVals)
	}

	for i, p := range positions {
		main[p] = excVals[i]
	}

	out := make([]uint32, pforBlockSize)
	for i, v := range main {
		out[i] = (v << tz) + uint32(base)
	}
	return out, pos
}
