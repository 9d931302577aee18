// Package bitpack implements the fixed bit-width packing kernel shared by
// the DIRECT_256 integer chunk and the FastPFOR block: pack count integers
// of a chosen bit_width into a tightly packed byte buffer, and unpack them
// back.
package bitpack

// Margin is the number of extra scratch bytes an encoder is permitted to
// write past the exact PackedByteCount while assembling a packed buffer.
const Margin = 4

// PackedByteCount returns the number of bytes needed to hold count integers
// of the given bit width.
func PackedByteCount(count int, width uint8) int {
	return (count*int(width) + 7) / 8
}

// Pack32 bit-packs src (each value must fit in width bits) into dst, which
// must have at least PackedByteCount(len(src), width)+Margin bytes of
// capacity, and returns the exact number of bytes written.
func Pack32(dst []byte, src []uint32, width uint8) int {
	if width == 0 || len(src) == 0 {
		return 0
	}
	if width%8 == 0 {
		nb := int(width) / 8
		for i, v := range src {
			base := i * nb
			for b := 0; b < nb; b++ {
				dst[base+b] = byte(v >> (8 * uint(b)))
			}
		}
		return nb * len(src)
	}

	bitPos := 0
	for _, v := range src {
		for i := uint8(0); i < width; i++ {
			if (v>>i)&1 != 0 {
				dst[bitPos/8] |= 1 << uint(bitPos%8)
			}
			bitPos++
		}
	}
	return PackedByteCount(len(src), width)
}

// Unpack32 reads count values of the given bit width from src into dst,
// which must have length >= count, and returns the number of bytes of src
// consumed.
func Unpack32(src []byte, count int, width uint8, dst []uint32) int {
	if width == 0 || count == 0 {
		for i := 0; i < count; i++ {
			dst[i] = 0
		}
		return 0
	}
	if width%8 == 0 {
		nb := int(width) / 8
		for i := 0; i < count; i++ {
			base := i * nb
			var v uint32
			for b := nb - 1; b >= 0; b-- {
				v = (v << 8) | uint32(src[base+b])
			}
			dst[i] = v
		}
		return nb * count
	}

	bitPos := 0
	for i := 0; i < count; i++ {
		var v uint32
		for b := uint8(0); b < width; b++ {
			if src[bitPos/8]&(1<<uint(bitPos%8)) != 0 {
				v |= 1 << b
			}
			bitPos++
		}
		dst[i] = v
	}
	return PackedByteCount(count, width)
}

// Pack64 is the 64-bit counterpart of Pack32, supporting width in [1, 64].
func Pack64(dst []byte, src []uint64, width uint8) int {
	if width == 0 || len(src) == 0 {
		return 0
	}
	if width%8 == 0 {
		nb := int(width) / 8
		for i, v := range src {
			base := i * nb
			for b := 0; b < nb; b++ {
				dst[base+b] = byte(v >> (8 * uint(b)))
			}
		}
		return nb * len(src)
	}

	bitPos := 0
	for _, v := range src {
		for i := uint8(0); i < width; i++ {
			if (v>>i)&1 != 0 {
				dst[bitPos/8] |= 1 << uint(bitPos%8)
			}
			bitPos++
		}
	}
	return PackedByteCount(len(src), width)
}

// Unpack64 is the 64-bit counterpart of Unpack32.
func Unpack64(src []byte, count int, width uint8, dst []uint64) int {
	if width == 0 || count == 0 {
		for i := 0; i < count; i++ {
			dst[i] = 0
		}
		return 0
	}
	if width%8 == 0 {
		nb := int(width) / 8
		for i := 0; i < count; i++ {
			base := i * nb
			var v uint64
			for b := nb - 1; b >= 0; b-- {
				v = (v << 8) | uint64(src[base+b])
			}
			dst[i] = v
		}
		return nb * count
	}

	bitPos := 0
	for i := 0; i < count; i++ {
		var v uint64
		for b := uint8(0); b < width; b++ {
			if src[bitPos/8]&(1<<uint(bitPos%8)) != 0 {
				v |= 1 << b
			}
			bitPos++
		}
		dst[i] = v
	}
	return PackedByteCount(count, width)
}

// BitWidth32 returns the number of bits needed to represent v (0 returns 0).
func BitWidth32(v uint32) uint8 {
	w := uint8(0)
	for v != 0 {
		w++
		v >>= 1
	}
	return w
}

// BitWidth64 returns the number of bits needed to represent v (0 returns 0).
func BitWidth64(v uint64) uint8 {
	w := uint8(0)
	for v != 0 {
		w++
		v >>= 1
	}
	return w
}
