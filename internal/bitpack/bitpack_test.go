package bitpack

import "testing"

func TestPack32RoundTrip(t *testing.T) {
	for width := uint8(0); width <= 32; width++ {
		values := sampleValues(width)
		dst := make([]byte, PackedByteCount(len(values), width)+Margin)
		n := Pack32(dst, values, width)
		if n != PackedByteCount(len(values), width) {
			t.Fatalf("width %d: Pack32 wrote %d bytes, expected %d", width, n, PackedByteCount(len(values), width))
		}

		got := make([]uint32, len(values))
		Unpack32(dst, len(values), width, got)
		for i, v := range values {
			if got[i] != v {
				t.Fatalf("width %d value %d: got %d, want %d", width, i, got[i], v)
			}
		}
	}
}

func sampleValues(width uint8) []uint32 {
	if width == 0 {
		return []uint32{0, 0, 0}
	}
	var max uint32
	if width == 32 {
		max = 0xffffffff
	} else {
		max = (1 << width) - 1
	}
	return []uint32{0, max, max / 2, 1, max}
}

func TestBitWidth32(t *testing.T) {
	tests := []struct {
		v    uint32
		want uint8
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 2},
		{255, 8},
		{256, 9},
		{0xffffffff, 32},
	}
	for _, tt := range tests {
		if got := BitWidth32(tt.v); got != tt.want {
			t.Fatalf("BitWidth32(%d): got %d, want %d", tt.v, got, tt.want)
		}
	}
}
