package codec

import "testing"

func TestPFORRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		values []uint32
	}{
		{"empty", nil},
		{"one_partial_block", []uint32{1, 2, 3}},
		{"exact_one_block", randomish(pforBlockSize)},
		{"multi_block_with_tail", randomish(pforBlockSize*3 + 17)},
		{"with_exceptions", withOutliers(pforBlockSize, 5)},
		{"constant", repeat(42, pforBlockSize*2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := encodePFOR(tt.values)
			got, consumed := decodePFOR(enc)
			if consumed != len(enc) {
				t.Fatalf("consumed %d, expected %d", consumed, len(enc))
			}
			if len(got) != len(tt.values) {
				t.Fatalf("length mismatch: got %d, want %d", len(got), len(tt.values))
			}
			for i := range tt.values {
				if got[i] != tt.values[i] {
					t.Fatalf("value %d: got %d, want %d", i, got[i], tt.values[i])
				}
			}
		})
	}
}

func withOutliers(n, outliers int) []uint32 {
	vals := randomish(n)
	for i := range vals {
		vals[i] %= 16
	}
	for i := 0; i < outliers && i < len(vals); i++ {
		vals[i*7%len(vals)] = 1 << 20
	}
	return vals
}
