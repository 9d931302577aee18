// Package strcol implements the string column codec: a packed header byte,
// a length stream (a UInt32 stream of per-value byte lengths), and a
// literal blob holding the concatenated bytes, optionally zlib-compressed
// when doing so pays off.
package strcol

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/romange/beeristore/codec"
)

// compression method tags, packed into the header byte.
const (
	compressNone = 0
	compressZlib = 1
)

// minCompressSize is the smallest literal blob worth attempting to
// compress; below this, zlib's own framing overhead dominates.
const minCompressSize = 64

// minCompressionGain is the fraction of the original size that must be
// saved for a compressed blob to be kept over the raw one (1/6).
const minCompressionGain = 6

// Encode serializes values as a packed header byte, the big-endian size
// fields it describes, a length stream, and a literal blob.
//
// Header byte, low bits to high: enc:2 (always 0, reserved), compr_method:2,
// uncompressed_size_bytes:2 (byte-width-1 of the uncompressed-size field,
// meaningful only when compressed), lengths_blob_size_bytes:2 (byte-width-1
// of the lengths-blob-size field). The uncompressed-size field itself is
// only written when the blob is compressed: an uncompressed blob's size is
// always recoverable by summing the decoded lengths.
func Encode(values []string) []byte {
	lengths := make([]uint32, len(values))
	var blob bytes.Buffer
	for i, s := range values {
		lengths[i] = uint32(len(s))
		blob.WriteString(s)
	}
	lengthStream := codec.EncodeUInt32Stream(lengths)

	raw := blob.Bytes()
	method := byte(compressNone)
	payload := raw
	compressed := false
	if len(raw) >= minCompressSize {
		if c, ok := tryCompress(raw); ok {
			method = compressZlib
			payload = c
			compressed = true
		}
	}

	lenSizeW := beByteLen(uint64(len(lengthStream)))
	header := method<<2 | byte(lenSizeW-1)<<6

	var uncSizeW int
	if compressed {
		uncSizeW = beByteLen(uint64(len(raw)))
		header |= byte(uncSizeW-1) << 4
	}

	out := []byte{header}
	if compressed {
		out = appendBE(out, uint64(len(raw)), uncSizeW)
	}
	out = appendBE(out, uint64(len(lengthStream)), lenSizeW)
	out = append(out, lengthStream...)
	out = append(out, payload...)
	return out
}

func tryCompress(raw []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	if buf.Len()*minCompressionGain >= len(raw)*(minCompressionGain-1) {
		return nil, false
	}
	return buf.Bytes(), true
}

// Decode is the inverse of Encode; it returns the decoded strings and the
// number of input bytes consumed.
func Decode(src []byte) ([]string, int) {
	header := src[0]
	pos := 1

	method := (header >> 2) & 0x3
	uncSizeW := int((header>>4)&0x3) + 1
	lenSizeW := int((header>>6)&0x3) + 1

	var uncSize uint64
	if method == compressZlib {
		uncSize = readBE(src[pos:], uncSizeW)
		pos += uncSizeW
	}

	lengthStreamSize := readBE(src[pos:], lenSizeW)
	pos += lenSizeW

	lengths, consumed := codec.DecodeUInt32Stream(src[pos : pos+int(lengthStreamSize)])
	if consumed != int(lengthStreamSize) {
		panic("strcol: malformed length stream")
	}
	pos += int(lengthStreamSize)

	var raw []byte
	payloadLen := 0
	switch method {
	case compressNone:
		total := 0
		for _, l := range lengths {
			total += int(l)
		}
		raw = src[pos : pos+total]
		payloadLen = total
	case compressZlib:
		// The compressed payload has no explicit length prefix; zlib framing
		// is self-terminating, so read until the reader is exhausted.
		r, err := zlib.NewReader(bytes.NewReader(src[pos:]))
		if err != nil {
			panic("strcol: corrupt zlib stream: " + err.Error())
		}
		decoded, err := io.ReadAll(io.LimitReader(r, int64(uncSize)))
		if err != nil {
			panic("strcol: corrupt zlib stream: " + err.Error())
		}
		raw = decoded
		payloadLen = zlibConsumed(src[pos:])
	default:
		panic("strcol: unknown compression method")
	}
	pos += payloadLen

	values := make([]string, len(lengths))
	off := 0
	for i, l := range lengths {
		values[i] = string(raw[off : off+int(l)])
		off += int(l)
	}
	return values, pos
}

// zlibConsumed reports how many bytes of src the zlib stream at its start
// occupies, by re-running the reader to EOF and comparing against a
// counting wrapper.
func zlibConsumed(src []byte) int {
	cr := &countingReader{r: bytes.NewReader(src)}
	r, err := zlib.NewReader(cr)
	if err != nil {
		return len(src)
	}
	_, _ = io.Copy(io.Discard, r)
	return cr.n
}

type countingReader struct {
	r *bytes.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

// beByteLen returns the number of big-endian bytes needed to hold v, with a
// floor of 1 so a zero value still occupies a byte, and a cap of 4 since
// the header only reserves 2 bits to describe the field's width.
func beByteLen(v uint64) int {
	n := 1
	for n < 4 && v>>(8*uint(n)) != 0 {
		n++
	}
	return n
}

func appendBE(dst []byte, v uint64, n int) []byte {
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*uint(i))))
	}
	return dst
}

func readBE(src []byte, n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v = v<<8 | uint64(src[i])
	}
	return v
}
