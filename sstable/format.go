// Package sstable implements the sorted-table (SSTable) on-disk format:
// data blocks with restart-point prefix compression, an optional Bloom
// filter block, a meta-index block, an index block, and a fixed-size
// footer carrying the index and meta-index block handles plus a magic
// number identifying the file.
package sstable

import (
	"encoding/binary"

	"github.com/romange/beeristore/status"
)

// Magic is written as the last 8 bytes of every table file.
const Magic uint64 = 0xf968d1dde8e3d8d6

// footerLength is two 20-byte (max-encoded-length) BlockHandles plus the
// 8-byte magic, matching the classic LevelDB footer layout.
const footerLength = 2*20 + 8

// handleMaxLen is the maximum varint-encoded length of a BlockHandle
// (two uint64 varints).
const handleMaxLen = 20

// BlockHandle locates a block within the file.
type BlockHandle struct {
	Offset uint64
	Size   uint64
}

// EncodeTo appends the varint encoding of h to dst.
func (h BlockHandle) EncodeTo(dst []byte) []byte {
	dst = appendVarint(dst, h.Offset)
	dst = appendVarint(dst, h.Size)
	return dst
}

// DecodeHandle reads a BlockHandle from src, returning it and the number
// of bytes consumed.
func DecodeHandle(src []byte) (BlockHandle, int) {
	off, n1 := getVarint(src)
	size, n2 := getVarint(src[n1:])
	return BlockHandle{Offset: off, Size: size}, n1 + n2
}

func appendVarint(dst []byte, v uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(dst, buf[:n]...)
}

func getVarint(src []byte) (uint64, int) {
	return binary.Uvarint(src)
}

// EncodeFooter serializes the footer: metaIndex and index handles each
// padded to handleMaxLen bytes, followed by the 8-byte little-endian magic.
func EncodeFooter(metaIndex, index BlockHandle) []byte {
	out := make([]byte, 0, footerLength)
	mi := metaIndex.EncodeTo(nil)
	mi = append(mi, make([]byte, handleMaxLen-len(mi))...)
	out = append(out, mi...)

	idx := index.EncodeTo(nil)
	idx = append(idx, make([]byte, handleMaxLen-len(idx))...)
	out = append(out, idx...)

	out = binary.LittleEndian.AppendUint64(out, Magic)
	return out
}

// DecodeFooter parses the trailing footerLength bytes of a table file.
func DecodeFooter(src []byte) (metaIndex, index BlockHandle, serr *status.Error) {
	if len(src) != footerLength {
		return BlockHandle{}, BlockHandle{}, status.New(status.InvalidArgument, "sstable: footer must be %d bytes, got %d", footerLength, len(src))
	}
	magic := binary.LittleEndian.Uint64(src[footerLength-8:])
	if magic != Magic {
		return BlockHandle{}, BlockHandle{}, status.New(status.InvalidArgument, "sstable: bad magic %x", magic)
	}
	metaIndex, _ = DecodeHandle(src[0:handleMaxLen])
	index, _ = DecodeHandle(src[handleMaxLen : 2*handleMaxLen])
	return metaIndex, index, nil
}
