package sstable

import (
	"bytes"
	"encoding/binary"

	"github.com/romange/beeristore/internal/crc32c"
)

// restartInterval is how many entries separate consecutive restart points;
// an entry at a restart point stores its key in full, entries in between
// store only the suffix that differs from the previous key.
const restartInterval = 16

const (
	compressionNone = 0
)

// blockBuilder accumulates sorted key/value pairs into one data or index
// block's entry stream, emitting a restart point every restartInterval
// entries.
type blockBuilder struct {
	buf          bytes.Buffer
	restarts     []uint32
	lastKey      []byte
	entriesSince int
}

func newBlockBuilder() *blockBuilder {
	return &blockBuilder{restarts: []uint32{0}}
}

func (b *blockBuilder) estimatedSize() int {
	return b.buf.Len() + 4*(len(b.restarts)+1)
}

func (b *blockBuilder) add(key, value []byte) {
	shared := 0
	if b.entriesSince < restartInterval {
		shared = commonPrefixLen(b.lastKey, key)
	} else {
		b.restarts = append(b.restarts, uint32(b.buf.Len()))
		b.entriesSince = 0
	}
	nonShared := key[shared:]

	var hdr [3 * binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[0:], uint64(shared))
	n += binary.PutUvarint(hdr[n:], uint64(len(nonShared)))
	n += binary.PutUvarint(hdr[n:], uint64(len(value)))
	b.buf.Write(hdr[:n])
	b.buf.Write(nonShared)
	b.buf.Write(value)

	b.lastKey = append(b.lastKey[:0], key...)
	b.entriesSince++
}

// finish appends the restart point array, restart count, a one-byte
// compression type, and a masked CRC32C trailer covering everything before
// it, then returns the full block bytes.
func (b *blockBuilder) finish() []byte {
	body := b.buf.Bytes()
	for _, r := range b.restarts {
		body = binary.LittleEndian.AppendUint32(body, r)
	}
	body = binary.LittleEndian.AppendUint32(body, uint32(len(b.restarts)))

	out := append([]byte{}, body...)
	out = append(out, compressionNone)
	crc := crc32c.Mask(crc32c.Checksum(out))
	out = binary.LittleEndian.AppendUint32(out, crc)
	return out
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// blockIterator walks the entries of a parsed data or index block.
type blockIterator struct {
	data     []byte // block body, excluding restart array/count/trailer
	restarts []uint32

	offset  int
	key     []byte
	value   []byte
	valid   bool
}

func newBlockIterator(block []byte) (*blockIterator, error) {
	if len(block) < 5 {
		return nil, errShortBlock
	}
	trailerStart := len(block) - 5
	body := block[:trailerStart]

	numRestarts := binary.LittleEndian.Uint32(body[len(body)-4:])
	restartsStart := len(body) - 4 - int(numRestarts)*4
	if restartsStart < 0 {
		return nil, errShortBlock
	}
	restarts := make([]uint32, numRestarts)
	for i := range restarts {
		restarts[i] = binary.LittleEndian.Uint32(body[restartsStart+i*4:])
	}

	return &blockIterator{data: body[:restartsStart], restarts: restarts}, nil
}

var errShortBlock = blockError("sstable: block too short to contain a valid trailer")

type blockError string

func (e blockError) Error() string { return string(e) }

func (it *blockIterator) seekToFirst() {
	it.offset = 0
	it.key = nil
	it.parseAt(0, nil)
}

func (it *blockIterator) parseAt(offset int, prevKey []byte) {
	if offset >= len(it.data) {
		it.valid = false
		return
	}
	shared, n1 := binary.Uvarint(it.data[offset:])
	nonSharedLen, n2 := binary.Uvarint(it.data[offset+n1:])
	valueLen, n3 := binary.Uvarint(it.data[offset+n1+n2:])
	pos := offset + n1 + n2 + n3

	key := append([]byte{}, prevKey[:shared]...)
	key = append(key, it.data[pos:pos+int(nonSharedLen)]...)
	pos += int(nonSharedLen)

	value := it.data[pos : pos+int(valueLen)]
	pos += int(valueLen)

	it.key = key
	it.value = value
	it.offset = pos
	it.valid = true
}

func (it *blockIterator) next() {
	it.parseAt(it.offset, it.key)
}

// seek positions the iterator at the first entry whose key is >= target,
// using the restart array to binary search before scanning linearly
// within the chosen restart range.
func (it *blockIterator) seek(target []byte) {
	lo, hi := 0, len(it.restarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		it.parseAt(int(it.restarts[mid]), nil)
		if bytes.Compare(it.key, target) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	it.parseAt(int(it.restarts[lo]), nil)
	for it.valid && bytes.Compare(it.key, target) < 0 {
		it.next()
	}
}
