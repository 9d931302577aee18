package sstable

import (
	"bytes"

	"github.com/bits-and-blooms/bloom/v3"
)

// targetBlockSize is the approximate uncompressed size a data block grows
// to before it is flushed.
const targetBlockSize = 4 * 1024

// Builder assembles a sorted table file in memory. Keys must be added in
// strictly increasing order.
type Builder struct {
	buf bytes.Buffer

	data    *blockBuilder
	index   *blockBuilder
	filter  *bloom.BloomFilter
	lastKey []byte

	pendingHandle     BlockHandle
	pendingIndexEntry bool

	numEntries int
}

// NewBuilder returns a Builder that estimates the Bloom filter size from
// expectedEntries at a 1% target false-positive rate.
func NewBuilder(expectedEntries int) *Builder {
	if expectedEntries <= 0 {
		expectedEntries = 1
	}
	return &Builder{
		data:   newBlockBuilder(),
		index:  newBlockBuilder(),
		filter: bloom.NewWithEstimates(uint(expectedEntries), 0.01),
	}
}

// Add appends one key/value pair. Key must be strictly greater than every
// key added so far.
func (b *Builder) Add(key, value []byte) {
	if b.pendingIndexEntry {
		separator := shortSeparator(b.lastKey, key)
		b.index.add(separator, b.pendingHandle.EncodeTo(nil))
		b.pendingIndexEntry = false
	}

	b.filter.Add(key)
	b.data.add(key, value)
	b.lastKey = append(b.lastKey[:0], key...)
	b.numEntries++

	if b.data.estimatedSize() >= targetBlockSize {
		b.flushDataBlock()
	}
}

func (b *Builder) flushDataBlock() {
	if b.data.entriesSince == 0 && len(b.data.restarts) <= 1 && b.data.buf.Len() == 0 {
		return
	}
	block := b.data.finish()
	handle := BlockHandle{Offset: uint64(b.buf.Len()), Size: uint64(len(block))}
	b.buf.Write(block)

	b.pendingHandle = handle
	b.pendingIndexEntry = true
	b.data = newBlockBuilder()
}

func (b *Builder) writeBlock(bb *blockBuilder) BlockHandle {
	block := bb.finish()
	handle := BlockHandle{Offset: uint64(b.buf.Len()), Size: uint64(len(block))}
	b.buf.Write(block)
	return handle
}

// Finish flushes all pending blocks and returns the complete table file.
func (b *Builder) Finish() []byte {
	if b.data.entriesSince > 0 {
		b.flushDataBlock()
	}
	if b.pendingIndexEntry {
		separator := shortSuccessor(b.lastKey)
		b.index.add(separator, b.pendingHandle.EncodeTo(nil))
		b.pendingIndexEntry = false
	}

	filterBlock := newBlockBuilder()
	var filterBuf bytes.Buffer
	_, _ = b.filter.WriteTo(&filterBuf)
	filterBlock.add([]byte("filter.bloom"), filterBuf.Bytes())
	filterHandle := b.writeBlock(filterBlock)

	metaIndex := newBlockBuilder()
	metaIndex.add([]byte("filter.bloom"), filterHandle.EncodeTo(nil))
	metaIndexHandle := b.writeBlock(metaIndex)

	indexHandle := b.writeBlock(b.index)

	b.buf.Write(EncodeFooter(metaIndexHandle, indexHandle))
	return b.buf.Bytes()
}

// NumEntries returns the number of key/value pairs added so far.
func (b *Builder) NumEntries() int { return b.numEntries }

// shortSeparator returns a key >= start and <= limit that is as short as
// possible, matching the classic SSTable index-entry trick of shrinking
// separator keys so index blocks stay small. When no shorter key fits
// strictly between them, it returns a copy of limit.
func shortSeparator(start, limit []byte) []byte {
	n := commonPrefixLen(start, limit)
	if n < len(start) && n < len(limit) && start[n] < 0xff && start[n]+1 < limit[n] {
		sep := append([]byte{}, start[:n+1]...)
		sep[n]++
		return sep
	}
	return append([]byte{}, limit...)
}

// shortSuccessor returns a key >= key, used as the separator after the
// last data block (which has no following block to bound it).
func shortSuccessor(key []byte) []byte {
	for i := 0; i < len(key); i++ {
		if key[i] != 0xff {
			succ := append([]byte{}, key[:i+1]...)
			succ[i]++
			return succ
		}
	}
	return append([]byte{}, key...)
}
