package sstable

import (
	"bytes"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/romange/beeristore/internal/crc32c"
	"github.com/romange/beeristore/status"
)

func maskedCRC(data []byte) uint32 {
	return crc32c.Mask(crc32c.Checksum(data))
}

// Table is an opened, immutable sorted table file.
type Table struct {
	data   []byte
	index  []byte // raw index block (body only, footer stripped)
	filter *bloom.BloomFilter
}

// Open parses the footer, meta-index, index, and filter blocks of a table
// file. The data blocks are read lazily by Iterator.
func Open(data []byte) (*Table, *status.Error) {
	if len(data) < footerLength {
		return nil, status.New(status.InvalidArgument, "sstable: file too short")
	}
	metaIndexHandle, indexHandle, serr := DecodeFooter(data[len(data)-footerLength:])
	if serr != nil {
		return nil, serr
	}

	indexBlock, serr := readBlock(data, indexHandle)
	if serr != nil {
		return nil, serr
	}

	metaIndexBlock, serr := readBlock(data, metaIndexHandle)
	if serr != nil {
		return nil, serr
	}

	t := &Table{data: data, index: indexBlock}

	mit, err := newBlockIterator(metaIndexBlock)
	if err == nil {
		for mit.seekToFirst(); mit.valid; mit.next() {
			if string(mit.key) == "filter.bloom" {
				fh, _ := DecodeHandle(mit.value)
				filterBlock, serr := readBlock(data, fh)
				if serr == nil {
					fit, ferr := newBlockIterator(filterBlock)
					if ferr == nil {
						for fit.seekToFirst(); fit.valid; fit.next() {
							if string(fit.key) == "filter.bloom" {
								f := &bloom.BloomFilter{}
								if _, rerr := f.ReadFrom(bytes.NewReader(fit.value)); rerr == nil {
									t.filter = f
								}
							}
						}
					}
				}
			}
		}
	}

	return t, nil
}

// readBlock returns the raw block bytes (body + restart array + restart
// count + compression byte + CRC trailer) at handle h; newBlockIterator
// strips the trailer and parses the restart array.
func readBlock(file []byte, h BlockHandle) ([]byte, *status.Error) {
	end := h.Offset + h.Size
	if end > uint64(len(file)) {
		return nil, status.New(status.InvalidArgument, "sstable: block handle out of range")
	}
	if h.Size < 5 {
		return nil, status.New(status.InvalidArgument, "sstable: block too short")
	}
	block := file[h.Offset:end]
	trailerStart := len(block) - 5
	crc := uint32(block[trailerStart+1]) | uint32(block[trailerStart+2])<<8 |
		uint32(block[trailerStart+3])<<16 | uint32(block[trailerStart+4])<<24
	if got := maskedCRC(block[:trailerStart+1]); got != crc {
		return nil, status.New(status.IOError, "sstable: block checksum mismatch")
	}
	return block, nil
}

// MayContain reports whether key might be present, using the table's
// Bloom filter; a false result is a reliable proof of absence.
func (t *Table) MayContain(key []byte) bool {
	if t.filter == nil {
		return true
	}
	return t.filter.Test(key)
}

// Iterator walks the table's entries in key order across data blocks.
type Iterator struct {
	t         *Table
	indexIter *blockIterator
	dataIter  *blockIterator
	err       *status.Error
}

// NewIterator returns an unpositioned Iterator; call SeekToFirst, SeekToLast,
// or Seek before reading Key/Value.
func (t *Table) NewIterator() (*Iterator, *status.Error) {
	idx, err := newBlockIterator(t.index)
	if err != nil {
		return nil, status.Wrap(status.InternalError, err, "sstable: index block corrupt")
	}
	return &Iterator{t: t, indexIter: idx}, nil
}

func (it *Iterator) loadDataBlock() bool {
	if !it.indexIter.valid {
		it.dataIter = nil
		return false
	}
	h, _ := DecodeHandle(it.indexIter.value)
	block, serr := readBlock(it.t.data, h)
	if serr != nil {
		it.err = serr
		return false
	}
	di, err := newBlockIterator(block)
	if err != nil {
		it.err = status.Wrap(status.InternalError, err, "sstable: data block corrupt")
		return false
	}
	it.dataIter = di
	return true
}

// SeekToFirst positions the iterator at the first entry.
func (it *Iterator) SeekToFirst() {
	it.indexIter.seekToFirst()
	if it.loadDataBlock() {
		it.dataIter.seekToFirst()
	}
}

// SeekToLast positions the iterator at the last entry.
func (it *Iterator) SeekToLast() {
	it.indexIter.seekToFirst()
	last := -1
	for it.indexIter.valid {
		last = it.indexIter.offset
		it.indexIter.next()
	}
	if last < 0 {
		it.dataIter = nil
		return
	}
	it.indexIter.parseAt(0, nil)
	for it.indexIter.offset != last {
		it.indexIter.next()
	}
	if it.loadDataBlock() {
		it.dataIter.seekToFirst()
		for {
			save := *it.dataIter
			it.dataIter.next()
			if !it.dataIter.valid {
				*it.dataIter = save
				break
			}
		}
	}
}

// Seek positions the iterator at the first entry whose key >= target.
func (it *Iterator) Seek(target []byte) {
	it.indexIter.seekToFirst()
	it.indexIter.seek(target)
	if it.loadDataBlock() {
		it.dataIter.seek(target)
		if !it.dataIter.valid {
			it.indexIter.next()
			if it.loadDataBlock() {
				it.dataIter.seekToFirst()
			}
		}
	}
}

// Next advances to the following entry.
func (it *Iterator) Next() {
	it.dataIter.next()
	if !it.dataIter.valid {
		it.indexIter.next()
		if it.loadDataBlock() {
			it.dataIter.seekToFirst()
		}
	}
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool { return it.dataIter != nil && it.dataIter.valid }

// Key returns the current entry's key.
func (it *Iterator) Key() []byte { return it.dataIter.key }

// Value returns the current entry's value.
func (it *Iterator) Value() []byte { return it.dataIter.value }

// Status returns any error encountered while iterating.
func (it *Iterator) Status() *status.Error { return it.err }

// ApproximateOffsetOf returns an estimate of the file offset at which an
// entry with the given key would be found, for progress reporting over a
// range scan.
func (t *Table) ApproximateOffsetOf(key []byte) uint64 {
	idx, err := newBlockIterator(t.index)
	if err != nil {
		return uint64(len(t.data))
	}
	idx.seek(key)
	if idx.valid {
		h, _ := DecodeHandle(idx.value)
		return h.Offset
	}
	return uint64(len(t.data))
}
