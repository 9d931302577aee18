// Package recordlog implements the LST1 on-disk record-log format: an
// append-only file of fixed-size blocks, each holding zero or more
// physical records, where a logical record too large for one block is
// fragmented across FIRST/MIDDLE/LAST physical records. The format mirrors
// LevelDB's log writer/reader, extended with an optional snappy-compressed
// payload per physical record and an optional meta key/value map stored
// right after the file header.
package recordlog

import (
	"encoding/binary"

	"github.com/golang/snappy"
	"github.com/romange/beeristore/internal/crc32c"
	"github.com/romange/beeristore/internal/varint"
	"github.com/romange/beeristore/status"
)

// Magic is the fixed 5-byte file signature.
var Magic = [5]byte{'L', 'S', 'T', '1', 0}

const (
	defaultBlockSizeMultiplier = 1
	baseBlockSize              = 65536
)

// Record physical types, stored in the low 4 bits of a physical record's
// type byte; bit 4 (0x10) is the COMPRESSED flag.
const (
	typeFull   = 1
	typeFirst  = 2
	typeMiddle = 3
	typeArray  = 4 // a self-contained record holding a count-prefixed batch
	typeLast   = 5
)

// recordHeaderSize is crc(4) + length(4) + type(1).
const recordHeaderSize = 9

// minCompressSize is the smallest payload worth attempting to compress.
const minCompressSize = 128

// minCompressionGain sets a 1/8 threshold for this format (strcol uses 1/6):
// snappy framing is cheap, but still not worth it for incompressible payloads.
const minCompressionGain = 8

const compressedFlag = 0x10 // bit 4, ORed into the physical record type byte

// compressionSnappy is the only defined compression_method tag, written as
// the first payload byte whenever compressedFlag is set.
const compressionSnappy = 1

// Writer appends logical records to a record-log file laid out in
// fixed-size blocks.
type Writer struct {
	blockSize int
	buf       []byte // pending bytes for the block currently being filled
	blockLeft int
}

// NewWriter returns a Writer whose blocks are blockSizeMultiplier *
// baseBlockSize bytes (or the default of one 64 KiB block if 0).
func NewWriter(blockSizeMultiplier int) *Writer {
	if blockSizeMultiplier <= 0 {
		blockSizeMultiplier = defaultBlockSizeMultiplier
	}
	bs := blockSizeMultiplier * baseBlockSize
	return &Writer{blockSize: bs, blockLeft: bs}
}

// extension types, stored at file header offset 6.
const (
	extensionNone    = 0
	extensionMetaMap = 1
)

// FileHeader returns the fixed file preamble: magic, block size multiplier,
// an extension-type byte, and, when meta is non-empty, an extension block
// holding a masked CRC, a length, and the serialized meta map.
func FileHeader(blockSizeMultiplier int, meta map[string]string) []byte {
	if blockSizeMultiplier <= 0 {
		blockSizeMultiplier = defaultBlockSizeMultiplier
	}
	out := append([]byte{}, Magic[:]...)
	if len(meta) == 0 {
		return append(out, byte(blockSizeMultiplier), extensionNone)
	}
	out = append(out, byte(blockSizeMultiplier), extensionMetaMap)

	metaBuf := encodeMeta(meta)
	crc := crc32c.Mask(crc32c.Checksum(metaBuf))
	out = binary.LittleEndian.AppendUint32(out, crc)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(metaBuf)))
	out = append(out, metaBuf...)
	return out
}

func encodeMeta(meta map[string]string) []byte {
	var out []byte
	out = varint.Put(out, uint64(len(meta)))
	for k, v := range meta {
		out = varint.Put(out, uint64(len(k)))
		out = append(out, k...)
		out = varint.Put(out, uint64(len(v)))
		out = append(out, v...)
	}
	return out
}

func decodeMeta(src []byte) (map[string]string, *status.Error) {
	count, n := varint.Get(src)
	pos := n
	meta := make(map[string]string, count)
	for i := uint64(0); i < count; i++ {
		klen, n := varint.Get(src[pos:])
		pos += n
		key := string(src[pos : pos+int(klen)])
		pos += int(klen)
		vlen, n := varint.Get(src[pos:])
		pos += n
		val := string(src[pos : pos+int(vlen)])
		pos += int(vlen)
		meta[key] = val
	}
	return meta, nil
}

// ParseFileHeader reads the file preamble written by FileHeader and
// returns the block size multiplier, the meta map, and the number of
// bytes consumed.
func ParseFileHeader(src []byte) (blockSizeMultiplier int, meta map[string]string, consumed int, serr *status.Error) {
	if len(src) < 7 {
		return 0, nil, 0, status.New(status.EndOfStream, "record log: truncated file header")
	}
	var magic [5]byte
	copy(magic[:], src[:5])
	if magic != Magic {
		return 0, nil, 0, status.New(status.InvalidArgument, "record log: bad magic %v", magic)
	}
	blockSizeMultiplier = int(src[5])
	extensionType := src[6]
	pos := 7

	if extensionType != extensionMetaMap {
		return blockSizeMultiplier, nil, pos, nil
	}

	wantCRC := binary.LittleEndian.Uint32(src[pos:])
	pos += 4
	metaLen := binary.LittleEndian.Uint32(src[pos:])
	pos += 4
	metaBuf := src[pos : pos+int(metaLen)]
	pos += int(metaLen)

	if got := crc32c.Mask(crc32c.Checksum(metaBuf)); got != wantCRC {
		return 0, nil, 0, status.New(status.IOError, "record log: meta block checksum mismatch")
	}
	meta, serr = decodeMeta(metaBuf)
	if serr != nil {
		return 0, nil, 0, serr
	}
	return blockSizeMultiplier, meta, pos, nil
}

// AppendRecord serializes one logical record as one or more physical
// records, fragmenting it across block boundaries as needed, and returns
// the bytes to append to the file.
func (w *Writer) AppendRecord(payload []byte) []byte {
	var out []byte
	first := true
	for {
		if w.blockLeft < recordHeaderSize {
			// Pad the remainder of the block with zeros; a reader skips a
			// trailing run shorter than recordHeaderSize.
			out = append(out, make([]byte, w.blockLeft)...)
			w.blockLeft = w.blockSize
		}

		avail := w.blockLeft - recordHeaderSize
		fragment := payload
		last := true
		if len(fragment) > avail {
			fragment = payload[:avail]
			last = false
		}

		recType := byte(typeFull)
		switch {
		case first && last:
			recType = typeFull
		case first && !last:
			recType = typeFirst
		case !first && last:
			recType = typeLast
		default:
			recType = typeMiddle
		}

		body := fragment
		if len(fragment) >= minCompressSize {
			if compressed := snappy.Encode(nil, fragment); compressed != nil && len(compressed)*minCompressionGain < len(fragment)*(minCompressionGain-1) {
				body = append([]byte{compressionSnappy}, compressed...)
				recType |= compressedFlag
			}
		}

		rec := make([]byte, recordHeaderSize+len(body))
		crc := crc32c.Mask(crc32c.Extend(crc32c.Checksum([]byte{recType}), body))
		binary.LittleEndian.PutUint32(rec[0:4], crc)
		binary.LittleEndian.PutUint32(rec[4:8], uint32(len(body)))
		rec[8] = recType
		copy(rec[9:], body)

		out = append(out, rec...)
		w.blockLeft -= len(rec)

		payload = payload[len(fragment):]
		first = false
		if last {
			break
		}
	}
	return out
}

// AppendArray serializes a batch of logical records as a single ARRAY
// physical record type when the whole batch fits in the remainder of the
// current block, avoiding one header per record; it falls back to
// AppendRecord-per-item otherwise.
func (w *Writer) AppendArray(payloads [][]byte) []byte {
	var body []byte
	body = varint.Put(body, uint64(len(payloads)))
	for _, p := range payloads {
		body = varint.Put(body, uint64(len(p)))
		body = append(body, p...)
	}
	if len(body) <= w.blockLeft-recordHeaderSize {
		rec := make([]byte, recordHeaderSize+len(body))
		crc := crc32c.Mask(crc32c.Extend(crc32c.Checksum([]byte{typeArray}), body))
		binary.LittleEndian.PutUint32(rec[0:4], crc)
		binary.LittleEndian.PutUint32(rec[4:8], uint32(len(body)))
		rec[8] = typeArray
		copy(rec[9:], body)
		w.blockLeft -= len(rec)
		return rec
	}

	var out []byte
	for _, p := range payloads {
		out = append(out, w.AppendRecord(p)...)
	}
	return out
}

// Reader parses a byte stream of fixed-size blocks back into logical
// records, resyncing to the next block boundary when it encounters
// corruption.
type Reader struct {
	blockSize  int
	data       []byte
	pos        int
	pending    []byte  // fragments accumulated for a record in progress
	arrayQueue [][]byte // items from an ARRAY record not yet returned

	// Corruptions records every (offset, reason) pair this reader skipped
	// past while resyncing.
	Corruptions []Corruption
}

// Corruption describes one skipped region of the log.
type Corruption struct {
	Offset int
	Reason string
}

// NewReader returns a Reader over data, whose blocks are
// blockSizeMultiplier * baseBlockSize bytes.
func NewReader(data []byte, blockSizeMultiplier int) *Reader {
	if blockSizeMultiplier <= 0 {
		blockSizeMultiplier = defaultBlockSizeMultiplier
	}
	return &Reader{blockSize: blockSizeMultiplier * baseBlockSize, data: data}
}

// Next returns the next logical record, or ok=false at end of stream.
// Items from a batch appended via AppendArray are surfaced as consecutive
// calls to Next, one per item, before the reader advances further.
func (r *Reader) Next() (record []byte, ok bool) {
	if len(r.arrayQueue) > 0 {
		record, r.arrayQueue = r.arrayQueue[0], r.arrayQueue[1:]
		return record, true
	}

	for {
		recType, body, eof := r.nextPhysicalRecord()
		if eof {
			return nil, false
		}
		if recType == 0 {
			continue // resynced past a corrupt header
		}

		switch recType {
		case typeFull:
			return body, true
		case typeFirst:
			r.pending = append([]byte{}, body...)
		case typeMiddle:
			r.pending = append(r.pending, body...)
		case typeLast:
			r.pending = append(r.pending, body...)
			rec := r.pending
			r.pending = nil
			return rec, true
		case typeArray:
			items, serr := decodeArrayBody(body)
			if serr != nil {
				r.reportCorruption(serr.Msg)
				continue
			}
			if len(items) == 0 {
				continue
			}
			r.arrayQueue = items[1:]
			return items[0], true
		}
	}
}

func decodeArrayBody(body []byte) ([][]byte, *status.Error) {
	count, n := varint.Get(body)
	pos := n
	items := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		if pos >= len(body) {
			return nil, status.New(status.IOError, "record log: truncated array record")
		}
		plen, n := varint.Get(body[pos:])
		pos += n
		if pos+int(plen) > len(body) {
			return nil, status.New(status.IOError, "record log: truncated array item")
		}
		items = append(items, body[pos:pos+int(plen)])
		pos += int(plen)
	}
	return items, nil
}

func (r *Reader) reportCorruption(reason string) {
	r.Corruptions = append(r.Corruptions, Corruption{Offset: r.pos, Reason: reason})
}

// nextPhysicalRecord reads one physical record header+body starting at the
// reader's current position. If the header is corrupt or the checksum
// fails, it records a Corruption, skips to the next block boundary, and
// returns recType 0 so the caller retries.
func (r *Reader) nextPhysicalRecord() (recType byte, body []byte, eof bool) {
	blockOff := r.pos % r.blockSize
	if r.pos >= len(r.data) {
		return 0, nil, true
	}
	if r.blockSize-blockOff < recordHeaderSize {
		r.pos += r.blockSize - blockOff
		return 0, nil, r.pos >= len(r.data)
	}

	if r.pos+recordHeaderSize > len(r.data) {
		r.pos = len(r.data)
		return 0, nil, true
	}

	header := r.data[r.pos : r.pos+recordHeaderSize]
	wantCRC := binary.LittleEndian.Uint32(header[0:4])
	length := int(binary.LittleEndian.Uint32(header[4:8]))
	rawType := header[8]

	if rawType == 0 && wantCRC == 0 && length == 0 {
		// Zero padding inserted by the writer at a block boundary; skip to
		// the next block.
		r.pos += r.blockSize - blockOff
		return 0, nil, r.pos >= len(r.data)
	}

	bodyStart := r.pos + recordHeaderSize
	if bodyStart+length > len(r.data) {
		r.reportCorruption("physical record overruns buffer")
		r.pos += r.blockSize - blockOff
		return 0, nil, r.pos >= len(r.data)
	}

	raw := r.data[bodyStart : bodyStart+length]
	gotCRC := crc32c.Mask(crc32c.Extend(crc32c.Checksum([]byte{rawType}), raw))
	if gotCRC != wantCRC {
		r.reportCorruption("checksum mismatch")
		r.pos += r.blockSize - blockOff
		return 0, nil, r.pos >= len(r.data)
	}

	r.pos = bodyStart + length

	plainType := rawType &^ compressedFlag
	if rawType&compressedFlag != 0 {
		if len(raw) < 1 || raw[0] != compressionSnappy {
			r.reportCorruption("unknown compression method")
			return 0, nil, false
		}
		decoded, err := snappy.Decode(nil, raw[1:])
		if err != nil {
			r.reportCorruption("snappy decode failed: " + err.Error())
			return 0, nil, false
		}
		return plainType, decoded, false
	}
	return plainType, raw, false
}
