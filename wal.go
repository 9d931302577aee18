package main

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/romange/beeristore/internal/crc32c"
)

const (
	InvalidCRC   = uint32(0xFFFFFFFF)
	MaxEntrySize = 16 << 20 // 16MB
)

var ErrCorruptWAL = fmt.Errorf("corrupt WAL")

type Operation int

const (
	OperationPut Operation = iota
	OperationDelete
)

type Log struct {
	op    Operation
	key   []byte
	value []byte
	crc   uint32

	done chan error
}

func (l *Log) String() string {
	return fmt.Sprintf("[crc: ] [operation: %d] [key: %s] [value: %s]", l.op, l.key, l.value)
}

// Encode Binary format:
// | CRC (4) | TOTAL_LEN (4) | TYPE (1) | KEY_LEN (4) | KEY | VAL_LEN (4) | VALUE |
// CRC is the masked CRC32C (Castagnoli) of TOTAL_LEN | PAYLOAD, the same
// masking transform the record-log and sorted-table formats use so a run
// of zero bytes can never pass as a valid checksum.
func (l *Log) Encode(w io.Writer) error {
	keyLen := uint32(len(l.key))
	valLen := uint32(len(l.value))

	payloadLen := 1 + 4 + keyLen + 4 + valLen
	totalLen := 4 + payloadLen

	if totalLen > MaxEntrySize {
		return fmt.Errorf("entry too large")
	}

	body := make([]byte, 0, totalLen)
	body = binary.LittleEndian.AppendUint32(body, totalLen)
	body = append(body, byte(l.op))
	body = binary.LittleEndian.AppendUint32(body, keyLen)
	body = append(body, l.key...)
	body = binary.LittleEndian.AppendUint32(body, valLen)
	body = append(body, l.value...)

	crc := crc32c.Mask(crc32c.Checksum(body))

	if err := binary.Write(w, binary.LittleEndian, crc); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// Size returns the exact number of bytes Encode will write for this entry.
func (l *Log) Size() int {
	return 4 + 4 + 1 + 4 + len(l.key) + 4 + len(l.value)
}

func cleanEOF(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return io.EOF
	}
	return err
}

func Decode(r io.Reader) (*Log, error) {
	var storedCRC uint32
	if err := binary.Read(r, binary.LittleEndian, &storedCRC); err != nil {
		return nil, cleanEOF(err)
	}

	if storedCRC == InvalidCRC {
		return nil, io.EOF
	}

	var totalLen uint32
	if err := binary.Read(r, binary.LittleEndian, &totalLen); err != nil {
		return nil, cleanEOF(err)
	}

	if totalLen > MaxEntrySize || totalLen < 5 {
		return nil, ErrCorruptWAL
	}

	payload := make([]byte, totalLen)
	binary.LittleEndian.PutUint32(payload[0:4], totalLen)

	if _, err := io.ReadFull(r, payload[4:]); err != nil {
		return nil, cleanEOF(err)
	}

	if crc32c.Mask(crc32c.Checksum(payload)) != storedCRC {
		return nil, ErrCorruptWAL
	}

	pos := 4

	var l Log
	l.crc = storedCRC

	l.op = Operation(payload[pos])
	pos++

	keyLen := binary.LittleEndian.Uint32(payload[pos:])
	pos += 4

	if keyLen > uint32(len(payload))-uint32(pos) {
		return nil, ErrCorruptWAL
	}

	l.key = make([]byte, keyLen)
	copy(l.key, payload[pos:pos+int(keyLen)])
	pos += int(keyLen)

	valLen := binary.LittleEndian.Uint32(payload[pos:])
	pos += 4

	if valLen > uint32(len(payload))-uint32(pos) {
		return nil, ErrCorruptWAL
	}

	l.value = make([]byte, valLen)
	copy(l.value, payload[pos:pos+int(valLen)])

	return &l, nil
}
