// Package pbblock implements a field-oriented (columnar) serializer for
// Protocol-Buffer-shaped records: each scalar field of the schema gets its
// own column, nested messages get their own nested block, optional fields
// get a has-bit BitArray, and repeated fields get an array-size UInt32
// stream recording how many elements each row contributed. The column
// writer list is built once from the schema at construction time, so
// adding a row never walks the schema via reflection.
package pbblock

import (
	"github.com/romange/beeristore/bitarray"
	"github.com/romange/beeristore/codec"
	"github.com/romange/beeristore/internal/varint"
	"github.com/romange/beeristore/strcol"
)

// FieldType identifies a column's scalar storage kind.
type FieldType int

const (
	Int64 FieldType = iota
	UInt64
	Bool
	String
	Bytes
	Message
)

// FieldDescriptor describes one field of a Schema.
type FieldDescriptor struct {
	Name     string
	Type     FieldType
	Optional bool
	Repeated bool
	Nested   *Schema // only meaningful when Type == Message
}

// Schema is an ordered list of fields; field order is the column order on
// the wire.
type Schema struct {
	Fields []FieldDescriptor
}

// Record is a row's value map: scalar fields map to their native Go type
// (int64, uint64, bool, string, []byte), optional absent fields are simply
// missing from the map, repeated fields map to a []any of per-element
// values, and Message fields map to a nested Record (or []Record if also
// repeated).
type Record map[string]any

type column struct {
	desc  FieldDescriptor
	hasBits *bitarray.BitArray
	sizes   []uint32 // one entry per row, only when Repeated
	ints    []uint64 // Int64/UInt64/Bool, zigzag-folded for Int64
	strs    []string // String/Bytes (Bytes stored as latin1-ish string of raw bytes)
	nested  *Writer  // Message
}

// Writer accumulates rows and serializes them into a columnar block.
type Writer struct {
	schema  *Schema
	columns []*column
	rows    int
}

// NewWriter builds the flat column list for schema once.
func NewWriter(schema *Schema) *Writer {
	w := &Writer{schema: schema}
	for _, f := range schema.Fields {
		c := &column{desc: f}
		if f.Optional {
			c.hasBits = bitarray.New()
		}
		if f.Type == Message {
			c.nested = NewWriter(f.Nested)
		}
		w.columns = append(w.columns, c)
	}
	return w
}

// Add appends one row. Fields absent from rec are treated as unset
// (optional) or zero-valued/empty (required).
func (w *Writer) Add(rec Record) {
	w.rows++
	for _, c := range w.columns {
		v, present := rec[c.desc.Name]
		if c.desc.Optional {
			c.hasBits.Push(present)
		}
		if c.desc.Repeated {
			items, _ := v.([]any)
			c.sizes = append(c.sizes, uint32(len(items)))
			for _, item := range items {
				c.appendScalarOrNested(item)
			}
			continue
		}
		if !present {
			c.appendZero()
			continue
		}
		c.appendScalarOrNested(v)
	}
}

func (c *column) appendZero() {
	switch c.desc.Type {
	case Int64, UInt64, Bool:
		c.ints = append(c.ints, 0)
	case String, Bytes:
		c.strs = append(c.strs, "")
	case Message:
		c.nested.Add(Record{})
	}
}

func (c *column) appendScalarOrNested(v any) {
	switch c.desc.Type {
	case Int64:
		c.ints = append(c.ints, uint64(varint.Zigzag64(v.(int64))))
	case UInt64:
		c.ints = append(c.ints, v.(uint64))
	case Bool:
		b := uint64(0)
		if v.(bool) {
			b = 1
		}
		c.ints = append(c.ints, b)
	case String:
		c.strs = append(c.strs, v.(string))
	case Bytes:
		c.strs = append(c.strs, string(v.([]byte)))
	case Message:
		c.nested.Add(v.(Record))
	}
}

// Finalize closes out every has-bit column; it must be called once, after
// the last Add, before SerializeTo.
func (w *Writer) Finalize() {
	for _, c := range w.columns {
		if c.hasBits != nil {
			c.hasBits.Finalize()
		}
		if c.nested != nil {
			c.nested.Finalize()
		}
	}
}

// SerializeTo writes the block: a varint length, then one UInt32 stream
// whose first value is the row count and whose remaining values are the
// byte-size of each column's payload in schema order, followed by the
// column payloads themselves concatenated in that same order (each
// column's shape depends on its Optional/Repeated/Type combination, and
// its length is already known from the size stream).
func (w *Writer) SerializeTo() []byte {
	payloads := make([][]byte, len(w.columns))
	sizes := make([]uint32, len(w.columns)+1)
	sizes[0] = uint32(w.rows)
	for i, c := range w.columns {
		payloads[i] = c.serialize()
		sizes[i+1] = uint32(len(payloads[i]))
	}
	sizeStream := codec.EncodeUInt32Stream(sizes)

	out := varint.Put(nil, uint64(len(sizeStream)))
	out = append(out, sizeStream...)
	for _, p := range payloads {
		out = append(out, p...)
	}
	return out
}

func (c *column) serialize() []byte {
	var out []byte
	if c.desc.Optional {
		data := c.hasBits.Data()
		out = varint.Put(out, uint64(c.hasBits.Size()))
		out = varint.Put(out, uint64(len(data)))
		for _, w := range data {
			out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
		}
	}
	if c.desc.Repeated {
		sizeStream := codec.EncodeUInt32Stream(c.sizes)
		out = varint.Put(out, uint64(len(sizeStream)))
		out = append(out, sizeStream...)
	}

	switch c.desc.Type {
	case Int64, UInt64, Bool:
		out = append(out, codec.EncodeUInt64Stream(c.ints)...)
	case String, Bytes:
		out = append(out, strcol.Encode(c.strs)...)
	case Message:
		nested := c.nested.SerializeTo()
		out = append(out, nested...)
	}
	return out
}

// Deserializer reads back a block produced by Writer.SerializeTo.
type Deserializer struct {
	schema *Schema
	rows   int
}

// NewDeserializer parses the row count and decodes all of src's columns
// against schema, returning the deserializer and the decoded records.
func NewDeserializer(schema *Schema, src []byte) (*Deserializer, []Record) {
	blobLen, n := varint.Get(src)
	pos := n

	sizeStream, consumed := codec.DecodeUInt32Stream(src[pos : pos+int(blobLen)])
	if consumed != int(blobLen) {
		panic("pbblock: malformed field-sizes stream")
	}
	pos += int(blobLen)

	rows := int(sizeStream[0])
	colSizes := sizeStream[1:]

	values := make([]map[int]any, len(schema.Fields))
	for i, f := range schema.Fields {
		plen := int(colSizes[i])
		colSrc := src[pos : pos+plen]
		pos += plen
		values[i] = decodeColumn(f, colSrc, rows)
	}

	records := make([]Record, rows)
	for r := 0; r < rows; r++ {
		rec := Record{}
		for i, f := range schema.Fields {
			if v, ok := values[i][r]; ok {
				rec[f.Name] = v
			}
		}
		records[r] = rec
	}
	return &Deserializer{schema: schema, rows: rows}, records
}

func decodeScalar(t FieldType, raw uint64) any {
	switch t {
	case Int64:
		return varint.Unzigzag64(raw)
	case Bool:
		return raw != 0
	default: // UInt64
		return raw
	}
}

func decodeColumn(f FieldDescriptor, src []byte, rows int) map[int]any {
	pos := 0
	var hasBits *bitarray.BitArray
	if f.Optional {
		size, n := varint.Get(src[pos:])
		pos += n
		dataLen, n := varint.Get(src[pos:])
		pos += n
		words := make([]uint32, dataLen)
		for i := range words {
			words[i] = uint32(src[pos]) | uint32(src[pos+1])<<8 | uint32(src[pos+2])<<16 | uint32(src[pos+3])<<24
			pos += 4
		}
		hasBits = bitarray.FromData(uint32(size), words)
	}

	var sizes []uint32
	if f.Repeated {
		slen, n := varint.Get(src[pos:])
		pos += n
		sizes, _ = codec.DecodeUInt32Stream(src[pos : pos+int(slen)])
		pos += int(slen)
	}

	out := map[int]any{}

	present := func(row int) bool {
		if hasBits == nil {
			return true
		}
		return hasBits.Get(uint32(row))
	}

	switch f.Type {
	case Int64, UInt64, Bool:
		ints, _ := codec.DecodeUInt64Stream(src[pos:])
		idx := 0
		for row := 0; row < rows; row++ {
			n := 1
			if f.Repeated {
				n = int(sizes[row])
			}
			if !present(row) {
				idx += n
				continue
			}
			vals := make([]any, 0, n)
			for k := 0; k < n; k++ {
				vals = append(vals, decodeScalar(f.Type, ints[idx]))
				idx++
			}
			if f.Repeated {
				out[row] = vals
			} else if n == 1 {
				out[row] = vals[0]
			}
		}
	case String, Bytes:
		strs, _ := strcol.Decode(src[pos:])
		idx := 0
		for row := 0; row < rows; row++ {
			n := 1
			if f.Repeated {
				n = int(sizes[row])
			}
			if !present(row) {
				idx += n
				continue
			}
			vals := make([]any, 0, n)
			for k := 0; k < n; k++ {
				v := strs[idx]
				if f.Type == Bytes {
					vals = append(vals, []byte(v))
				} else {
					vals = append(vals, v)
				}
				idx++
			}
			if f.Repeated {
				out[row] = vals
			} else if n == 1 {
				out[row] = vals[0]
			}
		}
	case Message:
		nestedRows := rows
		if f.Repeated {
			total := 0
			for _, s := range sizes {
				total += int(s)
			}
			nestedRows = total
		}
		_, nestedRecords := NewDeserializer(f.Nested, src[pos:])
		_ = nestedRows
		idx := 0
		for row := 0; row < rows; row++ {
			n := 1
			if f.Repeated {
				n = int(sizes[row])
			}
			if !present(row) {
				idx += n
				continue
			}
			if f.Repeated {
				vals := make([]any, 0, n)
				for k := 0; k < n; k++ {
					vals = append(vals, nestedRecords[idx])
					idx++
				}
				out[row] = vals
			} else {
				out[row] = nestedRecords[idx]
				idx++
			}
		}
	}
	return out
}

