// Package sink defines the small write/read abstractions the block and
// file-format codecs are written against, so the same serializer can
// target an in-memory buffer, a bufio.Writer, or a record-log append
// without knowing which.
package sink

import (
	"bytes"

	"github.com/romange/beeristore/status"
)

// Sink accepts a sequence of byte slices.
type Sink interface {
	Append(data []byte) *status.Error
}

// Source yields bytes without consuming them until Skip is called,
// letting a parser look ahead (e.g. to read a length prefix) before
// deciding how much to consume.
type Source interface {
	// Peek returns at least minSize bytes if that many remain. If fewer
	// than minSize bytes remain and minSize > 0, it returns nil and a
	// status.EndOfStream error.
	Peek(minSize int) ([]byte, *status.Error)
	Skip(n int) *status.Error
}

// BufferSink is a Sink backed by a growable in-memory buffer.
type BufferSink struct {
	buf bytes.Buffer
}

// NewBufferSink returns an empty BufferSink.
func NewBufferSink() *BufferSink { return &BufferSink{} }

// Append implements Sink.
func (s *BufferSink) Append(data []byte) *status.Error {
	s.buf.Write(data)
	return nil
}

// Bytes returns the accumulated contents.
func (s *BufferSink) Bytes() []byte { return s.buf.Bytes() }

// Len returns the number of bytes written so far.
func (s *BufferSink) Len() int { return s.buf.Len() }

// ByteSource is a Source over an in-memory byte slice.
type ByteSource struct {
	data []byte
	pos  int
}

// NewByteSource returns a Source over data.
func NewByteSource(data []byte) *ByteSource { return &ByteSource{data: data} }

// Peek implements Source.
func (s *ByteSource) Peek(minSize int) ([]byte, *status.Error) {
	remaining := s.data[s.pos:]
	if minSize > 0 && len(remaining) < minSize {
		return nil, status.New(status.EndOfStream, "byte source: %d bytes requested, %d remain", minSize, len(remaining))
	}
	return remaining, nil
}

// Skip implements Source.
func (s *ByteSource) Skip(n int) *status.Error {
	if s.pos+n > len(s.data) {
		return status.New(status.EndOfStream, "byte source: skip %d past end", n)
	}
	s.pos += n
	return nil
}

// Remaining returns the number of unconsumed bytes.
func (s *ByteSource) Remaining() int { return len(s.data) - s.pos }
