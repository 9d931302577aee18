package sink

import (
	"bytes"
	"testing"

	"github.com/romange/beeristore/status"
)

func TestBufferSinkAppend(t *testing.T) {
	s := NewBufferSink()
	if err := s.Append([]byte("hello ")); err != nil {
		t.Fatal(err)
	}
	if err := s.Append([]byte("world")); err != nil {
		t.Fatal(err)
	}
	if got := string(s.Bytes()); got != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}
	if s.Len() != len("hello world") {
		t.Fatalf("Len() = %d, want %d", s.Len(), len("hello world"))
	}
}

func TestByteSourcePeekAndSkip(t *testing.T) {
	src := NewByteSource([]byte("abcdefgh"))

	peeked, err := src.Peek(3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(peeked[:3], []byte("abc")) {
		t.Fatalf("peek got %q", peeked[:3])
	}

	if err := src.Skip(3); err != nil {
		t.Fatal(err)
	}
	if src.Remaining() != 5 {
		t.Fatalf("remaining = %d, want 5", src.Remaining())
	}

	if _, err := src.Peek(100); !status.Is(err, status.EndOfStream) {
		t.Fatalf("expected EndOfStream peeking past the end, got %v", err)
	}
}
