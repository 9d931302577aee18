package memtable

import (
	"testing"

	"github.com/romange/beeristore/sstable"
)

func TestFlushProducesReadableTable(t *testing.T) {
	sl := NewSkipListMemtable[string, []byte]()
	sl.Put("b", []byte("banana"))
	sl.Put("a", []byte("apple"))
	sl.Put("c", nil) // tombstone

	data := Flush(sl)

	tbl, serr := sstable.Open(data)
	if serr != nil {
		t.Fatal(serr)
	}

	it, serr := tbl.NewIterator()
	if serr != nil {
		t.Fatal(serr)
	}

	it.SeekToFirst()
	want := []struct {
		key, value string
	}{
		{"a", "apple"},
		{"b", "banana"},
		{"c", ""},
	}
	for _, w := range want {
		if !it.Valid() {
			t.Fatalf("expected key %q, iterator exhausted", w.key)
		}
		if string(it.Key()) != w.key || string(it.Value()) != w.value {
			t.Fatalf("got (%q,%q), want (%q,%q)", it.Key(), it.Value(), w.key, w.value)
		}
		it.Next()
	}
	if it.Valid() {
		t.Fatal("expected no more entries")
	}
}
