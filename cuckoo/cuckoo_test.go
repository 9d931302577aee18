package cuckoo

import "testing"

const emptyKey = ^uint64(0)

func newTestTable(capacity int) *Table[string] {
	tbl := New[string](capacity)
	tbl.SetEmptyKey(emptyKey)
	return tbl
}

func TestInsertFindRoundTrip(t *testing.T) {
	tbl := newTestTable(16)

	want := map[uint64]string{}
	for i := uint64(1); i <= 200; i++ {
		v := string(rune('a' + i%26))
		tbl.Insert(i, v)
		want[i] = v
	}

	if tbl.Size() != len(want) {
		t.Fatalf("size: got %d, want %d", tbl.Size(), len(want))
	}

	for k, v := range want {
		got, _, ok := tbl.Find(k)
		if !ok {
			t.Fatalf("key %d: not found", k)
		}
		if got != v {
			t.Fatalf("key %d: got %q, want %q", k, got, v)
		}
	}
}

func TestInsertDuplicateKeyDoesNotOverwrite(t *testing.T) {
	tbl := newTestTable(16)

	firstID, inserted := tbl.Insert(5, "first")
	if !inserted {
		t.Fatal("expected first insert to report inserted=true")
	}

	secondID, inserted := tbl.Insert(5, "second")
	if inserted {
		t.Fatal("expected duplicate insert to report inserted=false")
	}
	if secondID != firstID {
		t.Fatalf("expected duplicate insert to return the existing id %d, got %d", firstID, secondID)
	}
	if tbl.Size() != 1 {
		t.Fatalf("expected one entry after duplicate insert, got %d", tbl.Size())
	}

	got, id, ok := tbl.Find(5)
	if !ok || got != "first" {
		t.Fatalf("expected original value %q preserved, got %q (ok=%v)", "first", got, ok)
	}
	if id != firstID {
		t.Fatalf("Find id %d does not match Insert id %d", id, firstID)
	}
}

func TestFromDenseIdCoversFullCapacity(t *testing.T) {
	tbl := newTestTable(16)
	for i := uint64(1); i <= 50; i++ {
		tbl.Insert(i, "v")
	}

	// FromDenseId must be defined for every d < Capacity(), not just for
	// ids that have been returned by Insert/Find: occupied slots round-trip
	// their key and value, and every other slot reports the empty-key
	// sentinel.
	found := map[uint64]bool{}
	for d := 0; d < tbl.Capacity(); d++ {
		key, value, ok := tbl.FromDenseId(uint32(d))
		if !ok {
			t.Fatalf("FromDenseId(%d): expected ok=true for d < Capacity()", d)
		}
		if key == emptyKey {
			continue
		}
		if value != "v" {
			t.Fatalf("FromDenseId(%d): got value %q, want %q", d, value, "v")
		}
		found[key] = true
	}
	if len(found) != tbl.Size() {
		t.Fatalf("FromDenseId swept %d distinct keys, want %d", len(found), tbl.Size())
	}

	if _, _, ok := tbl.FromDenseId(uint32(tbl.Capacity())); ok {
		t.Fatal("FromDenseId(Capacity()) should report ok=false")
	}

	for _, v := range []struct{ key uint64 }{{1}, {25}, {50}} {
		_, id, ok := tbl.Find(v.key)
		if !ok {
			t.Fatalf("key %d missing", v.key)
		}
		gotKey, _, ok := tbl.FromDenseId(id)
		if !ok || gotKey != v.key {
			t.Fatalf("FromDenseId(%d): got key %d, want %d", id, gotKey, v.key)
		}
	}
}

func TestGrowPreservesEntries(t *testing.T) {
	tbl := newTestTable(4)
	for i := uint64(1); i <= 1000; i++ {
		tbl.Insert(i, "v")
	}
	for i := uint64(1); i <= 1000; i++ {
		if _, _, ok := tbl.Find(i); !ok {
			t.Fatalf("key %d lost across growth", i)
		}
	}
}

func TestCompactShrinksAndIsLossless(t *testing.T) {
	tbl := newTestTable(4)
	for i := uint64(1); i <= 500; i++ {
		tbl.Insert(i, "v")
	}
	beforeSize := tbl.Size()
	beforeCap := tbl.Capacity()

	if !tbl.Compact(1.05) {
		t.Fatal("expected Compact(1.05) to succeed")
	}
	if tbl.Capacity() >= beforeCap {
		t.Fatalf("expected compact to shrink capacity below %d, got %d", beforeCap, tbl.Capacity())
	}
	if tbl.Size() != beforeSize {
		t.Fatalf("compact changed size: got %d, want %d", tbl.Size(), beforeSize)
	}
	for i := uint64(1); i <= 500; i++ {
		if _, _, ok := tbl.Find(i); !ok {
			t.Fatalf("key %d lost after compact", i)
		}
	}
}
