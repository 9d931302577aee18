// Package stringintern deduplicates repeated byte strings into a single
// arena, handing callers back a small dense id in place of the string
// itself. It is the typical consumer of cuckoo.Table: columns with heavy
// value repetition (enum-like fields, repeated path prefixes) shrink to an
// id per row plus one copy per distinct value.
package stringintern

import "github.com/romange/beeristore/cuckoo"

// emptyKeySentinel marks empty cuckoo slots. hashBytes (FNV-1a) never
// returns it, and hash collisions between distinct strings are resolved by
// a byte comparison against the arena.
const emptyKeySentinel = ^uint64(0)

// Table interns byte strings, returning a stable id for each distinct
// value.
type Table struct {
	keys  *cuckoo.Table[int] // hash(value) -> index into arena
	arena [][]byte
}

// New returns an empty interning table.
func New() *Table {
	keys := cuckoo.New[int](16)
	keys.SetEmptyKey(emptyKeySentinel)
	return &Table{keys: keys}
}

// Intern returns the id for value, allocating a new one if value has not
// been seen before. The returned id is stable for the lifetime of the
// table and indexes directly into Value.
func (t *Table) Intern(value []byte) uint32 {
	h := hashBytes(value)
	for {
		if idx, _, ok := t.keys.Find(h); ok {
			if bytesEqual(t.arena[idx], value) {
				return uint32(idx)
			}
			// Hash collision between two distinct strings: perturb and retry
			// under a derived key so both survive.
			h = h*1099511628211 + 1
			continue
		}
		idx := len(t.arena)
		t.arena = append(t.arena, append([]byte(nil), value...))
		t.keys.Insert(h, idx)
		return uint32(idx)
	}
}

// Value returns the interned byte string for id.
func (t *Table) Value(id uint32) []byte { return t.arena[id] }

// Len returns the number of distinct interned strings.
func (t *Table) Len() int { return len(t.arena) }

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// hashBytes is the FNV-1a 64-bit hash; it need not match the cuckoo
// package's internal hash, only be cheap and well distributed, since
// cuckoo.Table treats the digest as an opaque key.
func hashBytes(b []byte) uint64 {
	h := uint64(14695981039346656037)
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	if h == emptyKeySentinel {
		h = emptyKeySentinel - 1
	}
	return h
}
