package stringintern

import "testing"

func TestInternReturnsStableIdForRepeatedValue(t *testing.T) {
	tbl := New()
	id1 := tbl.Intern([]byte("hello"))
	id2 := tbl.Intern([]byte("hello"))
	if id1 != id2 {
		t.Fatalf("expected same id for repeated value, got %d and %d", id1, id2)
	}
	if tbl.Len() != 1 {
		t.Fatalf("expected 1 distinct value, got %d", tbl.Len())
	}
}

func TestInternDistinguishesDistinctValues(t *testing.T) {
	tbl := New()
	values := []string{"alpha", "beta", "gamma", "delta", "alpha", "beta"}
	ids := make(map[string]uint32)
	for _, v := range values {
		id := tbl.Intern([]byte(v))
		if prior, seen := ids[v]; seen && prior != id {
			t.Fatalf("value %q got inconsistent ids %d and %d", v, prior, id)
		}
		ids[v] = id
	}
	if tbl.Len() != 4 {
		t.Fatalf("expected 4 distinct values, got %d", tbl.Len())
	}
	for v, id := range ids {
		if string(tbl.Value(id)) != v {
			t.Fatalf("Value(%d) = %q, want %q", id, tbl.Value(id), v)
		}
	}
}
