package pbblock

import "testing"

func personSchema() *Schema {
	return &Schema{Fields: []FieldDescriptor{
		{Name: "id", Type: UInt64},
		{Name: "name", Type: String},
		{Name: "nickname", Type: String, Optional: true},
		{Name: "tags", Type: String, Repeated: true},
	}}
}

func TestRoundTripScalarAndRepeated(t *testing.T) {
	schema := personSchema()
	w := NewWriter(schema)

	rows := []Record{
		{"id": uint64(1), "name": "alice", "nickname": "ally", "tags": []any{"admin", "eng"}},
		{"id": uint64(2), "name": "bob", "tags": []any{}},
		{"id": uint64(3), "name": "carol", "nickname": "caz", "tags": []any{"eng"}},
	}
	for _, r := range rows {
		w.Add(r)
	}
	w.Finalize()

	block := w.SerializeTo()
	_, got := NewDeserializer(schema, block)

	if len(got) != len(rows) {
		t.Fatalf("row count: got %d, want %d", len(got), len(rows))
	}

	for i, want := range rows {
		row := got[i]
		if row["id"] != want["id"] {
			t.Fatalf("row %d id: got %v, want %v", i, row["id"], want["id"])
		}
		if row["name"] != want["name"] {
			t.Fatalf("row %d name: got %v, want %v", i, row["name"], want["name"])
		}
		wantNick, hasNick := want["nickname"]
		gotNick, gotHasNick := row["nickname"]
		if hasNick != gotHasNick {
			t.Fatalf("row %d nickname presence: got %v, want %v", i, gotHasNick, hasNick)
		}
		if hasNick && gotNick != wantNick {
			t.Fatalf("row %d nickname: got %v, want %v", i, gotNick, wantNick)
		}
	}
}

func TestNestedMessageColumn(t *testing.T) {
	addrSchema := &Schema{Fields: []FieldDescriptor{
		{Name: "city", Type: String},
		{Name: "zip", Type: UInt64},
	}}
	schema := &Schema{Fields: []FieldDescriptor{
		{Name: "id", Type: UInt64},
		{Name: "address", Type: Message, Nested: addrSchema},
	}}

	w := NewWriter(schema)
	w.Add(Record{"id": uint64(1), "address": Record{"city": "nyc", "zip": uint64(10001)}})
	w.Add(Record{"id": uint64(2), "address": Record{"city": "sf", "zip": uint64(94105)}})
	w.Finalize()

	block := w.SerializeTo()
	_, got := NewDeserializer(schema, block)

	if len(got) != 2 {
		t.Fatalf("row count: got %d, want 2", len(got))
	}
	addr0, ok := got[0]["address"].(Record)
	if !ok {
		t.Fatalf("row 0 address: not a Record, got %T", got[0]["address"])
	}
	if addr0["city"] != "nyc" || addr0["zip"] != uint64(10001) {
		t.Fatalf("row 0 address mismatch: %+v", addr0)
	}
}
