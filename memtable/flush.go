package memtable

import "github.com/romange/beeristore/sstable"

// Flush drains every record of sl, in key order, into a new sorted table
// and returns the table's serialized bytes. A nil Value is written as a
// zero-length value. Keys removed with Delete are no longer in sl, so they
// do not appear in the flushed table at all.
func Flush(sl *SkipList[string, []byte]) []byte {
	b := sstable.NewBuilder(sl.size)
	for rec := range sl.Iterator() {
		b.Add([]byte(rec.Key), rec.Value)
	}
	return b.Finish()
}
