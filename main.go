package main

import (
	"fmt"
	"sync"

	"github.com/romange/beeristore/memtable"
)

type DB interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	Close() error
}

type Command int

const (
	CommandUnknown Command = iota
	CommandInsert
	CommandUpdate
	CommandDelete
)

// memDB is a minimal DB: writes go to the WAL before they land in the
// in-memory table, so a crash between the two loses nothing durable.
type memDB struct {
	mu  sync.RWMutex
	mem *memtable.SkipList[string, []byte]
	wal *WALWriter
}

func Open(walBuffer int) *memDB {
	return &memDB{
		mem: memtable.NewSkipListMemtable[string, []byte](),
		wal: NewWALWriter(walBuffer),
	}
}

func (db *memDB) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.wal.Write(&Log{op: OperationPut, key: key, value: value}); err != nil {
		return err
	}
	db.mem.Put(string(key), value)
	return nil
}

func (db *memDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	value, ok := db.mem.Get(string(key))
	if !ok {
		return nil, fmt.Errorf("key not found")
	}
	return value, nil
}

func (db *memDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.wal.Write(&Log{op: OperationDelete, key: key}); err != nil {
		return err
	}
	db.mem.Delete(string(key))
	return nil
}

// Flush serializes the current table into a sorted table file, ready to be
// written to disk by the caller.
func (db *memDB) Flush() []byte {
	db.mu.Lock()
	defer db.mu.Unlock()

	return memtable.Flush(db.mem)
}

func (db *memDB) Close() error {
	db.wal.Close()
	return nil
}

func main() {
}
