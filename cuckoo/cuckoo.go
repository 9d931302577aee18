// Package cuckoo implements a cuckoo-hashed associative array addressed by
// a dense id: every slot in the bucket array is identified by
// bucket_index*B + slot_index, and that same id indexes directly into the
// table's flat value array, so FromDenseId is defined for every id below
// Capacity() without a separate compacting layer on top of the buckets.
package cuckoo

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

const (
	bucketLength = 4
	// mask1 and mask2 key the two hash functions so that h1 and h2 are
	// independent even though both are derived from the same underlying
	// hash, rather than requiring two separately seeded hashers.
	mask1 = 0xc949d7c7509e6557
	mask2 = 0x9ae16a3b2f90404f

	defaultShiftsLimit = 500
	explorationDepth   = 4
)

// entry holds a bucket slot's key. A slot is empty iff its key equals the
// table's configured empty-key sentinel.
type entry struct {
	key uint64
}

// Table is a cuckoo hash table mapping uint64 keys to values of type V,
// addressed by dense id.
type Table[V any] struct {
	buckets     [][bucketLength]entry
	values      []V
	numBuckets  uint64
	count       int
	emptyKey    uint64
	emptySet    bool
	shiftsLimit int
	growth      float64
}

type tableItem[V any] struct {
	key   uint64
	value V
}

// New returns an empty table sized to hold at least initialCapacity items
// before its first resize.
func New[V any](initialCapacity int) *Table[V] {
	nb := primeAtLeast(uint64(initialCapacity)/bucketLength + 1)
	return &Table[V]{
		buckets:     make([][bucketLength]entry, nb),
		values:      make([]V, nb*bucketLength),
		numBuckets:  nb,
		shiftsLimit: defaultShiftsLimit,
		growth:      2.0,
	}
}

// SetEmptyKey designates the sentinel key value that marks a slot empty.
// It must be called before any Insert and the sentinel must never be used
// as a real key.
func (t *Table[V]) SetEmptyKey(key uint64) {
	t.emptyKey = key
	t.emptySet = true
	for b := range t.buckets {
		for s := range t.buckets[b] {
			t.buckets[b][s].key = key
		}
	}
}

// SetGrowth overrides the default doubling factor used when the table
// resizes. factor must be greater than 1.01.
func (t *Table[V]) SetGrowth(factor float64) { t.growth = factor }

// SetShiftsLimit overrides the number of random-walk eviction attempts
// tried before falling back to the bounded exhaustive search.
func (t *Table[V]) SetShiftsLimit(n int) { t.shiftsLimit = n }

// Size returns the number of keys stored.
func (t *Table[V]) Size() int { return t.count }

// Capacity returns the number of slots across all buckets; it is also the
// exclusive upper bound on valid dense ids.
func (t *Table[V]) Capacity() int { return int(t.numBuckets) * bucketLength }

// Utilization returns Size/Capacity.
func (t *Table[V]) Utilization() float64 {
	if t.numBuckets == 0 {
		return 0
	}
	return float64(t.count) / float64(t.Capacity())
}

func hashWith(key, mask uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], key^mask)
	return xxhash.Sum64(b[:])
}

func (t *Table[V]) h1(key uint64) uint64 { return hashWith(key, mask1) % t.numBuckets }

func (t *Table[V]) h2(key uint64) uint64 {
	b2 := hashWith(key, mask2) % t.numBuckets
	if b1 := t.h1(key); b1 == b2 {
		b2 = (b2 + 1) % t.numBuckets
	}
	return b2
}

func denseID(bucket uint64, slot int) uint32 { return uint32(bucket)*bucketLength + uint32(slot) }

type location struct {
	bucket uint64
	slot   int
}

func (t *Table[V]) locate(key uint64) (location, bool) {
	for _, b := range []uint64{t.h1(key), t.h2(key)} {
		for i, e := range t.buckets[b] {
			if e.key == key {
				return location{b, i}, true
			}
		}
	}
	return location{}, false
}

func (t *Table[V]) findEmptySlot(bucket uint64) (int, bool) {
	for i, e := range t.buckets[bucket] {
		if e.key == t.emptyKey {
			return i, true
		}
	}
	return 0, false
}

// Find looks up key and returns its value and dense id.
func (t *Table[V]) Find(key uint64) (value V, id uint32, ok bool) {
	loc, found := t.locate(key)
	if !found {
		var zero V
		return zero, 0, false
	}
	id = denseID(loc.bucket, loc.slot)
	return t.values[id], id, true
}

// FromDenseId returns the key and value stored at dense id d. It is defined
// for every d < Capacity(); a slot whose key equals the empty-key sentinel
// is an empty entry.
func (t *Table[V]) FromDenseId(d uint32) (key uint64, value V, ok bool) {
	if int(d) >= t.Capacity() {
		var zero V
		return 0, zero, false
	}
	bucket, slot := uint64(d)/bucketLength, int(d%bucketLength)
	return t.buckets[bucket][slot].key, t.values[d], true
}

// Insert adds key with the given value. On a duplicate key, the existing
// dense id is returned with inserted=false and the value is left
// unmodified.
func (t *Table[V]) Insert(key uint64, value V) (id uint32, inserted bool) {
	if !t.emptySet || key == t.emptyKey {
		return 0, false
	}
	if loc, found := t.locate(key); found {
		return denseID(loc.bucket, loc.slot), false
	}
	if id, ok := t.place(key, value); ok {
		t.count++
		return id, true
	}
	t.Grow()
	return t.Insert(key, value)
}

func (t *Table[V]) placeAt(bucket uint64, slot int, key uint64, value V) uint32 {
	t.buckets[bucket][slot] = entry{key: key}
	id := denseID(bucket, slot)
	t.values[id] = value
	return id
}

// attemptPlace tries direct placement into either candidate bucket, then a
// bounded random-walk eviction; it does not fall back to the exhaustive
// search.
func (t *Table[V]) attemptPlace(key uint64, value V) (uint32, bool) {
	if slot, ok := t.findEmptySlot(t.h1(key)); ok {
		return t.placeAt(t.h1(key), slot, key, value), true
	}
	if slot, ok := t.findEmptySlot(t.h2(key)); ok {
		return t.placeAt(t.h2(key), slot, key, value), true
	}
	return t.evictAndPlace(key, value)
}

// place finds or makes room for key via direct placement, random-walk
// eviction, then a bounded exhaustive search.
func (t *Table[V]) place(key uint64, value V) (uint32, bool) {
	if id, ok := t.attemptPlace(key, value); ok {
		return id, true
	}
	return t.exhaustivePlace(key, value)
}

// evictAndPlace performs a bounded random walk: it forces (key, value) into
// one of its candidate buckets by evicting a random occupant, then repeats
// for the evicted entry at its own alternate bucket. The evicted entry's
// value moves with it, since dense ids are tied to bucket position. Returns
// the dense id key ends up at. If the walk runs out of steps, every move is
// undone and the table is left as it was.
func (t *Table[V]) evictAndPlace(key uint64, value V) (uint32, bool) {
	bucket := t.h1(key)
	if rand.IntN(2) == 1 {
		bucket = t.h2(key)
	}

	type move struct {
		bucket uint64
		slot   int
		old    entry
		oldVal V
	}
	var moves []move
	curKey, curVal := key, value
	for step := 0; step < t.shiftsLimit; step++ {
		slot := rand.IntN(bucketLength)
		id := denseID(bucket, slot)
		evicted := t.buckets[bucket][slot]
		evictedVal := t.values[id]
		moves = append(moves, move{bucket, slot, evicted, evictedVal})

		t.buckets[bucket][slot] = entry{key: curKey}
		t.values[id] = curVal

		if evicted.key == t.emptyKey {
			loc, _ := t.locate(key)
			return denseID(loc.bucket, loc.slot), true
		}

		altBucket := t.h1(evicted.key)
		if altBucket == bucket {
			altBucket = t.h2(evicted.key)
		}
		if slotIdx, ok := t.findEmptySlot(altBucket); ok {
			t.placeAt(altBucket, slotIdx, evicted.key, evictedVal)
			loc, _ := t.locate(key)
			return denseID(loc.bucket, loc.slot), true
		}

		curKey, curVal = evicted.key, evictedVal
		bucket = altBucket
	}
	for i := len(moves) - 1; i >= 0; i-- {
		m := moves[i]
		t.buckets[m.bucket][m.slot] = m.old
		t.values[denseID(m.bucket, m.slot)] = m.oldVal
	}
	return 0, false
}

type bfsEdge struct {
	bucket uint64
	slot   int
}

// exhaustivePlace searches, breadth-first and up to explorationDepth hops,
// for a path of evictions ending in a free slot, without mutating the
// table until a full path is confirmed. key ends up at the seed bucket
// (h1(key) or h2(key)) the path originates from; every entry along the
// path slides one hop, carrying its value with it.
func (t *Table[V]) exhaustivePlace(key uint64, value V) (uint32, bool) {
	type node struct {
		bucket uint64
		parent *node
		via    bfsEdge // the (bucket, slot) in the parent whose occupant moves here
	}

	visited := map[uint64]bool{}
	start := []uint64{t.h1(key), t.h2(key)}
	frontier := make([]*node, 0, 2)
	for _, b := range start {
		if !visited[b] {
			visited[b] = true
			frontier = append(frontier, &node{bucket: b})
		}
	}

	var goal *node
	var goalSlot int
outer:
	for depth := 0; depth < explorationDepth && len(frontier) > 0; depth++ {
		var next []*node
		for _, n := range frontier {
			if slot, ok := t.findEmptySlot(n.bucket); ok {
				goal, goalSlot = n, slot
				break outer
			}
			for slot, e := range t.buckets[n.bucket] {
				alt := t.h1(e.key)
				if alt == n.bucket {
					alt = t.h2(e.key)
				}
				if visited[alt] {
					continue
				}
				visited[alt] = true
				next = append(next, &node{bucket: alt, parent: n, via: bfsEdge{bucket: n.bucket, slot: slot}})
			}
		}
		frontier = next
	}
	if goal == nil {
		return 0, false
	}

	// Replay the path from goal back to a start node, sliding each
	// occupant (and its value) one hop forward into the slot its
	// successor is about to vacate.
	slot := goalSlot
	for n := goal; n.parent != nil; n = n.parent {
		movingEntry := t.buckets[n.via.bucket][n.via.slot]
		movingVal := t.values[denseID(n.via.bucket, n.via.slot)]
		t.placeAt(n.bucket, slot, movingEntry.key, movingVal)
		slot = n.via.slot
	}
	first := goal
	for first.parent != nil {
		first = first.parent
	}
	return t.placeAt(first.bucket, slot, key, value), true
}

// Clear empties the table while preserving its current bucket capacity.
func (t *Table[V]) Clear() {
	for b := range t.buckets {
		for s := range t.buckets[b] {
			t.buckets[b][s] = entry{key: t.emptyKey}
		}
	}
	var zero V
	for i := range t.values {
		t.values[i] = zero
	}
	t.count = 0
}

// Grow resizes the bucket array to the next prime at least
// numBuckets*growth and rehashes every existing key (and its value) into
// fresh bucket positions. This invalidates every previously returned dense
// id.
func (t *Table[V]) Grow() {
	target := primeAtLeast(uint64(float64(t.numBuckets) * t.growth))
	t.rehash(t.collectItems(), target)
}

func (t *Table[V]) collectItems() []tableItem[V] {
	items := make([]tableItem[V], 0, t.count)
	for b := range t.buckets {
		for s, e := range t.buckets[b] {
			if e.key != t.emptyKey {
				items = append(items, tableItem[V]{key: e.key, value: t.values[denseID(uint64(b), s)]})
			}
		}
	}
	return items
}

// rehash allocates a fresh bucket/value array of newNumBuckets and
// replaces every item via the full placement path (direct, eviction,
// exhaustive). If even that fails for some item, a larger table must
// always be able to hold what a smaller one already did, so it doubles
// the target and restarts the rehash from scratch with the same items.
func (t *Table[V]) rehash(items []tableItem[V], newNumBuckets uint64) {
	t.buckets = newEmptyBuckets(newNumBuckets, t.emptyKey)
	t.values = make([]V, newNumBuckets*bucketLength)
	t.numBuckets = newNumBuckets

	for _, it := range items {
		if _, ok := t.place(it.key, it.value); !ok {
			t.rehash(items, primeAtLeast(newNumBuckets*2))
			return
		}
	}
}

// Compact rebuilds the table with capacity for about size()*ratio keys: the
// bucket count is the next prime at least size()*ratio/B. Keys a single
// direct-placement/eviction pass cannot fit into the smaller table are
// retried via the exhaustive path; if any of those still can't be placed,
// the table is left unchanged and Compact returns false.
func (t *Table[V]) Compact(ratio float64) bool {
	slots := uint64(float64(t.count) * ratio)
	target := primeAtLeast((slots + bucketLength - 1) / bucketLength)

	items := t.collectItems()
	savedBuckets, savedValues, savedNumBuckets := t.buckets, t.values, t.numBuckets

	t.buckets = newEmptyBuckets(target, t.emptyKey)
	t.values = make([]V, target*bucketLength)
	t.numBuckets = target

	var problematic []tableItem[V]
	for _, it := range items {
		if _, ok := t.attemptPlace(it.key, it.value); !ok {
			problematic = append(problematic, it)
		}
	}

	for _, it := range problematic {
		if _, ok := t.exhaustivePlace(it.key, it.value); !ok {
			t.buckets, t.values, t.numBuckets = savedBuckets, savedValues, savedNumBuckets
			return false
		}
	}
	return true
}

func newEmptyBuckets(n, emptyKey uint64) [][bucketLength]entry {
	b := make([][bucketLength]entry, n)
	for i := range b {
		for s := range b[i] {
			b[i][s].key = emptyKey
		}
	}
	return b
}

func primeAtLeast(n uint64) uint64 {
	if n < 2 {
		n = 2
	}
	for !isPrime(n) {
		n++
	}
	return n
}

func isPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for i := uint64(3); i*i <= n; i += 2 {
		if n%i == 0 {
			return false
		}
	}
	return true
}
