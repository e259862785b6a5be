package model

import (
	"sync"
	"sync/atomic"
)

const (
	chunkBits = 12
	chunkSize = 1 << chunkBits
	chunkMask = chunkSize - 1
)

type chunk [chunkSize]*Record

// store is one generation of index contents. Chunks are never moved once
// allocated, so a reader holding a published length can address any slot
// below it without locking.
type store struct {
	chunks atomic.Pointer[[]*chunk]
	n      atomic.Uint64
	gen    uint64
}

func newStore(gen uint64) *store {
	st := &store{gen: gen}
	dir := make([]*chunk, 0, 8)
	st.chunks.Store(&dir)
	return st
}

func (st *store) at(i uint64) *Record {
	dir := *st.chunks.Load()
	return dir[i>>chunkBits][i&chunkMask]
}

// Index is an append-only ordered sequence of records. It has a single
// writer; any number of goroutines may read through snapshots concurrently.
type Index struct {
	wmu sync.Mutex // serializes Append against Replace
	cur atomic.Pointer[store]
	gen atomic.Uint64
}

func NewIndex() *Index {
	x := &Index{}
	x.cur.Store(newStore(0))
	return x
}

// Append stores r, assigns its id and publishes it to new snapshots.
func (x *Index) Append(r *Record) uint64 {
	x.wmu.Lock()
	defer x.wmu.Unlock()
	st := x.cur.Load()
	n := st.n.Load()
	ci, off := n>>chunkBits, n&chunkMask
	dir := *st.chunks.Load()
	if int(ci) == len(dir) {
		grown := make([]*chunk, len(dir), 2*len(dir)+1)
		copy(grown, dir)
		grown = append(grown, new(chunk))
		st.chunks.Store(&grown)
		dir = grown
	}
	r.ID = n
	dir[ci][off] = r
	st.n.Store(n + 1)
	return n
}

func (x *Index) Len() int { return int(x.cur.Load().n.Load()) }

// Snapshot captures a read-consistent view: the current store and its length.
func (x *Index) Snapshot() Snapshot {
	st := x.cur.Load()
	return Snapshot{st: st, n: st.n.Load()}
}

// Replace atomically swaps in the contents of a freshly built index. Readers
// holding older snapshots keep seeing the previous contents.
func (x *Index) Replace(built *Index) {
	x.wmu.Lock()
	defer x.wmu.Unlock()
	st := built.cur.Load()
	st.gen = x.gen.Add(1)
	x.cur.Store(st)
}

// Snapshot is an immutable id-range handle over one index generation.
type Snapshot struct {
	st *store
	n  uint64
}

func (s Snapshot) Len() int { return int(s.n) }

// Generation increments on every Replace of the owning index.
func (s Snapshot) Generation() uint64 {
	if s.st == nil {
		return 0
	}
	return s.st.gen
}

// At returns the record at position i, which equals its id.
func (s Snapshot) At(i int) *Record {
	return s.st.at(uint64(i))
}

func (s Snapshot) Get(id uint64) (*Record, bool) {
	if s.st == nil || id >= s.n {
		return nil, false
	}
	return s.st.at(id), true
}

// Each calls fn for every record in id order until fn returns false.
func (s Snapshot) Each(fn func(*Record) bool) {
	for i := uint64(0); i < s.n; i++ {
		if !fn(s.st.at(i)) {
			return
		}
	}
}

// Records materializes the records for ids, skipping unknown ones.
func (s Snapshot) Records(ids []uint64) []*Record {
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.Get(id); ok {
			out = append(out, r)
		}
	}
	return out
}
