// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// Store is the bounded global bucket store shared by every [Local] of one
// size class.
//
// Objects move between a Local and the Store in buckets: a chain of up to
// ObjectsPerBucket free objects together with its count. The Store keeps at
// most MaxBuckets buckets. When it is empty, AcquireBucket falls back to the
// arena for a single object; when it is full, ReleaseBucket spills the whole
// bucket back to the arena one object at a time.
//
// Both bucket operations use double-checked locking on an atomic occupancy
// counter, so the mutex is only taken when the exchange can actually happen.
//
// Counters reported by [Store.Stats] are best-effort and may be momentarily
// inconsistent while other goroutines run.
type Store[T any] struct {
	_         pad
	count     atomix.Uint64 // Occupied bucket slots
	_         pad
	mu        sync.Mutex
	buckets   []bucket
	arena     *Arena[T]
	perBucket int

	systemAllocs   atomix.Int64
	systemFrees    atomix.Int64
	bucketAcquires atomix.Int64
	bucketReleases atomix.Int64
	objectAcquires atomix.Int64
	objectReleases atomix.Int64
	localAcquires  atomix.Int64
	localReleases  atomix.Int64
	storedObjects  atomix.Int64
	locals         atomix.Int64
}

type bucket struct {
	first uint32
	count int
}

// Stats is a snapshot of a [Store]'s diagnostic counters.
//
// System counters track arena traffic made by the store itself. An object
// allocated directly from the arena and later handed to the store is
// counted once, when it leaves through a spill or FreeAll, so
// ResidentObjects and ResidentBytes go negative when callers feed the store
// with objects it never allocated.
type Stats struct {
	SystemAllocations  uint64 // Objects taken from the arena
	SystemFrees        uint64 // Objects returned to the arena
	BucketAcquisitions uint64 // Buckets handed out from storage
	BucketReleases     uint64 // ReleaseBucket calls, stored or spilled
	ObjectAcquisitions uint64 // Objects handed out inside stored buckets
	ObjectReleases     uint64 // Objects accepted into storage
	LocalAcquisitions  uint64 // Acquire calls served by open Locals
	LocalReleases      uint64 // Release calls served by open Locals
	ResidentObjects    int64  // SystemAllocations - SystemFrees
	ResidentBytes      int64  // ResidentObjects * BlockSize
	StoredBuckets      int
	StoredObjects      int64
	Locals             int64 // Open Locals
}

// NewStore creates a store over a that holds at most maxBuckets buckets of
// objectsPerBucket objects each.
// Panics if objectsPerBucket or maxBuckets is < 1.
func NewStore[T any](a *Arena[T], objectsPerBucket, maxBuckets int) *Store[T] {
	if a == nil {
		panic("lfpool: nil arena")
	}
	if objectsPerBucket < 1 {
		panic("lfpool: objects per bucket must be >= 1")
	}
	if maxBuckets < 1 {
		panic("lfpool: max buckets must be >= 1")
	}
	return &Store[T]{
		buckets:   make([]bucket, maxBuckets),
		arena:     a,
		perBucket: objectsPerBucket,
	}
}

// Arena returns the arena backing the store.
func (s *Store[T]) Arena() *Arena[T] {
	return s.arena
}

// ObjectsPerBucket returns the bucket size used by Locals of this store.
func (s *Store[T]) ObjectsPerBucket() int {
	return s.perBucket
}

// MaxBuckets returns the store capacity in buckets.
func (s *Store[T]) MaxBuckets() int {
	return len(s.buckets)
}

// BlockSize returns the number of bytes reserved per object.
func (s *Store[T]) BlockSize() int {
	return s.arena.BlockSize()
}

// AcquireBucket takes the most recently stored bucket.
// If the store is empty, it allocates one object from the arena and returns
// it as a single-object bucket. The count is never 0.
func (s *Store[T]) AcquireBucket() (Chain[T], int) {
	first, n := s.acquireBucket()
	return Chain[T]{arena: s.arena, first: first}, n
}

// ReleaseBucket hands c, holding count objects, to the store.
// Every object in c is reset and its handles become stale. If the store is
// full, the objects are returned to the arena.
// Panics if count does not match the length of c or exceeds
// ObjectsPerBucket.
func (s *Store[T]) ReleaseBucket(c Chain[T], count int) {
	if c.first != 0 {
		sameArena(s.arena, c.arena)
	}
	n := 0
	for id := c.first; id != 0; id = s.arena.nextOf(id) {
		n++
	}
	if n != count {
		panic("lfpool: bucket count mismatch")
	}
	if count > s.perBucket {
		panic("lfpool: bucket exceeds objects per bucket")
	}
	if n == 0 {
		return
	}
	for id := c.first; id != 0; id = s.arena.nextOf(id) {
		s.arena.retire(id)
	}
	s.releaseBucket(c.first, count)
}

func (s *Store[T]) acquireBucket() (uint32, int) {
	if s.count.LoadAcquire() > 0 {
		s.mu.Lock()
		if n := s.count.LoadRelaxed(); n > 0 {
			b := s.buckets[n-1]
			s.buckets[n-1] = bucket{}
			s.count.StoreRelease(n - 1)
			s.mu.Unlock()
			s.bucketAcquires.Add(1)
			s.objectAcquires.Add(int64(b.count))
			s.storedObjects.Add(-int64(b.count))
			return b.first, b.count
		}
		s.mu.Unlock()
	}
	return s.allocSystem(), 1
}

func (s *Store[T]) releaseBucket(first uint32, count int) {
	s.bucketReleases.Add(1)
	if s.count.LoadAcquire() < uint64(len(s.buckets)) {
		s.mu.Lock()
		if n := s.count.LoadRelaxed(); n < uint64(len(s.buckets)) {
			s.buckets[n] = bucket{first: first, count: count}
			s.count.StoreRelease(n + 1)
			s.mu.Unlock()
			s.objectReleases.Add(int64(count))
			s.storedObjects.Add(int64(count))
			return
		}
		s.mu.Unlock()
	}
	s.spill(first, count)
}

// spill returns a whole bucket to the arena. The objects were retired when
// they entered the Local, so they go back as they are.
func (s *Store[T]) spill(first uint32, count int) {
	last, n := s.arena.walk(first)
	s.arena.release(first, last, n)
	s.systemFrees.Add(int64(n))
	s.arena.logger.Debug().
		Int("objects", count).
		Int("max_buckets", len(s.buckets)).
		Log("lfpool: store full, bucket spilled")
}

func (s *Store[T]) allocSystem() uint32 {
	id := s.arena.alloc()
	s.systemAllocs.Add(1)
	return id
}

func (s *Store[T]) freeSystem(id uint32) {
	s.arena.release(id, id, 1)
	s.systemFrees.Add(1)
}

// FreeAll returns every stored object to the arena and empties the store.
// Buckets held by Locals are not affected.
func (s *Store[T]) FreeAll() {
	s.mu.Lock()
	n := int(s.count.LoadRelaxed())
	freed := 0
	for i := range n {
		b := s.buckets[i]
		s.buckets[i] = bucket{}
		last, k := s.arena.walk(b.first)
		s.arena.release(b.first, last, k)
		freed += k
	}
	s.count.StoreRelease(0)
	s.mu.Unlock()

	s.systemFrees.Add(int64(freed))
	s.storedObjects.Add(-int64(freed))
	s.arena.logger.Debug().
		Int("buckets", n).
		Int("objects", freed).
		Log("lfpool: store freed")
}

// Stats returns a snapshot of the store counters.
func (s *Store[T]) Stats() Stats {
	allocs := s.systemAllocs.Load()
	frees := s.systemFrees.Load()
	return Stats{
		SystemAllocations:  uint64(allocs),
		SystemFrees:        uint64(frees),
		BucketAcquisitions: uint64(s.bucketAcquires.Load()),
		BucketReleases:     uint64(s.bucketReleases.Load()),
		ObjectAcquisitions: uint64(s.objectAcquires.Load()),
		ObjectReleases:     uint64(s.objectReleases.Load()),
		LocalAcquisitions:  uint64(s.localAcquires.Load()),
		LocalReleases:      uint64(s.localReleases.Load()),
		ResidentObjects:    allocs - frees,
		ResidentBytes:      (allocs - frees) * int64(s.arena.BlockSize()),
		StoredBuckets:      int(s.count.LoadAcquire()),
		StoredObjects:      s.storedObjects.Load(),
		Locals:             s.locals.Load(),
	}
}

// NewLocal creates a worker-owned front end for the store.
// The Local must be closed when its goroutine is done with it.
func (s *Store[T]) NewLocal() *Local[T] {
	l := &Local[T]{store: s}
	l.bufs[0].arena = s.arena
	l.bufs[1].arena = s.arena
	n := s.locals.AddAcqRel(1)
	s.arena.logger.Trace().
		Int64("locals", n).
		Log("lfpool: local opened")
	return l
}
