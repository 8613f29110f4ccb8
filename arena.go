// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool

import (
	"math"
	"sync"
	"unsafe"

	"code.hybscloud.com/atomix"
	"github.com/joeycumines/logiface"
)

// Arena is a fixed-capacity slab of T slots. It is the backing allocator
// for every list and pool in this package.
//
// Each slot embeds the intrusive link used by whichever list currently owns
// it, together with a generation counter. Lists store slot indices instead
// of pointers, so the slab never moves and a popped slot stays readable
// while a lagging CAS observes it.
//
// Alloc pulls a slot from the free list, or takes a never-used slot when the
// free list is empty. Exceeding the capacity is a fatal allocation failure:
// Alloc panics.
//
// Memory: maxObjects slots reserved up front (16 bytes + sizeof(T) each)
type Arena[T any] struct {
	_      pad
	free   atomix.Uint64 // Free list head (tag<<32 | id)
	_      pad
	cursor atomix.Uint64 // Slots ever taken from the slab
	_      pad
	allocs atomix.Int64
	frees  atomix.Int64
	_      pad
	freeMu sync.Mutex // Serializes free list pops
	slots  []slot[T]
	logger *logiface.Logger[logiface.Event]
}

type slot[T any] struct {
	next  atomix.Uint64 // Link to the next slot (id), 0 at tail
	gen   atomix.Uint64 // Generation, low 32 bits significant
	value T
}

// NewArena creates an arena holding at most maxObjects live objects.
// Panics if maxObjects < 1 or does not fit the 32-bit index space.
func NewArena[T any](maxObjects int) *Arena[T] {
	return newArena[T](maxObjects, nil)
}

func newArena[T any](maxObjects int, logger *logiface.Logger[logiface.Event]) *Arena[T] {
	if maxObjects < 1 {
		panic("lfpool: arena capacity must be >= 1")
	}
	if uint64(maxObjects) >= math.MaxUint32 {
		panic("lfpool: arena capacity exceeds 32-bit index space")
	}
	return &Arena[T]{
		slots:  make([]slot[T], maxObjects),
		logger: logger,
	}
}

// Alloc takes one slot from the arena and returns its handle.
// The object is the zero value of T.
func (a *Arena[T]) Alloc() Handle {
	return a.handle(a.alloc())
}

// Free resets the object behind h and returns its slot to the arena.
// h and every other copy of it become stale.
func (a *Arena[T]) Free(h Handle) {
	id := a.resolve(h)
	a.retire(id)
	a.release(id, id, 1)
}

// Get returns the object named by h.
// Panics if h is nil, out of range, or stale.
func (a *Arena[T]) Get(h Handle) *T {
	return &a.slots[a.resolve(h)-1].value
}

// Cap returns the maximum number of live objects.
func (a *Arena[T]) Cap() int {
	return len(a.slots)
}

// Allocated returns the cumulative number of Alloc operations.
func (a *Arena[T]) Allocated() uint64 {
	return uint64(a.allocs.Load())
}

// Freed returns the cumulative number of slots returned to the arena.
func (a *Arena[T]) Freed() uint64 {
	return uint64(a.frees.Load())
}

// Live returns the approximate number of slots currently held outside the
// arena free list.
func (a *Arena[T]) Live() int {
	return int(a.allocs.Load() - a.frees.Load())
}

// BlockSize returns the number of bytes reserved per object slot.
func (a *Arena[T]) BlockSize() int {
	return int(unsafe.Sizeof(slot[T]{}))
}

func (a *Arena[T]) alloc() uint32 {
	var id uint32
	if headID(a.free.LoadAcquire()) != 0 {
		a.freeMu.Lock()
		id = popOne(&a.free, a)
		a.freeMu.Unlock()
	}
	if id == 0 {
		n := a.cursor.AddAcqRel(1)
		if n > uint64(len(a.slots)) {
			a.logger.Crit().
				Int("capacity", len(a.slots)).
				Int("block_size", a.BlockSize()).
				Log("lfpool: arena exhausted")
			panic("lfpool: arena exhausted")
		}
		id = uint32(n)
	}
	a.allocs.Add(1)
	return id
}

// release splices the run first..last (n slots) onto the free list.
// The slots must already be retired.
func (a *Arena[T]) release(first, last uint32, n int) {
	pushRange(&a.free, a, first, last)
	a.frees.Add(int64(n))
}

// retire runs the release hook, clears the object and advances the slot
// generation. Handles issued before retire are stale afterwards.
func (a *Arena[T]) retire(id uint32) {
	s := &a.slots[id-1]
	if r, ok := any(&s.value).(Resetter); ok {
		r.Reset()
	}
	var zero T
	s.value = zero
	s.gen.StoreRelease(uint64(uint32(s.gen.LoadRelaxed()) + 1))
}

// resolve validates h against the current slot generation.
func (a *Arena[T]) resolve(h Handle) uint32 {
	id := h.id()
	if id == 0 {
		panic("lfpool: nil handle")
	}
	if int(id) > len(a.slots) {
		panic("lfpool: handle out of arena range")
	}
	if uint32(a.slots[id-1].gen.LoadAcquire()) != h.Generation() {
		panic("lfpool: stale handle")
	}
	return id
}

func (a *Arena[T]) handle(id uint32) Handle {
	return makeHandle(uint32(a.slots[id-1].gen.LoadAcquire()), id)
}

func (a *Arena[T]) link(id uint32) *atomix.Uint64 {
	return &a.slots[id-1].next
}

func (a *Arena[T]) nextOf(id uint32) uint32 {
	return uint32(a.slots[id-1].next.LoadAcquire())
}

// last walks from first to the tail of its chain.
func (a *Arena[T]) last(first uint32) uint32 {
	id := first
	for next := a.nextOf(id); next != 0; next = a.nextOf(id) {
		id = next
	}
	return id
}

// walk returns the tail of the chain starting at first and its length.
func (a *Arena[T]) walk(first uint32) (last uint32, n int) {
	for id := first; id != 0; id = a.nextOf(id) {
		last = id
		n++
	}
	return last, n
}
