// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool

import "code.hybscloud.com/atomix"

// Ring is a bounded single-producer single-consumer handoff of objects of
// one arena.
//
// It passes ownership of an object from one goroutine to another without
// touching the object's intrusive link, so the producer may acquire from a
// [SharedPool] or [Local] and the consumer may release back to it. Enqueue
// resolves the handle first: a stale or foreign handle panics on the
// producer side rather than surfacing later on the consumer.
//
// Each side caches the other's index and reloads it only when the ring
// looks full (producer) or empty (consumer). DequeueBatch publishes the
// consumer index once for the whole batch.
type Ring[T any] struct {
	_          pad
	head       atomix.Uint64 // Next slot to dequeue
	_          pad
	cachedTail uint64
	_          pad
	tail       atomix.Uint64 // Next slot to fill
	_          pad
	cachedHead uint64
	_          pad
	slots      []Handle
	mask       uint64
	arena      *Arena[T]
}

// NewRing creates a ring over objects of a. Capacity rounds up to the next
// power of 2.
// Panics if capacity < 2.
func NewRing[T any](a *Arena[T], capacity int) *Ring[T] {
	if a == nil {
		panic("lfpool: nil arena")
	}
	if capacity < 2 {
		panic("lfpool: ring capacity must be >= 2")
	}
	n := uint64(roundToPow2(capacity))
	return &Ring[T]{
		slots: make([]Handle, n),
		mask:  n - 1,
		arena: a,
	}
}

// Enqueue hands h to the consumer (producer only).
// Returns ErrWouldBlock if the ring is full; the caller still owns h.
// Panics if h is not a live handle of the ring's arena.
func (r *Ring[T]) Enqueue(h Handle) error {
	r.arena.resolve(h)
	tail := r.tail.LoadRelaxed()
	if tail-r.cachedHead > r.mask {
		r.cachedHead = r.head.LoadAcquire()
		if tail-r.cachedHead > r.mask {
			return ErrWouldBlock
		}
	}
	r.slots[tail&r.mask] = h
	r.tail.StoreRelease(tail + 1)
	return nil
}

// Dequeue takes the oldest handle (consumer only).
// Returns ([Nil], ErrWouldBlock) if the ring is empty.
func (r *Ring[T]) Dequeue() (Handle, error) {
	head := r.head.LoadRelaxed()
	if head >= r.cachedTail {
		r.cachedTail = r.tail.LoadAcquire()
		if head >= r.cachedTail {
			return Nil, ErrWouldBlock
		}
	}
	h := r.slots[head&r.mask]
	r.slots[head&r.mask] = Nil
	r.head.StoreRelease(head + 1)
	return h, nil
}

// DequeueBatch moves up to len(dst) handles into dst in arrival order and
// returns how many it moved (consumer only).
// Returns (0, ErrWouldBlock) if the ring is empty.
func (r *Ring[T]) DequeueBatch(dst []Handle) (int, error) {
	head := r.head.LoadRelaxed()
	avail := r.cachedTail - head
	if avail < uint64(len(dst)) {
		r.cachedTail = r.tail.LoadAcquire()
		avail = r.cachedTail - head
	}
	if avail == 0 {
		return 0, ErrWouldBlock
	}
	n := min(avail, uint64(len(dst)))
	for i := range n {
		j := (head + i) & r.mask
		dst[i] = r.slots[j]
		r.slots[j] = Nil
	}
	r.head.StoreRelease(head + n)
	return int(n), nil
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return int(r.mask + 1)
}

// Arena returns the arena whose objects the ring carries.
func (r *Ring[T]) Arena() *Arena[T] {
	return r.arena
}
