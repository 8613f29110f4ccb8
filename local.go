// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool

// Local is a double-buffered object cache owned by one goroutine.
//
// It keeps two buffers of at most ObjectsPerBucket free objects: one that
// Acquire draws from and one that Release fills. When the acquire buffer
// runs dry and the release buffer has objects, the buffers swap instead of
// visiting the [Store]; likewise when the release buffer is full and the
// acquire buffer has room. The store is only touched when both buffers are
// saturated in the same direction, which keeps an acquire/release pattern
// straddling a bucket boundary from thrashing the store.
//
// A Local performs no synchronization. Using it from more than one
// goroutine is a contract violation.
//
// After Close, Acquire and Release bypass the buffers and go straight to the
// arena.
type Local[T any] struct {
	store  *Store[T]
	bufs   [2]Stack[T] // [acquire, release]
	sizes  [2]int
	closed bool
}

// Acquire returns a handle to a zero-valued object.
func (l *Local[T]) Acquire() Handle {
	return l.store.arena.handle(l.acquire())
}

// AcquireFunc acquires an object and runs init on it before returning.
func (l *Local[T]) AcquireFunc(init func(*T)) Handle {
	id := l.acquire()
	if init != nil {
		init(&l.store.arena.slots[id-1].value)
	}
	return l.store.arena.handle(id)
}

// Release resets the object behind h and keeps its storage for reuse.
// h and every copy of it become stale.
// Panics if h is nil, stale, or from another arena's range.
func (l *Local[T]) Release(h Handle) {
	a := l.store.arena
	id := a.resolve(h)
	a.retire(id)
	if l.closed {
		l.store.freeSystem(id)
		return
	}
	l.store.localReleases.Add(1)
	if l.sizes[1] >= l.store.perBucket {
		if l.sizes[0] >= l.store.perBucket {
			l.flush()
		} else {
			l.swap()
		}
	}
	l.bufs[1].push(id)
	l.sizes[1]++
}

// Get returns the object named by h.
func (l *Local[T]) Get(h Handle) *T {
	return l.store.arena.Get(h)
}

// Buffered returns the number of free objects held in each buffer.
func (l *Local[T]) Buffered() (acquire, release int) {
	return l.sizes[0], l.sizes[1]
}

// Close flushes both buffers to the store and detaches the Local.
// Close is idempotent.
func (l *Local[T]) Close() {
	if l.closed {
		return
	}
	for range 2 {
		l.swap()
		if l.sizes[1] > 0 {
			l.flush()
		}
	}
	l.closed = true
	n := l.store.locals.AddAcqRel(-1)
	l.store.arena.logger.Trace().
		Int64("locals", n).
		Log("lfpool: local closed")
}

func (l *Local[T]) acquire() uint32 {
	if l.closed {
		return l.store.allocSystem()
	}
	l.store.localAcquires.Add(1)
	if l.sizes[0] == 0 {
		if l.sizes[1] == 0 {
			// The acquire buffer is empty, so the bucket becomes the buffer.
			first, n := l.store.acquireBucket()
			l.bufs[0].head = first
			l.sizes[0] = n
		} else {
			l.swap()
		}
	}
	l.sizes[0]--
	return l.bufs[0].pop()
}

func (l *Local[T]) swap() {
	l.bufs[0], l.bufs[1] = l.bufs[1], l.bufs[0]
	l.sizes[0], l.sizes[1] = l.sizes[1], l.sizes[0]
}

func (l *Local[T]) flush() {
	l.store.releaseBucket(l.bufs[1].popAll(), l.sizes[1])
	l.sizes[1] = 0
}
