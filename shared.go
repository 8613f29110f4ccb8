// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool

import "code.hybscloud.com/atomix"

// SharedPool is an object pool with one free list shared by all goroutines.
//
// Release is lock-free. Acquire pops under the [MPMCStack] mutex and falls
// back to the arena when the free list is empty. It suits low-rate or
// bursty users; per-goroutine hot paths should prefer [Local].
type SharedPool[T any] struct {
	free  MPMCStack[T]
	_     pad
	size  atomix.Int64
	_     pad
	arena *Arena[T]
}

// NewSharedPool creates an empty pool over a.
func NewSharedPool[T any](a *Arena[T]) *SharedPool[T] {
	if a == nil {
		panic("lfpool: nil arena")
	}
	p := &SharedPool[T]{arena: a}
	p.free.stack.arena = a
	return p
}

// Acquire returns a handle to a zero-valued object (safe for concurrent use).
func (p *SharedPool[T]) Acquire() Handle {
	return p.arena.handle(p.acquire())
}

// AcquireFunc acquires an object and runs init on it before returning.
func (p *SharedPool[T]) AcquireFunc(init func(*T)) Handle {
	id := p.acquire()
	if init != nil {
		init(&p.arena.slots[id-1].value)
	}
	return p.arena.handle(id)
}

// Release resets the object behind h and puts it on the free list
// (safe for concurrent use).
func (p *SharedPool[T]) Release(h Handle) {
	id := p.arena.resolve(h)
	p.arena.retire(id)
	pushRange(&p.free.stack.head, p.arena, id, id)
	p.size.Add(1)
}

// Get returns the object named by h.
func (p *SharedPool[T]) Get(h Handle) *T {
	return p.arena.Get(h)
}

// Reserve allocates n objects from the arena and parks them on the free
// list in one splice.
func (p *SharedPool[T]) Reserve(n int) {
	if n < 1 {
		return
	}
	var run Stack[T]
	run.arena = p.arena
	last := p.arena.alloc()
	run.push(last)
	for range n - 1 {
		run.push(p.arena.alloc())
	}
	pushRange(&p.free.stack.head, p.arena, run.head, last)
	p.size.Add(int64(n))
}

// ApproxLen returns the approximate number of objects on the free list.
func (p *SharedPool[T]) ApproxLen() int {
	return max(int(p.size.Load()), 0)
}

func (p *SharedPool[T]) acquire() uint32 {
	p.free.mu.Lock()
	id := popOne(&p.free.stack.head, p.arena)
	p.free.mu.Unlock()
	if id == 0 {
		return p.arena.alloc()
	}
	p.size.Add(-1)
	return id
}
