// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool

import "code.hybscloud.com/atomix"

// Queue is an unbounded multi-producer single-consumer intrusive FIFO.
//
// Producers push onto a lock-free [MPSCStack]. The consumer pops from a
// private [Stack]; when that runs dry it drains the input with one PopAll
// and reverses the drained chain onto the output, restoring arrival order.
// Each object crosses from input to output exactly once, so both operations
// are amortized O(1).
//
// Order is preserved per producer. Objects from different producers appear
// in some order consistent with their successful pushes.
//
// Overlapping Pop calls are detected and panic.
type Queue[T any] struct {
	in       MPSCStack[T]
	_        pad
	consumer atomix.Uint64 // 1 while Pop is running
	_        pad
	out      Stack[T]
}

// NewQueue creates an empty queue over objects of a.
func NewQueue[T any](a *Arena[T]) *Queue[T] {
	if a == nil {
		panic("lfpool: nil arena")
	}
	q := &Queue[T]{}
	q.in.arena = a
	q.out.arena = a
	return q
}

// Push appends h to the queue (multiple producers safe).
func (q *Queue[T]) Push(h Handle) {
	q.in.Push(h)
}

// Pop removes and returns the oldest object (single consumer only).
// Returns ([Nil], ErrWouldBlock) if the queue is empty.
func (q *Queue[T]) Pop() (Handle, error) {
	if !q.consumer.CompareAndSwapAcqRel(0, 1) {
		panic("lfpool: concurrent Pop on Queue")
	}
	if q.out.Empty() {
		if c := q.in.PopAll(); !c.Empty() {
			q.out.pushAllReversed(c.first)
		}
	}
	h, err := q.out.Pop()
	q.consumer.StoreRelease(0)
	return h, err
}

// Empty reports whether the queue had no objects at the time of the call.
// Only meaningful from the consumer goroutine.
func (q *Queue[T]) Empty() bool {
	return q.out.Empty() && q.in.Empty()
}
