// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool

import "sync"

// MPMCStack is a multi-producer multi-consumer intrusive stack.
//
// It wraps [MPSCStack]: the producer side stays lock-free, and Pop and
// PopAll take a mutex so any number of consumers may call them.
type MPMCStack[T any] struct {
	mu    sync.Mutex
	stack MPSCStack[T]
}

// NewMPMCStack creates an empty stack over objects of a.
func NewMPMCStack[T any](a *Arena[T]) *MPMCStack[T] {
	if a == nil {
		panic("lfpool: nil arena")
	}
	s := &MPMCStack[T]{}
	s.stack.arena = a
	return s
}

// Push adds h on top of the stack (lock-free).
func (s *MPMCStack[T]) Push(h Handle) {
	s.stack.Push(h)
}

// PushAll splices c on top of the stack in one atomic step (lock-free).
func (s *MPMCStack[T]) PushAll(c Chain[T]) {
	s.stack.PushAll(c)
}

// PushRange splices the run first..last in one atomic step (lock-free).
func (s *MPMCStack[T]) PushRange(first, last Handle) {
	s.stack.PushRange(first, last)
}

// PushAllReversed reverses c and splices it in one atomic step (lock-free).
func (s *MPMCStack[T]) PushAllReversed(c Chain[T]) {
	s.stack.PushAllReversed(c)
}

// Pop removes and returns the top of the stack (multiple consumers safe).
// Returns ([Nil], ErrWouldBlock) if the stack is empty.
func (s *MPMCStack[T]) Pop() (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stack.Pop()
}

// PopAll atomically detaches every object (multiple consumers safe).
func (s *MPMCStack[T]) PopAll() Chain[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stack.PopAll()
}

// TryPop pops without taking the consumer lock.
// The caller must already guarantee that no other Pop, PopAll or TryPop
// runs at the same time.
func (s *MPMCStack[T]) TryPop() (Handle, error) {
	return s.stack.Pop()
}

// Empty reports whether the stack was empty at the time of the call.
func (s *MPMCStack[T]) Empty() bool {
	return s.stack.Empty()
}
