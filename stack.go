// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool

import "iter"

// Stack is a single-goroutine intrusive LIFO over arena objects.
//
// Stack performs no synchronization. It is the consumer side of [Queue],
// the buffer type of [Local], and the scratch list used by [Reverse].
//
// Every operation is O(1) except PushAll, which walks the chain to find its
// tail, and PushAllReversed, which reverses it.
type Stack[T any] struct {
	arena *Arena[T]
	head  uint32
}

// NewStack creates an empty stack over objects of a.
func NewStack[T any](a *Arena[T]) *Stack[T] {
	if a == nil {
		panic("lfpool: nil arena")
	}
	return &Stack[T]{arena: a}
}

// Empty reports whether the stack has no objects.
func (s *Stack[T]) Empty() bool {
	return s.head == 0
}

// Push adds h on top of the stack.
// h must not be a member of any other list.
func (s *Stack[T]) Push(h Handle) {
	s.push(s.arena.resolve(h))
}

// Pop removes and returns the top of the stack.
// Returns ([Nil], ErrWouldBlock) if the stack is empty.
func (s *Stack[T]) Pop() (Handle, error) {
	id := s.pop()
	if id == 0 {
		return Nil, ErrWouldBlock
	}
	return s.arena.handle(id), nil
}

// PushAll splices c on top of the stack, preserving its order.
func (s *Stack[T]) PushAll(c Chain[T]) {
	if c.first == 0 {
		return
	}
	sameArena(s.arena, c.arena)
	s.pushRange(c.first, s.arena.last(c.first))
}

// PushRange splices the run first..last on top of the stack in O(1).
// last must be reachable from first.
func (s *Stack[T]) PushRange(first, last Handle) {
	s.pushRange(s.arena.resolve(first), s.arena.resolve(last))
}

// PushAllReversed splices c on top of the stack in reverse order, so the
// first object of c ends up deepest.
func (s *Stack[T]) PushAllReversed(c Chain[T]) {
	if c.first == 0 {
		return
	}
	sameArena(s.arena, c.arena)
	s.pushAllReversed(c.first)
}

// PopAll detaches every object at once, top first.
func (s *Stack[T]) PopAll() Chain[T] {
	return Chain[T]{arena: s.arena, first: s.popAll()}
}

// All yields the stack from top to bottom without removing anything.
func (s *Stack[T]) All() iter.Seq[Handle] {
	return Chain[T]{arena: s.arena, first: s.head}.All()
}

func (s *Stack[T]) push(id uint32) {
	s.arena.link(id).StoreRelaxed(uint64(s.head))
	s.head = id
}

func (s *Stack[T]) pop() uint32 {
	id := s.head
	if id == 0 {
		return 0
	}
	link := s.arena.link(id)
	s.head = uint32(link.LoadRelaxed())
	link.StoreRelaxed(0)
	return id
}

func (s *Stack[T]) popAll() uint32 {
	id := s.head
	s.head = 0
	return id
}

func (s *Stack[T]) pushRange(first, last uint32) {
	if s.head == 0 {
		// Empty stack: the run becomes the stack as is.
		s.arena.link(last).StoreRelaxed(0)
		s.head = first
		return
	}
	s.arena.link(last).StoreRelaxed(uint64(s.head))
	s.head = first
}

func (s *Stack[T]) pushAllReversed(first uint32) {
	// After reversal the old head is the tail.
	s.pushRange(reverse(s.arena, first), first)
}
