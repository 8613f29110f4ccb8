// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// MPSCStack is a lock-free multi-producer single-consumer intrusive stack.
//
// Push, PushAll and PushRange are lock-free and safe from any number of
// goroutines. PushAll and PushRange insert a whole pre-linked run with a
// single CAS, which is what makes bucket exchange O(1).
//
// Pop is lock-free but requires a single consumer: at most one goroutine may
// be inside Pop at any time. Overlapping Pop calls are detected and panic.
// Use [MPMCStack] when consumers compete.
//
// PopAll atomically detaches the whole stack. It is safe against concurrent
// Push and concurrent PopAll, but not against a concurrent Pop.
//
// The head packs a 32-bit tag above the slot id. Every head change bumps
// the tag, so a CAS never succeeds against a head that was popped and pushed
// back in between (ABA).
//
// Memory ordering: producers store the link relaxed and publish it, along
// with the object's contents, through the acquire-release CAS on head.
// Consumers load head with acquire before following the link.
type MPSCStack[T any] struct {
	_        pad
	head     atomix.Uint64 // tag<<32 | id
	_        pad
	consumer atomix.Uint64 // 1 while Pop is running
	_        pad
	arena    *Arena[T]
}

// NewMPSCStack creates an empty stack over objects of a.
func NewMPSCStack[T any](a *Arena[T]) *MPSCStack[T] {
	if a == nil {
		panic("lfpool: nil arena")
	}
	return &MPSCStack[T]{arena: a}
}

// Push adds h on top of the stack (multiple producers safe).
func (s *MPSCStack[T]) Push(h Handle) {
	id := s.arena.resolve(h)
	pushRange(&s.head, s.arena, id, id)
}

// PushAll splices c on top of the stack in one atomic step
// (multiple producers safe).
func (s *MPSCStack[T]) PushAll(c Chain[T]) {
	if c.first == 0 {
		return
	}
	sameArena(s.arena, c.arena)
	pushRange(&s.head, s.arena, c.first, s.arena.last(c.first))
}

// PushRange splices the run first..last in one atomic step without walking
// it. last must be reachable from first.
func (s *MPSCStack[T]) PushRange(first, last Handle) {
	pushRange(&s.head, s.arena, s.arena.resolve(first), s.arena.resolve(last))
}

// PushAllReversed reverses c and splices it in one atomic step, so a chain
// drained with PopAll goes back in its original order.
func (s *MPSCStack[T]) PushAllReversed(c Chain[T]) {
	if c.first == 0 {
		return
	}
	sameArena(s.arena, c.arena)
	pushRange(&s.head, s.arena, reverse(s.arena, c.first), c.first)
}

// Pop removes and returns the top of the stack (single consumer only).
// Returns ([Nil], ErrWouldBlock) if the stack is empty.
func (s *MPSCStack[T]) Pop() (Handle, error) {
	if !s.consumer.CompareAndSwapAcqRel(0, 1) {
		panic("lfpool: concurrent Pop on MPSCStack")
	}
	id := popOne(&s.head, s.arena)
	s.consumer.StoreRelease(0)
	if id == 0 {
		return Nil, ErrWouldBlock
	}
	return s.arena.handle(id), nil
}

// PopAll atomically detaches every object, most recently pushed first.
// Safe against concurrent Push and PopAll; must not overlap Pop.
func (s *MPSCStack[T]) PopAll() Chain[T] {
	if s.consumer.LoadAcquire() != 0 {
		panic("lfpool: PopAll during Pop on MPSCStack")
	}
	return Chain[T]{arena: s.arena, first: popAll(&s.head)}
}

// Empty reports whether the stack was empty at the time of the call.
func (s *MPSCStack[T]) Empty() bool {
	return headID(s.head.LoadAcquire()) == 0
}

func packHead(tag, id uint32) uint64 {
	return uint64(tag)<<32 | uint64(id)
}

func headID(v uint64) uint32 {
	return uint32(v)
}

func headTag(v uint64) uint32 {
	return uint32(v >> 32)
}

// pushRange links last to the current head and swings head to first.
func pushRange[T any](head *atomix.Uint64, a *Arena[T], first, last uint32) {
	link := a.link(last)
	sw := spin.Wait{}
	for {
		old := head.LoadAcquire()
		link.StoreRelaxed(uint64(headID(old)))
		if head.CompareAndSwapAcqRel(old, packHead(headTag(old)+1, first)) {
			return
		}
		sw.Once()
	}
}

// popOne detaches the top slot and clears its link. Returns 0 if empty.
// Callers serialize popOne against itself and against popAll.
func popOne[T any](head *atomix.Uint64, a *Arena[T]) uint32 {
	sw := spin.Wait{}
	for {
		old := head.LoadAcquire()
		id := headID(old)
		if id == 0 {
			return 0
		}
		next := uint32(a.link(id).LoadAcquire())
		if head.CompareAndSwapAcqRel(old, packHead(headTag(old)+1, next)) {
			a.link(id).StoreRelaxed(0)
			return id
		}
		sw.Once()
	}
}

// popAll exchanges head with empty and returns the detached chain head.
func popAll(head *atomix.Uint64) uint32 {
	sw := spin.Wait{}
	for {
		old := head.LoadAcquire()
		if headID(old) == 0 {
			return 0
		}
		if head.CompareAndSwapAcqRel(old, packHead(headTag(old)+1, 0)) {
			return headID(old)
		}
		sw.Once()
	}
}
