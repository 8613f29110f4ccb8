// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool

import "iter"

// Chain is a detached run of linked objects, as returned by PopAll.
//
// A chain is a view: it owns nothing beyond the head link. Its length is
// not stored; callers that need a count in the hot path carry it alongside
// the chain (see [Store.ReleaseBucket]).
type Chain[T any] struct {
	arena *Arena[T]
	first uint32
}

// Empty reports whether the chain has no objects.
func (c Chain[T]) Empty() bool {
	return c.first == 0
}

// First returns the head of the chain, or [Nil].
func (c Chain[T]) First() Handle {
	if c.first == 0 {
		return Nil
	}
	return c.arena.handle(c.first)
}

// Last walks to the tail of the chain. Returns [Nil] for an empty chain.
func (c Chain[T]) Last() Handle {
	if c.first == 0 {
		return Nil
	}
	return c.arena.handle(c.arena.last(c.first))
}

// Len walks the chain and counts its objects.
func (c Chain[T]) Len() int {
	if c.first == 0 {
		return 0
	}
	_, n := c.arena.walk(c.first)
	return n
}

// All yields the chain from head to tail.
//
// The successor is read before each yield, so the loop body may push the
// yielded object onto another list.
func (c Chain[T]) All() iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for id := c.first; id != 0; {
			next := c.arena.nextOf(id)
			if !yield(c.arena.handle(id)) {
				return
			}
			id = next
		}
	}
}

// Collect returns the chain's handles in order.
func (c Chain[T]) Collect() []Handle {
	var hs []Handle
	for h := range c.All() {
		hs = append(hs, h)
	}
	return hs
}

// Reverse returns c with its order inverted.
//
// Reversal drains c into a second stack one object at a time, which inverts
// order by construction. It turns the LIFO result of PopAll back into
// arrival order.
func Reverse[T any](c Chain[T]) Chain[T] {
	if c.first == 0 {
		return c
	}
	return Chain[T]{arena: c.arena, first: reverse(c.arena, c.first)}
}

func reverse[T any](a *Arena[T], first uint32) uint32 {
	straight := Stack[T]{arena: a, head: first}
	reversed := Stack[T]{arena: a}
	for id := straight.pop(); id != 0; id = straight.pop() {
		reversed.push(id)
	}
	return reversed.head
}

func sameArena[T any](a, b *Arena[T]) {
	if a != b {
		panic("lfpool: chain belongs to a different arena")
	}
}
