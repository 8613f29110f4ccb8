// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lfpool provides intrusive concurrent lists and a two-level
// object pool built on them.
//
// Objects live in a fixed-capacity [Arena] and are named by [Handle], a
// slot index tagged with the slot's generation. Each slot embeds the link
// used by whichever list currently owns it, so pushing an object onto a
// list never allocates.
//
// The lists:
//
//   - Stack: single goroutine LIFO
//   - MPSCStack: lock-free multi-producer single-consumer LIFO
//   - MPMCStack: MPSCStack with a mutex on the consumer side
//   - Queue: multi-producer single-consumer FIFO
//   - Ring: bounded single-producer single-consumer ring of handles
//
// The pools:
//
//   - Store: bounded global store of object buckets
//   - Local: per-goroutine double-buffered front end to a Store
//   - SharedPool: one free list shared by all goroutines
//
// # Quick Start
//
//	s := lfpool.BuildStore[Request](lfpool.New(64).MaxBuckets(16))
//
//	go func() {
//	    l := s.NewLocal()
//	    defer l.Close()
//
//	    h := l.AcquireFunc(func(r *Request) { r.ID = nextID() })
//	    serve(l.Get(h))
//	    l.Release(h)
//	}()
//
// # Handles
//
// Every release (to a Local, SharedPool, Store or the Arena) advances the
// slot generation. Get, Push and Release validate the generation and panic
// on a stale handle, which turns use-after-release and double release into
// immediate failures instead of silent corruption.
//
// If *T implements [Resetter], Reset runs on release. The slot is then
// cleared, so an acquired object is always zero-valued.
//
// # Buckets
//
// A Local keeps two buffers of up to ObjectsPerBucket objects. It swaps
// them when one runs dry or fills up and only visits the Store when both are
// saturated in the same direction. A visit moves a whole bucket with one
// splice under the Store mutex. When the Store is empty a single object is
// allocated from the arena; when it is full the bucket spills back to the
// arena.
//
// # Error Handling
//
// Pop, Dequeue and Enqueue return [ErrWouldBlock] when the list is empty or
// the ring is full. This error is sourced from [code.hybscloud.com/iox].
//
// Contract violations panic with an "lfpool:" message: overlapping Pop
// calls on an MPSCStack, stale handles, chains from another arena, and
// arena exhaustion.
//
// # Memory Ordering
//
// Push stores the link relaxed and publishes it through an acquire-release
// CAS on the head. Pop loads the head with acquire before following the
// link. Stack heads carry a tag that changes on every update, so a CAS
// cannot succeed against a head that was removed and reinserted meanwhile.
//
// # Race Detection
//
// The race detector cannot observe happens-before edges formed by atomix
// acquire-release operations on separate variables. Concurrent tests that
// hand object payloads across goroutines are skipped when [RaceEnabled].
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives with
// explicit memory ordering, [code.hybscloud.com/spin] for CAS retry pauses,
// [code.hybscloud.com/iox] for semantic errors, and
// [github.com/joeycumines/logiface] for optional diagnostics.
package lfpool
