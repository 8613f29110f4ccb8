// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool

// Allocator hands out arena objects by handle.
//
// Acquire returns a zero-valued object; AcquireFunc also runs an
// initializer on it. Release runs [Resetter] if the object implements it,
// clears it and makes every copy of the handle stale.
//
// Thread safety depends on the implementation:
//   - Local: owning goroutine only
//   - SharedPool: any goroutine
type Allocator[T any] interface {
	Acquire() Handle
	AcquireFunc(init func(*T)) Handle
	Release(h Handle)
	Get(h Handle) *T
}

// Resetter is implemented by objects that release resources when their
// storage goes back to a pool. Reset is called on a pointer to the object.
type Resetter interface {
	Reset()
}

// LIFO is the push/pop surface shared by the intrusive stacks.
//
// The interface intentionally excludes length because the lists do not
// track one. Use [Chain.Len] on a detached chain when a count is needed.
type LIFO[T any] interface {
	Push(h Handle)
	PushAll(c Chain[T])
	Pop() (Handle, error)
	PopAll() Chain[T]
	Empty() bool
}

// FIFO is the surface of [Queue].
type FIFO interface {
	Push(h Handle)
	Pop() (Handle, error)
	Empty() bool
}

var (
	_ Allocator[struct{}] = (*Local[struct{}])(nil)
	_ Allocator[struct{}] = (*SharedPool[struct{}])(nil)
	_ LIFO[struct{}]      = (*Stack[struct{}])(nil)
	_ LIFO[struct{}]      = (*MPSCStack[struct{}])(nil)
	_ LIFO[struct{}]      = (*MPMCStack[struct{}])(nil)
	_ FIFO                = (*Queue[struct{}])(nil)
)
