// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool

import "strconv"

// Handle is a generation-tagged reference to an object slot in an [Arena].
//
// The low 32 bits hold the slot index plus one, the high 32 bits hold the
// slot generation at the time the handle was issued. The generation moves
// forward every time the object is released, so a handle kept past its
// release is detected as stale by the arena instead of aliasing whatever
// object reuses the slot.
//
// The zero Handle is [Nil] and never names a slot.
type Handle uint64

// Nil is the empty handle.
const Nil Handle = 0

func makeHandle(gen, id uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(id))
}

// IsNil reports whether h is the empty handle.
func (h Handle) IsNil() bool {
	return h.id() == 0
}

// Index returns the slot index named by h, or -1 for [Nil].
func (h Handle) Index() int {
	return int(h.id()) - 1
}

// Generation returns the slot generation captured in h.
func (h Handle) Generation() uint32 {
	return uint32(h >> 32)
}

func (h Handle) id() uint32 {
	return uint32(h)
}

func (h Handle) String() string {
	if h.IsNil() {
		return "Handle(nil)"
	}
	return "Handle(" + strconv.Itoa(h.Index()) + "#" + strconv.FormatUint(uint64(h.Generation()), 10) + ")"
}
