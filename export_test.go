// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool

// HoldConsumer marks s as if a Pop were in progress until the returned
// function is called.
func HoldConsumer[T any](s *MPSCStack[T]) (release func()) {
	s.consumer.StoreRelease(1)
	return func() { s.consumer.StoreRelease(0) }
}

// HoldQueueConsumer marks q as if a Pop were in progress until the returned
// function is called.
func HoldQueueConsumer[T any](q *Queue[T]) (release func()) {
	q.consumer.StoreRelease(1)
	return func() { q.consumer.StoreRelease(0) }
}
