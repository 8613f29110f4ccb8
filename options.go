// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool

import "github.com/joeycumines/logiface"

const (
	// DefaultMaxBuckets is the store capacity used when MaxBuckets is not set.
	DefaultMaxBuckets = 64
	// DefaultMaxObjects is the arena capacity used when MaxObjects is not set.
	DefaultMaxObjects = 1 << 20
)

// Options configures pool creation.
type Options struct {
	objectsPerBucket int
	maxBuckets       int
	maxObjects       int
	logger           *logiface.Logger[logiface.Event]
}

// Builder creates pools with fluent configuration.
//
// The configuration is fixed once a pool is built.
//
// Example:
//
//	// Per-goroutine pools over a bounded store
//	s := lfpool.BuildStore[Conn](lfpool.New(64).MaxBuckets(32))
//	l := s.NewLocal()
//	defer l.Close()
//
//	// One shared free list
//	p := lfpool.BuildShared[Msg](lfpool.New(1).MaxObjects(4096))
type Builder struct {
	opts Options
}

// New creates a pool builder with the given bucket size.
//
// objectsPerBucket is the number of objects exchanged between a [Local] and
// its [Store] in one step, and the capacity of each Local buffer.
//
// Panics if objectsPerBucket < 1.
func New(objectsPerBucket int) *Builder {
	if objectsPerBucket < 1 {
		panic("lfpool: objects per bucket must be >= 1")
	}
	return &Builder{opts: Options{
		objectsPerBucket: objectsPerBucket,
		maxBuckets:       DefaultMaxBuckets,
		maxObjects:       DefaultMaxObjects,
	}}
}

// MaxBuckets sets how many buckets the store may hold before spilling.
// Panics if n < 1.
func (b *Builder) MaxBuckets(n int) *Builder {
	if n < 1 {
		panic("lfpool: max buckets must be >= 1")
	}
	b.opts.maxBuckets = n
	return b
}

// MaxObjects sets the arena capacity: the most objects that can be live at
// once, counting the ones parked in buffers and buckets.
// Panics if n < 1.
func (b *Builder) MaxObjects(n int) *Builder {
	if n < 1 {
		panic("lfpool: max objects must be >= 1")
	}
	b.opts.maxObjects = n
	return b
}

// Logger attaches a structured logger for diagnostics. A nil logger
// disables logging.
func (b *Builder) Logger(l *logiface.Logger[logiface.Event]) *Builder {
	b.opts.logger = l
	return b
}

// BuildArena creates an arena from the builder.
func BuildArena[T any](b *Builder) *Arena[T] {
	return newArena[T](b.opts.maxObjects, b.opts.logger)
}

// BuildStore creates a store and its arena from the builder.
func BuildStore[T any](b *Builder) *Store[T] {
	return NewStore(BuildArena[T](b), b.opts.objectsPerBucket, b.opts.maxBuckets)
}

// BuildShared creates a shared pool and its arena from the builder.
// The bucket settings are ignored.
func BuildShared[T any](b *Builder) *SharedPool[T] {
	return NewSharedPool(BuildArena[T](b))
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
