// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfpool_test

import (
	"bytes"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"code.hybscloud.com/lfpool"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// bucketOf allocates n objects straight from a and returns them as a chain.
func bucketOf(a *lfpool.Arena[int], n int) lfpool.Chain[int] {
	s := lfpool.NewStack(a)
	for range n {
		s.Push(a.Alloc())
	}
	return s.PopAll()
}

// =============================================================================
// Store - Bucket Exchange
// =============================================================================

func TestStoreAcquireEmpty(t *testing.T) {
	s := lfpool.NewStore(lfpool.NewArena[int](8), 4, 2)

	c, n := s.AcquireBucket()
	if n != 1 || c.Len() != 1 {
		t.Fatalf("AcquireBucket on empty: got count=%d len=%d, want 1 and 1", n, c.Len())
	}
	st := s.Stats()
	if st.SystemAllocations != 1 || st.BucketAcquisitions != 0 {
		t.Fatalf("Stats: got allocs=%d bucketAcq=%d, want 1 and 0",
			st.SystemAllocations, st.BucketAcquisitions)
	}
}

func TestStoreReleaseAcquire(t *testing.T) {
	a := lfpool.NewArena[int](16)
	s := lfpool.NewStore(a, 4, 2)

	first := bucketOf(a, 4)
	second := bucketOf(a, 3)
	s.ReleaseBucket(first, 4)
	s.ReleaseBucket(second, 3)

	st := s.Stats()
	if st.StoredBuckets != 2 || st.StoredObjects != 7 {
		t.Fatalf("after release: got buckets=%d objects=%d, want 2 and 7",
			st.StoredBuckets, st.StoredObjects)
	}

	// Most recently stored bucket comes back first.
	c, n := s.AcquireBucket()
	if n != 3 || c.Len() != 3 {
		t.Fatalf("AcquireBucket: got count=%d len=%d, want 3 and 3", n, c.Len())
	}
	for h := range c.All() {
		if *a.Get(h) != 0 {
			t.Fatal("stored object not cleared")
		}
	}
	st = s.Stats()
	if st.BucketAcquisitions != 1 || st.ObjectAcquisitions != 3 || st.StoredObjects != 4 {
		t.Fatalf("after acquire: got bucketAcq=%d objAcq=%d stored=%d, want 1, 3, 4",
			st.BucketAcquisitions, st.ObjectAcquisitions, st.StoredObjects)
	}
}

func TestStoreReleaseStalesHandles(t *testing.T) {
	a := lfpool.NewArena[int](4)
	s := lfpool.NewStore(a, 4, 2)
	c := bucketOf(a, 2)
	hs := c.Collect()

	s.ReleaseBucket(c, 2)
	mustPanic(t, "stale handle", func() { a.Get(hs[0]) })
}

func TestStoreCountMismatch(t *testing.T) {
	a := lfpool.NewArena[int](16)
	s := lfpool.NewStore(a, 4, 2)
	mustPanic(t, "count mismatch", func() { s.ReleaseBucket(bucketOf(a, 3), 4) })
	mustPanic(t, "count mismatch", func() { s.ReleaseBucket(lfpool.Chain[int]{}, 1) })
	mustPanic(t, "exceeds objects per bucket", func() { s.ReleaseBucket(bucketOf(a, 5), 5) })
	if st := s.Stats(); st.StoredBuckets != 0 {
		t.Fatalf("StoredBuckets after rejected bucket: got %d, want 0", st.StoredBuckets)
	}

	// An empty bucket with a zero count is accepted and ignored.
	s.ReleaseBucket(lfpool.Chain[int]{}, 0)
	if st := s.Stats(); st.BucketReleases != 0 {
		t.Fatalf("BucketReleases: got %d, want 0", st.BucketReleases)
	}
}

// TestStoreCapacityBound releases more buckets than the store holds.
func TestStoreCapacityBound(t *testing.T) {
	a := lfpool.NewArena[int](32)
	s := lfpool.NewStore(a, 4, 2)

	for range 5 {
		s.ReleaseBucket(bucketOf(a, 4), 4)
	}

	st := s.Stats()
	if st.StoredBuckets != 2 {
		t.Fatalf("StoredBuckets: got %d, want 2", st.StoredBuckets)
	}
	if st.SystemFrees != 12 {
		t.Fatalf("SystemFrees: got %d, want 12", st.SystemFrees)
	}
	if st.BucketReleases != 5 {
		t.Fatalf("BucketReleases: got %d, want 5", st.BucketReleases)
	}
	if a.Live() != 8 {
		t.Fatalf("arena Live: got %d, want 8", a.Live())
	}
	// The chains came from the arena, not the store, so only the spills count.
	if st.SystemAllocations != 0 || st.ResidentObjects != -12 {
		t.Fatalf("system counters: got allocs=%d resident=%d, want 0 and -12",
			st.SystemAllocations, st.ResidentObjects)
	}
	if want := int64(-12 * s.BlockSize()); st.ResidentBytes != want {
		t.Fatalf("ResidentBytes: got %d, want %d", st.ResidentBytes, want)
	}
}

// =============================================================================
// Store - Local Scenario
// =============================================================================

// TestStoreSpillScenario acquires 9 objects through one Local on a store of
// 2 buckets x 4 objects and releases all of them.
func TestStoreSpillScenario(t *testing.T) {
	s := lfpool.BuildStore[int](lfpool.New(4).MaxBuckets(2).MaxObjects(64))
	l := s.NewLocal()

	hs := make([]lfpool.Handle, 9)
	for i := range hs {
		hs[i] = l.Acquire()
	}
	st := s.Stats()
	if st.SystemAllocations != 9 {
		t.Fatalf("SystemAllocations: got %d, want 9", st.SystemAllocations)
	}

	for _, h := range hs {
		l.Release(h)
	}
	l.Close()

	st = s.Stats()
	if st.StoredBuckets != 2 {
		t.Fatalf("StoredBuckets: got %d, want 2", st.StoredBuckets)
	}
	if st.StoredObjects != 8 {
		t.Fatalf("StoredObjects: got %d, want 8", st.StoredObjects)
	}
	if st.SystemFrees != 1 {
		t.Fatalf("SystemFrees: got %d, want 1", st.SystemFrees)
	}
	if st.ResidentObjects != 8 {
		t.Fatalf("ResidentObjects: got %d, want 8", st.ResidentObjects)
	}
	if want := int64(8 * s.BlockSize()); st.ResidentBytes != want {
		t.Fatalf("ResidentBytes: got %d, want %d", st.ResidentBytes, want)
	}
	if st.BucketReleases != 3 {
		t.Fatalf("BucketReleases: got %d, want 3", st.BucketReleases)
	}
	if st.LocalAcquisitions != 9 || st.LocalReleases != 9 {
		t.Fatalf("local counters: got %d/%d, want 9/9", st.LocalAcquisitions, st.LocalReleases)
	}
	if st.Locals != 0 {
		t.Fatalf("Locals: got %d, want 0", st.Locals)
	}

	s.FreeAll()
	st = s.Stats()
	if st.StoredBuckets != 0 || st.StoredObjects != 0 {
		t.Fatalf("after FreeAll: got buckets=%d objects=%d, want 0 and 0",
			st.StoredBuckets, st.StoredObjects)
	}
	if st.SystemFrees != 9 || st.ResidentObjects != 0 || st.ResidentBytes != 0 {
		t.Fatalf("after FreeAll: got frees=%d resident=%d bytes=%d, want 9, 0, 0",
			st.SystemFrees, st.ResidentObjects, st.ResidentBytes)
	}
}

// TestStoreAccounting checks at quiescent points that every resident object
// is held by a caller, a Local buffer or the store.
func TestStoreAccounting(t *testing.T) {
	s := lfpool.BuildStore[int](lfpool.New(8).MaxBuckets(4).MaxObjects(4096))
	locals := []*lfpool.Local[int]{s.NewLocal(), s.NewLocal(), s.NewLocal()}
	held := make([][]lfpool.Handle, len(locals))
	rng := rand.New(rand.NewPCG(1, 2))

	check := func(step int) {
		t.Helper()
		buffered := 0
		callers := 0
		for i, l := range locals {
			acq, rel := l.Buffered()
			buffered += acq + rel
			callers += len(held[i])
		}
		st := s.Stats()
		want := int64(buffered+callers) + st.StoredObjects
		if st.ResidentObjects != want {
			t.Fatalf("step %d: resident %d, want %d (buffered=%d callers=%d stored=%d)",
				step, st.ResidentObjects, want, buffered, callers, st.StoredObjects)
		}
	}

	for step := range 5000 {
		i := rng.IntN(len(locals))
		l := locals[i]
		if len(held[i]) > 0 && rng.IntN(2) == 0 {
			j := rng.IntN(len(held[i]))
			l.Release(held[i][j])
			held[i] = append(held[i][:j], held[i][j+1:]...)
		} else if len(held[i]) < 100 {
			held[i] = append(held[i], l.Acquire())
		}
		if step%97 == 0 {
			check(step)
		}
	}
	check(-1)

	for i, l := range locals {
		for _, h := range held[i] {
			l.Release(h)
		}
		held[i] = nil
		l.Close()
	}
	check(-2)
}

// TestStoreConcurrentLocals churns one Local per goroutine against a small
// store and checks the accounting once everything is closed.
func TestStoreConcurrentLocals(t *testing.T) {
	if lfpool.RaceEnabled {
		t.Skip("skip: payload handoff is ordered through atomix")
	}

	const workers, ops = 8, 5000
	s := lfpool.BuildStore[[4]int](lfpool.New(16).MaxBuckets(4).MaxObjects(1 << 14))

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			l := s.NewLocal()
			defer l.Close()
			var held []lfpool.Handle
			for i := range ops {
				if len(held) < 40 && (i%3 != 0 || len(held) == 0) {
					h := l.Acquire()
					p := l.Get(h)
					if *p != ([4]int{}) {
						t.Errorf("worker %d: acquired object not zeroed: %v", w, *p)
						return
					}
					p[0] = w
					held = append(held, h)
					continue
				}
				h := held[len(held)-1]
				held = held[:len(held)-1]
				if l.Get(h)[0] != w {
					t.Errorf("worker %d: object changed under its owner", w)
					return
				}
				l.Release(h)
			}
			for _, h := range held {
				l.Release(h)
			}
		}(w)
	}
	wg.Wait()

	st := s.Stats()
	if st.Locals != 0 {
		t.Fatalf("Locals: got %d, want 0", st.Locals)
	}
	if st.ResidentObjects != st.StoredObjects {
		t.Fatalf("resident %d != stored %d", st.ResidentObjects, st.StoredObjects)
	}
	if st.StoredBuckets > s.MaxBuckets() {
		t.Fatalf("StoredBuckets: got %d, max %d", st.StoredBuckets, s.MaxBuckets())
	}
}

// =============================================================================
// Store - Diagnostics
// =============================================================================

func TestStoreLogsSpill(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(&buf),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(logiface.LevelTrace),
	).Logger()

	s := lfpool.BuildStore[int](lfpool.New(2).MaxBuckets(1).MaxObjects(8).Logger(logger))
	a := s.Arena()
	s.ReleaseBucket(bucketOf(a, 2), 2)
	s.ReleaseBucket(bucketOf(a, 2), 2)
	l := s.NewLocal()
	l.Close()
	s.FreeAll()

	out := buf.String()
	for _, want := range []string{
		"lfpool: store full, bucket spilled",
		"lfpool: local opened",
		"lfpool: local closed",
		"lfpool: store freed",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestStoreNilLoggerSilent(t *testing.T) {
	s := lfpool.BuildStore[int](lfpool.New(1).MaxBuckets(1).MaxObjects(4))
	a := s.Arena()
	s.ReleaseBucket(bucketOf(a, 1), 1)
	s.ReleaseBucket(bucketOf(a, 1), 1)
	if st := s.Stats(); st.SystemFrees != 1 {
		t.Fatalf("SystemFrees: got %d, want 1", st.SystemFrees)
	}
}

func TestStoreInvalidConfig(t *testing.T) {
	a := lfpool.NewArena[int](4)
	mustPanic(t, "objects per bucket", func() { lfpool.NewStore(a, 0, 1) })
	mustPanic(t, "max buckets", func() { lfpool.NewStore(a, 1, 0) })
	mustPanic(t, "nil arena", func() { lfpool.NewStore[int](nil, 1, 1) })
}
