// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command lfpoolstress drives the pool and queue under concurrent load and
// checks their invariants.
//
// It runs three workloads. The pool churn gives each worker goroutine its own
// Local over one shared Store and checks that every acquired object is fresh
// and that the store accounting balances once all Locals are closed. The
// queue run pushes tagged objects from several producers into one Queue and
// checks that each producer's order survives. The handoff acquires objects
// from a SharedPool on one goroutine, passes them through a Ring and
// releases them on another.
//
// Results are logged as JSON lines on stderr. The exit status is 1 when an
// invariant is violated.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfpool"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

type config struct {
	workers    int
	ops        int
	perBucket  int
	maxBuckets int
	maxObjects int
	producers  int
	items      int
	ring       int
	verbose    bool
}

// object is the pooled payload. seq is written on acquire and checked on
// release, so a slot shared by two owners shows up as a mismatch.
type object struct {
	owner int
	seq   int
	data  [48]byte
}

func (o *object) Reset() {
	o.data = [48]byte{}
}

type item struct {
	producer int
	seq      int
}

func main() {
	var cfg config
	flag.IntVar(&cfg.workers, "workers", 8, "pool churn worker goroutines")
	flag.IntVar(&cfg.ops, "ops", 200000, "acquire/release operations per worker")
	flag.IntVar(&cfg.perBucket, "per-bucket", 64, "objects per bucket")
	flag.IntVar(&cfg.maxBuckets, "max-buckets", 16, "store capacity in buckets")
	flag.IntVar(&cfg.maxObjects, "max-objects", 1<<16, "arena capacity")
	flag.IntVar(&cfg.producers, "producers", 4, "queue producer goroutines")
	flag.IntVar(&cfg.items, "items", 100000, "items per queue producer")
	flag.IntVar(&cfg.ring, "ring", 1024, "handoff ring capacity")
	flag.BoolVar(&cfg.verbose, "v", false, "log pool diagnostics at trace level")
	flag.Parse()

	level := logiface.LevelInformational
	if cfg.verbose {
		level = logiface.LevelTrace
	}
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(level),
	).Logger()

	if err := run(cfg, logger); err != nil {
		logger.Err().Err(err).Log("lfpoolstress: failed")
		os.Exit(1)
	}
	logger.Info().Log("lfpoolstress: ok")
}

func run(cfg config, logger *logiface.Logger[logiface.Event]) error {
	if cfg.workers < 1 || cfg.ops < 1 || cfg.producers < 1 || cfg.items < 1 {
		return errors.New("workers, ops, producers and items must be >= 1")
	}
	if cfg.maxObjects <= cfg.producers {
		return errors.New("max-objects must exceed producers")
	}
	if cfg.ring < 2 {
		return errors.New("ring must be >= 2")
	}
	if err := churn(cfg, logger); err != nil {
		return fmt.Errorf("pool churn: %w", err)
	}
	if err := fifo(cfg, logger); err != nil {
		return fmt.Errorf("queue order: %w", err)
	}
	if err := handoff(cfg, logger); err != nil {
		return fmt.Errorf("ring handoff: %w", err)
	}
	return nil
}

// churn runs one Local per worker against a shared store.
func churn(cfg config, logger *logiface.Logger[logiface.Event]) error {
	const hold = 32
	s := lfpool.BuildStore[object](lfpool.New(cfg.perBucket).
		MaxBuckets(cfg.maxBuckets).
		MaxObjects(cfg.maxObjects).
		Logger(logger))

	var violations atomix.Int64
	var wg sync.WaitGroup
	start := time.Now()
	for w := range cfg.workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			l := s.NewLocal()
			defer l.Close()
			held := make([]lfpool.Handle, 0, hold)
			for i := range cfg.ops {
				if len(held) < hold && (i%5 != 4 || len(held) == 0) {
					h := l.AcquireFunc(func(o *object) {
						if o.owner != 0 || o.seq != 0 {
							violations.Add(1)
						}
						o.owner = w + 1
						o.seq = i
					})
					held = append(held, h)
					continue
				}
				// Release the older half so objects cross buffer boundaries.
				n := len(held) / 2
				for _, h := range held[:n] {
					if l.Get(h).owner != w+1 {
						violations.Add(1)
					}
					l.Release(h)
				}
				held = append(held[:0], held[n:]...)
			}
			for _, h := range held {
				l.Release(h)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	st := s.Stats()
	logger.Info().
		Int("workers", cfg.workers).
		Dur("elapsed", elapsed).
		Uint64("system_allocations", st.SystemAllocations).
		Uint64("system_frees", st.SystemFrees).
		Uint64("bucket_acquisitions", st.BucketAcquisitions).
		Uint64("bucket_releases", st.BucketReleases).
		Uint64("local_acquisitions", st.LocalAcquisitions).
		Uint64("local_releases", st.LocalReleases).
		Int64("resident_objects", st.ResidentObjects).
		Int64("resident_bytes", st.ResidentBytes).
		Int("stored_buckets", st.StoredBuckets).
		Int64("stored_objects", st.StoredObjects).
		Log("lfpoolstress: pool churn done")

	if n := violations.Load(); n != 0 {
		return fmt.Errorf("%d objects were not fresh or changed owner", n)
	}
	if st.Locals != 0 {
		return fmt.Errorf("%d locals still open", st.Locals)
	}
	if st.ResidentObjects != st.StoredObjects {
		return fmt.Errorf("resident objects %d, stored objects %d", st.ResidentObjects, st.StoredObjects)
	}
	if st.StoredBuckets > s.MaxBuckets() {
		return fmt.Errorf("store holds %d buckets, capacity %d", st.StoredBuckets, s.MaxBuckets())
	}
	if st.LocalAcquisitions != st.LocalReleases {
		return fmt.Errorf("acquisitions %d, releases %d", st.LocalAcquisitions, st.LocalReleases)
	}
	s.FreeAll()
	return nil
}

// fifo checks per-producer order through a multi-producer Queue.
func fifo(cfg config, logger *logiface.Logger[logiface.Event]) error {
	a := lfpool.BuildArena[item](lfpool.New(1).MaxObjects(cfg.maxObjects).Logger(logger))
	q := lfpool.NewQueue(a)
	total := cfg.producers * cfg.items

	var wg sync.WaitGroup
	start := time.Now()
	for p := range cfg.producers {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			backoff := iox.Backoff{}
			for i := range cfg.items {
				// Bounded arena: wait for the consumer to free slots.
				for a.Live() >= a.Cap()-cfg.producers {
					backoff.Wait()
				}
				backoff.Reset()
				h := a.Alloc()
				*a.Get(h) = item{producer: p, seq: i}
				q.Push(h)
			}
		}(p)
	}

	next := make([]int, cfg.producers)
	var err error
	backoff := iox.Backoff{}
	for n := 0; n < total; {
		h, e := q.Pop()
		if lfpool.IsWouldBlock(e) {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		it := *a.Get(h)
		a.Free(h)
		n++
		if err == nil && it.seq != next[it.producer] {
			err = fmt.Errorf("producer %d: got seq %d, want %d", it.producer, it.seq, next[it.producer])
		}
		next[it.producer] = it.seq + 1
	}
	wg.Wait()

	logger.Info().
		Int("producers", cfg.producers).
		Int("items", total).
		Dur("elapsed", time.Since(start)).
		Log("lfpoolstress: queue run done")
	return err
}

// handoff moves objects from a SharedPool producer to a Ring consumer that
// releases them, checking order and freshness on both sides.
func handoff(cfg config, logger *logiface.Logger[logiface.Event]) error {
	// In flight: the ring, one consumer batch, one producer object.
	a := lfpool.BuildArena[object](lfpool.New(1).MaxObjects(4*cfg.ring + 1).Logger(logger))
	p := lfpool.NewSharedPool(a)
	r := lfpool.NewRing(a, cfg.ring)
	total := cfg.producers * cfg.items

	var stale atomix.Int64
	done := make(chan struct{})
	start := time.Now()
	go func() {
		defer close(done)
		backoff := iox.Backoff{}
		for i := range total {
			h := p.AcquireFunc(func(o *object) {
				if o.owner != 0 || o.seq != 0 {
					stale.Add(1)
				}
				o.owner = 1
				o.seq = i + 1
			})
			for lfpool.IsWouldBlock(r.Enqueue(h)) {
				backoff.Wait()
			}
			backoff.Reset()
		}
	}()

	var err error
	batch := make([]lfpool.Handle, r.Cap())
	backoff := iox.Backoff{}
	for n := 0; n < total; {
		k, e := r.DequeueBatch(batch)
		if lfpool.IsWouldBlock(e) {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		for _, h := range batch[:k] {
			if o := p.Get(h); err == nil && o.seq != n+1 {
				err = fmt.Errorf("got seq %d, want %d", o.seq, n+1)
			}
			p.Release(h)
			n++
		}
	}
	<-done

	logger.Info().
		Int("objects", total).
		Int("ring", r.Cap()).
		Int("pooled", p.ApproxLen()).
		Int("arena_live", a.Live()).
		Dur("elapsed", time.Since(start)).
		Log("lfpoolstress: ring handoff done")
	if err != nil {
		return err
	}
	if n := stale.Load(); n != 0 {
		return fmt.Errorf("%d objects were not fresh", n)
	}
	if a.Live() != p.ApproxLen() {
		return fmt.Errorf("arena live %d, pooled %d", a.Live(), p.ApproxLen())
	}
	return nil
}
