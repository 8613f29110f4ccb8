// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"
	"testing"

	"code.hybscloud.com/lfpool"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

func TestRun(t *testing.T) {
	if lfpool.RaceEnabled {
		t.Skip("skip: payload handoff is ordered through atomix")
	}

	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelInformational),
	).Logger()

	cfg := config{
		workers:    4,
		ops:        5000,
		perBucket:  8,
		maxBuckets: 4,
		maxObjects: 4096,
		producers:  3,
		items:      2000,
		ring:       64,
	}
	if err := run(cfg, logger); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"pool churn done", "queue run done", "ring handoff done"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("log output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestRunInvalidConfig(t *testing.T) {
	if err := run(config{}, nil); err == nil {
		t.Fatal("run(zero config): got nil error")
	}
	cfg := config{workers: 1, ops: 1, perBucket: 1, maxBuckets: 1, maxObjects: 2, producers: 2, items: 1, ring: 2}
	if err := run(cfg, nil); err == nil {
		t.Fatal("run(max-objects <= producers): got nil error")
	}
	cfg = config{workers: 1, ops: 1, perBucket: 1, maxBuckets: 1, maxObjects: 8, producers: 1, items: 1, ring: 1}
	if err := run(cfg, nil); err == nil {
		t.Fatal("run(ring < 2): got nil error")
	}
}
