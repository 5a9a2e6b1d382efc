// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestWatcher_CoalescesBurstIntoOneBatch drives the debounce loop directly
// with synthetic changes rather than real filesystem events, since fsnotify
// timing on CI runners is too jittery to assert "exactly one batch" against.
// Spec scenario: 50 modifications to the same file within 100ms must collapse
// into exactly one onBatch call naming that path once.
func TestWatcher_CoalescesBurstIntoOneBatch(t *testing.T) {
	var mu sync.Mutex
	var batches [][]string

	w := &watcher{
		debounce: 50 * time.Millisecond,
		ignore:   defaultIgnorePatterns,
		onBatch: func(paths []string) {
			mu.Lock()
			batches = append(batches, paths)
			mu.Unlock()
		},
		changes: make(chan change, 1000),
		done:    make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.debounceLoop(ctx)

	for i := 0; i < 50; i++ {
		w.changes <- change{relPath: "a.src"}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(batches)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("onBatch called %d times, want exactly 1 for a single coalesced burst", len(batches))
	}
	if len(batches[0]) != 1 || batches[0][0] != "a.src" {
		t.Fatalf("batch paths = %v, want [a.src] exactly once", batches[0])
	}
}
