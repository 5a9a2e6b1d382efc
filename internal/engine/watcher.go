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
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceWindow is how long the watcher waits for more changes
// before flushing a batch to the Engine (spec Section 4.C: "debounces for
// a configured window (default 500ms)").
const DefaultDebounceWindow = 500 * time.Millisecond

// DefaultRebuildThreshold is the changed-path count above which the watcher
// falls back to a full Rebuild instead of an incremental UpdateFiles (spec
// Section 4.C: "falls back to rebuild if changed-paths count exceeds a
// threshold").
const DefaultRebuildThreshold = 64

// defaultIgnorePatterns mirrors manifest.DefaultExcludes in spirit. Each
// pattern is checked against a path's base name (exact match or
// filepath.Match glob) and as a whole intermediate directory segment, since
// fsnotify hands back raw filesystem paths, not project-relative ones.
var defaultIgnorePatterns = []string{".git", "node_modules", "vendor", ".naviscope", ".idea", "*.swp", "*.tmp", "__pycache__"}

// change is one filesystem event normalized to a project-relative path.
type change struct {
	relPath string
	removed bool
}

// watcher watches a project tree for filesystem changes, debounces them
// into batches, and invokes onBatch with the deduplicated set of changed
// (project-relative) paths. Modeled on the teacher's FileWatcher
// (graph.FileWatcher): same two-goroutine event-processor/debounce-loop
// split, same path-dedup-keep-latest rule, but the default debounce window
// and the consumer callback shape are Engine's own.
type watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	debounce time.Duration
	ignore   []string
	onBatch  func(paths []string)

	changes chan change
	done    chan struct{}
	once    sync.Once

	mu       sync.RWMutex
	watching bool
}

func newWatcher(root string, onBatch func(paths []string), debounce time.Duration, extraIgnore []string) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounceWindow
	}
	ignore := defaultIgnorePatterns
	if len(extraIgnore) > 0 {
		ignore = make([]string, 0, len(defaultIgnorePatterns)+len(extraIgnore))
		ignore = append(ignore, defaultIgnorePatterns...)
		ignore = append(ignore, extraIgnore...)
	}
	return &watcher{
		root:     root,
		fsw:      fsw,
		debounce: debounce,
		ignore:   ignore,
		onBatch:  onBatch,
		changes:  make(chan change, 1000),
		done:     make(chan struct{}),
	}, nil
}

func (w *watcher) start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

func (w *watcher) stop() {
	w.once.Do(func() {
		close(w.done)
		w.fsw.Close()
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

func (w *watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.ignore {
		if base == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		if strings.Contains(path, string(filepath.Separator)+pattern+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.shouldIgnore(event.Name) {
				continue
			}
			// Events outside the project root are dropped (spec Section 4.C
			// tie-break), which a relative-path failure here implies.
			rel, relErr := filepath.Rel(w.root, event.Name)
			if relErr != nil || strings.HasPrefix(rel, "..") {
				continue
			}
			c := change{relPath: filepath.ToSlash(rel), removed: event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)}
			select {
			case w.changes <- c:
			default:
				slog.Warn("engine: watcher change buffer full, dropping event", slog.String("path", rel))
			}

			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					w.fsw.Add(event.Name)
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("engine: watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *watcher) debounceLoop(ctx context.Context) {
	var batch []change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			paths := dedupe(batch)
			batch = batch[:0]
			if len(paths) > 0 && w.onBatch != nil {
				w.onBatch(paths)
			}
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case c := <-w.changes:
			batch = append(batch, c)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// dedupe keeps only the most recent change per path (teacher's
// deduplicateChanges, generalized to return bare paths since the Engine
// doesn't distinguish create/write at the UpdateFiles boundary).
func dedupe(changes []change) []string {
	seen := make(map[string]int)
	var order []string
	for _, c := range changes {
		if _, ok := seen[c.relPath]; !ok {
			order = append(order, c.relPath)
		}
		seen[c.relPath] = len(order)
	}
	return order
}
