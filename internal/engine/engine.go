// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements the single-project index lifecycle (spec
// Section 4.C): a version slot holding the current Immutable graph, a
// writer-lock serializing mutation, and the five operations (snapshot,
// rebuild, update_files, load/save, watch) that keep the slot current.
//
// Modeled on the teacher's cache.GraphCache: singleflight.Group collapses
// concurrent identical rebuild requests into one in-flight build (so later
// callers observe that build's result rather than queuing a redundant one),
// and the watcher is the teacher's fsnotify-based FileWatcher generalized to
// call update_files instead of invalidating a cache entry. Unlike
// GraphCache, Engine holds exactly one project's graph: there is no LRU,
// reference counting, or multi-tenant eviction here.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/biuld/naviscope/internal/discovery"
	"github.com/biuld/naviscope/internal/graphmodel"
	"github.com/biuld/naviscope/internal/storage"
)

var (
	tracer = otel.Tracer("naviscope.engine")
	meter  = otel.Meter("naviscope.engine")
)

var (
	rebuildTotal   metric.Int64Counter
	updateTotal    metric.Int64Counter
	rebuildLatency metric.Float64Histogram
	metricsOnce    sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		rebuildTotal, _ = meter.Int64Counter("engine_rebuild_total",
			metric.WithDescription("Total number of full rebuilds"))
		updateTotal, _ = meter.Int64Counter("engine_update_files_total",
			metric.WithDescription("Total number of incremental update_files calls"))
		rebuildLatency, _ = meter.Float64Histogram("engine_rebuild_duration_seconds",
			metric.WithDescription("Duration of a full rebuild"), metric.WithUnit("s"))
	})
}

// ErrNoGraph is returned by Snapshot when no graph has ever been built or
// loaded for this Engine.
var ErrNoGraph = errors.New("engine: no graph available yet")

// Engine owns one project's current graph and every operation that can
// change it. The zero value is not usable; construct with New.
type Engine struct {
	root     string
	pipeline *discovery.Pipeline
	store    *storage.IndexStore

	mu      sync.RWMutex
	current *graphmodel.Immutable

	writerMu sync.Mutex
	flight   singleflight.Group

	watcher         *watcher
	rebuildThreshold int
	debounce        time.Duration
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithRebuildThreshold overrides DefaultRebuildThreshold.
func WithRebuildThreshold(n int) Option {
	return func(e *Engine) { e.rebuildThreshold = n }
}

// WithDebounce overrides DefaultDebounceWindow.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounce = d }
}

// New creates an Engine rooted at root. pipeline drives both rebuild() and
// update_files(); store is where load()/save() persist the graph (pass nil
// to disable persistence entirely, e.g. for a purely in-memory Engine).
func New(root string, pipeline *discovery.Pipeline, store *storage.IndexStore, opts ...Option) *Engine {
	e := &Engine{
		root:             root,
		pipeline:         pipeline,
		store:            store,
		rebuildThreshold: DefaultRebuildThreshold,
		debounce:         DefaultDebounceWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot returns the current graph. It takes a brief read-lock, clones
// the reference, and releases: it never blocks on an ongoing build (spec:
// "sub-microsecond target, never blocks on ongoing build").
func (e *Engine) Snapshot() (*graphmodel.Immutable, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return nil, ErrNoGraph
	}
	return e.current, nil
}

// Rebuild runs the Discovery Pipeline against the entire project tree and
// swaps it in as the current graph. Concurrent Rebuild calls are collapsed
// by singleflight: a caller arriving mid-build shares the in-flight build's
// result instead of queuing a second, redundant one (spec tie-break:
// "concurrent rebuild calls are serialized, later callers observe the
// in-flight build's version").
func (e *Engine) Rebuild(ctx context.Context) error {
	buildID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "engine.Rebuild", trace.WithAttributes(
		attribute.String("build_id", buildID),
	))
	defer span.End()

	slog.Debug("engine: rebuild starting", slog.String("build_id", buildID), slog.String("root", e.root))
	_, err, shared := e.flight.Do("rebuild", func() (interface{}, error) {
		return nil, e.doRebuild(ctx, buildID)
	})
	span.SetAttributes(attribute.Bool("singleflight_shared", shared))
	if err != nil {
		span.RecordError(err)
		slog.Warn("engine: rebuild failed", slog.String("build_id", buildID), slog.String("error", err.Error()))
	} else {
		slog.Debug("engine: rebuild complete", slog.String("build_id", buildID), slog.Bool("singleflight_shared", shared))
	}
	return err
}

func (e *Engine) doRebuild(ctx context.Context, buildID string) error {
	start := time.Now()
	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	b := graphmodel.NewBuilder()
	if err := e.pipeline.Run(ctx, e.root, b); err != nil {
		return fmt.Errorf("engine: rebuild %s: %w", buildID, err)
	}
	g, err := b.Seal(ctx)
	if err != nil {
		return fmt.Errorf("engine: rebuild %s: seal: %w", buildID, err)
	}

	e.swap(g)
	e.persistAsync(g)

	initMetrics()
	if rebuildTotal != nil {
		rebuildTotal.Add(ctx, 1)
	}
	if rebuildLatency != nil {
		rebuildLatency.Record(ctx, time.Since(start).Seconds())
	}
	return nil
}

// UpdateFiles re-parses and re-resolves exactly paths, seeding the new
// Builder from the current graph (copy-on-write) so unaffected nodes, edges,
// and file records carry over untouched. A write that fails mid-build
// leaves the current graph untouched (spec tie-break): doRebuild and
// UpdateFiles only call swap after a successful Seal.
func (e *Engine) UpdateFiles(ctx context.Context, paths []string) error {
	buildID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "engine.UpdateFiles", trace.WithAttributes(
		attribute.Int("path_count", len(paths)),
		attribute.String("build_id", buildID),
	))
	defer span.End()

	if len(paths) == 0 {
		return nil
	}

	slog.Debug("engine: update_files starting", slog.String("build_id", buildID), slog.Int("path_count", len(paths)))

	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	e.mu.RLock()
	base := e.current
	e.mu.RUnlock()

	b := graphmodel.NewBuilderFrom(base)
	if err := e.pipeline.RunFiles(ctx, e.root, paths, b); err != nil {
		span.RecordError(err)
		return fmt.Errorf("engine: update_files %s: %w", buildID, err)
	}
	g, err := b.Seal(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("engine: update_files %s: seal: %w", buildID, err)
	}

	e.swap(g)
	e.persistAsync(g)

	initMetrics()
	if updateTotal != nil {
		updateTotal.Add(ctx, 1)
	}
	slog.Debug("engine: update_files complete", slog.String("build_id", buildID))
	return nil
}

// swap publishes g as the current graph under a brief write-lock (spec:
// "swaps current under brief write-lock (single pointer assignment)").
func (e *Engine) swap(g *graphmodel.Immutable) {
	e.mu.Lock()
	e.current = g
	e.mu.Unlock()
}

// persistAsync saves g in the background; persistence failures are logged,
// not fatal (spec: "persistence failures logged, not fatal").
func (e *Engine) persistAsync(g *graphmodel.Immutable) {
	if e.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.store.Save(ctx, e.root, g); err != nil {
			slog.Warn("engine: failed to persist graph", slog.String("root", e.root), slog.String("error", err.Error()))
		}
	}()
}

// Load deserializes a previously-saved graph into the current slot.
// Returns false if no prior index exists.
func (e *Engine) Load(ctx context.Context) (bool, error) {
	if e.store == nil {
		return false, nil
	}
	g, err := e.store.Load(ctx, e.root)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("engine: load: %w", err)
	}
	e.swap(g)
	return true, nil
}

// Save persists the current graph immediately (synchronously), for callers
// that need a durability guarantee before returning (e.g. a graceful
// shutdown path), as opposed to rebuild/update_files' fire-and-forget
// persistAsync.
func (e *Engine) Save(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	g, err := e.Snapshot()
	if err != nil {
		return err
	}
	return e.store.Save(ctx, e.root, g)
}

// Watch starts a background filesystem watch under the project root.
// Changes are debounced for the configured window, deduplicated by path,
// and applied via update_files — unless the batch exceeds the rebuild
// threshold, in which case a full rebuild runs instead (spec: "falls back
// to rebuild if changed-paths count exceeds a threshold"). Watch returns
// once the watch is established; it keeps running until ctx is canceled.
func (e *Engine) Watch(ctx context.Context) error {
	cfg, err := LoadProjectConfig(e.root)
	if err != nil {
		slog.Warn("engine: failed to load project config, using default ignore rules",
			slog.String("root", e.root), slog.String("error", err.Error()))
	}

	w, err := newWatcher(e.root, func(paths []string) {
		e.onWatchBatch(ctx, paths)
	}, e.debounce, cfg.Ignore)
	if err != nil {
		return fmt.Errorf("engine: watch: %w", err)
	}
	e.watcher = w

	if err := w.start(ctx); err != nil {
		return fmt.Errorf("engine: watch: %w", err)
	}

	go func() {
		<-ctx.Done()
		w.stop()
	}()
	return nil
}

// StopWatch halts a running watch immediately rather than waiting for ctx
// cancellation, used by callers that manage the watcher's lifetime
// independently of the Engine's own context.
func (e *Engine) StopWatch() {
	if e.watcher != nil {
		e.watcher.stop()
	}
}

func (e *Engine) onWatchBatch(ctx context.Context, paths []string) {
	var err error
	if len(paths) > e.rebuildThreshold {
		slog.Debug("engine: watch batch exceeds rebuild threshold, falling back to rebuild",
			slog.Int("changed", len(paths)), slog.Int("threshold", e.rebuildThreshold))
		err = e.Rebuild(ctx)
	} else {
		err = e.UpdateFiles(ctx, paths)
	}
	if err != nil {
		slog.Warn("engine: watch-triggered update failed", slog.String("error", err.Error()))
	}
}
