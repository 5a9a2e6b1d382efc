// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage embeds a badger key-value store as the on-disk home for a
// project's persisted graph snapshot (spec Section 4.C: "Engine persistence
// uses a badger-backed key-value embedding of the on-disk index").
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config controls how a badger database is opened.
type Config struct {
	// InMemory opens a volatile database with no on-disk footprint, used by
	// tests and by callers that only need a transient index.
	InMemory bool

	// Path is the directory badger stores its files under. Required unless
	// InMemory is set.
	Path string

	// SyncWrites forces an fsync on every commit; off by default for
	// in-memory configs, on by default for persistent ones.
	SyncWrites bool

	// NumVersionsToKeep bounds how many historical values badger retains per
	// key; Naviscope only ever needs the latest snapshot.
	NumVersionsToKeep int

	// GCInterval is how often a GCRunner reclaims space from badger's
	// value log. Zero disables background GC.
	GCInterval time.Duration
}

// DefaultConfig is the persistent-mode default: synced writes, a single
// retained version, and periodic value-log GC.
func DefaultConfig() Config {
	return Config{
		InMemory:          false,
		SyncWrites:        true,
		NumVersionsToKeep: 1,
		GCInterval:        5 * time.Minute,
	}
}

// InMemoryConfig is the default for ephemeral/test databases: no durability
// guarantees needed, so writes are unsynced and GC is disabled.
func InMemoryConfig() Config {
	return Config{
		InMemory:          true,
		SyncWrites:        false,
		NumVersionsToKeep: 1,
		GCInterval:        0,
	}
}

// DB wraps a badger.DB with context-aware transaction helpers.
type DB struct {
	bdb *badger.DB
}

// Open opens a badger database per cfg.
func Open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("storage: path is required for a persistent database")
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts = opts.WithInMemory(cfg.InMemory)
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(maxInt(cfg.NumVersionsToKeep, 1))
	opts = opts.WithLogger(nil)

	return badger.Open(opts)
}

// OpenInMemory opens a volatile badger database, the pattern every in-memory
// caller (engine tests, a watcher fallback) should use.
func OpenInMemory() (*badger.DB, error) {
	return Open(InMemoryConfig())
}

// OpenWithPath opens a persistent badger database rooted at dir.
func OpenWithPath(dir string) (*badger.DB, error) {
	cfg := DefaultConfig()
	cfg.Path = dir
	return Open(cfg)
}

// OpenDB opens a badger database and wraps it in the context-aware helper
// type, the form Engine.Load/Save actually depend on.
func OpenDB(cfg Config) (*DB, error) {
	bdb, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return &DB{bdb: bdb}, nil
}

// Close releases the underlying badger database.
func (d *DB) Close() error {
	return d.bdb.Close()
}

// Underlying exposes the raw *badger.DB for callers that need a capability
// this wrapper doesn't expose directly.
func (d *DB) Underlying() *badger.DB { return d.bdb }

// WithTxn runs fn inside a read-write badger transaction, committing on
// success and rolling back on error. ctx cancellation aborts before the
// transaction is even opened.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("storage: context cancelled: %w", err)
	}
	return d.bdb.Update(fn)
}

// WithReadTxn runs fn inside a read-only badger transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("storage: context cancelled: %w", err)
	}
	return d.bdb.View(fn)
}

// GCRunner periodically reclaims badger value-log space in the background.
type GCRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logFn    func(err error)

	stop    chan struct{}
	stopped sync.Once
	done    chan struct{}
}

// NewGCRunner validates its arguments and returns a stopped GCRunner; call
// Start to begin the background loop. logFn may be nil, in which case GC
// errors are silently dropped (badger.ErrNoRewrite is expected whenever a
// cycle finds nothing to compact and is never passed to logFn).
func NewGCRunner(db *badger.DB, interval time.Duration, ratio float64, logFn func(err error)) (*GCRunner, error) {
	if db == nil {
		return nil, errors.New("storage: db must not be nil")
	}
	if interval <= 0 {
		return nil, errors.New("storage: interval must be positive")
	}
	if ratio <= 0 || ratio > 1 {
		return nil, errors.New("storage: ratio must be between 0 and 1")
	}
	return &GCRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logFn:    logFn,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start begins the background GC loop.
func (r *GCRunner) Start() {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				for {
					err := r.db.RunValueLogGC(r.ratio)
					if err != nil {
						if !errors.Is(err, badger.ErrNoRewrite) && r.logFn != nil {
							r.logFn(err)
						}
						break
					}
				}
			}
		}
	}()
}

// Stop halts the background GC loop and waits for it to exit.
func (r *GCRunner) Stop() {
	r.stopped.Do(func() { close(r.stop) })
	<-r.done
}

// TempDir creates a fresh temporary directory with the given prefix.
func TempDir(prefix string) (string, error) {
	return os.MkdirTemp("", prefix)
}

// CleanupDir removes dir and its contents; an empty path is a no-op.
func CleanupDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
