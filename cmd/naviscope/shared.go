// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/biuld/naviscope/internal/ast"
	"github.com/biuld/naviscope/internal/discovery"
	"github.com/biuld/naviscope/internal/engine"
	"github.com/biuld/naviscope/internal/manifest"
	"github.com/biuld/naviscope/internal/storage"
)

// cacheDir locates the per-project index directory under the user's cache
// home (spec Section 6: "HOME (or XDG_CACHE_HOME when set) locates the
// per-project index"), keyed by a hash of the absolute project root so two
// projects never collide.
func cacheDir(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving project root: %w", err)
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving cache directory: %w", err)
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(base, "naviscope", hex.EncodeToString(sum[:8])), nil
}

// newEngine wires a discovery.Pipeline and a badger-backed IndexStore rooted
// at root's cache directory into a fresh Engine, the same three pieces
// engine_test.go assembles by hand for every scenario.
func newEngine(root string) (*engine.Engine, func() error, error) {
	dir, err := cacheDir(root)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := storage.OpenDB(storage.Config{Path: dir, SyncWrites: true, NumVersionsToKeep: 1})
	if err != nil {
		return nil, nil, fmt.Errorf("opening index store: %w", err)
	}
	store := storage.NewIndexStore(db)

	parsers := ast.NewParserRegistry()
	parsers.Register(ast.NewGoParser())
	pipeline := discovery.NewPipeline(manifest.NewManager(), parsers)

	e := engine.New(root, pipeline, store)
	return e, db.Close, nil
}

func outputError(msg string, err error) {
	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		os.Exit(ExitError)
	}
}
