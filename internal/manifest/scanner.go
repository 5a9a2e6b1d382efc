// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package manifest

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// DefaultExcludes are ignore patterns applied even when the caller supplies
// no excludes of their own (spec Section 4.D: the Scanner "walks the
// project honouring ignore rules").
var DefaultExcludes = []string{
	".git/**", "node_modules/**", "vendor/**", ".naviscope/**",
}

// Manager scans a project tree into a Manifest, honouring include/exclude
// glob rules. No third-party glob library in the example pack covers this
// concern, so matching uses path/filepath.Match per path segment.
type Manager struct {
	includes []string
	excludes []string
	hasher   Hasher
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIncludes sets the include patterns; an empty set matches everything.
func WithIncludes(patterns ...string) ManagerOption {
	return func(m *Manager) { m.includes = patterns }
}

// WithExcludes appends additional exclude patterns beyond DefaultExcludes.
func WithExcludes(patterns ...string) ManagerOption {
	return func(m *Manager) { m.excludes = append(m.excludes, patterns...) }
}

// WithHasher overrides the default XXHasher, e.g. for test doubles.
func WithHasher(h Hasher) ManagerOption {
	return func(m *Manager) { m.hasher = h }
}

// NewManager creates a Manager with DefaultExcludes applied and an XXHasher.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		excludes: append([]string(nil), DefaultExcludes...),
		hasher:   NewXXHasher(0),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Scan walks root and returns a Manifest of every matching file. Per-file
// I/O faults are skipped (spec Section 7: "I/O fault... skip the file and
// continue scanning") rather than aborting the walk.
func (m *Manager) Scan(ctx context.Context, root string) (*Manifest, error) {
	files := make(map[string]FileEntry)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if matchAny(m.excludes, rel+"/**") || matchAny(m.excludes, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !m.shouldInclude(rel) {
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			return nil
		}
		hash, hashErr := m.hasher.HashFile(path)
		if hashErr != nil {
			return nil
		}
		files[rel] = FileEntry{
			Path:  rel,
			Hash:  hash,
			Mtime: info.ModTime().UnixMilli(),
			Size:  info.Size(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Manifest{
		ProjectRoot:    root,
		Files:          files,
		CreatedAtMilli: time.Now().UnixMilli(),
	}, nil
}

func (m *Manager) shouldInclude(rel string) bool {
	if matchAny(m.excludes, rel) {
		return false
	}
	if len(m.includes) == 0 {
		return true
	}
	return matchAny(m.includes, rel)
}

// matchAny reports whether rel matches any of patterns, checked both as a
// whole-path glob and per directory-prefix for "dir/**" style excludes.
func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if matchGlob(pat, rel) {
			return true
		}
	}
	return false
}

// matchGlob supports a single "**" wildcard meaning "any number of path
// segments" in addition to filepath.Match's single-segment "*"/"?".
func matchGlob(pattern, path string) bool {
	if strings.Contains(pattern, "**") {
		parts := strings.SplitN(pattern, "**", 2)
		prefix := strings.TrimSuffix(parts[0], "/")
		suffix := strings.TrimPrefix(parts[1], "/")
		if prefix != "" && path != prefix && !strings.HasPrefix(path, prefix+"/") {
			return false
		}
		rest := strings.Split(strings.TrimPrefix(strings.TrimPrefix(path, prefix), "/"), "/")
		for i := range rest {
			if ok, _ := filepath.Match(suffix, strings.Join(rest[i:], "/")); suffix == "" || ok {
				return true
			}
		}
		return false
	}
	ok, err := filepath.Match(pattern, path)
	if err == nil && ok {
		return true
	}
	// Also try matching against the base name, so "*.go" excludes nested files.
	ok, err = filepath.Match(pattern, filepath.Base(path))
	return err == nil && ok
}

// ValidatePath rejects paths that would escape root via "..": a defensive
// check against malformed watcher events (spec: "events for paths outside
// the project root... are dropped").
func ValidatePath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}
