// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/biuld/naviscope/internal/ast"
	"github.com/biuld/naviscope/internal/graphmodel"
	"github.com/biuld/naviscope/internal/manifest"
)

// Pipeline runs the full scan -> parse -> resolve -> apply sequence (spec
// Section 4.D) against a Builder. Phase 1 (scan+parse) and the per-file
// slice of Phase 2 (language resolve) run in parallel across a worker pool
// sized like a priority group of enrichers; the build-context step and the
// final Apply are serialized, since they read or write shared state.
type Pipeline struct {
	Scanner  *manifest.Manager
	Parsers  *ast.ParserRegistry
}

// NewPipeline wires a scanner and parser registry into a Pipeline.
func NewPipeline(scanner *manifest.Manager, parsers *ast.ParserRegistry) *Pipeline {
	return &Pipeline{Scanner: scanner, Parsers: parsers}
}

// parsedFile bundles one file's scan + parse output, carried from Phase 1
// into Phase 2 without re-reading the file.
type parsedFile struct {
	path        string
	fingerprint uint64
	modMilli    int64
	result      *ast.ParseResult
}

// Run scans root, parses every matching file in parallel, resolves each
// file's ops (also in parallel, against a shared read-only ProjectContext),
// and applies the combined op stream to b in the single deterministic order
// Apply enforces. Per-file parse/resolve failures are recorded but do not
// abort the run (spec Section 7: "a single file's failure to parse never
// aborts a scan").
func (p *Pipeline) Run(ctx context.Context, root string, b *graphmodel.Builder) error {
	mf, err := p.Scanner.Scan(ctx, root)
	if err != nil {
		return err
	}

	projectCtx := ResolveBuildContext(root, mf)
	resolver := NewResolver(projectCtx)

	parsed, err := p.parseAll(ctx, root, mf)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	var ops []GraphOp
	g, gCtx := errgroup.WithContext(ctx)
	for _, pf := range parsed {
		pf := pf
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			fileOps := resolver.Resolve(pf.path, pf.fingerprint, pf.modMilli, pf.result)
			mu.Lock()
			ops = append(ops, GraphOp{Kind: OpRemoveNodesForPath, Path: pf.path})
			ops = append(ops, fileOps...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return Apply(b, ops)
}

// RunFiles re-parses and re-resolves exactly paths against b, instead of
// rescanning the whole project tree. This is update_files' primitive (spec
// Section 4.C): the Engine seeds b from the current Immutable via
// graphmodel.NewBuilderFrom, then calls RunFiles with the watcher- or
// caller-supplied paths that changed. A path no longer present on disk is
// still removed from b (its RemoveNodesForPath op still runs) but
// contributes no new nodes, which is how a deletion is represented.
func (p *Pipeline) RunFiles(ctx context.Context, root string, paths []string, b *graphmodel.Builder) error {
	parsed := make([]parsedFile, 0, len(paths))
	for _, path := range paths {
		full := filepath.Join(root, path)
		content, readErr := os.ReadFile(full)
		if readErr != nil {
			// Deleted or unreadable: still emit the remove-only op below,
			// but no parse result to resolve.
			parsed = append(parsed, parsedFile{path: path})
			continue
		}

		info, statErr := os.Stat(full)
		var modMilli int64
		if statErr == nil {
			modMilli = info.ModTime().UnixMilli()
		}

		parser, ok := p.Parsers.GetByExtension(filepath.Ext(path))
		if !ok {
			parsed = append(parsed, parsedFile{path: path, modMilli: modMilli})
			continue
		}

		res, parseErr := parser.Parse(ctx, content, path)
		if parseErr != nil {
			slog.Warn("discovery: parse fault, skipping file", slog.String("path", path), slog.String("error", parseErr.Error()))
			res = &ast.ParseResult{FilePath: path, Language: parser.Language(), Errors: []string{parseErr.Error()}}
		}
		hash := p.hasher().HashBytes(content)
		parsed = append(parsed, parsedFile{
			path:        path,
			fingerprint: fingerprintOf(hash),
			modMilli:    modMilli,
			result:      res,
		})
	}

	mf, err := p.Scanner.Scan(ctx, root)
	if err != nil {
		return err
	}
	projectCtx := ResolveBuildContext(root, mf)
	resolver := NewResolver(projectCtx)

	var ops []GraphOp
	for _, pf := range parsed {
		ops = append(ops, GraphOp{Kind: OpRemoveNodesForPath, Path: pf.path})
		if pf.result == nil {
			continue
		}
		ops = append(ops, resolver.Resolve(pf.path, pf.fingerprint, pf.modMilli, pf.result)...)
	}

	return Apply(b, ops)
}

// hasher returns the xxhash-backed Hasher used to fingerprint re-read file
// content without a second full-tree scan.
func (p *Pipeline) hasher() manifest.Hasher {
	return manifest.NewXXHasher(0)
}

// parseAll runs Phase 1 (read + parse) across a bounded worker pool, one
// goroutine per file capped at errgroup.SetLimit, mirroring the teacher's
// priority-group concurrency pattern.
func (p *Pipeline) parseAll(ctx context.Context, root string, mf *manifest.Manifest) ([]parsedFile, error) {
	paths := make([]string, 0, len(mf.Files))
	for path := range mf.Files {
		paths = append(paths, path)
	}

	results := make([]parsedFile, len(paths))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism())

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			entry := mf.Files[path]
			full := filepath.Join(root, path)
			content, readErr := os.ReadFile(full)
			if readErr != nil {
				slog.Warn("discovery: file read fault, skipping", slog.String("path", path), slog.String("error", readErr.Error()))
				results[i] = parsedFile{path: path, fingerprint: 0, result: &ast.ParseResult{FilePath: path, Errors: []string{readErr.Error()}}}
				return nil
			}

			parser, ok := p.Parsers.GetByExtension(filepath.Ext(path))
			if !ok {
				results[i] = parsedFile{path: path, modMilli: entry.Mtime}
				return nil
			}

			res, parseErr := parser.Parse(gCtx, content, path)
			if parseErr != nil {
				slog.Warn("discovery: parse fault, skipping file", slog.String("path", path), slog.String("error", parseErr.Error()))
				res = &ast.ParseResult{FilePath: path, Language: parser.Language(), Errors: []string{parseErr.Error()}}
			}
			results[i] = parsedFile{
				path:        path,
				fingerprint: fingerprintOf(entry.Hash),
				modMilli:    entry.Mtime,
				result:      res,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []parsedFile
	for _, r := range results {
		if r.result != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// parallelism caps Phase 1's worker pool at GOMAXPROCS, matching the
// teacher's maxParallelWorkers-style bound for CPU-bound fan-out.
func parallelism() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}

// fingerprintOf converts the manifest's hex-encoded content hash into the
// 64-bit fingerprint graphmodel.SourceFileRecord carries.
func fingerprintOf(hexHash string) uint64 {
	v, err := strconv.ParseUint(hexHash, 16, 64)
	if err != nil {
		return 0
	}
	return v
}
