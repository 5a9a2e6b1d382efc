// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphmodel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/biuld/naviscope/internal/ast"
)

// Builder is a mutable draft derived from an Immutable graph (or from
// scratch), exclusively owned by one writer until seal() is called exactly
// once (spec Section 4.B).
//
// Builder is not safe for concurrent use; the Engine serializes all writers
// on its own writer-lock before handing work to a Builder.
type Builder struct {
	baseVersion uint32
	sealed      bool

	nodes map[string]*Node

	// edgeSet deduplicates on (src, dst, kind); edgeOrder preserves
	// insertion order for deterministic seal output.
	edgeSet   map[edgeKey]*Edge
	edgeOrder []edgeKey

	fileRecords map[string]*SourceFileRecord

	// dirtyPaths and dirtyTokens track what changed since the Builder was
	// seeded, the teacher's dirty_tracker.go pattern generalized from
	// "files needing re-parse" to "lookup-table keys touched by this
	// writer". DirtyPaths exposes the path set, but no component in this
	// module calls it; dirtyTokens has no accessor and is never read.
	dirtyPaths  map[string]struct{}
	dirtyTokens map[string]struct{}
}

// NewBuilder creates an empty Builder with no base version (version 0),
// used by a from-scratch rebuild().
func NewBuilder() *Builder {
	return newBuilderFrom(nil)
}

// NewBuilderFrom seeds a Builder from an existing Immutable graph: the
// builder starts with every node, edge, and file record of base, and tracks
// incremental changes from there. The maps are copied entry by entry up
// front; the Node, Edge, and SourceFileRecord values themselves are shared
// with base, not cloned.
func NewBuilderFrom(base *Immutable) *Builder {
	return newBuilderFrom(base)
}

func newBuilderFrom(base *Immutable) *Builder {
	b := &Builder{
		nodes:       make(map[string]*Node),
		edgeSet:     make(map[edgeKey]*Edge),
		fileRecords: make(map[string]*SourceFileRecord),
		dirtyPaths:  make(map[string]struct{}),
		dirtyTokens: make(map[string]struct{}),
	}
	if base == nil {
		return b
	}
	b.baseVersion = base.version
	for id, n := range base.nodes {
		b.nodes[id] = n
	}
	for _, edges := range base.outEdges {
		for _, e := range edges {
			k := edgeKey{from: e.From, to: e.To, kind: e.Kind}
			if _, exists := b.edgeSet[k]; !exists {
				b.edgeSet[k] = e
				b.edgeOrder = append(b.edgeOrder, k)
			}
		}
	}
	for path, rec := range base.fileRecords {
		b.fileRecords[path] = rec
	}
	return b
}

// DirtyPaths returns the file paths touched since this Builder was seeded,
// in no particular order, for callers that want to report what a seal
// actually changed without recomputing the diff themselves.
func (b *Builder) DirtyPaths() []string {
	out := make([]string, 0, len(b.dirtyPaths))
	for p := range b.dirtyPaths {
		out = append(out, p)
	}
	return out
}

// AddNode inserts or replaces the node for fqn. Idempotent on FQN: a second
// AddNode for the same FQN overwrites the prior payload but keeps the same
// node ID (the contract UpgradePlaceholder also relies on).
func (b *Builder) AddNode(n *Node) (string, error) {
	if b.sealed {
		return "", ErrGraphSealed
	}
	if n.FQN == "" {
		return "", ErrEmptyFQN
	}
	if n.ID == "" {
		n.ID = n.FQN
	}
	b.nodes[n.ID] = n
	b.markDirtyPath(n.OwnerPath)
	b.markDirtyToken(n.ShortName())
	return n.ID, nil
}

// AddEdge inserts a directed edge, deduplicating on (src, dst, kind).
// provenance is optional (pass nil when the relation has no single source
// range, e.g. a build-manifest-derived UsesDependency edge).
func (b *Builder) AddEdge(from, to string, kind EdgeKind, provenance *ast.Location) error {
	if b.sealed {
		return ErrGraphSealed
	}
	if _, ok := b.nodes[from]; !ok {
		return fmt.Errorf("%w: edge source %q", ErrNodeNotFound, from)
	}
	if _, ok := b.nodes[to]; !ok {
		return fmt.Errorf("%w: edge target %q", ErrNodeNotFound, to)
	}
	k := edgeKey{from: from, to: to, kind: kind}
	if _, exists := b.edgeSet[k]; exists {
		return nil
	}
	e := &Edge{From: from, To: to, Kind: kind, Location: provenance}
	b.edgeSet[k] = e
	b.edgeOrder = append(b.edgeOrder, k)
	return nil
}

// RemoveNodesForPath removes every node owned by path and all incident
// edges, then removes the path's file record entry (invariant 2,
// ownership).
func (b *Builder) RemoveNodesForPath(path string) {
	if b.sealed {
		return
	}
	rec, ok := b.fileRecords[path]
	if !ok {
		return
	}
	owned := make(map[string]struct{}, len(rec.OwnedNodeIDs))
	for _, id := range rec.OwnedNodeIDs {
		owned[id] = struct{}{}
		delete(b.nodes, id)
	}

	var kept []edgeKey
	for _, k := range b.edgeOrder {
		if _, gone := owned[k.from]; gone {
			continue
		}
		if _, gone := owned[k.to]; gone {
			continue
		}
		kept = append(kept, k)
	}
	for _, k := range b.edgeOrder {
		if _, stillKept := indexOf(kept, k); !stillKept {
			delete(b.edgeSet, k)
		}
	}
	b.edgeOrder = kept

	delete(b.fileRecords, path)
	b.markDirtyPath(path)
}

func indexOf(keys []edgeKey, k edgeKey) (int, bool) {
	for i, candidate := range keys {
		if candidate == k {
			return i, true
		}
	}
	return -1, false
}

// UpsertFile records (or replaces) the source file record for path.
func (b *Builder) UpsertFile(rec *SourceFileRecord) {
	if b.sealed {
		return
	}
	b.fileRecords[rec.Path] = rec
	b.markDirtyPath(rec.Path)
}

// UpgradePlaceholder replaces a Placeholder node's payload in place while
// keeping its node ID constant (invariant 1, FQN stability).
func (b *Builder) UpgradePlaceholder(fqn string, n *Node) error {
	if b.sealed {
		return ErrGraphSealed
	}
	var existing *Node
	var existingID string
	for id, candidate := range b.nodes {
		if candidate.FQN == fqn {
			existing = candidate
			existingID = id
			break
		}
	}
	if existing == nil {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, fqn)
	}
	if existing.Variant != NodeVariantPlaceholder {
		return fmt.Errorf("%w: %q", ErrPlaceholderKindMismatch, fqn)
	}
	n.ID = existingID
	n.FQN = fqn
	b.nodes[existingID] = n
	b.markDirtyToken(n.ShortName())
	return nil
}

func (b *Builder) markDirtyPath(path string) {
	if path != "" {
		b.dirtyPaths[path] = struct{}{}
	}
}

func (b *Builder) markDirtyToken(token string) {
	if token != "" {
		b.dirtyTokens[token] = struct{}{}
	}
}

// Seal builds fresh lookup tables from the Builder's current node/edge/file
// set, assigns the next version, and returns the new Immutable. Seal is the
// only way to produce an Immutable graph; calling it twice on the same
// Builder is an error.
//
// Every table is rebuilt from the Builder's full node, edge, and
// file-record set, seeded entries included, so the cost grows with the
// size of the whole graph, not with the number of paths touched since
// seeding. What NewBuilderFrom saves is re-parsing: it seeds nodes/edges
// by reference from the base Immutable.
func (b *Builder) Seal(ctx context.Context) (*Immutable, error) {
	if b.sealed {
		return nil, ErrGraphSealed
	}
	start := time.Now()
	b.sealed = true

	g := &Immutable{
		version:     b.baseVersion + 1,
		nodes:       b.nodes,
		outEdges:    make(map[string][]*Edge),
		inEdges:     make(map[string][]*Edge),
		fqnIndex:    make(map[string]string, len(b.nodes)),
		nameIndex:   make(map[string][]string),
		pathIndex:   make(map[string][]string),
		tokenIndex:  make(map[string][]string),
		fileRecords: b.fileRecords,
		pathRanges:  make(map[string][]nodeRange),
	}

	for _, k := range b.edgeOrder {
		e := b.edgeSet[k]
		g.outEdges[e.From] = append(g.outEdges[e.From], e)
		g.inEdges[e.To] = append(g.inEdges[e.To], e)
	}

	for id, n := range b.nodes {
		g.fqnIndex[n.FQN] = id
		name := n.ShortName()
		g.nameIndex[name] = append(g.nameIndex[name], id)
		if n.OwnerPath != "" {
			g.pathIndex[n.OwnerPath] = append(g.pathIndex[n.OwnerPath], id)
		}
		if n.Symbol != nil && n.Symbol.Location.FilePath != "" {
			g.pathRanges[n.Symbol.Location.FilePath] = append(
				g.pathRanges[n.Symbol.Location.FilePath],
				nodeRange{nodeID: id, loc: n.Symbol.Location},
			)
		}
	}

	// The reference index is built from each file's full lexical token set
	// (every identifier occurrence, not just declaration sites): Phase A's
	// meso-filter must be sound over call sites and other uses, which never
	// show up if tokenIndex only records where a symbol is *declared*.
	for path, rec := range b.fileRecords {
		for _, tok := range rec.Tokens {
			g.tokenIndex[tok] = appendUniquePath(g.tokenIndex[tok], path)
		}
	}

	for path, ranges := range g.pathRanges {
		sort.Slice(ranges, func(i, j int) bool {
			if ranges[i].loc.StartLine != ranges[j].loc.StartLine {
				return ranges[i].loc.StartLine < ranges[j].loc.StartLine
			}
			return ranges[i].loc.StartCol < ranges[j].loc.StartCol
		})
		g.pathRanges[path] = ranges
	}

	recordSeal(ctx, time.Since(start), g.version)
	return g, nil
}

func appendUniquePath(paths []string, path string) []string {
	if path == "" {
		return paths
	}
	for _, p := range paths {
		if p == path {
			return paths
		}
	}
	return append(paths, path)
}
