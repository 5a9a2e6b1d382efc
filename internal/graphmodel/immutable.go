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
	"sort"
	"time"

	"github.com/biuld/naviscope/internal/ast"
)

// nodeRange pairs a node ID with the source range it occupies, used by the
// per-path sorted index that backs node_at.
type nodeRange struct {
	nodeID string
	loc    ast.Location
}

// Immutable is a sealed, read-only code knowledge graph value (spec Section
// 4.A). It is produced exclusively by Builder.seal() and is safe for
// concurrent reads from any number of goroutines: nothing about it changes
// after construction (invariant 4, "immutability post-seal").
type Immutable struct {
	version uint32

	nodes map[string]*Node

	// outEdges/inEdges index edges by node ID for neighbors(), which
	// filters by kind on each call.
	outEdges map[string][]*Edge
	inEdges  map[string][]*Edge

	fqnIndex  map[string]string   // fqn -> node ID (unique)
	nameIndex map[string][]string // short name -> []node ID (multi-valued)
	pathIndex map[string][]string // path -> []node ID owned by that file

	// tokenIndex is the reference index: lexical token -> every path whose
	// source contains that token (spec: "token -> [path]").
	tokenIndex map[string][]string

	fileRecords map[string]*SourceFileRecord

	// pathRanges holds, per path, the owned nodes sorted by range start;
	// node_at binary-searches it, then scans the earlier ranges.
	pathRanges map[string][]nodeRange
}

// Version returns the strictly increasing sequence number assigned at seal time.
func (g *Immutable) Version() uint32 { return g.version }

// FindByFQN resolves a fully-qualified name to its node ID. O(1) expected.
func (g *Immutable) FindByFQN(ctx context.Context, fqn string) (string, bool) {
	start := time.Now()
	_, span := startQuerySpan(ctx, "find_by_fqn")
	defer span.End()
	defer func() { recordQuery(ctx, "find_by_fqn", time.Since(start)) }()

	id, ok := g.fqnIndex[fqn]
	return id, ok
}

// Node returns the node for a given ID, if present.
func (g *Immutable) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodesByName resolves a short (unqualified) name to every node sharing it
// (overloads, same name in different packages). O(1) expected + O(k) to read.
func (g *Immutable) NodesByName(ctx context.Context, name string) []*Node {
	start := time.Now()
	_, span := startQuerySpan(ctx, "nodes_by_name")
	defer span.End()
	defer func() { recordQuery(ctx, "nodes_by_name", time.Since(start)) }()

	ids := g.nameIndex[name]
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// NodeAt resolves a source position to the narrowest node whose range
// contains it, ranked by range width when several contain it. A binary
// search (O(log n)) finds the ranges starting at or before the position,
// and every one of those is then checked, so a lookup near the end of a
// file visits most of the path's node list.
func (g *Immutable) NodeAt(ctx context.Context, path string, line, column int) (*Node, bool) {
	start := time.Now()
	_, span := startQuerySpan(ctx, "node_at")
	defer span.End()
	defer func() { recordQuery(ctx, "node_at", time.Since(start)) }()

	ranges := g.pathRanges[path]
	if len(ranges) == 0 {
		return nil, false
	}

	target := ast.Location{FilePath: path, StartLine: line, StartCol: column, EndLine: line, EndCol: column}

	// ranges is sorted by start position ascending. Every range that could
	// contain target starts at or before it, so the binary search finds the
	// boundary and the search for a containing (and narrowest) range only
	// needs to scan backward from there.
	idx := sort.Search(len(ranges), func(i int) bool {
		r := ranges[i].loc
		if r.StartLine != line {
			return r.StartLine > line
		}
		return r.StartCol > column
	})

	var best *nodeRange
	for i := idx - 1; i >= 0; i-- {
		r := ranges[i]
		if !r.loc.Contains(target) {
			continue
		}
		if best == nil || r.loc.Width() < best.loc.Width() {
			best = &ranges[i]
		}
	}
	if best == nil {
		return nil, false
	}
	n, ok := g.nodes[best.nodeID]
	return n, ok
}

// Neighbors returns nodes reachable from id across edges of the given kind
// in the given direction. An EdgeKindUnknown filter matches every kind.
func (g *Immutable) Neighbors(ctx context.Context, id string, kind EdgeKind, dir Direction) []string {
	start := time.Now()
	_, span := startQuerySpan(ctx, "neighbors")
	defer span.End()
	defer func() { recordQuery(ctx, "neighbors", time.Since(start)) }()

	var edges []*Edge
	if dir == DirectionOut {
		edges = g.outEdges[id]
	} else {
		edges = g.inEdges[id]
	}

	out := make([]string, 0, len(edges))
	for _, e := range edges {
		if kind != EdgeKindUnknown && e.Kind != kind {
			continue
		}
		if dir == DirectionOut {
			out = append(out, e.To)
		} else {
			out = append(out, e.From)
		}
	}
	return out
}

// FilesContainingToken returns every path whose source contains the given
// lexical token, per the reference index.
func (g *Immutable) FilesContainingToken(ctx context.Context, token string) []string {
	start := time.Now()
	_, span := startQuerySpan(ctx, "files_containing_token")
	defer span.End()
	defer func() { recordQuery(ctx, "files_containing_token", time.Since(start)) }()

	return g.tokenIndex[token]
}

// FileRecord returns the source file record for path, if indexed.
func (g *Immutable) FileRecord(path string) (*SourceFileRecord, bool) {
	r, ok := g.fileRecords[path]
	return r, ok
}

// AllNodes returns every node in the graph, in no particular order. Used by
// internal/storage to serialize a full snapshot.
func (g *Immutable) AllNodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// AllEdges returns every edge in the graph, in no particular order. Used by
// internal/storage to serialize a full snapshot.
func (g *Immutable) AllEdges() []*Edge {
	out := make([]*Edge, 0, g.EdgeCount())
	for _, edges := range g.outEdges {
		out = append(out, edges...)
	}
	return out
}

// AllFileRecords returns every source file record in the graph, in no
// particular order. Used by internal/storage to serialize a full snapshot.
func (g *Immutable) AllFileRecords() []*SourceFileRecord {
	out := make([]*SourceFileRecord, 0, len(g.fileRecords))
	for _, rec := range g.fileRecords {
		out = append(out, rec)
	}
	return out
}

// NodeCount returns the total number of nodes in the graph.
func (g *Immutable) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the total number of edges in the graph.
func (g *Immutable) EdgeCount() int {
	total := 0
	for _, edges := range g.outEdges {
		total += len(edges)
	}
	return total
}
