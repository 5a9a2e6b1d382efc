// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package queryengine

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/biuld/naviscope/internal/ast"
	"github.com/biuld/naviscope/internal/graphmodel"
	"github.com/biuld/naviscope/internal/refs"
)

var tracer = otel.Tracer("naviscope.queryengine")

// Dispatcher runs Query DSL requests against a snapshot. It owns a
// refs.Finder (which needs the project root to re-read candidate files for
// Phase B), so one Dispatcher is scoped to one project, matching the
// Engine's own per-project scope.
type Dispatcher struct {
	Finder *refs.Finder
}

// New creates a Dispatcher rooted at the project directory refs queries
// resolve source positions against.
func New(root string) *Dispatcher {
	return &Dispatcher{Finder: refs.NewFinder(root)}
}

// Dispatch runs q against g and returns the kind-appropriate Result.
func (d *Dispatcher) Dispatch(ctx context.Context, g *graphmodel.Immutable, q Query) (Result, error) {
	ctx, span := tracer.Start(ctx, "queryengine.Dispatch", trace.WithAttributes(
		attribute.String("kind", q.Kind.String()),
	))
	defer span.End()

	switch q.Kind {
	case KindFind:
		return d.find(ctx, g, q)
	case KindLs:
		return d.ls(ctx, g, q)
	case KindCat:
		return d.cat(ctx, g, q)
	case KindDepsOut:
		return d.deps(ctx, g, q, graphmodel.DirectionOut)
	case KindDepsIn:
		return d.deps(ctx, g, q, graphmodel.DirectionIn)
	case KindRefs:
		return d.refs(ctx, g, q)
	default:
		span.RecordError(ErrUnknownKind)
		return Result{}, ErrUnknownKind
	}
}

func (d *Dispatcher) find(ctx context.Context, g *graphmodel.Immutable, q Query) (Result, error) {
	var matches []*graphmodel.Node
	for _, n := range g.AllNodes() {
		if q.Pattern != "" && !matchesPattern(n, q.Pattern) {
			continue
		}
		if !kindAllowed(n.Kind(), q.KindFilter) {
			continue
		}
		matches = append(matches, n)
	}
	summaries := summarize(matches)
	if q.Limit > 0 && len(summaries) > q.Limit {
		summaries = summaries[:q.Limit]
	}
	return Result{Summaries: summaries}, nil
}

func matchesPattern(n *graphmodel.Node, pattern string) bool {
	p := strings.ToLower(pattern)
	return strings.Contains(strings.ToLower(n.ShortName()), p) || strings.Contains(strings.ToLower(n.FQN), p)
}

func (d *Dispatcher) ls(ctx context.Context, g *graphmodel.Immutable, q Query) (Result, error) {
	if q.FQN == "" {
		return Result{}, ErrMalformedQuery
	}
	id, ok := g.FindByFQN(ctx, q.FQN)
	if !ok {
		return Result{}, ErrUnknownSymbol
	}
	var children []*graphmodel.Node
	for _, childID := range g.Neighbors(ctx, id, graphmodel.EdgeKindContains, graphmodel.DirectionOut) {
		n, ok := g.Node(childID)
		if !ok {
			continue
		}
		if !kindAllowed(n.Kind(), q.KindFilter) {
			continue
		}
		children = append(children, n)
	}
	return Result{Summaries: summarize(children)}, nil
}

func (d *Dispatcher) cat(ctx context.Context, g *graphmodel.Immutable, q Query) (Result, error) {
	if q.FQN == "" {
		return Result{}, ErrMalformedQuery
	}
	id, ok := g.FindByFQN(ctx, q.FQN)
	if !ok {
		return Result{}, ErrUnknownSymbol
	}
	n, ok := g.Node(id)
	if !ok {
		return Result{}, ErrUnknownSymbol
	}
	return Result{Detail: &NodeDetail{
		Summary: graphmodel.SummaryOf(n),
		Symbol:  n.Symbol,
		Build:   n.Build,
	}}, nil
}

func (d *Dispatcher) deps(ctx context.Context, g *graphmodel.Immutable, q Query, dir graphmodel.Direction) (Result, error) {
	if q.FQN == "" {
		return Result{}, ErrMalformedQuery
	}
	id, ok := g.FindByFQN(ctx, q.FQN)
	if !ok {
		return Result{}, ErrUnknownSymbol
	}
	var neighbors []*graphmodel.Node
	for _, neighborID := range g.Neighbors(ctx, id, q.EdgeFilter, dir) {
		if n, ok := g.Node(neighborID); ok {
			neighbors = append(neighbors, n)
		}
	}
	return Result{Summaries: summarize(neighbors)}, nil
}

func (d *Dispatcher) refs(ctx context.Context, g *graphmodel.Immutable, q Query) (Result, error) {
	target, err := d.resolveTarget(ctx, g, q)
	if err != nil {
		return Result{}, err
	}

	found, stats := d.Finder.Find(ctx, g, target)
	if stats.FilesFailed > 0 {
		slog.Warn("queryengine: refs query had candidate failures",
			slog.Int("files_failed", stats.FilesFailed),
			slog.Int("candidate_files", stats.CandidateFiles))
	}

	locations := make([]ast.Location, 0, len(found))
	for _, r := range found {
		locations = append(locations, r.Location)
	}
	return Result{References: locations}, nil
}

func (d *Dispatcher) resolveTarget(ctx context.Context, g *graphmodel.Immutable, q Query) (refs.Target, error) {
	var n *graphmodel.Node
	if q.Position != nil {
		resolved, ok := g.NodeAt(ctx, q.Position.FilePath, q.Position.StartLine, q.Position.StartCol)
		if !ok {
			return refs.Target{}, ErrUnresolvablePosition
		}
		n = resolved
	} else {
		if q.FQN == "" {
			return refs.Target{}, ErrMalformedQuery
		}
		id, ok := g.FindByFQN(ctx, q.FQN)
		if !ok {
			return refs.Target{}, ErrUnknownSymbol
		}
		resolved, ok := g.Node(id)
		if !ok {
			return refs.Target{}, ErrUnknownSymbol
		}
		n = resolved
	}

	receiver := ""
	if n.Symbol != nil {
		receiver = n.Symbol.Receiver
	}
	kind := n.Kind()
	return refs.Target{
		NodeID:   n.ID,
		FQN:      n.FQN,
		Kind:     kind,
		Intent:   refs.IntentFor(kind),
		Receiver: receiver,
	}, nil
}

func kindAllowed(kind ast.SymbolKind, filter []ast.SymbolKind) bool {
	if len(filter) == 0 {
		return true
	}
	for _, k := range filter {
		if k == kind {
			return true
		}
	}
	return false
}

// summarize builds node summaries ordered by (kind-priority, FQN), per spec
// Section 6. The symbol kind's declaration order in ast.SymbolKind's iota
// sequence is the priority ranking.
func summarize(nodes []*graphmodel.Node) []graphmodel.NodeSummary {
	out := make([]graphmodel.NodeSummary, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, graphmodel.SummaryOf(n))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].FQN < out[j].FQN
	})
	return out
}
