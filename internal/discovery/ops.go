// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package discovery implements the indexing pipeline: scan, parse, resolve,
// and apply (spec Section 4.D). Resolvers never touch the live graph; they
// emit a GraphOp stream that a single Apply call later replays into a
// graphmodel.Builder in strict phase order.
package discovery

import (
	"log/slog"

	"github.com/biuld/naviscope/internal/ast"
	"github.com/biuld/naviscope/internal/graphmodel"
)

// OpKind tags which Builder mutation a GraphOp represents.
type OpKind int

const (
	OpAddNode OpKind = iota
	OpAddEdge
	OpRemoveNodesForPath
	OpUpsertFile
	OpUpgradePlaceholder
)

// GraphOp is a single idempotent instruction produced by a language
// resolver and replayed, in strict order, during Phase 3 (spec: "remove-file
// ops first, then node additions... then edge additions, then file
// upserts").
type GraphOp struct {
	Kind OpKind

	// Node is set for OpAddNode and OpUpgradePlaceholder.
	Node *graphmodel.Node

	// UpgradeFQN is set for OpUpgradePlaceholder; Node carries the new payload.
	UpgradeFQN string

	// EdgeFrom/EdgeTo/EdgeKind/EdgeProvenance are set for OpAddEdge.
	EdgeFrom       string
	EdgeTo         string
	EdgeKind       graphmodel.EdgeKind
	EdgeProvenance *ast.Location

	// Path is set for OpRemoveNodesForPath and OpUpsertFile.
	Path string

	// FileRecord is set for OpUpsertFile.
	FileRecord *graphmodel.SourceFileRecord
}

// phaseRank orders ops the way Apply must replay them: removals, then
// node additions (including placeholder upgrades, which act like adds),
// then edges, then file upserts. Ops within the same phase keep their
// relative (resolver-emitted) order, matching the spec's "across files the
// order is unspecified; apply must be commutative modulo this phase order."
func (k OpKind) phaseRank() int {
	switch k {
	case OpRemoveNodesForPath:
		return 0
	case OpAddNode, OpUpgradePlaceholder:
		return 1
	case OpAddEdge:
		return 2
	case OpUpsertFile:
		return 3
	default:
		return 4
	}
}

// Apply replays ops into b in the deterministic phase order required by
// spec Section 4.D's Phase 3: remove-file ops first, then node additions (so
// edges find their endpoints), then edge additions, then file upserts.
// Apply is linear in op count (one pass to group ops by phase, one pass to
// replay them).
func Apply(b *graphmodel.Builder, ops []GraphOp) error {
	var phases [5][]GraphOp
	for _, op := range ops {
		rank := op.Kind.phaseRank()
		phases[rank] = append(phases[rank], op)
	}
	ordered := make([]GraphOp, 0, len(ops))
	for _, phase := range phases {
		ordered = append(ordered, phase...)
	}

	for _, op := range ordered {
		switch op.Kind {
		case OpRemoveNodesForPath:
			b.RemoveNodesForPath(op.Path)
		case OpAddNode:
			if _, err := b.AddNode(op.Node); err != nil {
				return err
			}
		case OpUpgradePlaceholder:
			if err := b.UpgradePlaceholder(op.UpgradeFQN, op.Node); err != nil {
				return err
			}
		case OpAddEdge:
			// A missing endpoint here is an invariant violation, not a fatal
			// fault (spec Section 7): a resolver may emit TypedAs edges to
			// bare type names (builtins, unqualified locals) that never get
			// a node. Drop the edge and keep applying the rest of the batch.
			if err := b.AddEdge(op.EdgeFrom, op.EdgeTo, op.EdgeKind, op.EdgeProvenance); err != nil {
				slog.Warn("discovery: dropping edge, endpoint missing at apply time",
					slog.String("from", op.EdgeFrom), slog.String("to", op.EdgeTo),
					slog.String("kind", op.EdgeKind.String()), slog.String("error", err.Error()))
			}
		case OpUpsertFile:
			b.UpsertFile(op.FileRecord)
		}
	}
	return nil
}
