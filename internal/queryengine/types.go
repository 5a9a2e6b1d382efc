// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package queryengine implements the thin Query DSL dispatcher named in
// spec Section 4.E: it takes a graphmodel.Immutable snapshot plus a Query
// value and runs one of the six fixed query kinds, so the shell, LSP, and
// MCP collaborators share one code path instead of each re-implementing
// graph traversal.
package queryengine

import (
	"github.com/biuld/naviscope/internal/ast"
	"github.com/biuld/naviscope/internal/graphmodel"
)

// Kind tags which of the six fixed query shapes a Query represents (spec
// Section 6's Query DSL table).
type Kind int

const (
	KindFind Kind = iota
	KindLs
	KindCat
	KindDepsOut
	KindDepsIn
	KindRefs
)

func (k Kind) String() string {
	switch k {
	case KindFind:
		return "find"
	case KindLs:
		return "ls"
	case KindCat:
		return "cat"
	case KindDepsOut:
		return "deps-out"
	case KindDepsIn:
		return "deps-in"
	case KindRefs:
		return "refs"
	default:
		return "unknown"
	}
}

// Query is the tagged-structure request every dispatch call receives. Only
// the fields relevant to Kind are read; the rest are ignored.
type Query struct {
	Kind Kind

	// Pattern is find's substring/prefix match against short name or FQN.
	Pattern string

	// KindFilter narrows find/ls results to these symbol kinds; empty means
	// no filter.
	KindFilter []ast.SymbolKind

	// Limit caps find's result count; zero means unlimited.
	Limit int

	// FQN addresses ls/cat/deps-out/deps-in, and refs when Position is unset.
	FQN string

	// EdgeFilter narrows deps-out/deps-in to one edge kind;
	// graphmodel.EdgeKindUnknown means no filter.
	EdgeFilter graphmodel.EdgeKind

	// Position addresses refs by source position instead of FQN ("FQN or
	// position" per spec Section 6). FilePath/StartLine/StartCol are read;
	// the rest of the ast.Location is ignored.
	Position *ast.Location
}

// NodeDetail is cat's full node payload plus source range.
type NodeDetail struct {
	Summary graphmodel.NodeSummary
	Symbol  *ast.Symbol
	Build   *graphmodel.BuildPayload
}

// Result carries exactly the fields populated for q.Kind; the rest are nil/empty.
type Result struct {
	Summaries  []graphmodel.NodeSummary
	Detail     *NodeDetail
	References []ast.Location
}
