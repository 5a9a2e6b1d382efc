// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package refs implements two-phase reference discovery: a sound-but-coarse
// meso-level token filter over the reference index (Phase A), followed by a
// micro-level, intent-aware syntax verification pass over each candidate
// file (Phase B). This is the subsystem that makes the tokenIndex in
// graphmodel worth building.
package refs

import "github.com/biuld/naviscope/internal/ast"

// Intent narrows which syntactic contexts Phase B treats as a candidate
// occurrence, selected by the target symbol's kind.
type Intent int

const (
	// IntentMethodCall matches call sites: plain calls and selector calls.
	IntentMethodCall Intent = iota

	// IntentTypeReference matches type-identifier positions.
	IntentTypeReference

	// IntentFieldAccess matches the field position of a selector expression.
	IntentFieldAccess

	// IntentGeneric matches any identifier occurrence of the short name.
	IntentGeneric
)

func (i Intent) String() string {
	switch i {
	case IntentMethodCall:
		return "method-call"
	case IntentTypeReference:
		return "type-reference"
	case IntentFieldAccess:
		return "field-access"
	default:
		return "generic"
	}
}

// IntentFor selects the intent a target's symbol kind implies.
func IntentFor(kind ast.SymbolKind) Intent {
	switch kind {
	case ast.SymbolKindMethod, ast.SymbolKindFunction, ast.SymbolKindConstructor:
		return IntentMethodCall
	case ast.SymbolKindStruct, ast.SymbolKindInterface, ast.SymbolKindEnum:
		return IntentTypeReference
	case ast.SymbolKindField:
		return IntentFieldAccess
	default:
		return IntentGeneric
	}
}

// Target is the resolution being searched for: the node id plus the
// metadata Phase A's token-set construction and Phase B's intent selection
// need.
type Target struct {
	NodeID   string
	FQN      string
	Kind     ast.SymbolKind
	Intent   Intent
	Receiver string // containing type's short name, for method targets
}

// Occurrence is one syntax-level hit within a candidate file, before
// semantic resolution and the reference check.
type Occurrence struct {
	Location ast.Location
}

// Reference is a verified occurrence: a location that resolves to a node
// satisfying IsReferenceTo(candidate, target).
type Reference struct {
	Location ast.Location
}

// SearchStats reports best-effort counters for the caller to log, per the
// spec's "individual candidate failures do not abort the search; they are
// counted and logged" failure semantics.
type SearchStats struct {
	CandidateFiles int
	FilesFailed    int
	OccurrencesSeen int
}
