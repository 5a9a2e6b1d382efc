// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package refs

import (
	"context"
	"strings"

	"github.com/biuld/naviscope/internal/graphmodel"
)

// Checker is the language plugin's reference-checker contract: given a
// candidate node resolved at an occurrence position, decide whether it
// denotes the same logical symbol as target under language-specific
// semantics (subtype override, generic bridge, plain identity).
type Checker interface {
	IsReferenceTo(g *graphmodel.Immutable, candidateID string, target Target) bool
}

// DefaultChecker implements IsReferenceTo generically over the graph's
// InheritsFrom/Implements edges: a direct id match always counts, and a
// same-short-name candidate counts too when its declaring type sits on an
// inheritance or implementation chain with the target's receiver (handles
// overridden methods and the generic-bridge case: a reference through a
// bridge method counts as a reference to both the erased and specialized
// identity reachable via that chain).
type DefaultChecker struct{}

// IsReferenceTo reports whether candidateID denotes target.
func (DefaultChecker) IsReferenceTo(g *graphmodel.Immutable, candidateID string, target Target) bool {
	if candidateID == target.NodeID {
		return true
	}

	candidate, ok := g.Node(candidateID)
	if !ok {
		return false
	}
	if candidate.ShortName() != shortNameOf(target) {
		return false
	}
	if target.Receiver == "" {
		// Non-method target (type/field/generic): same short name elsewhere
		// in the project is a different symbol unless it's the literal id
		// match already handled above.
		return false
	}
	candidateReceiver := ""
	if candidate.Symbol != nil {
		candidateReceiver = candidate.Symbol.Receiver
	}
	if candidateReceiver == target.Receiver {
		return true
	}
	return relatedByInheritance(g, candidateReceiver, target.Receiver)
}

// relatedByInheritance walks InheritsFrom/Implements edges (in either
// direction, bounded depth) between two receiver type short names resolved
// to node ids sharing that name, to decide whether they sit on the same
// type hierarchy.
func relatedByInheritance(g *graphmodel.Immutable, a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	aIDs := nodeIDsForShortName(g, a)
	bIDs := nodeIDsForShortName(g, b)
	for _, aID := range aIDs {
		for _, bID := range bIDs {
			if reachable(g, aID, bID, graphmodel.EdgeKindInheritsFrom, 8) ||
				reachable(g, bID, aID, graphmodel.EdgeKindInheritsFrom, 8) ||
				reachable(g, aID, bID, graphmodel.EdgeKindImplements, 8) ||
				reachable(g, bID, aID, graphmodel.EdgeKindImplements, 8) {
				return true
			}
		}
	}
	return false
}

func nodeIDsForShortName(g *graphmodel.Immutable, name string) []string {
	var out []string
	for _, n := range g.NodesByName(context.Background(), name) {
		out = append(out, n.ID)
	}
	return out
}

func reachable(g *graphmodel.Immutable, from, to string, kind graphmodel.EdgeKind, maxDepth int) bool {
	if from == to {
		return true
	}
	frontier := []string{from}
	seen := map[string]struct{}{from: {}}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, neighbor := range g.Neighbors(context.Background(), id, kind, graphmodel.DirectionOut) {
				if neighbor == to {
					return true
				}
				if _, ok := seen[neighbor]; ok {
					continue
				}
				seen[neighbor] = struct{}{}
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return false
}

func shortNameOf(t Target) string {
	fqn := t.FQN
	idx := strings.LastIndex(fqn, "::")
	if idx < 0 {
		return fqn
	}
	return fqn[idx+2:]
}
