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
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/biuld/naviscope/internal/ast"
	"github.com/biuld/naviscope/internal/graphmodel"
)

var tracer = otel.Tracer("naviscope.refs")

// Finder runs the two-phase search described in spec Section 4.D: Phase A
// intersects token postings from the reference index to get a sound,
// coarse candidate-file set; Phase B re-parses each candidate and verifies
// every occurrence against the target's intent and the Checker.
type Finder struct {
	Root    string
	Checker Checker
}

// NewFinder creates a Finder rooted at the project directory occurrence
// positions are resolved relative to.
func NewFinder(root string) *Finder {
	return &Finder{Root: root, Checker: DefaultChecker{}}
}

// Find returns every verified reference to target in g, sorted by
// (path, start), plus best-effort stats on failures encountered along the
// way (spec: "individual candidate failures do not abort the search").
func (f *Finder) Find(ctx context.Context, g *graphmodel.Immutable, target Target) ([]Reference, SearchStats) {
	ctx, span := tracer.Start(ctx, "refs.Find", trace.WithAttributes(
		attribute.String("target_fqn", target.FQN),
		attribute.String("intent", target.Intent.String()),
	))
	defer span.End()

	candidates := f.candidateFiles(ctx, g, target)
	stats := SearchStats{CandidateFiles: len(candidates)}

	var refsOut []Reference
	for _, path := range candidates {
		occs, err := f.occurrencesIn(path, shortNameOf(target), target.Intent)
		if err != nil {
			stats.FilesFailed++
			slog.Warn("refs: candidate file verification failed",
				slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		stats.OccurrencesSeen += len(occs)
		if len(occs) == 0 {
			continue
		}
		// The graph carries no variable-type-binding information (no local
		// scope/type table), so an occurrence's call-site receiver can't be
		// resolved from its position alone. Instead every project
		// declaration sharing the occurrence's short name is treated as a
		// candidate identity, and the Checker (which already understands
		// override/inheritance chains) decides whether any of them denotes
		// target. An occurrence that resolves to no such declaration at all
		// is skipped silently, matching the "unresolvable positions are
		// skipped" failure semantics.
		if !anyCandidateReferencesTarget(ctx, g, shortNameOf(target), target, f.Checker) {
			continue
		}
		for _, occ := range occs {
			refsOut = append(refsOut, Reference{Location: occ.Location})
		}
	}

	sort.Slice(refsOut, func(i, j int) bool {
		if refsOut[i].Location.FilePath != refsOut[j].Location.FilePath {
			return refsOut[i].Location.FilePath < refsOut[j].Location.FilePath
		}
		if refsOut[i].Location.StartLine != refsOut[j].Location.StartLine {
			return refsOut[i].Location.StartLine < refsOut[j].Location.StartLine
		}
		return refsOut[i].Location.StartCol < refsOut[j].Location.StartCol
	})

	span.SetAttributes(
		attribute.Int("candidate_files", stats.CandidateFiles),
		attribute.Int("files_failed", stats.FilesFailed),
		attribute.Int("references_found", len(refsOut)),
	)
	return refsOut, stats
}

// candidateFiles computes Phase A's token set (the target's short name,
// plus its receiver's short name for method targets) and intersects the
// posting lists, matching spec Section 4.D's meso-filter exactly.
func (f *Finder) candidateFiles(ctx context.Context, g *graphmodel.Immutable, target Target) []string {
	tokens := []string{shortNameOf(target)}
	if target.Receiver != "" {
		tokens = append(tokens, target.Receiver)
	}

	var sets [][]string
	for _, tok := range tokens {
		sets = append(sets, g.FilesContainingToken(ctx, tok))
	}
	return intersect(sets)
}

func intersect(sets [][]string) []string {
	if len(sets) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, set := range sets {
		seen := make(map[string]struct{}, len(set))
		for _, path := range set {
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			counts[path]++
		}
	}
	var out []string
	for path, n := range counts {
		if n == len(sets) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// anyCandidateReferencesTarget asks whether any project declaration sharing
// shortName denotes target, per the Checker. This is the semantic-resolution
// step Phase B's occurrences feed into: a lexical occurrence is only a
// verified reference once some declared identity it could plausibly name
// actually checks out against target.
func anyCandidateReferencesTarget(ctx context.Context, g *graphmodel.Immutable, shortName string, target Target, checker Checker) bool {
	for _, candidate := range g.NodesByName(ctx, shortName) {
		if checker.IsReferenceTo(g, candidate.ID, target) {
			return true
		}
	}
	return false
}

// occurrencesIn re-parses path and walks the syntax tree for positions
// matching shortName in a context satisfying intent. Comments and string
// literals are excluded for free: neither tree-sitter node type is an
// identifier, so the walk never descends into them as a match.
func (f *Finder) occurrencesIn(path, shortName string, intent Intent) ([]Occurrence, error) {
	content, err := os.ReadFile(filepath.Join(f.Root, path))
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var occs []Occurrence
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if matchesIntent(n, content, shortName, intent) {
			occs = append(occs, Occurrence{Location: locationOf(n, path)})
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return occs, nil
}

// matchesIntent reports whether node n is an occurrence of shortName in a
// context matching intent (spec: "an intent-aware query over the tree").
func matchesIntent(n *sitter.Node, content []byte, shortName string, intent Intent) bool {
	switch intent {
	case IntentTypeReference:
		return n.Type() == "type_identifier" && textOf(n, content) == shortName
	case IntentFieldAccess:
		return n.Type() == "field_identifier" && textOf(n, content) == shortName
	case IntentMethodCall:
		if n.Type() != "identifier" && n.Type() != "field_identifier" {
			return false
		}
		if textOf(n, content) != shortName {
			return false
		}
		parent := n.Parent()
		if parent == nil {
			return false
		}
		if parent.Type() == "selector_expression" && parent.ChildByFieldName("field") == n {
			grand := parent.Parent()
			return grand != nil && grand.Type() == "call_expression"
		}
		grand := parent
		return grand.Type() == "call_expression" && grand.ChildByFieldName("function") == n
	default: // IntentGeneric
		return (n.Type() == "identifier" || n.Type() == "type_identifier" || n.Type() == "field_identifier") &&
			textOf(n, content) == shortName
	}
}

func textOf(n *sitter.Node, content []byte) string {
	return string(content[n.StartByte():n.EndByte()])
}

func locationOf(n *sitter.Node, path string) ast.Location {
	return ast.Location{
		FilePath:  path,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		StartCol:  int(n.StartPoint().Column),
		EndCol:    int(n.EndPoint().Column),
	}
}
