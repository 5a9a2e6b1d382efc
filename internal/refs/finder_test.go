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
	"os"
	"path/filepath"
	"testing"

	"github.com/biuld/naviscope/internal/ast"
	"github.com/biuld/naviscope/internal/graphmodel"
)

const saveDeclSource = `package demo

func Save() error {
	return nil
}
`

const saveCallSource = `package demo

func Run() {
	Save()
}
`

// saveCommentSource mentions "Save" only inside a comment: a file Phase A's
// coarse token filter might (in a more naive indexer) still admit, which
// Phase B's syntax-aware walk must then exclude since a comment is not an
// identifier node.
const saveCommentSource = `package demo

// see Save for details
func Other() {}
`

func writeFile(t *testing.T, root, path, content string) {
	t.Helper()
	full := filepath.Join(root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestFinder_TwoPhaseNarrowsToVerifiedCallSite(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "s.go", saveDeclSource)
	writeFile(t, root, "caller.go", saveCallSource)
	writeFile(t, root, "comment.go", saveCommentSource)

	b := graphmodel.NewBuilder()
	saveID := "demo::pkg::Save"
	b.AddNode(&graphmodel.Node{
		ID:        saveID,
		FQN:       saveID,
		Variant:   graphmodel.NodeVariantCode,
		OwnerPath: "s.go",
		Symbol: &ast.Symbol{
			Name:     "Save",
			Kind:     ast.SymbolKindFunction,
			Location: ast.Location{FilePath: "s.go", StartLine: 3, EndLine: 5},
		},
	})
	b.UpsertFile(&graphmodel.SourceFileRecord{Path: "s.go", OwnedNodeIDs: []string{saveID}, Tokens: []string{"Save"}})
	b.UpsertFile(&graphmodel.SourceFileRecord{Path: "caller.go", Tokens: []string{"Save", "Run"}})
	// comment.go's Tokens is populated as if a coarser indexer admitted it;
	// the real lexical extractor would never produce this since "Save" only
	// ever appears inside a comment there.
	b.UpsertFile(&graphmodel.SourceFileRecord{Path: "comment.go", Tokens: []string{"Save", "Other"}})

	g, err := b.Seal(context.Background())
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	finder := NewFinder(root)
	target := Target{NodeID: saveID, FQN: saveID, Kind: ast.SymbolKindFunction, Intent: IntentFor(ast.SymbolKindFunction)}

	refsFound, stats := finder.Find(context.Background(), g, target)

	if stats.CandidateFiles != 3 {
		t.Errorf("CandidateFiles = %d, want 3 (Phase A is sound but coarse)", stats.CandidateFiles)
	}
	if len(refsFound) != 1 {
		t.Fatalf("len(refs) = %d, want 1 (only the call site survives Phase B)", len(refsFound))
	}
	if refsFound[0].Location.FilePath != "caller.go" {
		t.Errorf("reference found in %q, want caller.go", refsFound[0].Location.FilePath)
	}
}

func TestFinder_CandidateFilesIntersectsReceiverToken(t *testing.T) {
	root := t.TempDir()

	b := graphmodel.NewBuilder()
	methodID := "demo::pkg::Greeter::Save"
	b.AddNode(&graphmodel.Node{
		ID:      methodID,
		FQN:     methodID,
		Variant: graphmodel.NodeVariantCode,
		Symbol: &ast.Symbol{
			Name:     "Save",
			Kind:     ast.SymbolKindMethod,
			Receiver: "Greeter",
		},
	})
	b.UpsertFile(&graphmodel.SourceFileRecord{Path: "both.go", Tokens: []string{"Save", "Greeter"}})
	b.UpsertFile(&graphmodel.SourceFileRecord{Path: "save_only.go", Tokens: []string{"Save"}})
	b.UpsertFile(&graphmodel.SourceFileRecord{Path: "greeter_only.go", Tokens: []string{"Greeter"}})

	g, _ := b.Seal(context.Background())

	finder := NewFinder(root)
	target := Target{NodeID: methodID, FQN: methodID, Kind: ast.SymbolKindMethod, Receiver: "Greeter"}

	candidates := finder.candidateFiles(context.Background(), g, target)
	if len(candidates) != 1 || candidates[0] != "both.go" {
		t.Errorf("candidateFiles = %v, want [both.go] (must carry both the method and receiver tokens)", candidates)
	}
}

func TestFinder_FailedCandidateDoesNotAbortSearch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "caller.go", saveCallSource)
	// "missing.go" is indexed but deleted from disk between scan and query,
	// simulating a stale candidate the search must tolerate.

	b := graphmodel.NewBuilder()
	saveID := "demo::pkg::Save"
	b.AddNode(&graphmodel.Node{
		ID:      saveID,
		FQN:     saveID,
		Variant: graphmodel.NodeVariantCode,
		Symbol:  &ast.Symbol{Name: "Save", Kind: ast.SymbolKindFunction},
	})
	b.UpsertFile(&graphmodel.SourceFileRecord{Path: "caller.go", Tokens: []string{"Save"}})
	b.UpsertFile(&graphmodel.SourceFileRecord{Path: "missing.go", Tokens: []string{"Save"}})

	g, _ := b.Seal(context.Background())

	finder := NewFinder(root)
	target := Target{NodeID: saveID, FQN: saveID, Kind: ast.SymbolKindFunction, Intent: IntentFor(ast.SymbolKindFunction)}

	refsFound, stats := finder.Find(context.Background(), g, target)

	if stats.FilesFailed != 1 {
		t.Errorf("FilesFailed = %d, want 1", stats.FilesFailed)
	}
	if len(refsFound) != 1 || refsFound[0].Location.FilePath != "caller.go" {
		t.Errorf("refs = %v, want the caller.go reference despite missing.go failing", refsFound)
	}
}
