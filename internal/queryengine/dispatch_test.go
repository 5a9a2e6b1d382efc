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
	"os"
	"path/filepath"
	"testing"

	"github.com/biuld/naviscope/internal/ast"
	"github.com/biuld/naviscope/internal/graphmodel"
)

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

const pkgSource = `package demo

type Widget struct {
	Name string
}

func NewWidget() *Widget {
	return &Widget{}
}

func UseWidget() {
	w := NewWidget()
	_ = w
}
`

// seededGraph builds a small graph: a package node containing a struct
// (Widget) and two functions (NewWidget, UseWidget), with NewWidget
// depending on Widget via EdgeKindTypedAs.
func seededGraph(t *testing.T) *graphmodel.Immutable {
	t.Helper()
	b := graphmodel.NewBuilder()

	pkgID := "demo::pkg"
	widgetID := "demo::pkg::Widget"
	newWidgetID := "demo::pkg::NewWidget"
	useWidgetID := "demo::pkg::UseWidget"

	must := func(_ string, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("AddNode/AddEdge: %v", err)
		}
	}

	must(b.AddNode(&graphmodel.Node{
		ID:        pkgID,
		FQN:       pkgID,
		Variant:   graphmodel.NodeVariantCode,
		OwnerPath: "widget.go",
		Symbol: &ast.Symbol{
			Name: "pkg",
			Kind: ast.SymbolKindPackage,
		},
	}))
	must(b.AddNode(&graphmodel.Node{
		ID:        widgetID,
		FQN:       widgetID,
		Variant:   graphmodel.NodeVariantCode,
		OwnerPath: "widget.go",
		Symbol: &ast.Symbol{
			Name:     "Widget",
			Kind:     ast.SymbolKindStruct,
			Location: ast.Location{FilePath: "widget.go", StartLine: 3, EndLine: 5},
		},
	}))
	must(b.AddNode(&graphmodel.Node{
		ID:        newWidgetID,
		FQN:       newWidgetID,
		Variant:   graphmodel.NodeVariantCode,
		OwnerPath: "widget.go",
		Symbol: &ast.Symbol{
			Name:     "NewWidget",
			Kind:     ast.SymbolKindFunction,
			Location: ast.Location{FilePath: "widget.go", StartLine: 7, EndLine: 9},
		},
	}))
	must(b.AddNode(&graphmodel.Node{
		ID:        useWidgetID,
		FQN:       useWidgetID,
		Variant:   graphmodel.NodeVariantCode,
		OwnerPath: "widget.go",
		Symbol: &ast.Symbol{
			Name:     "UseWidget",
			Kind:     ast.SymbolKindFunction,
			Location: ast.Location{FilePath: "widget.go", StartLine: 11, EndLine: 14},
		},
	}))

	must("", b.AddEdge(pkgID, widgetID, graphmodel.EdgeKindContains, nil))
	must("", b.AddEdge(pkgID, newWidgetID, graphmodel.EdgeKindContains, nil))
	must("", b.AddEdge(pkgID, useWidgetID, graphmodel.EdgeKindContains, nil))
	must("", b.AddEdge(newWidgetID, widgetID, graphmodel.EdgeKindTypedAs, nil))

	b.UpsertFile(&graphmodel.SourceFileRecord{
		Path:         "widget.go",
		OwnedNodeIDs: []string{pkgID, widgetID, newWidgetID, useWidgetID},
		Tokens:       []string{"Widget", "NewWidget", "UseWidget", "w"},
	})

	g, err := b.Seal(context.Background())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	return g
}

func TestDispatch_Find(t *testing.T) {
	g := seededGraph(t)
	d := New(t.TempDir())

	res, err := d.Dispatch(context.Background(), g, Query{Kind: KindFind, Pattern: "widget"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	// "widget" substring-matches Widget, NewWidget, and UseWidget.
	if len(res.Summaries) != 3 {
		t.Fatalf("Summaries = %d, want 3 (NewWidget, UseWidget, Widget)", len(res.Summaries))
	}
	// Function (lower SymbolKind ordinal) sorts before Struct; ties break by FQN.
	if res.Summaries[0].FQN != "demo::pkg::NewWidget" {
		t.Errorf("Summaries[0].FQN = %q, want demo::pkg::NewWidget", res.Summaries[0].FQN)
	}
	if res.Summaries[len(res.Summaries)-1].FQN != "demo::pkg::Widget" {
		t.Errorf("Summaries[last].FQN = %q, want demo::pkg::Widget", res.Summaries[len(res.Summaries)-1].FQN)
	}
}

func TestDispatch_Find_LimitsResults(t *testing.T) {
	g := seededGraph(t)
	d := New(t.TempDir())

	res, err := d.Dispatch(context.Background(), g, Query{Kind: KindFind, Limit: 1})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(res.Summaries) != 1 {
		t.Fatalf("Summaries = %d, want 1", len(res.Summaries))
	}
}

func TestDispatch_Ls(t *testing.T) {
	g := seededGraph(t)
	d := New(t.TempDir())

	res, err := d.Dispatch(context.Background(), g, Query{Kind: KindLs, FQN: "demo::pkg"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(res.Summaries) != 3 {
		t.Fatalf("Summaries = %d, want 3 children of demo::pkg", len(res.Summaries))
	}
}

func TestDispatch_Ls_UnknownSymbol(t *testing.T) {
	g := seededGraph(t)
	d := New(t.TempDir())

	_, err := d.Dispatch(context.Background(), g, Query{Kind: KindLs, FQN: "demo::pkg::Nope"})
	if err != ErrUnknownSymbol {
		t.Fatalf("err = %v, want ErrUnknownSymbol", err)
	}
}

func TestDispatch_Cat(t *testing.T) {
	g := seededGraph(t)
	d := New(t.TempDir())

	res, err := d.Dispatch(context.Background(), g, Query{Kind: KindCat, FQN: "demo::pkg::Widget"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Detail == nil {
		t.Fatal("Detail = nil")
	}
	if res.Detail.Summary.FQN != "demo::pkg::Widget" {
		t.Errorf("Detail.Summary.FQN = %q", res.Detail.Summary.FQN)
	}
	if res.Detail.Symbol == nil || res.Detail.Symbol.Location.StartLine != 3 {
		t.Errorf("Detail.Symbol.Location = %+v, want StartLine 3", res.Detail.Symbol)
	}
}

func TestDispatch_DepsOut(t *testing.T) {
	g := seededGraph(t)
	d := New(t.TempDir())

	res, err := d.Dispatch(context.Background(), g, Query{
		Kind: KindDepsOut, FQN: "demo::pkg::NewWidget", EdgeFilter: graphmodel.EdgeKindTypedAs,
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(res.Summaries) != 1 || res.Summaries[0].FQN != "demo::pkg::Widget" {
		t.Fatalf("Summaries = %+v, want [demo::pkg::Widget]", res.Summaries)
	}
}

func TestDispatch_DepsIn(t *testing.T) {
	g := seededGraph(t)
	d := New(t.TempDir())

	res, err := d.Dispatch(context.Background(), g, Query{
		Kind: KindDepsIn, FQN: "demo::pkg::Widget", EdgeFilter: graphmodel.EdgeKindTypedAs,
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(res.Summaries) != 1 || res.Summaries[0].FQN != "demo::pkg::NewWidget" {
		t.Fatalf("Summaries = %+v, want [demo::pkg::NewWidget]", res.Summaries)
	}
}

func TestDispatch_Refs_ByFQN(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "widget.go", pkgSource)
	g := seededGraph(t)
	d := New(root)

	res, err := d.Dispatch(context.Background(), g, Query{Kind: KindRefs, FQN: "demo::pkg::Widget"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(res.References) == 0 {
		t.Fatal("References is empty, want at least the NewWidget call site")
	}
}

func TestDispatch_Refs_ByPosition(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "widget.go", pkgSource)
	g := seededGraph(t)
	d := New(root)

	res, err := d.Dispatch(context.Background(), g, Query{
		Kind: KindRefs,
		Position: &ast.Location{FilePath: "widget.go", StartLine: 3},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(res.References) == 0 {
		t.Fatal("References is empty, want at least the NewWidget call site")
	}
}

func TestDispatch_Refs_UnresolvablePosition(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "widget.go", pkgSource)
	g := seededGraph(t)
	d := New(root)

	_, err := d.Dispatch(context.Background(), g, Query{
		Kind:     KindRefs,
		Position: &ast.Location{FilePath: "widget.go", StartLine: 9999},
	})
	if err != ErrUnresolvablePosition {
		t.Fatalf("err = %v, want ErrUnresolvablePosition", err)
	}
}

func TestDispatch_UnknownKind(t *testing.T) {
	g := seededGraph(t)
	d := New(t.TempDir())

	_, err := d.Dispatch(context.Background(), g, Query{Kind: Kind(99)})
	if err != ErrUnknownKind {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

func TestDispatch_MalformedQuery(t *testing.T) {
	g := seededGraph(t)
	d := New(t.TempDir())

	for _, kind := range []Kind{KindLs, KindCat, KindDepsOut, KindDepsIn, KindRefs} {
		_, err := d.Dispatch(context.Background(), g, Query{Kind: kind})
		if err != ErrMalformedQuery {
			t.Errorf("kind %v: err = %v, want ErrMalformedQuery", kind, err)
		}
	}
}
