// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"testing"

	"github.com/biuld/naviscope/internal/ast"
	"github.com/biuld/naviscope/internal/graphmodel"
	"github.com/biuld/naviscope/internal/queryengine"
)

func TestCacheDir_DeterministicPerRoot(t *testing.T) {
	a, err := cacheDir("/tmp/project-a")
	if err != nil {
		t.Fatalf("cacheDir: %v", err)
	}
	again, err := cacheDir("/tmp/project-a")
	if err != nil {
		t.Fatalf("cacheDir: %v", err)
	}
	if a != again {
		t.Fatalf("cacheDir not deterministic: %q != %q", a, again)
	}

	b, err := cacheDir("/tmp/project-b")
	if err != nil {
		t.Fatalf("cacheDir: %v", err)
	}
	if a == b {
		t.Fatalf("cacheDir collided for distinct roots: %q", a)
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		io   bool
		want int
	}{
		{"nil error", nil, false, ExitSuccess},
		{"query fault", queryengine.ErrUnknownSymbol, false, ExitInvalidQuery},
		{"malformed query", queryengine.ErrMalformedQuery, true, ExitInvalidQuery},
		{"io failure", errors.New("boom"), true, ExitProjectIO},
		{"index failure", errors.New("boom"), false, ExitIndexFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err, tt.io); got != tt.want {
				t.Errorf("exitCodeFor(%v, %v) = %d, want %d", tt.err, tt.io, got, tt.want)
			}
		})
	}
}

func TestParseSymbolKind(t *testing.T) {
	k, err := parseSymbolKind("function")
	if err != nil {
		t.Fatalf("parseSymbolKind: %v", err)
	}
	if k != ast.SymbolKindFunction {
		t.Errorf("parseSymbolKind(function) = %v, want SymbolKindFunction", k)
	}

	if _, err := parseSymbolKind("not-a-kind"); err == nil {
		t.Fatal("parseSymbolKind: want error for unknown kind")
	}
}

func TestParseEdgeKind(t *testing.T) {
	k, err := parseEdgeKind("typed_as")
	if err != nil {
		t.Fatalf("parseEdgeKind: %v", err)
	}
	if k != graphmodel.EdgeKindTypedAs {
		t.Errorf("parseEdgeKind(typed_as) = %v, want EdgeKindTypedAs", k)
	}

	if _, err := parseEdgeKind("not-an-edge"); err == nil {
		t.Fatal("parseEdgeKind: want error for unknown edge kind")
	}
}

func TestBuildQuery_Find(t *testing.T) {
	queryLimit = 5
	queryKind = ""
	queryEdge = ""
	defer func() { queryLimit = 0 }()

	q, err := buildQuery(queryengine.KindFind, []string{"widget"})
	if err != nil {
		t.Fatalf("buildQuery: %v", err)
	}
	if q.Pattern != "widget" || q.Limit != 5 {
		t.Errorf("buildQuery = %+v, want Pattern=widget Limit=5", q)
	}
}

func TestBuildQuery_RefsByPosition(t *testing.T) {
	queryFile = "widget.go"
	queryLine = 3
	queryCol = 1
	queryKind = ""
	queryEdge = ""
	defer func() { queryFile, queryLine, queryCol = "", 0, 0 }()

	q, err := buildQuery(queryengine.KindRefs, nil)
	if err != nil {
		t.Fatalf("buildQuery: %v", err)
	}
	if q.Position == nil || q.Position.FilePath != "widget.go" || q.Position.StartLine != 3 {
		t.Errorf("buildQuery.Position = %+v, want widget.go:3", q.Position)
	}
}

func TestBuildQuery_RefsByFQN(t *testing.T) {
	queryFile = ""
	queryKind = ""
	queryEdge = ""

	q, err := buildQuery(queryengine.KindRefs, []string{"demo::pkg::Widget"})
	if err != nil {
		t.Fatalf("buildQuery: %v", err)
	}
	if q.Position != nil || q.FQN != "demo::pkg::Widget" {
		t.Errorf("buildQuery = %+v, want FQN=demo::pkg::Widget, no Position", q)
	}
}

func TestBuildQuery_InvalidKindFilter(t *testing.T) {
	queryKind = "not-a-kind"
	queryEdge = ""
	defer func() { queryKind = "" }()

	if _, err := buildQuery(queryengine.KindFind, nil); err == nil {
		t.Fatal("buildQuery: want error for invalid --kind")
	}
}
