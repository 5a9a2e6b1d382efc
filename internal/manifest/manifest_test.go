// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileEntry_Validate(t *testing.T) {
	t.Run("valid entry passes", func(t *testing.T) {
		e := FileEntry{Path: "a.go", Hash: "0123456789abcdef", Mtime: 1, Size: 1}
		if err := e.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("empty path fails", func(t *testing.T) {
		e := FileEntry{Hash: "0123456789abcdef"}
		if !errors.Is(e.Validate(), ErrEmptyPath) {
			t.Error("expected ErrEmptyPath")
		}
	})

	t.Run("short hash fails", func(t *testing.T) {
		e := FileEntry{Path: "a.go", Hash: "abc"}
		if !errors.Is(e.Validate(), ErrInvalidHash) {
			t.Error("expected ErrInvalidHash")
		}
	})

	t.Run("uppercase hash fails", func(t *testing.T) {
		e := FileEntry{Path: "a.go", Hash: "0123456789ABCDEF"}
		if !errors.Is(e.Validate(), ErrInvalidHash) {
			t.Error("expected ErrInvalidHash")
		}
	})
}

func TestXXHasher_HashFileConsistent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	h := NewXXHasher(0)
	a, err := h.HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if len(a) != hashHexLen {
		t.Errorf("len(hash) = %d, want %d", len(a), hashHexLen)
	}
	b, _ := h.HashFile(path)
	if a != b {
		t.Errorf("HashFile not deterministic: %q vs %q", a, b)
	}

	bytesHash := h.HashBytes([]byte("hello world"))
	if bytesHash != a {
		t.Errorf("HashBytes(content) = %q, want HashFile result %q", bytesHash, a)
	}
}

func TestManager_ScanRespectsIncludesAndExcludes(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"main.go":        "package main",
		"util/helper.go": "package util",
		"readme.md":      "# readme",
		"vendor/dep.go":  "package dep",
	}
	for rel, content := range files {
		full := filepath.Join(dir, rel)
		os.MkdirAll(filepath.Dir(full), 0755)
		os.WriteFile(full, []byte(content), 0644)
	}

	mgr := NewManager(WithIncludes("**/*.go"))
	m, err := mgr.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if _, ok := m.Files["main.go"]; !ok {
		t.Error("main.go should be included")
	}
	if _, ok := m.Files["util/helper.go"]; !ok {
		t.Error("util/helper.go should be included")
	}
	if _, ok := m.Files["readme.md"]; ok {
		t.Error("readme.md should be excluded by the include pattern")
	}
	if _, ok := m.Files["vendor/dep.go"]; ok {
		t.Error("vendor/dep.go should be excluded by DefaultExcludes")
	}
}

func TestManifest_Diff(t *testing.T) {
	prev := &Manifest{Files: map[string]FileEntry{
		"a.go": {Path: "a.go", Hash: "1111111111111111"},
		"b.go": {Path: "b.go", Hash: "2222222222222222"},
	}}
	next := &Manifest{Files: map[string]FileEntry{
		"a.go": {Path: "a.go", Hash: "1111111111111111"},
		"b.go": {Path: "b.go", Hash: "3333333333333333"},
		"c.go": {Path: "c.go", Hash: "4444444444444444"},
	}}

	added, changed, removed := next.Diff(prev)
	if len(added) != 1 || added[0] != "c.go" {
		t.Errorf("added = %v, want [c.go]", added)
	}
	if len(changed) != 1 || changed[0] != "b.go" {
		t.Errorf("changed = %v, want [b.go]", changed)
	}
	if len(removed) != 0 {
		t.Errorf("removed = %v, want none", removed)
	}
}

func TestValidatePath(t *testing.T) {
	if !ValidatePath("/proj", "/proj/sub/a.go") {
		t.Error("expected path inside root to validate")
	}
}
