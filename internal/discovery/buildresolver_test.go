// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/biuld/naviscope/internal/manifest"
)

func TestResolveBuildContext_ParsesGoMod(t *testing.T) {
	dir := t.TempDir()
	goMod := "module github.com/example/widget\n\ngo 1.22\n\nrequire (\n\tgithub.com/spf13/cobra v1.8.0\n\tgithub.com/google/uuid v1.6.0\n)\n"
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(goMod), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mf := &manifest.Manifest{Files: map[string]manifest.FileEntry{
		"go.mod":      {Path: "go.mod"},
		"widget/a.go": {Path: "widget/a.go"},
	}}

	pc := ResolveBuildContext(dir, mf)
	if len(pc.Modules) != 1 {
		t.Fatalf("len(Modules) = %d, want 1", len(pc.Modules))
	}
	mod := pc.Modules[0]
	if mod.Name != "github.com/example/widget" {
		t.Errorf("Name = %q, want github.com/example/widget", mod.Name)
	}
	if len(mod.Dependencies) != 2 {
		t.Errorf("Dependencies = %v, want 2 entries", mod.Dependencies)
	}

	found, ok := pc.ModuleFor("widget/a.go")
	if !ok || found.Name != mod.Name {
		t.Errorf("ModuleFor(widget/a.go) = %+v, %v", found, ok)
	}
}

func TestResolveBuildContext_FallsBackToRootModule(t *testing.T) {
	mf := &manifest.Manifest{Files: map[string]manifest.FileEntry{
		"main.go": {Path: "main.go"},
	}}
	pc := ResolveBuildContext("/tmp/proj", mf)
	if len(pc.Modules) != 1 {
		t.Fatalf("len(Modules) = %d, want 1", len(pc.Modules))
	}
	if _, ok := pc.ModuleFor("main.go"); !ok {
		t.Error("expected a catch-all root module")
	}
}
