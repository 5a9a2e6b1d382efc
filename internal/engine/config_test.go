// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import "testing"

func TestLoadProjectConfig_Missing(t *testing.T) {
	root := t.TempDir()
	cfg, err := LoadProjectConfig(root)
	if err != nil {
		t.Fatalf("LoadProjectConfig: %v", err)
	}
	if len(cfg.Ignore) != 0 {
		t.Fatalf("Ignore = %v, want empty for missing config file", cfg.Ignore)
	}
}

func TestLoadProjectConfig_Parses(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ConfigFileName, "ignore:\n  - build\n  - \"*.generated.go\"\n")

	cfg, err := LoadProjectConfig(root)
	if err != nil {
		t.Fatalf("LoadProjectConfig: %v", err)
	}
	if len(cfg.Ignore) != 2 || cfg.Ignore[0] != "build" || cfg.Ignore[1] != "*.generated.go" {
		t.Fatalf("Ignore = %v, want [build *.generated.go]", cfg.Ignore)
	}
}

func TestLoadProjectConfig_Malformed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ConfigFileName, "ignore: [this is not valid yaml")

	if _, err := LoadProjectConfig(root); err == nil {
		t.Fatal("LoadProjectConfig: want error for malformed yaml")
	}
}

func TestNewWatcher_ExtraIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	w, err := newWatcher(root, nil, 0, []string{"build"})
	if err != nil {
		t.Fatalf("newWatcher: %v", err)
	}
	defer w.stop()

	found := false
	for _, p := range w.ignore {
		if p == "build" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ignore = %v, want to contain extra pattern %q", w.ignore, "build")
	}
	if !w.shouldIgnore(root + "/.git") {
		t.Fatal("shouldIgnore: default pattern .git lost when extra patterns supplied")
	}
}
