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
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/biuld/naviscope/internal/manifest"
)

// ResolveBuildContext processes build-manifest files (go.mod, setup.py,
// pyproject.toml) found in m to produce the ProjectContext every language
// resolver shares (spec Section 4.D, Phase 2's serialised build-context step).
func ResolveBuildContext(root string, m *manifest.Manifest) *ProjectContext {
	var modules []Module
	for path := range m.Files {
		base := filepath.Base(path)
		dir := filepath.ToSlash(filepath.Dir(path))
		if dir == "." {
			dir = ""
		}
		switch base {
		case "go.mod":
			if mod, ok := parseGoMod(filepath.Join(root, path)); ok {
				mod.Root = dir
				modules = append(modules, mod)
			}
		case "pyproject.toml", "setup.py":
			modules = append(modules, Module{Name: moduleNameFromDir(dir, root), Root: dir})
		}
	}
	if len(modules) == 0 {
		modules = []Module{{Name: moduleNameFromDir("", root), Root: ""}}
	}
	return NewProjectContext(modules)
}

func parseGoMod(path string) (Module, bool) {
	f, err := os.Open(path)
	if err != nil {
		return Module{}, false
	}
	defer f.Close()

	mod := Module{}
	var deps []string
	inRequire := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "module "):
			mod.Name = strings.TrimSpace(strings.TrimPrefix(line, "module"))
		case line == "require (":
			inRequire = true
		case inRequire && line == ")":
			inRequire = false
		case strings.HasPrefix(line, "require "):
			if dep := firstField(strings.TrimPrefix(line, "require")); dep != "" {
				deps = append(deps, dep)
			}
		case inRequire && line != "":
			if dep := firstField(line); dep != "" {
				deps = append(deps, dep)
			}
		}
	}
	if mod.Name == "" {
		return Module{}, false
	}
	mod.Dependencies = deps
	return mod, true
}

func firstField(s string) string {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func moduleNameFromDir(dir, root string) string {
	if dir == "" {
		return filepath.Base(root)
	}
	return filepath.Base(dir)
}
