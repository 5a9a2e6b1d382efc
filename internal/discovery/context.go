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
	"path/filepath"
	"sort"
	"strings"
)

// Module is one build-anchored unit discovered from a manifest file (a
// go.mod, a setup.py/pyproject.toml, ...).
type Module struct {
	// Name is the module's canonical identity (Go module path, Python
	// distribution name).
	Name string

	// Root is the directory containing the build-anchor file, relative to
	// project root ("" for the project root itself).
	Root string

	// Dependencies lists declared external dependency identifiers read from
	// the build anchor. Nothing downstream reads it: no Build node and no
	// UsesDependency edge is created from this list.
	Dependencies []string
}

// ProjectContext is the build resolver's output: the set of modules, their
// roots, and a path-prefix -> module routing table, shared read-only by
// every language resolver in Phase 2 (spec Section 4.D).
type ProjectContext struct {
	Modules []Module

	// prefixes is Modules sorted by Root length descending, so
	// ModuleFor picks the most specific (deepest) enclosing module.
	prefixes []Module
}

// NewProjectContext builds routing state over modules.
func NewProjectContext(modules []Module) *ProjectContext {
	sorted := append([]Module(nil), modules...)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].Root) > len(sorted[j].Root)
	})
	return &ProjectContext{Modules: modules, prefixes: sorted}
}

// ModuleFor infers the owning module for a file path by walking up from the
// file toward the nearest build anchor (spec Section 4.D step 1).
func (pc *ProjectContext) ModuleFor(path string) (Module, bool) {
	cleaned := filepath.ToSlash(path)
	for _, m := range pc.prefixes {
		if m.Root == "" {
			return m, true
		}
		if cleaned == m.Root || strings.HasPrefix(cleaned, m.Root+"/") {
			return m, true
		}
	}
	return Module{}, false
}
