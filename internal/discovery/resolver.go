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
	"strings"

	"github.com/biuld/naviscope/internal/ast"
	"github.com/biuld/naviscope/internal/graphmodel"
)

// Resolver turns one file's ParseResult into a GraphOp stream. Resolvers
// never touch the live graph; every mutation is deferred to Apply (spec
// Section 4.D, Phase 2: "A language resolver must: 1. infer the owning
// module, 2. extract the logical namespace, 3. emit namespaced node
// identifiers, 4. emit containment/relation edges, 5. emit an UpsertFile").
type Resolver struct {
	Context *ProjectContext
}

// NewResolver builds a Resolver sharing a single ProjectContext across
// every file in a scan.
func NewResolver(ctx *ProjectContext) *Resolver {
	return &Resolver{Context: ctx}
}

// Resolve converts a single file's parse result, plus its content
// fingerprint, into the ops that add/replace its owned nodes and edges.
// The caller (the pipeline) is responsible for first emitting an
// OpRemoveNodesForPath for re-scanned files; Resolve only adds.
func (r *Resolver) Resolve(path string, fingerprint uint64, modMilli int64, res *ast.ParseResult) []GraphOp {
	if res == nil {
		return nil
	}

	mod, _ := r.Context.ModuleFor(path)
	pkg := packageOf(res, path)
	pkgFQN := mod.Name + "::" + pkg

	var ops []GraphOp
	var ownedIDs []string

	if len(res.Symbols) > 0 {
		ops = append(ops, GraphOp{
			Kind: OpAddNode,
			Node: &graphmodel.Node{
				ID:      pkgFQN,
				Variant: graphmodel.NodeVariantCode,
				FQN:     pkgFQN,
				Symbol: &ast.Symbol{
					ID:       pkgFQN,
					Name:     pkg,
					FQN:      pkgFQN,
					Kind:     ast.SymbolKindPackage,
					Package:  pkg,
					Module:   mod.Name,
					Language: res.Language,
					Exported: true,
				},
				OwnerPath: path,
			},
		})
		ownedIDs = appendUniqueID(ownedIDs, pkgFQN)
	}

	for _, sym := range res.Symbols {
		ops = append(ops, r.resolveSymbol(sym, mod.Name, pkg, "", path, &ownedIDs)...)
	}

	for _, imp := range res.Imports {
		ops = append(ops, GraphOp{
			Kind:     OpAddNode,
			Node:     placeholderNode(imp, path),
		})
		ownedIDs = appendUniqueID(ownedIDs, imp)
	}

	ops = append(ops, GraphOp{
		Kind: OpUpsertFile,
		Path: path,
		FileRecord: &graphmodel.SourceFileRecord{
			Path:            path,
			Fingerprint:     fingerprint,
			ModifiedAtMilli: modMilli,
			Language:        res.Language,
			OwnedNodeIDs:    ownedIDs,
			Tokens:          res.Tokens,
		},
	})
	return ops
}

// resolveSymbol recursively lowers one symbol (and its children) into
// AddNode/AddEdge ops, namespacing node IDs as
// "module::package::type[::member]" per spec Section 4.D step 3. containerFQN
// is the FQN of the enclosing symbol, or "" to contain under the package
// itself.
func (r *Resolver) resolveSymbol(sym *ast.Symbol, module, pkg, containerFQN, path string, owned *[]string) []GraphOp {
	if sym == nil {
		return nil
	}

	fqn := fqnOf(module, pkg, sym)
	node := &graphmodel.Node{
		ID:        fqn,
		Variant:   graphmodel.NodeVariantCode,
		FQN:       fqn,
		Symbol:    sym,
		OwnerPath: path,
	}
	*owned = appendUniqueID(*owned, fqn)

	ops := []GraphOp{{Kind: OpAddNode, Node: node}}

	containerOf := containerFQN
	if containerOf == "" {
		containerOf = module + "::" + pkg
	}
	if containerOf != fqn {
		ops = append(ops, GraphOp{
			Kind:     OpAddEdge,
			EdgeFrom: containerOf,
			EdgeTo:   fqn,
			EdgeKind: graphmodel.EdgeKindContains,
		})
	}

	if sym.Extends != "" {
		ops = append(ops, GraphOp{
			Kind:     OpAddEdge,
			EdgeFrom: fqn,
			EdgeTo:   sym.Extends,
			EdgeKind: graphmodel.EdgeKindInheritsFrom,
			EdgeProvenance: &sym.Location,
		})
	}
	for _, iface := range sym.Implements {
		ops = append(ops, GraphOp{
			Kind:     OpAddEdge,
			EdgeFrom: fqn,
			EdgeTo:   iface,
			EdgeKind: graphmodel.EdgeKindImplements,
			EdgeProvenance: &sym.Location,
		})
	}
	for _, t := range sym.UsesTypes {
		ops = append(ops, GraphOp{
			Kind:     OpAddEdge,
			EdgeFrom: fqn,
			EdgeTo:   t,
			EdgeKind: graphmodel.EdgeKindTypedAs,
			EdgeProvenance: &sym.Location,
		})
	}
	for _, a := range sym.Annotations {
		ops = append(ops, GraphOp{
			Kind:     OpAddEdge,
			EdgeFrom: fqn,
			EdgeTo:   a,
			EdgeKind: graphmodel.EdgeKindDecoratedBy,
			EdgeProvenance: &sym.Location,
		})
	}

	for _, child := range sym.Children {
		ops = append(ops, r.resolveSymbol(child, module, pkg, fqn, path, owned)...)
	}

	return ops
}

// fqnOf builds the namespaced identifier "module::package::type[::member]".
func fqnOf(module, pkg string, sym *ast.Symbol) string {
	parts := []string{}
	if module != "" {
		parts = append(parts, module)
	}
	if pkg != "" {
		parts = append(parts, pkg)
	}
	if sym.Receiver != "" {
		parts = append(parts, sym.Receiver, sym.Name)
	} else {
		parts = append(parts, sym.Name)
	}
	return strings.Join(parts, "::")
}

// packageOf extracts the logical namespace for a file (spec Section 4.D
// step 2): the first symbol's declared Package if any, else the file's whole
// directory path (everything before the last "/"), or "" for a file at the
// project root.
func packageOf(res *ast.ParseResult, path string) string {
	for _, sym := range res.Symbols {
		if sym.Package != "" {
			return sym.Package
		}
	}
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

func placeholderNode(name, path string) *graphmodel.Node {
	return &graphmodel.Node{
		ID:      name,
		Variant: graphmodel.NodeVariantPlaceholder,
		FQN:     name,
		Symbol: &ast.Symbol{
			ID:             name,
			Name:           shortName(name),
			FQN:            name,
			Kind:           ast.SymbolKindPlaceholder,
			Classification: ast.ClassificationExternal,
		},
		OwnerPath: path,
	}
}

func shortName(fqn string) string {
	idx := strings.LastIndex(fqn, ".")
	if idx < 0 {
		idx = strings.LastIndex(fqn, "/")
	}
	if idx < 0 {
		return fqn
	}
	return fqn[idx+1:]
}

func appendUniqueID(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
