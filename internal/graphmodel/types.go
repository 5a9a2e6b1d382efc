// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graphmodel holds the code knowledge graph value type (Immutable)
// and its mutable draft (Builder).
//
// # Ownership Model
//
// A Node wraps an *ast.Symbol pointer but does not own it: once a Symbol is
// handed to AddNode, it must not be mutated. This mirrors the teacher's
// graph package ownership contract.
//
// # Thread Safety
//
// An Immutable value is safe for concurrent reads from any number of
// goroutines: it is never mutated after seal(). A Builder is owned by a
// single writer until seal() is called exactly once.
package graphmodel

import (
	"github.com/biuld/naviscope/internal/ast"
)

// NodeVariant distinguishes the three tagged cases a graph node can take.
type NodeVariant int

const (
	// NodeVariantCode is a source-defined entity (class, method, field, ...).
	NodeVariantCode NodeVariant = iota

	// NodeVariantBuild is a project or external dependency resolved from
	// build configuration (group/artifact/version or module path).
	NodeVariantBuild

	// NodeVariantPlaceholder is an external symbol referenced by project
	// code but not yet enriched with full metadata.
	NodeVariantPlaceholder
)

func (v NodeVariant) String() string {
	switch v {
	case NodeVariantCode:
		return "code"
	case NodeVariantBuild:
		return "build"
	case NodeVariantPlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// EdgeKind enumerates the fixed relation set a graph edge may carry.
type EdgeKind int

const (
	// EdgeKindUnknown indicates an unrecognized relation.
	EdgeKindUnknown EdgeKind = iota

	// EdgeKindContains links a module/package/type to the member it owns.
	EdgeKindContains

	// EdgeKindInheritsFrom links a type to its declared supertype.
	EdgeKindInheritsFrom

	// EdgeKindImplements links a type to an interface it implements.
	EdgeKindImplements

	// EdgeKindTypedAs links a symbol to a type it references in its signature.
	EdgeKindTypedAs

	// EdgeKindDecoratedBy links a symbol to an annotation/decorator applied to it.
	EdgeKindDecoratedBy

	// EdgeKindUsesDependency links a module to a build-level dependency it declares.
	EdgeKindUsesDependency

	// numEdgeKinds is the number of edge kinds declared above; it is not
	// itself a valid kind.
	numEdgeKinds
)

var edgeKindNames = map[EdgeKind]string{
	EdgeKindContains:       "contains",
	EdgeKindInheritsFrom:   "inherits_from",
	EdgeKindImplements:     "implements",
	EdgeKindTypedAs:        "typed_as",
	EdgeKindDecoratedBy:    "decorated_by",
	EdgeKindUsesDependency: "uses_dependency",
}

func (k EdgeKind) String() string {
	if name, ok := edgeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Direction selects which endpoint of an edge neighbors() walks from.
type Direction int

const (
	// DirectionOut follows edges where the queried node is the source.
	DirectionOut Direction = iota
	// DirectionIn follows edges where the queried node is the target.
	DirectionIn
)

// BuildPayload carries the group/artifact/version (or module path) data for
// a Build node.
type BuildPayload struct {
	Group    string `json:"group,omitempty"`
	Artifact string `json:"artifact,omitempty"`
	Version  string `json:"version,omitempty"`

	// ModulePath is used instead of Group/Artifact for path-addressed
	// ecosystems (Go modules, Python packages).
	ModulePath string `json:"module_path,omitempty"`
}

// Node is one entry in the graph: a tagged variant over Code, Build, and
// Placeholder, keyed by a stable node ID equal to its FQN-derived identity.
type Node struct {
	// ID is the node's stable identity. For Code and Placeholder nodes this
	// is derived from Symbol.FQN; for Build nodes it is the dependency's
	// module path or group:artifact:version triple.
	ID string `json:"id"`

	// Variant says which of Code/Build/Placeholder this node is.
	Variant NodeVariant `json:"variant"`

	// FQN is the fully-qualified name; stable across source and
	// materialized (placeholder-upgraded) views of the same symbol.
	FQN string `json:"fqn"`

	// Symbol carries the Code/Placeholder payload. Nil for Build nodes.
	// Not owned: must not be mutated after AddNode.
	Symbol *ast.Symbol `json:"symbol,omitempty"`

	// Build carries the Build node payload. Nil for Code/Placeholder nodes.
	Build *BuildPayload `json:"build,omitempty"`

	// OwnerPath is the source file path that owns this node, used to
	// satisfy the ownership invariant (every node belongs to exactly one
	// file entry). Empty for Build nodes, which are owned by a manifest
	// file instead of a source file.
	OwnerPath string `json:"owner_path,omitempty"`
}

// ShortName is the unqualified display name of the node.
func (n *Node) ShortName() string {
	if n.Symbol != nil {
		return n.Symbol.Name
	}
	if n.Build != nil {
		if n.Build.ModulePath != "" {
			return n.Build.ModulePath
		}
		return n.Build.Artifact
	}
	return n.FQN
}

// Kind returns the underlying SymbolKind for Code/Placeholder nodes, or
// SymbolKindBuildDependency for Build nodes.
func (n *Node) Kind() ast.SymbolKind {
	if n.Symbol != nil {
		return n.Symbol.Kind
	}
	return ast.SymbolKindBuildDependency
}

// Classification returns the node's project/external/builtin tag.
func (n *Node) Classification() ast.Classification {
	if n.Symbol != nil {
		return n.Symbol.Classification
	}
	if n.Variant == NodeVariantBuild {
		return ast.ClassificationExternal
	}
	return ast.ClassificationExternal
}

// Edge is a directed relation between two node IDs, with optional
// provenance (the file range where the relation is expressed in source).
type Edge struct {
	From     string       `json:"from"`
	To       string       `json:"to"`
	Kind     EdgeKind     `json:"kind"`
	Location *ast.Location `json:"location,omitempty"`
}

// key identifies an edge for deduplication on (src, dst, kind), per the
// AddEdge contract.
type edgeKey struct {
	from string
	to   string
	kind EdgeKind
}

// SourceFileRecord is the per-path bookkeeping entry the ownership
// invariant and incremental removal depend on.
type SourceFileRecord struct {
	// Path is the file path, relative to project root.
	Path string `json:"path"`

	// Fingerprint is a 64-bit content hash (xxhash), used by the manifest
	// to detect unchanged files across rescans.
	Fingerprint uint64 `json:"fingerprint"`

	// ModifiedAtMilli is the file's last-modification time, Unix millis.
	ModifiedAtMilli int64 `json:"modified_at_millis"`

	// Language is the detected language tag.
	Language string `json:"language"`

	// OwnedNodeIDs lists every node ID this file owns, for clean removal.
	OwnedNodeIDs []string `json:"owned_node_ids"`

	// Tokens lists every distinct lexical identifier token this file's
	// source contains (declarations and uses alike), the raw material the
	// reference index's tokenIndex is built from.
	Tokens []string `json:"tokens,omitempty"`
}

// NodeSummary is the (FQN, short-name, kind, classification) tuple returned
// by find/ls-style queries (spec Section 6).
type NodeSummary struct {
	FQN            string               `json:"fqn"`
	ShortName      string               `json:"short_name"`
	Kind           ast.SymbolKind       `json:"kind"`
	Classification ast.Classification   `json:"classification"`
}

// SummaryOf builds a NodeSummary from a Node.
func SummaryOf(n *Node) NodeSummary {
	return NodeSummary{
		FQN:            n.FQN,
		ShortName:      n.ShortName(),
		Kind:           n.Kind(),
		Classification: n.Classification(),
	}
}
