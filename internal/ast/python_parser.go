// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonParser implements Parser for Python source using tree-sitter.
//
// Python has no source-level export keyword, so Exported follows the
// language's own convention: names not prefixed with an underscore are
// public (mirrored from the teacher's SymbolKind documentation).
type PythonParser struct {
	maxFileSize int64
}

// NewPythonParser creates a PythonParser with sensible defaults.
func NewPythonParser() *PythonParser {
	return &PythonParser{maxFileSize: DefaultMaxFileSize}
}

// Language returns "python".
func (p *PythonParser) Language() string { return "python" }

// Extensions returns the Python file extensions.
func (p *PythonParser) Extensions() []string { return []string{".py", ".pyi"} }

// Parse extracts top-level classes and functions from Python source.
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	start := time.Now()
	ctx, span := startParseSpan(ctx, "python", filePath, len(content))
	defer span.End()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	result := &ParseResult{FilePath: filePath, Language: "python"}

	root := tree.RootNode()
	if root == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		recordParseMetrics(ctx, "python", time.Since(start), 0, true)
		return result, nil
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	pkg := modulePackage(filePath)
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "import_statement", "import_from_statement":
			p.recordImport(child, content, result)
		case "class_definition":
			result.Symbols = append(result.Symbols, p.buildClassSymbol(child, content, filePath, pkg))
		case "function_definition":
			result.Symbols = append(result.Symbols, p.buildFunctionSymbol(child, content, filePath, pkg, ""))
		}
	}
	result.Tokens = extractPyIdentifierTokens(root, content)
	recordParseMetrics(ctx, "python", time.Since(start), result.CountSymbols(), true)
	return result, nil
}

// extractPyIdentifierTokens walks the whole tree collecting every distinct
// identifier token (declarations and uses alike), feeding the reference
// index's Phase A meso-filter the same way the Go parser's equivalent does.
func extractPyIdentifierTokens(root *sitter.Node, content []byte) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "identifier" {
			tok := nodeText(n, content)
			if tok != "" && !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return out
}

func (p *PythonParser) recordImport(node *sitter.Node, content []byte, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "dotted_name" || child.Type() == "relative_import" {
			if name := nodeText(child, content); name != "" {
				result.Imports = append(result.Imports, name)
			}
		}
	}
}

func (p *PythonParser) buildClassSymbol(node *sitter.Node, content []byte, filePath, pkg string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	name := nodeText(nameNode, content)
	sym := &Symbol{
		Name:     name,
		Kind:     SymbolKindStruct,
		Location: locationOf(node, filePath),
		Language: "python",
		Package:  pkg,
		Exported: !strings.HasPrefix(name, "_"),
	}
	if super := node.ChildByFieldName("superclasses"); super != nil {
		names := pyArgNames(super, content)
		if len(names) > 0 {
			sym.Extends = names[0]
			if len(names) > 1 {
				sym.Implements = names[1:]
			}
		}
	}
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			member := body.Child(i)
			if member.Type() == "function_definition" {
				sym.Children = append(sym.Children, p.buildFunctionSymbol(member, content, filePath, pkg, name))
			}
		}
	}
	return sym
}

func (p *PythonParser) buildFunctionSymbol(node *sitter.Node, content []byte, filePath, pkg, receiver string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	name := nodeText(nameNode, content)
	kind := SymbolKindFunction
	if receiver != "" {
		kind = SymbolKindMethod
	}
	sym := &Symbol{
		Name:     name,
		Kind:     kind,
		Location: locationOf(node, filePath),
		Language: "python",
		Package:  pkg,
		Receiver: receiver,
		Exported: !strings.HasPrefix(name, "_"),
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		sym.Parameters = pyParams(params, content)
	}
	return sym
}

func pyParams(paramsNode *sitter.Node, content []byte) []ParameterSignature {
	var out []ParameterSignature
	for i := 0; i < int(paramsNode.ChildCount()); i++ {
		child := paramsNode.Child(i)
		switch child.Type() {
		case "identifier":
			out = append(out, ParameterSignature{Name: nodeText(child, content)})
		case "typed_parameter", "default_parameter", "typed_default_parameter":
			out = append(out, ParameterSignature{Name: nodeText(child, content)})
		}
	}
	return out
}

func pyArgNames(node *sitter.Node, content []byte) []string {
	var out []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "identifier" {
			out = append(out, nodeText(child, content))
		}
	}
	return out
}

// modulePackage derives a dotted package name from a file path the way
// Python import machinery does: strip the extension, replace separators.
func modulePackage(filePath string) string {
	trimmed := strings.TrimSuffix(filePath, ".py")
	trimmed = strings.TrimSuffix(trimmed, ".pyi")
	trimmed = strings.ReplaceAll(trimmed, "/", ".")
	return trimmed
}
