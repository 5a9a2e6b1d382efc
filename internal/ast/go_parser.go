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
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// DefaultMaxFileSize is the maximum file size the Go parser will accept.
const DefaultMaxFileSize = 10 * 1024 * 1024

// WarnFileSize is the threshold at which parsing a file logs a warning.
const WarnFileSize = 1 * 1024 * 1024

// GoParserOption configures a GoParser.
type GoParserOption func(*GoParser)

// WithMaxFileSize overrides the parser's maximum accepted file size.
func WithMaxFileSize(n int64) GoParserOption {
	return func(p *GoParser) {
		if n > 0 {
			p.maxFileSize = n
		}
	}
}

// GoParser implements Parser for Go source using tree-sitter.
//
// A fresh tree-sitter parser is created per Parse call so GoParser itself
// is safe for concurrent use across goroutines in the Phase 1 worker pool.
type GoParser struct {
	maxFileSize int64
}

// NewGoParser creates a GoParser with sensible defaults.
func NewGoParser(opts ...GoParserOption) *GoParser {
	p := &GoParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "go".
func (p *GoParser) Language() string { return "go" }

// Extensions returns the Go file extension.
func (p *GoParser) Extensions() []string { return []string{".go"} }

// Parse extracts symbols from Go source using the tree-sitter golang grammar.
func (p *GoParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	start := time.Now()
	ctx, span := startParseSpan(ctx, "go", filePath, len(content))
	defer span.End()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file", slog.String("file", filePath), slog.Int("size_bytes", len(content)))
	}
	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{FilePath: filePath, Language: "go"}

	root := tree.RootNode()
	if root == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		recordParseMetrics(ctx, "go", time.Since(start), 0, true)
		return result, nil
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	pkg := p.extractPackage(root, content, filePath, result)
	p.extractImports(root, content, result)
	p.extractFunctions(root, content, filePath, pkg, result)
	p.extractTypes(root, content, filePath, pkg, result)
	p.extractTopLevelVars(root, content, filePath, pkg, result)
	result.Tokens = extractIdentifierTokens(root, content)

	recordParseMetrics(ctx, "go", time.Since(start), result.CountSymbols(), true)
	return result, nil
}

func (p *GoParser) extractPackage(root *sitter.Node, content []byte, filePath string, result *ParseResult) string {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "package_clause" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			nameNode := child.Child(j)
			if nameNode.Type() == "package_identifier" {
				return nodeText(nameNode, content)
			}
		}
	}
	return ""
}

func (p *GoParser) extractImports(root *sitter.Node, content []byte, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "import_declaration" {
			continue
		}
		p.walkImportSpecs(child, content, result)
	}
}

func (p *GoParser) walkImportSpecs(node *sitter.Node, content []byte, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_spec":
			p.recordImport(child, content, result)
		case "import_spec_list":
			p.walkImportSpecs(child, content, result)
		}
	}
}

func (p *GoParser) recordImport(node *sitter.Node, content []byte, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "interpreted_string_literal" {
			path := strings.Trim(nodeText(child, content), "\"")
			if path != "" {
				result.Imports = append(result.Imports, path)
			}
		}
	}
}

func (p *GoParser) extractFunctions(root *sitter.Node, content []byte, filePath, pkg string, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "function_declaration":
			if sym := p.buildFunctionSymbol(child, content, filePath, pkg, root); sym != nil {
				result.Symbols = append(result.Symbols, sym)
			}
		case "method_declaration":
			if sym := p.buildMethodSymbol(child, content, filePath, pkg, root); sym != nil {
				result.Symbols = append(result.Symbols, sym)
			}
		}
	}
}

func (p *GoParser) buildFunctionSymbol(node *sitter.Node, content []byte, filePath, pkg string, root *sitter.Node) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)
	sym := &Symbol{
		Name:       name,
		Kind:       SymbolKindFunction,
		Location:   locationOf(node, filePath),
		Language:   "go",
		Package:    pkg,
		Exported:   isExported(name),
		DocComment: precedingComment(root, node, content),
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		sym.Parameters = extractParams(params, content)
		sym.UsesTypes = append(sym.UsesTypes, paramTypeNames(sym.Parameters)...)
	}
	if ret := node.ChildByFieldName("result"); ret != nil {
		sym.ReturnType = nodeText(ret, content)
		sym.UsesTypes = append(sym.UsesTypes, extractTypeIdentifiers(ret, content)...)
	}
	return sym
}

func (p *GoParser) buildMethodSymbol(node *sitter.Node, content []byte, filePath, pkg string, root *sitter.Node) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)
	receiver := ""
	if recv := node.ChildByFieldName("receiver"); recv != nil {
		receiver = receiverTypeName(recv, content)
	}
	sym := &Symbol{
		Name:       name,
		Kind:       SymbolKindMethod,
		Location:   locationOf(node, filePath),
		Language:   "go",
		Package:    pkg,
		Receiver:   receiver,
		Exported:   isExported(name),
		DocComment: precedingComment(root, node, content),
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		sym.Parameters = extractParams(params, content)
		sym.UsesTypes = append(sym.UsesTypes, paramTypeNames(sym.Parameters)...)
	}
	if ret := node.ChildByFieldName("result"); ret != nil {
		sym.ReturnType = nodeText(ret, content)
		sym.UsesTypes = append(sym.UsesTypes, extractTypeIdentifiers(ret, content)...)
	}
	return sym
}

func (p *GoParser) extractTypes(root *sitter.Node, content []byte, filePath, pkg string, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "type_declaration" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			spec := child.Child(j)
			if spec.Type() != "type_spec" {
				continue
			}
			if sym := p.buildTypeSymbol(spec, content, filePath, pkg, root); sym != nil {
				result.Symbols = append(result.Symbols, sym)
			}
		}
	}
}

func (p *GoParser) buildTypeSymbol(node *sitter.Node, content []byte, filePath, pkg string, root *sitter.Node) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)
	typeNode := node.ChildByFieldName("type")

	sym := &Symbol{
		Name:       name,
		Location:   locationOf(node, filePath),
		Language:   "go",
		Package:    pkg,
		Exported:   isExported(name),
		DocComment: precedingComment(root, node, content),
	}

	switch {
	case typeNode == nil:
		sym.Kind = SymbolKindStruct
	case typeNode.Type() == "struct_type":
		sym.Kind = SymbolKindStruct
		fields, embeds := extractStructFields(typeNode, content)
		sym.Children = fields
		sym.Extends = firstOrEmpty(embeds)
	case typeNode.Type() == "interface_type":
		sym.Kind = SymbolKindInterface
		sym.Children = extractInterfaceMethods(typeNode, content, filePath)
	default:
		sym.Kind = SymbolKindStruct
		sym.UsesTypes = extractTypeIdentifiers(typeNode, content)
	}
	for _, child := range sym.Children {
		child.Receiver = name
	}
	return sym
}

func (p *GoParser) extractTopLevelVars(root *sitter.Node, content []byte, filePath, pkg string, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "const_declaration" && child.Type() != "var_declaration" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			spec := child.Child(j)
			if spec.Type() != "const_spec" && spec.Type() != "var_spec" {
				continue
			}
			for k := 0; k < int(spec.ChildCount()); k++ {
				n := spec.Child(k)
				if n.Type() != "identifier" {
					continue
				}
				name := nodeText(n, content)
				result.Symbols = append(result.Symbols, &Symbol{
					Name:     name,
					Kind:     SymbolKindField,
					Language: "go",
					Package:  pkg,
					Exported: isExported(name),
					Location: locationOf(spec, filePath),
				})
			}
		}
	}
}

// --- tree-sitter node helpers -------------------------------------------------

func nodeText(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	return string(content[n.StartByte():n.EndByte()])
}

func locationOf(n *sitter.Node, filePath string) Location {
	return Location{
		FilePath:  filePath,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		StartCol:  int(n.StartPoint().Column),
		EndCol:    int(n.EndPoint().Column),
	}
}

func isExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// precedingComment returns the text of a comment sibling immediately above node.
func precedingComment(root, node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	target := int(node.StartPoint().Row)
	for i := 0; i < int(root.ChildCount()); i++ {
		sibling := root.Child(i)
		if sibling.Type() != "comment" {
			continue
		}
		end := int(sibling.EndPoint().Row)
		if end == target-1 {
			return strings.TrimSpace(nodeText(sibling, content))
		}
	}
	return ""
}

func extractParams(paramsNode *sitter.Node, content []byte) []ParameterSignature {
	var out []ParameterSignature
	for i := 0; i < int(paramsNode.ChildCount()); i++ {
		decl := paramsNode.Child(i)
		if decl.Type() != "parameter_declaration" {
			continue
		}
		typ := ""
		if typeNode := decl.ChildByFieldName("type"); typeNode != nil {
			typ = nodeText(typeNode, content)
		}
		named := false
		for j := 0; j < int(decl.ChildCount()); j++ {
			nameCandidate := decl.Child(j)
			if nameCandidate.Type() == "identifier" {
				out = append(out, ParameterSignature{Name: nodeText(nameCandidate, content), Type: typ})
				named = true
			}
		}
		if !named {
			out = append(out, ParameterSignature{Type: typ})
		}
	}
	return out
}

func paramTypeNames(params []ParameterSignature) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		if p.Type != "" {
			out = append(out, strings.TrimLeft(p.Type, "*[]"))
		}
	}
	return out
}

func extractTypeIdentifiers(n *sitter.Node, content []byte) []string {
	var out []string
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node.Type() == "type_identifier" {
			out = append(out, nodeText(node, content))
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(n)
	return out
}

func receiverTypeName(recv *sitter.Node, content []byte) string {
	for i := 0; i < int(recv.ChildCount()); i++ {
		decl := recv.Child(i)
		if decl.Type() != "parameter_declaration" {
			continue
		}
		if typeNode := decl.ChildByFieldName("type"); typeNode != nil {
			names := extractTypeIdentifiers(typeNode, content)
			if len(names) > 0 {
				return names[0]
			}
			return strings.TrimLeft(nodeText(typeNode, content), "*")
		}
	}
	return ""
}

func extractStructFields(structType *sitter.Node, content []byte) (fields []*Symbol, embeds []string) {
	body := structType.ChildByFieldName("body")
	if body == nil {
		return nil, nil
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		decl := body.Child(i)
		if decl.Type() != "field_declaration" {
			continue
		}
		typeNode := decl.ChildByFieldName("type")
		typeName := ""
		if typeNode != nil {
			typeName = nodeText(typeNode, content)
		}
		hasName := false
		for j := 0; j < int(decl.ChildCount()); j++ {
			n := decl.Child(j)
			if n.Type() == "field_identifier" {
				hasName = true
				fields = append(fields, &Symbol{
					Name:     nodeText(n, content),
					Kind:     SymbolKindField,
					Exported: isExported(nodeText(n, content)),
					Language: "go",
				})
			}
		}
		if !hasName && typeNode != nil {
			// embedded field: the type name doubles as the field name.
			names := extractTypeIdentifiers(typeNode, content)
			name := typeName
			if len(names) > 0 {
				name = names[len(names)-1]
				embeds = append(embeds, name)
			}
			fields = append(fields, &Symbol{
				Name:     name,
				Kind:     SymbolKindField,
				Exported: isExported(name),
				Language: "go",
				Extends:  name,
			})
		}
	}
	return fields, embeds
}

func extractInterfaceMethods(ifaceType *sitter.Node, content []byte, filePath string) []*Symbol {
	var methods []*Symbol
	for i := 0; i < int(ifaceType.ChildCount()); i++ {
		member := ifaceType.Child(i)
		if member.Type() != "method_spec" {
			continue
		}
		nameNode := member.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, content)
		sym := &Symbol{
			Name:     name,
			Kind:     SymbolKindMethod,
			Language: "go",
			Exported: isExported(name),
			Location: locationOf(member, filePath),
		}
		if params := member.ChildByFieldName("parameters"); params != nil {
			sym.Parameters = extractParams(params, content)
		}
		methods = append(methods, sym)
	}
	return methods
}

// identifierNodeTypes are the tree-sitter node types whose text counts as a
// lexical token for the reference index's Phase A filter. Comments and
// string literals are different node types entirely, so they are excluded
// simply by not appearing in this set.
var identifierNodeTypes = map[string]bool{
	"identifier":      true,
	"type_identifier": true,
	"field_identifier": true,
	"package_identifier": true,
}

// extractIdentifierTokens walks the whole tree collecting every distinct
// identifier-like token, regardless of whether it's a declaration or a use
// site: the meso-filter needs both (spec: "all candidate files have at
// least one lexical occurrence of the name").
func extractIdentifierTokens(root *sitter.Node, content []byte) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if identifierNodeTypes[n.Type()] {
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

func firstOrEmpty(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
