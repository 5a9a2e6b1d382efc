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
	"testing"
)

const testGoSimple = `package example

import (
	"fmt"
)

// Greeter says hello.
type Greeter struct {
	Name string
}

// Animal is implemented by anything that speaks.
type Animal interface {
	Speak() string
}

// Greet returns a greeting.
func (g *Greeter) Greet() string {
	return fmt.Sprintf("hello, %s", g.Name)
}

// NewGreeter constructs a Greeter.
func NewGreeter(name string) *Greeter {
	return &Greeter{Name: name}
}
`

func TestGoParser_Parse(t *testing.T) {
	parser := NewGoParser()
	result, err := parser.Parse(context.Background(), []byte(testGoSimple), "example.go")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.HasErrors() {
		t.Fatalf("unexpected parse errors: %v", result.Errors)
	}

	var sawStruct, sawInterface, sawMethod, sawFunction bool
	for _, sym := range result.Symbols {
		switch {
		case sym.Kind == SymbolKindStruct && sym.Name == "Greeter":
			sawStruct = true
			if len(sym.Children) != 1 || sym.Children[0].Name != "Name" {
				t.Errorf("Greeter fields = %+v, want [Name]", sym.Children)
			}
		case sym.Kind == SymbolKindInterface && sym.Name == "Animal":
			sawInterface = true
		case sym.Kind == SymbolKindMethod && sym.Name == "Greet":
			sawMethod = true
			if sym.Receiver != "Greeter" {
				t.Errorf("Greet receiver = %q, want Greeter", sym.Receiver)
			}
		case sym.Kind == SymbolKindFunction && sym.Name == "NewGreeter":
			sawFunction = true
		}
	}

	if !sawStruct || !sawInterface || !sawMethod || !sawFunction {
		t.Errorf("missing expected symbols: struct=%v interface=%v method=%v function=%v",
			sawStruct, sawInterface, sawMethod, sawFunction)
	}

	if len(result.Imports) != 1 || result.Imports[0] != "fmt" {
		t.Errorf("Imports = %v, want [fmt]", result.Imports)
	}
}

func TestGoParser_SyntaxErrorIsNonFatal(t *testing.T) {
	parser := NewGoParser()
	result, err := parser.Parse(context.Background(), []byte("package example\nfunc broken( {"), "broken.go")
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil (syntax errors are non-fatal)", err)
	}
	if !result.HasErrors() {
		t.Error("expected syntax error to be recorded on ParseResult.Errors")
	}
}

func TestGoParser_FileTooLarge(t *testing.T) {
	parser := NewGoParser(WithMaxFileSize(4))
	_, err := parser.Parse(context.Background(), []byte("package example"), "big.go")
	if err == nil {
		t.Fatal("expected ErrFileTooLarge")
	}
}

func TestGoParser_Extensions(t *testing.T) {
	parser := NewGoParser()
	if parser.Language() != "go" {
		t.Errorf("Language() = %q, want go", parser.Language())
	}
	if got := parser.Extensions(); len(got) != 1 || got[0] != ".go" {
		t.Errorf("Extensions() = %v, want [.go]", got)
	}
}
