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

const testPySimple = `import os
from collections import OrderedDict


class Animal:
    def speak(self):
        raise NotImplementedError


class Dog(Animal):
    def speak(self):
        return "woof"

    def _hidden(self):
        pass


def make_dog(name):
    return Dog()
`

func TestPythonParser_Parse(t *testing.T) {
	parser := NewPythonParser()
	result, err := parser.Parse(context.Background(), []byte(testPySimple), "pkg/animals.py")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.HasErrors() {
		t.Fatalf("unexpected parse errors: %v", result.Errors)
	}

	var animal, dog, makeDog *Symbol
	for _, sym := range result.Symbols {
		switch sym.Name {
		case "Animal":
			animal = sym
		case "Dog":
			dog = sym
		case "make_dog":
			makeDog = sym
		}
	}

	if animal == nil || animal.Kind != SymbolKindStruct {
		t.Fatalf("expected Animal class symbol, got %+v", animal)
	}
	if dog == nil {
		t.Fatalf("expected Dog class symbol")
	}
	if dog.Extends != "Animal" {
		t.Errorf("Dog.Extends = %q, want Animal", dog.Extends)
	}
	if len(dog.Children) != 2 {
		t.Fatalf("Dog methods = %d, want 2", len(dog.Children))
	}
	var sawSpeak, sawHidden bool
	for _, m := range dog.Children {
		if m.Kind != SymbolKindMethod || m.Receiver != "Dog" {
			t.Errorf("method %q: kind=%v receiver=%q", m.Name, m.Kind, m.Receiver)
		}
		switch m.Name {
		case "speak":
			sawSpeak = true
			if !m.Exported {
				t.Error("speak should be exported (no underscore prefix)")
			}
		case "_hidden":
			sawHidden = true
			if m.Exported {
				t.Error("_hidden should not be exported")
			}
		}
	}
	if !sawSpeak || !sawHidden {
		t.Errorf("missing methods: speak=%v hidden=%v", sawSpeak, sawHidden)
	}

	if makeDog == nil || makeDog.Kind != SymbolKindFunction {
		t.Fatalf("expected make_dog function symbol, got %+v", makeDog)
	}

	wantImports := map[string]bool{"os": true, "collections": true}
	for _, imp := range result.Imports {
		delete(wantImports, imp)
	}
	if len(wantImports) != 0 {
		t.Errorf("missing imports: %v, got %v", wantImports, result.Imports)
	}
}

func TestPythonParser_Extensions(t *testing.T) {
	parser := NewPythonParser()
	if parser.Language() != "python" {
		t.Errorf("Language() = %q, want python", parser.Language())
	}
	exts := parser.Extensions()
	if len(exts) != 2 || exts[0] != ".py" || exts[1] != ".pyi" {
		t.Errorf("Extensions() = %v, want [.py .pyi]", exts)
	}
}

func TestModulePackage(t *testing.T) {
	cases := map[string]string{
		"pkg/animals.py":  "pkg.animals",
		"a/b/c.pyi":       "a.b.c",
		"top_level.py":    "top_level",
	}
	for in, want := range cases {
		if got := modulePackage(in); got != want {
			t.Errorf("modulePackage(%q) = %q, want %q", in, got, want)
		}
	}
}
