// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scope

import (
	"fmt"

	"github.com/laxels/humanify-sub001/services/rename/ast"
)

// ScopeID addresses a Scope in AnalysisResult.Scopes.
type ScopeID int

// BindingID addresses a Binding in AnalysisResult.Bindings.
type BindingID int

// NoScope is the parent of the program scope.
const NoScope ScopeID = -1

// RootScope is the id of the program scope.
const RootScope ScopeID = 0

// =============================================================================
// Scope kinds
// =============================================================================

// ScopeKind classifies a lexical region.
type ScopeKind uint8

const (
	ScopeProgram ScopeKind = iota
	ScopeFunction
	ScopeBlock
	ScopeCatch
	ScopeClass
	// ScopeFunctionName holds only the name of a named function expression.
	// It sits between the enclosing scope and the function scope, so
	// parameters and body declarations shadow the name.
	ScopeFunctionName
)

var scopeKindNames = [...]string{
	ScopeProgram:  "program",
	ScopeFunction: "function",
	ScopeBlock:    "block",
	ScopeCatch:    "catch",
	ScopeClass:    "class",

	ScopeFunctionName: "function_name",
}

func (k ScopeKind) String() string {
	if int(k) < len(scopeKindNames) {
		return scopeKindNames[k]
	}
	return fmt.Sprintf("ScopeKind(%d)", k)
}

// =============================================================================
// Binding kinds
// =============================================================================

// BindingKind is the declared kind of a binding.
type BindingKind uint8

const (
	KindLet   BindingKind = iota // block-scoped, mutable
	KindConst                    // block-scoped, immutable
	KindVar                      // function-scoped
	KindFunction
	KindClass
	KindParam
	KindCatchParam
	KindImport
)

var bindingKindNames = [...]string{
	KindLet:        "let",
	KindConst:      "const",
	KindVar:        "var",
	KindFunction:   "function",
	KindClass:      "class",
	KindParam:      "param",
	KindCatchParam: "catch_param",
	KindImport:     "import",
}

func (k BindingKind) String() string {
	if int(k) < len(bindingKindNames) {
		return bindingKindNames[k]
	}
	return fmt.Sprintf("BindingKind(%d)", k)
}

// Hoisted reports whether declarations of this kind attach to the nearest
// function or program scope rather than the current block.
func (k BindingKind) Hoisted() bool {
	switch k {
	case KindVar:
		return true
	case KindLet, KindConst, KindFunction, KindClass, KindParam, KindCatchParam, KindImport:
		return false
	}
	return false
}

// mergesWith reports whether a redeclaration of kind k in the same scope
// denotes the existing binding of kind prev rather than a new one.
func (k BindingKind) mergesWith(prev BindingKind) bool {
	switch k {
	case KindVar, KindFunction:
		return prev == KindVar || prev == KindFunction || prev == KindParam
	case KindLet, KindConst, KindClass, KindParam, KindCatchParam, KindImport:
		return false
	}
	return false
}

// =============================================================================
// Reference roles
// =============================================================================

// Role is the semantic role of one identifier occurrence.
type Role uint8

const (
	RoleRead Role = iota
	RoleWrite
	RoleCall
	RolePropertyAccess
	RoleShorthand
	RoleDeclaration
	RoleCatch
)

var roleNames = [...]string{
	RoleRead:           "read",
	RoleWrite:          "write",
	RoleCall:           "call",
	RolePropertyAccess: "property_access",
	RoleShorthand:      "shorthand",
	RoleDeclaration:    "declaration",
	RoleCatch:          "catch",
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", r)
}

// =============================================================================
// Occurrence forms
// =============================================================================

// Form describes how an occurrence must be spelled when its binding is renamed.
type Form uint8

const (
	// FormPlain is replaced by the new name.
	FormPlain Form = iota
	// FormShorthandProperty is `{a}` in an object literal; becomes `{a: n}`.
	FormShorthandProperty
	// FormShorthandPattern is `{a} = o` in a pattern; becomes `{a: n} = o`.
	FormShorthandPattern
	// FormExportSpecifier is `export {a}`; becomes `export {n as a}`.
	FormExportSpecifier
	// FormImportSpecifier is `import {a}`; becomes `import {a as n}`.
	FormImportSpecifier
)

// Span is a half-open byte range [Start, End) in the analyzed source.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// =============================================================================
// Graph records
// =============================================================================

// Scope is one lexical region.
type Scope struct {
	ID       ScopeID
	Kind     ScopeKind
	Parent   ScopeID
	Children []ScopeID
	// Bindings declared directly in this scope, in declaration order.
	Bindings []BindingID
	Depth    int
	// Label names the construct that introduced the scope, e.g. a function name.
	Label string
	Span  Span
	Start ast.Location
	// Tainted is set when a dynamic-scope construct can observe this scope's bindings.
	Tainted bool

	subtreeBindings int
	names           map[string]BindingID
}

// Size returns the number of bindings declared directly in the scope.
func (s *Scope) Size() int { return len(s.Bindings) }

// SubtreeBindings returns the number of bindings declared in the scope and
// all of its descendants.
func (s *Scope) SubtreeBindings() int { return s.subtreeBindings }

// Declaration is one declaration site of a binding.
type Declaration struct {
	Role     Role
	Form     Form
	Span     Span
	Location ast.Location
}

// Reference is one resolved or unresolved use of an identifier.
type Reference struct {
	Role Role
	// Member is the accessed property name for RolePropertyAccess.
	Member string
	// Arity is the argument count for RoleCall.
	Arity    int
	Form     Form
	Span     Span
	Location ast.Location
	// Scope is the scope enclosing the occurrence.
	Scope ScopeID
}

// Binding is one declared identifier.
type Binding struct {
	ID       BindingID
	Name     string
	Kind     BindingKind
	Scope    ScopeID
	Exported bool
	// Declarations lists every declaration site; redeclared vars have several.
	Declarations []Declaration
	References   []Reference
	// DeclarationSnippet is a bounded excerpt of the declaration site.
	DeclarationSnippet string
	// SurroundingCode is a bounded excerpt of the lines around the declaration.
	SurroundingCode string
	// InitShape describes the initializer or default value, e.g. "number".
	InitShape string
	// EscapesBlock marks a function declared in a block whose name is also
	// used outside that block. Sloppy-mode scripts make such a function
	// visible in the enclosing function, so it must keep its name.
	EscapesBlock bool
}

// FreeReference is an identifier occurrence with no reachable binding.
type FreeReference struct {
	Name string
	Reference
}

// Occurrence is a byte range to rewrite for a binding.
type Occurrence struct {
	Span Span
	Form Form
}

// AnalysisResult is the output of Analyze.
//
// Description:
//
//	Scopes and Bindings are arenas addressed by ScopeID and BindingID; all
//	relations between records are plain id fields. The result is immutable
//	once Analyze returns and may be shared across goroutines.
type AnalysisResult struct {
	Scopes             []Scope
	Bindings           []Binding
	FreeReferences     []FreeReference
	HasDynamicFeatures bool
	// DynamicSites lists the locations of direct eval calls and with statements.
	DynamicSites []ast.Location

	freeInSubtree []map[string]struct{}
}
