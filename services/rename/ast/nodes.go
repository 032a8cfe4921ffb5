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
	sitter "github.com/smacker/go-tree-sitter"
)

// tree-sitter-javascript node types used by the renaming engine.
const (
	NodeProgram             = "program"
	NodeIdentifier          = "identifier"
	NodePropertyIdentifier  = "property_identifier"
	NodeShorthandProperty   = "shorthand_property_identifier"
	NodeShorthandPattern    = "shorthand_property_identifier_pattern"
	NodeStatementIdentifier = "statement_identifier"
	NodeUndefined           = "undefined"
	NodeComment             = "comment"
	NodeError               = "ERROR"

	// Declarations
	NodeLexicalDeclaration  = "lexical_declaration"
	NodeVariableDeclaration = "variable_declaration"
	NodeVariableDeclarator  = "variable_declarator"
	NodeFunctionDeclaration = "function_declaration"
	NodeGeneratorFuncDecl   = "generator_function_declaration"
	NodeClassDeclaration    = "class_declaration"

	// Functions and classes in expression position
	NodeFunctionExpression = "function_expression"
	NodeFunctionLegacy     = "function"
	NodeGeneratorFunction  = "generator_function"
	NodeArrowFunction      = "arrow_function"
	NodeClass              = "class"
	NodeClassBody          = "class_body"
	NodeClassStaticBlock   = "class_static_block"
	NodeMethodDefinition   = "method_definition"
	NodeFieldDefinition    = "field_definition"
	NodeFormalParameters   = "formal_parameters"

	// Patterns
	NodeObjectPattern           = "object_pattern"
	NodeArrayPattern            = "array_pattern"
	NodeAssignmentPattern       = "assignment_pattern"
	NodeObjectAssignmentPattern = "object_assignment_pattern"
	NodePairPattern             = "pair_pattern"
	NodeRestPattern             = "rest_pattern"

	// Statements
	NodeStatementBlock   = "statement_block"
	NodeForStatement     = "for_statement"
	NodeForInStatement   = "for_in_statement"
	NodeSwitchBody       = "switch_body"
	NodeCatchClause      = "catch_clause"
	NodeWithStatement    = "with_statement"
	NodeLabeledStatement = "labeled_statement"
	NodeExportStatement  = "export_statement"
	NodeImportStatement  = "import_statement"
	NodeImportClause     = "import_clause"
	NodeNamedImports     = "named_imports"
	NodeImportSpecifier  = "import_specifier"
	NodeNamespaceImport  = "namespace_import"
	NodeExportClause     = "export_clause"
	NodeExportSpecifier  = "export_specifier"

	// Expressions
	NodeCallExpression       = "call_expression"
	NodeNewExpression        = "new_expression"
	NodeMemberExpression     = "member_expression"
	NodeSubscriptExpression  = "subscript_expression"
	NodeAssignmentExpression = "assignment_expression"
	NodeAugmentedAssignment  = "augmented_assignment_expression"
	NodeUpdateExpression     = "update_expression"
	NodeObject               = "object"
	NodePair                 = "pair"
	NodeArray                = "array"
	NodeArguments            = "arguments"
	NodeString               = "string"
	NodeTemplateString       = "template_string"
	NodeNumber               = "number"
	NodeRegex                = "regex"
	NodeTrue                 = "true"
	NodeFalse                = "false"
	NodeNull                 = "null"
	NodeParenthesized        = "parenthesized_expression"
	NodeBinaryExpression     = "binary_expression"
	NodeUnaryExpression      = "unary_expression"
	NodeAwaitExpression      = "await_expression"
	NodeSequenceExpression   = "sequence_expression"
)

// IsFunctionNode reports whether n introduces a function scope.
//
// Both "function_expression" and the older "function" spelling are accepted;
// the anonymous "function" keyword token is rejected by the IsNamed check.
func IsFunctionNode(n *sitter.Node) bool {
	if n == nil || !n.IsNamed() {
		return false
	}
	switch n.Type() {
	case NodeFunctionDeclaration, NodeGeneratorFuncDecl, NodeFunctionExpression,
		NodeFunctionLegacy, NodeGeneratorFunction, NodeArrowFunction, NodeMethodDefinition:
		return true
	}
	return false
}

// IsClassNode reports whether n is a class declaration or class expression.
func IsClassNode(n *sitter.Node) bool {
	if n == nil || !n.IsNamed() {
		return false
	}
	return n.Type() == NodeClassDeclaration || n.Type() == NodeClass
}

// Text returns the source text spanned by n.
func Text(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	return string(content[n.StartByte():n.EndByte()])
}

// SameNode reports whether a and b denote the same syntax node.
//
// Node handles are compared by span and type rather than by pointer.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// LocationOf returns the 1-based line and 0-based column of n's start.
func LocationOf(n *sitter.Node) Location {
	p := n.StartPoint()
	return Location{
		Line:   int(p.Row) + 1,
		Column: int(p.Column),
		Offset: int(n.StartByte()),
	}
}
