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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/laxels/humanify-sub001/services/rename/ast"
)

// Classify returns the role of an identifier occurrence that is not a
// declaration site.
//
// Description:
//
//	Rules apply in priority order: assignment target is a write, call or
//	constructor callee is a call, object of a non-computed member access is
//	a property access, object-literal shorthand is a shorthand, anything else
//	is a read. Only n and its parent are inspected.
//
// Outputs:
//
//	Role   - The role.
//	string - The accessed member name for RolePropertyAccess.
//	int    - The argument count for RoleCall.
func Classify(n *sitter.Node, content []byte) (Role, string, int) {
	if n.Type() == ast.NodeShorthandProperty {
		return RoleShorthand, "", 0
	}

	parent := n.Parent()
	if parent == nil {
		return RoleRead, "", 0
	}

	switch parent.Type() {
	case ast.NodeAssignmentExpression, ast.NodeAugmentedAssignment:
		if ast.SameNode(parent.ChildByFieldName("left"), n) {
			return RoleWrite, "", 0
		}

	case ast.NodeUpdateExpression:
		if ast.SameNode(parent.ChildByFieldName("argument"), n) {
			return RoleWrite, "", 0
		}

	case ast.NodeForInStatement:
		if ast.SameNode(parent.ChildByFieldName("left"), n) {
			return RoleWrite, "", 0
		}

	case ast.NodeCallExpression:
		if ast.SameNode(parent.ChildByFieldName("function"), n) {
			return RoleCall, "", arity(parent.ChildByFieldName("arguments"))
		}

	case ast.NodeNewExpression:
		if ast.SameNode(parent.ChildByFieldName("constructor"), n) {
			return RoleCall, "", arity(parent.ChildByFieldName("arguments"))
		}

	case ast.NodeMemberExpression:
		if ast.SameNode(parent.ChildByFieldName("object"), n) {
			prop := parent.ChildByFieldName("property")
			if prop != nil && (prop.Type() == ast.NodePropertyIdentifier || prop.Type() == "private_property_identifier") {
				return RolePropertyAccess, ast.Text(prop, content), 0
			}
		}
	}
	return RoleRead, "", 0
}

// arity counts call arguments; a tagged template counts as one.
func arity(args *sitter.Node) int {
	if args == nil {
		return 0
	}
	if args.Type() != ast.NodeArguments {
		return 1
	}
	return int(args.NamedChildCount())
}

// shapeOf describes an initializer expression for type hints. It returns ""
// when nothing useful is known.
func shapeOf(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case ast.NodeNumber:
		return "number"
	case ast.NodeString, ast.NodeTemplateString:
		return "string"
	case ast.NodeTrue, ast.NodeFalse:
		return "boolean"
	case ast.NodeNull:
		return "null"
	case ast.NodeUndefined:
		return "undefined"
	case ast.NodeRegex:
		return "RegExp"
	case ast.NodeArray:
		return "array"
	case ast.NodeObject:
		return "object"
	case ast.NodeFunctionExpression, ast.NodeFunctionLegacy, ast.NodeGeneratorFunction, ast.NodeArrowFunction:
		return "function"
	case ast.NodeClass:
		return "class"
	case ast.NodeParenthesized:
		if n.NamedChildCount() == 1 {
			return shapeOf(n.NamedChild(0), content)
		}
	case ast.NodeNewExpression:
		if ctor := n.ChildByFieldName("constructor"); ctor != nil {
			return "instance of " + ast.Text(ctor, content)
		}
	case ast.NodeAwaitExpression:
		return "promise result"
	case ast.NodeBinaryExpression:
		op := n.ChildByFieldName("operator")
		if op == nil {
			return ""
		}
		switch ast.Text(op, content) {
		case "===", "!==", "==", "!=", "<", ">", "<=", ">=", "instanceof", "in":
			return "boolean"
		case "-", "*", "/", "%", "**", "|", "&", "^", "<<", ">>", ">>>":
			return "number"
		}
	case ast.NodeUnaryExpression:
		text := ast.Text(n, content)
		switch {
		case text == "!0" || text == "!1":
			return "boolean"
		case strings.HasPrefix(text, "void"):
			return "undefined"
		case strings.HasPrefix(text, "typeof"):
			return "string"
		case strings.HasPrefix(text, "!"):
			return "boolean"
		case strings.HasPrefix(text, "-") || strings.HasPrefix(text, "+") || strings.HasPrefix(text, "~"):
			return "number"
		}
	case ast.NodeCallExpression:
		fn := n.ChildByFieldName("function")
		if fn != nil && fn.Type() == ast.NodeIdentifier && ast.Text(fn, content) == "require" {
			return "module"
		}
	}
	return ""
}
