// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dossier

import (
	"fmt"
	"strings"

	"github.com/laxels/humanify-sub001/services/rename/scope"
)

// roleOrder fixes the order roles appear in a usage summary.
var roleOrder = []struct {
	role scope.Role
	verb string
}{
	{scope.RoleRead, "read"},
	{scope.RoleWrite, "written"},
	{scope.RoleCall, "called"},
	{scope.RolePropertyAccess, "member-accessed"},
	{scope.RoleShorthand, "used as shorthand property"},
}

// UsageSummary renders how a binding is used, e.g.
// "read 3x, called 2x (with 1 args); members: .length, .push".
func UsageSummary(res *scope.AnalysisResult, id scope.BindingID) string {
	b := res.Binding(id)
	if len(b.References) == 0 {
		return "declared but never referenced"
	}

	counts := res.RoleCounts(id)
	var parts []string
	for _, ro := range roleOrder {
		n := counts[ro.role]
		if n == 0 {
			continue
		}
		part := fmt.Sprintf("%s %dx", ro.verb, n)
		if ro.role == scope.RoleCall {
			if ar := arities(b); ar != "" {
				part += " (with " + ar + " args)"
			}
		}
		parts = append(parts, part)
	}

	summary := strings.Join(parts, ", ")
	if members := members(b); len(members) > 0 {
		summary += "; members: " + strings.Join(members, ", ")
	}
	if b.Kind == scope.KindVar && len(b.Declarations) > 1 {
		summary += fmt.Sprintf("; declared %d times", len(b.Declarations))
	}
	return summary
}

// TypeHints returns best-effort type hints for a binding. The result may be
// empty but is never nil.
func TypeHints(res *scope.AnalysisResult, id scope.BindingID) []string {
	b := res.Binding(id)
	hints := []string{}
	seen := make(map[string]bool)
	add := func(h string) {
		if h != "" && !seen[h] {
			seen[h] = true
			hints = append(hints, h)
		}
	}

	add(b.InitShape)
	if b.Kind == scope.KindClass {
		add("class")
	}
	if b.Kind == scope.KindCatchParam {
		add("error")
	}

	counts := res.RoleCounts(id)
	if counts[scope.RoleCall] > 0 && b.InitShape != "class" {
		add("callable")
	}
	for _, m := range members(b) {
		add(memberHints[strings.TrimPrefix(m, ".")])
	}
	return hints
}

// memberHints maps well-known member names to the type they suggest.
var memberHints = map[string]string{
	"length":      "array or string",
	"push":        "array",
	"pop":         "array",
	"map":         "array",
	"filter":      "array",
	"reduce":      "array",
	"forEach":     "iterable",
	"slice":       "array or string",
	"indexOf":     "array or string",
	"split":       "string",
	"trim":        "string",
	"toLowerCase": "string",
	"toUpperCase": "string",
	"replace":     "string",
	"charCodeAt":  "string",
	"then":        "promise",
	"catch":       "promise",
	"get":         "map-like",
	"set":         "map-like",
	"has":         "set or map",
	"add":         "set",
	"on":          "event emitter",
	"emit":        "event emitter",
	"message":     "error",
	"stack":       "error",
	"prototype":   "constructor",
	"apply":       "function",
	"call":        "function",
	"bind":        "function",
}

func members(b *scope.Binding) []string {
	var out []string
	seen := make(map[string]bool)
	for _, ref := range b.References {
		if ref.Role != scope.RolePropertyAccess || seen[ref.Member] {
			continue
		}
		seen[ref.Member] = true
		out = append(out, "."+ref.Member)
	}
	return out
}

func arities(b *scope.Binding) string {
	var out []string
	seen := make(map[int]bool)
	for _, ref := range b.References {
		if ref.Role != scope.RoleCall || seen[ref.Arity] {
			continue
		}
		seen[ref.Arity] = true
		out = append(out, fmt.Sprint(ref.Arity))
	}
	return strings.Join(out, " or ")
}
