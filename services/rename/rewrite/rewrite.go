// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rewrite applies a name assignment to source text by splicing new
// names into the byte ranges recorded during analysis.
package rewrite

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/laxels/humanify-sub001/services/rename/scope"
)

// ErrOverlap is returned when two edits cover intersecting byte ranges.
var ErrOverlap = errors.New("rewrite: overlapping edits")

// ErrOutOfRange is returned when an edit falls outside the source.
var ErrOutOfRange = errors.New("rewrite: edit out of range")

// Edit replaces Span of the source with Text.
type Edit struct {
	Span    scope.Span
	Text    string
	Binding scope.BindingID
}

// Plan returns the edits that rename every binding in assignment whose
// final name differs from its original name, sorted by start offset.
//
// The replacement text depends on the occurrence form:
//
//	plain               a          -> n
//	shorthand property  {a}        -> {a: n}
//	shorthand pattern   {a} = o    -> {a: n} = o
//	export specifier    export {a} -> export {n as a}
//	import specifier    import {a} -> import {a as n}
func Plan(res *scope.AnalysisResult, assignment map[scope.BindingID]string) []Edit {
	ids := make([]scope.BindingID, 0, len(assignment))
	for id := range assignment {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var edits []Edit
	for _, id := range ids {
		name := assignment[id]
		orig := res.Binding(id).Name
		if name == orig {
			continue
		}
		for _, occ := range res.Occurrences(id) {
			edits = append(edits, Edit{Span: occ.Span, Text: spell(occ.Form, orig, name), Binding: id})
		}
	}
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].Span.Start < edits[j].Span.Start })
	return edits
}

func spell(form scope.Form, orig, name string) string {
	switch form {
	case scope.FormShorthandProperty, scope.FormShorthandPattern:
		return orig + ": " + name
	case scope.FormExportSpecifier:
		return name + " as " + orig
	case scope.FormImportSpecifier:
		return orig + " as " + name
	case scope.FormPlain:
		return name
	}
	return name
}

// Splice applies edits to src. Edits must not overlap; src is not modified.
func Splice(src []byte, edits []Edit) ([]byte, error) {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Span.Start < sorted[j].Span.Start })

	for i, e := range sorted {
		if e.Span.Start < 0 || e.Span.End > len(src) || e.Span.Start > e.Span.End {
			return nil, fmt.Errorf("%w: [%d,%d) in %d bytes", ErrOutOfRange, e.Span.Start, e.Span.End, len(src))
		}
		if i > 0 && sorted[i-1].Span.End > e.Span.Start {
			return nil, fmt.Errorf("%w: [%d,%d) and [%d,%d)", ErrOverlap,
				sorted[i-1].Span.Start, sorted[i-1].Span.End, e.Span.Start, e.Span.End)
		}
	}

	var out bytes.Buffer
	out.Grow(len(src))
	last := 0
	for _, e := range sorted {
		out.Write(src[last:e.Span.Start])
		out.WriteString(e.Text)
		last = e.Span.End
	}
	out.Write(src[last:])
	return out.Bytes(), nil
}

// Apply renames bindings in src according to assignment.
//
// Description:
//
//	Every declaration site and resolved reference of a renamed binding is
//	rewritten; free references, literals, comments, property keys and
//	whitespace are untouched. Bindings absent from assignment, or mapped to
//	their original name, are left as they are. res must be the analysis of
//	src.
//
// Outputs:
//
//	[]byte - The rewritten text. Equal to src when nothing is renamed.
//	error  - ErrOverlap or ErrOutOfRange when res does not describe src.
func Apply(src []byte, res *scope.AnalysisResult, assignment map[scope.BindingID]string) ([]byte, error) {
	return Splice(src, Plan(res, assignment))
}
