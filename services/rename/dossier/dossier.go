// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dossier renders bindings into the per-scope batches sent to the
// naming oracle.
//
// A dossier describes one binding without exposing the analysis graph: its
// original name and kind, a declaration excerpt, a usage summary derived
// from reference roles, and best-effort type hints. Dossiers are grouped by
// owning scope; scopes are ordered so the most structurally significant
// ones are named first.
package dossier

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/laxels/humanify-sub001/services/rename/scope"
)

// Dossier is the oracle-facing description of one binding.
type Dossier struct {
	ID                 string   `json:"id"`
	OriginalName       string   `json:"originalName"`
	Kind               string   `json:"kind"`
	Exported           bool     `json:"exported"`
	DeclarationSnippet string   `json:"declarationSnippet"`
	UsageSummary       string   `json:"usageSummary"`
	TypeHints          []string `json:"typeHints"`
	SurroundingCode    string   `json:"surroundingCode,omitempty"`

	Binding scope.BindingID `json:"-"`
}

// Batch is a bounded group of dossiers from one scope.
//
// Every batch of a split scope carries the same full ScopeSummary.
type Batch struct {
	Scope        scope.ScopeID
	Index        int
	ScopeSummary string
	Dossiers     []Dossier
}

// Options configures Build.
type Options struct {
	// BatchSize caps the number of dossiers per batch.
	// Default: 25
	BatchSize int

	// PreserveExports omits exported bindings from the batches.
	// Default: true
	PreserveExports bool

	// IncludeSurroundingCode attaches each binding's surrounding source lines.
	// Default: true
	IncludeSurroundingCode bool
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		BatchSize:              25,
		PreserveExports:        true,
		IncludeSurroundingCode: true,
	}
}

// Option is a functional option for Build.
type Option func(*Options)

// WithBatchSize sets the per-batch dossier cap.
func WithBatchSize(n int) Option {
	return func(o *Options) { o.BatchSize = n }
}

// WithPreserveExports controls whether exported bindings are offered for renaming.
func WithPreserveExports(preserve bool) Option {
	return func(o *Options) { o.PreserveExports = preserve }
}

// WithSurroundingCode controls whether dossiers carry surrounding source lines.
func WithSurroundingCode(include bool) Option {
	return func(o *Options) { o.IncludeSurroundingCode = include }
}

// IDFor returns the dossier id of a binding.
func IDFor(id scope.BindingID) string {
	return "b" + strconv.Itoa(int(id))
}

// ParseID inverts IDFor.
func ParseID(s string) (scope.BindingID, bool) {
	if !strings.HasPrefix(s, "b") {
		return 0, false
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return scope.BindingID(n), true
}

// Build groups eligible bindings by scope and renders them into batches.
//
// Description:
//
//	Scopes are visited in res.ScopeOrder(): descendant-binding count
//	descending, ties by creation order. Bindings in tainted scopes and block
//	functions marked EscapesBlock are never offered; exported bindings are
//	omitted when PreserveExports is set. A scope with more eligible bindings
//	than BatchSize is split into consecutive batches that share the scope summary.
//
// Inputs:
//
//	res  - The analysis result. Must not be nil.
//	opts - Functional options.
//
// Outputs:
//
//	[]Batch - Batches in processing order. Empty when nothing is eligible.
//
// Thread Safety:
//
//	Safe for concurrent use; res is only read.
func Build(res *scope.AnalysisResult, opts ...Option) []Batch {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.BatchSize <= 0 {
		options.BatchSize = DefaultOptions().BatchSize
	}

	var batches []Batch
	for _, sid := range res.ScopeOrder() {
		sc := res.Scope(sid)
		if sc.Tainted {
			continue
		}

		var dossiers []Dossier
		for _, bid := range sc.Bindings {
			b := res.Binding(bid)
			if b.Exported && options.PreserveExports || b.EscapesBlock {
				continue
			}
			dossiers = append(dossiers, Render(res, bid, options.IncludeSurroundingCode))
		}
		if len(dossiers) == 0 {
			continue
		}

		summary := ScopeSummary(res, sid)
		for i, start := 0, 0; start < len(dossiers); i, start = i+1, start+options.BatchSize {
			end := start + options.BatchSize
			if end > len(dossiers) {
				end = len(dossiers)
			}
			batches = append(batches, Batch{
				Scope:        sid,
				Index:        i,
				ScopeSummary: summary,
				Dossiers:     dossiers[start:end],
			})
		}
	}
	return batches
}

// Render builds the dossier of one binding.
func Render(res *scope.AnalysisResult, id scope.BindingID, withContext bool) Dossier {
	b := res.Binding(id)
	d := Dossier{
		ID:                 IDFor(id),
		OriginalName:       b.Name,
		Kind:               b.Kind.String(),
		Exported:           b.Exported,
		DeclarationSnippet: b.DeclarationSnippet,
		UsageSummary:       UsageSummary(res, id),
		TypeHints:          TypeHints(res, id),
		Binding:            id,
	}
	if withContext {
		d.SurroundingCode = b.SurroundingCode
	}
	return d
}

// ScopeSummary describes a scope for the oracle: its kind and label, the
// bindings it declares, its nesting, and the global names its code uses.
func ScopeSummary(res *scope.AnalysisResult, id scope.ScopeID) string {
	sc := res.Scope(id)
	var sb strings.Builder

	sb.WriteString(sc.Kind.String())
	sb.WriteString(" scope")
	if sc.Label != "" && sc.Label != "for" && sc.Label != "catch" {
		fmt.Fprintf(&sb, " %q", sc.Label)
	}
	fmt.Fprintf(&sb, " at line %d, depth %d", sc.Start.Line, sc.Depth)

	names := make([]string, 0, len(sc.Bindings))
	for _, bid := range sc.Bindings {
		b := res.Binding(bid)
		names = append(names, fmt.Sprintf("%s (%s)", b.Name, b.Kind))
	}
	if len(names) > 0 {
		fmt.Fprintf(&sb, "; declares %s", strings.Join(names, ", "))
	}
	if n := len(sc.Children); n > 0 {
		fmt.Fprintf(&sb, "; %d nested scopes holding %d bindings", n, res.SubtreeBindingCount(id)-sc.Size())
	}
	if free := res.FreeNamesInSubtree(id); len(free) > 0 {
		const maxFree = 20
		if len(free) > maxFree {
			free = append(free[:maxFree:maxFree], "…")
		}
		fmt.Fprintf(&sb, "; uses globals %s", strings.Join(free, ", "))
	}
	return sb.String()
}
