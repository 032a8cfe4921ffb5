// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate re-analyzes rewritten source and reports whether the
// rename preserved program meaning.
package validate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/laxels/humanify-sub001/services/rename/ast"
	"github.com/laxels/humanify-sub001/services/rename/scope"
)

var tracer = otel.Tracer("humanify.rename.validate")

// IssueType classifies a validation finding.
type IssueType string

const (
	// Errors.
	IssueParseError           IssueType = "parse_error"
	IssueUndefinedReference   IssueType = "undefined_reference"
	IssueDuplicateDeclaration IssueType = "duplicate_declaration"
	IssueReservedWord         IssueType = "reserved_word"

	// Warnings.
	IssueShadowing      IssueType = "shadowing"
	IssueSuspiciousName IssueType = "suspicious_name"
	IssueLowConfidence  IssueType = "low_confidence"
)

// Issue is one finding.
type Issue struct {
	Type     IssueType     `json:"type"`
	Message  string        `json:"message"`
	Location *ast.Location `json:"location,omitempty"`
	// Name is the identifier the issue is about, when there is one.
	Name string `json:"name,omitempty"`
}

// Result is the outcome of Validate.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Err returns a *ValidationFailure when the result is invalid, else nil.
func (r *Result) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationFailure{Issues: r.Errors}
}

// ValidationFailure rejects a rewrite that failed a hard check.
type ValidationFailure struct {
	Issues []Issue `json:"issues"`
}

func (e *ValidationFailure) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	first := e.Issues[0]
	msg := fmt.Sprintf("validation failed: %s: %s", first.Type, first.Message)
	if len(e.Issues) > 1 {
		msg += fmt.Sprintf(" (and %d more)", len(e.Issues)-1)
	}
	return msg
}

// Names returns the sorted identifiers implicated by the failure.
func (e *ValidationFailure) Names() []string {
	set := make(map[string]struct{})
	for _, is := range e.Issues {
		if is.Name != "" {
			set[is.Name] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// AsFailure extracts a *ValidationFailure from err.
func AsFailure(err error) (*ValidationFailure, bool) {
	var vf *ValidationFailure
	ok := errors.As(err, &vf)
	return vf, ok
}

// Baseline carries facts about the original source that the rewrite is
// checked against.
type Baseline struct {
	// FreeNames are unresolved names of the original source. Only new free
	// names are errors.
	FreeNames []string

	// LowConfidence lists assigned names whose oracle confidence was low.
	LowConfidence []string
}

// BaselineFrom derives a baseline from the analysis of the original source.
func BaselineFrom(res *scope.AnalysisResult) Baseline {
	return Baseline{FreeNames: res.FreeNames()}
}

var validationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "humanify",
		Subsystem: "validate",
		Name:      "runs_total",
		Help:      "Total validation runs by outcome.",
	},
	[]string{"outcome"},
)

// Validate checks rewritten source text.
//
// Description:
//
//	Re-runs the scope analysis on text, independent of any earlier result,
//	and reports:
//
//	  errors:   parse_error, undefined_reference (a free name absent from
//	            base.FreeNames), duplicate_declaration, reserved_word
//	  warnings: shadowing, suspicious_name, low_confidence
//
//	Property keys and member names are never bindings, so reserved words in
//	those positions are not reported. Validation is deterministic: the same
//	text and baseline always produce an identical Result.
//
// Inputs:
//
//	ctx  - Context for cancellation. A canceled context is reported as a
//	       parse_error so the text is never accepted unchecked.
//	text - The rewritten source.
//	base - Facts about the original source.
//
// Outputs:
//
//	*Result - Never nil.
func Validate(ctx context.Context, text []byte, base Baseline) *Result {
	ctx, span := tracer.Start(ctx, "validate.Validate")
	defer span.End()

	res, r := analyze(ctx, text)
	if res == nil {
		return finish(span, r)
	}

	known := make(map[string]struct{}, len(base.FreeNames))
	for _, n := range base.FreeNames {
		known[n] = struct{}{}
	}
	for _, fr := range res.FreeReferences {
		if _, ok := known[fr.Name]; ok {
			continue
		}
		loc := fr.Location
		r.Errors = append(r.Errors, Issue{
			Type:     IssueUndefinedReference,
			Message:  fmt.Sprintf("%q at %s does not resolve to any binding", fr.Name, loc),
			Location: &loc,
			Name:     fr.Name,
		})
	}

	for _, d := range res.DuplicateDeclarations() {
		second := res.Binding(d.Bindings[1])
		loc := second.Declarations[0].Location
		r.Errors = append(r.Errors, Issue{
			Type:     IssueDuplicateDeclaration,
			Message:  fmt.Sprintf("%q is declared %d times in one %s scope", d.Name, len(d.Bindings), res.Scope(d.Scope).Kind),
			Location: &loc,
			Name:     d.Name,
		})
	}

	reservedIssues(res, r)

	low := make(map[string]struct{}, len(base.LowConfidence))
	for _, n := range base.LowConfidence {
		low[n] = struct{}{}
	}
	for i := range res.Bindings {
		b := &res.Bindings[i]
		loc := b.Declarations[0].Location
		if other, ok := res.Shadowed(b.ID); ok {
			r.Warnings = append(r.Warnings, Issue{
				Type: IssueShadowing,
				Message: fmt.Sprintf("%q shadows the binding declared at %s",
					b.Name, res.Binding(other).Declarations[0].Location),
				Location: &loc,
				Name:     b.Name,
			})
		}
		if why := Suspicious(b.Name); why != "" {
			r.Warnings = append(r.Warnings, Issue{
				Type:     IssueSuspiciousName,
				Message:  fmt.Sprintf("%q %s", b.Name, why),
				Location: &loc,
				Name:     b.Name,
			})
		}
		if _, ok := low[b.Name]; ok {
			r.Warnings = append(r.Warnings, Issue{
				Type:     IssueLowConfidence,
				Message:  fmt.Sprintf("%q was chosen with low confidence", b.Name),
				Location: &loc,
				Name:     b.Name,
			})
		}
	}

	return finish(span, r)
}

// QuickValidate runs only the parse and reserved-word checks.
func QuickValidate(ctx context.Context, text []byte) *Result {
	ctx, span := tracer.Start(ctx, "validate.QuickValidate")
	defer span.End()

	res, r := analyze(ctx, text)
	if res != nil {
		reservedIssues(res, r)
	}
	return finish(span, r)
}

// analyze returns a nil result and a parse_error issue when text cannot be
// analyzed.
func analyze(ctx context.Context, text []byte) (*scope.AnalysisResult, *Result) {
	r := &Result{Errors: []Issue{}, Warnings: []Issue{}}
	res, err := scope.Analyze(ctx, text)
	if err == nil {
		return res, r
	}

	is := Issue{Type: IssueParseError, Message: err.Error()}
	var perr *ast.ParseError
	if errors.As(err, &perr) {
		loc := perr.Location
		is.Location = &loc
	}
	r.Errors = append(r.Errors, is)
	return nil, r
}

func reservedIssues(res *scope.AnalysisResult, r *Result) {
	for i := range res.Bindings {
		b := &res.Bindings[i]
		if !ast.IsReserved(b.Name) {
			continue
		}
		loc := b.Declarations[0].Location
		r.Errors = append(r.Errors, Issue{
			Type:     IssueReservedWord,
			Message:  fmt.Sprintf("reserved word %q is declared as a %s binding", b.Name, b.Kind),
			Location: &loc,
			Name:     b.Name,
		})
	}
}

func finish(span trace.Span, r *Result) *Result {
	r.Valid = len(r.Errors) == 0
	outcome := "valid"
	if !r.Valid {
		outcome = "invalid"
		span.SetStatus(codes.Error, string(r.Errors[0].Type))
	}
	validationsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(
		attribute.Bool("valid", r.Valid),
		attribute.Int("errors", len(r.Errors)),
		attribute.Int("warnings", len(r.Warnings)),
	)
	return r
}

// failureTokens are names a language model emits when it fails to name
// something: placeholders, echoes of the prompt, and filler words.
var failureTokens = map[string]bool{
	"foo":          true,
	"bar":          true,
	"baz":          true,
	"qux":          true,
	"thing":        true,
	"stuff":        true,
	"unknown":      true,
	"placeholder":  true,
	"todo":         true,
	"tbd":          true,
	"newname":      true,
	"renamed":      true,
	"identifier":   true,
	"variable":     true,
	"binding":      true,
	"candidate":    true,
	"suggestion":   true,
	"originalname": true,
	"myvariable":   true,
	"myfunction":   true,
}

// Suspicious returns a short reason when name looks like a failed rename,
// or "" when it looks fine.
func Suspicious(name string) string {
	switch {
	case name == "":
		return ""
	case strings.Trim(name, "_$") == "":
		return "has no letters or digits"
	case len([]rune(strings.Trim(name, "_$"))) == 1:
		return "is a single letter"
	case hasNumberedPrefix(name, "temp"), hasNumberedPrefix(name, "tmp"), hasNumberedPrefix(name, "var"):
		return "is a numbered placeholder"
	case failureTokens[strings.ToLower(name)]:
		return "is a placeholder name"
	}
	return ""
}

// hasNumberedPrefix matches prefix, optionally followed by digits, ignoring
// case: "tmp", "Temp2", "var10".
func hasNumberedPrefix(name, prefix string) bool {
	lower := strings.ToLower(name)
	if !strings.HasPrefix(lower, prefix) {
		return false
	}
	rest := lower[len(prefix):]
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
