// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package solver assigns final names to bindings from ranked oracle
// candidates without changing what any identifier resolves to.
package solver

import (
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/laxels/humanify-sub001/services/rename/ast"
	"github.com/laxels/humanify-sub001/services/rename/scope"
)

// Candidate is one proposed name for a binding.
type Candidate struct {
	Name       string
	Confidence float64
}

// Reason says why a binding kept its original name.
type Reason string

const (
	ReasonTainted     Reason = "tainted"
	ReasonBlockEscape Reason = "block_function_escape"
	ReasonExported    Reason = "exported"
	ReasonNoCandidate Reason = "no_acceptable_candidate"
	ReasonBelowMin    Reason = "below_min_confidence"
)

// Rejection records one candidate that failed a constraint.
type Rejection struct {
	Name       string     `json:"name"`
	Constraint Constraint `json:"constraint"`
}

// Constraint names the check a candidate failed.
type Constraint string

const (
	ConstraintInvalid        Constraint = "invalid_identifier"
	ConstraintReserved       Constraint = "reserved_word"
	ConstraintSameScope      Constraint = "same_scope_collision"
	ConstraintFreeReference  Constraint = "free_reference"
	ConstraintAncestorName   Constraint = "ancestor_name"
	ConstraintDescendantName Constraint = "descendant_capture"
)

// Fallback is a notice that a binding with candidates kept its original
// name. It is not an error.
type Fallback struct {
	Binding    scope.BindingID `json:"binding"`
	Name       string          `json:"name"`
	Reason     Reason          `json:"reason"`
	Rejections []Rejection     `json:"rejections,omitempty"`
}

// Solution is the output of Solve.
type Solution struct {
	// Assignment maps every binding that had candidates to its final name.
	// A fallback maps to the original name.
	Assignment map[scope.BindingID]string

	// Confidence of the accepted candidate, keyed like Assignment.
	// Fallbacks are absent.
	Confidence map[scope.BindingID]float64

	Fallbacks []Fallback
}

// Renamed returns the bindings whose final name differs from the original,
// in ascending id order.
func (s *Solution) Renamed(res *scope.AnalysisResult) []scope.BindingID {
	var out []scope.BindingID
	for id, name := range s.Assignment {
		if res.Binding(id).Name != name {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LowConfidenceNames returns the sorted, de-duplicated final names whose
// accepted confidence is below threshold.
func (s *Solution) LowConfidenceNames(res *scope.AnalysisResult, threshold float64) []string {
	set := make(map[string]struct{})
	for id, c := range s.Confidence {
		name := s.Assignment[id]
		if c < threshold && name != res.Binding(id).Name {
			set[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Options configures Solve.
type Options struct {
	// PreserveExports keeps exported bindings under their original name.
	// Default: true
	PreserveExports bool

	// MinConfidence discards candidates below this confidence. Default: 0
	MinConfidence float64

	// Logger receives fallback notices at Debug. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{PreserveExports: true}
}

var solverFallbacksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "humanify",
		Subsystem: "solver",
		Name:      "fallbacks_total",
		Help:      "Total bindings that kept their original name despite having candidates.",
	},
	[]string{"reason"},
)

// Solve chooses a final name for every binding that has candidates.
//
// Description:
//
//	Bindings are visited in res.ProcessingOrder(), which places every scope
//	after its ancestors. For each binding, candidates are scanned by
//	confidence descending (stable on input order) and the first one that
//	passes every constraint is accepted:
//
//	  1. it is a valid, non-reserved identifier;
//	  2. no other binding in the same scope currently has that name;
//	  3. no free reference of that name occurs in the binding's scope subtree;
//	  4. no binding in an ancestor scope has that final name, unless that
//	     binding shares this binding's original name;
//	  5. no binding in a descendant scope currently has that name while a
//	     reference to this binding occurs inside that descendant's subtree.
//
//	Keeping the current name is always accepted. Bindings in tainted scopes,
//	block functions that escape their block and, with PreserveExports,
//	exported bindings are never renamed.
//
// Inputs:
//
//	res        - The analysis of the source being renamed.
//	candidates - Ranked candidates per binding. Bindings absent from the map
//	             keep their names and are absent from the Assignment.
//	opts       - Solver options.
//
// Outputs:
//
//	*Solution - The assignment and fallback notices. Never nil.
//
// Thread Safety:
//
//	Solve does not mutate res or candidates and is safe to call
//	concurrently. Identical inputs yield identical output.
func Solve(res *scope.AnalysisResult, candidates map[scope.BindingID][]Candidate, opts Options) *Solution {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &state{
		res:     res,
		current: make([]string, len(res.Bindings)),
		byName:  make(map[string][]scope.BindingID),
		sol: &Solution{
			Assignment: make(map[scope.BindingID]string),
			Confidence: make(map[scope.BindingID]float64),
		},
	}
	for i := range res.Bindings {
		name := res.Bindings[i].Name
		s.current[i] = name
		s.byName[name] = append(s.byName[name], scope.BindingID(i))
	}

	for _, id := range res.ProcessingOrder() {
		cands, ok := candidates[id]
		if !ok {
			continue
		}
		b := res.Binding(id)

		switch {
		case res.IsTainted(id):
			s.fallback(id, ReasonTainted, nil)
			continue
		case b.EscapesBlock:
			s.fallback(id, ReasonBlockEscape, nil)
			continue
		case b.Exported && opts.PreserveExports:
			s.fallback(id, ReasonExported, nil)
			continue
		}

		ranked := rank(cands, opts.MinConfidence)
		if len(ranked) == 0 {
			s.fallback(id, ReasonBelowMin, nil)
			continue
		}

		var rejected []Rejection
		accepted := false
		for _, c := range ranked {
			if failed := s.check(id, c.Name); failed != "" {
				rejected = append(rejected, Rejection{Name: c.Name, Constraint: failed})
				continue
			}
			s.rename(id, c.Name)
			s.sol.Assignment[id] = c.Name
			s.sol.Confidence[id] = c.Confidence
			accepted = true
			break
		}
		if !accepted {
			s.fallback(id, ReasonNoCandidate, rejected)
		}
	}

	for _, f := range s.sol.Fallbacks {
		solverFallbacksTotal.WithLabelValues(string(f.Reason)).Inc()
		logger.Debug("solver: binding keeps original name",
			slog.Int("binding", int(f.Binding)),
			slog.String("name", f.Name),
			slog.String("reason", string(f.Reason)),
			slog.Int("rejected", len(f.Rejections)),
		)
	}
	return s.sol
}

type state struct {
	res     *scope.AnalysisResult
	current []string
	// byName indexes bindings by current name.
	byName map[string][]scope.BindingID
	sol    *Solution
}

func (s *state) rename(id scope.BindingID, name string) {
	old := s.current[id]
	if old == name {
		return
	}
	ids := s.byName[old]
	for i, other := range ids {
		if other == id {
			s.byName[old] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	s.byName[name] = append(s.byName[name], id)
	s.current[id] = name
}

func (s *state) fallback(id scope.BindingID, reason Reason, rejected []Rejection) {
	name := s.res.Binding(id).Name
	s.sol.Assignment[id] = name
	s.sol.Fallbacks = append(s.sol.Fallbacks, Fallback{
		Binding:    id,
		Name:       name,
		Reason:     reason,
		Rejections: rejected,
	})
}

// check returns the first constraint name violates, or "".
func (s *state) check(id scope.BindingID, name string) Constraint {
	if name == s.current[id] {
		return ""
	}
	if !ast.IsValidIdentifier(name) {
		return ConstraintInvalid
	}
	if ast.IsReserved(name) {
		return ConstraintReserved
	}

	res := s.res
	b := res.Binding(id)

	if res.IsFreeInSubtree(b.Scope, name) {
		return ConstraintFreeReference
	}

	for _, other := range s.byName[name] {
		if other == id {
			continue
		}
		otherScope := res.Binding(other).Scope
		switch {
		case otherScope == b.Scope:
			return ConstraintSameScope
		case res.IsAncestor(otherScope, b.Scope):
			if res.Binding(other).Name != b.Name {
				return ConstraintAncestorName
			}
		case res.IsAncestor(b.Scope, otherScope):
			if res.ReferencedWithin(id, otherScope) {
				return ConstraintDescendantName
			}
		}
	}
	return ""
}

// rank drops candidates below floor and sorts the rest by confidence
// descending, stable on input order.
func rank(cands []Candidate, floor float64) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Confidence >= floor {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}
