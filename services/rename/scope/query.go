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
	"sort"
)

// Scope returns the scope with the given id.
func (r *AnalysisResult) Scope(id ScopeID) *Scope {
	return &r.Scopes[id]
}

// Binding returns the binding with the given id.
func (r *AnalysisResult) Binding(id BindingID) *Binding {
	return &r.Bindings[id]
}

// ScopeDepth returns the number of ancestors of s.
func (r *AnalysisResult) ScopeDepth(s ScopeID) int {
	return r.Scopes[s].Depth
}

// SubtreeBindingCount returns the number of bindings declared in s and its
// descendants.
func (r *AnalysisResult) SubtreeBindingCount(s ScopeID) int {
	return r.Scopes[s].subtreeBindings
}

// IsAncestor reports whether anc is a strict ancestor of s.
func (r *AnalysisResult) IsAncestor(anc, s ScopeID) bool {
	for id := r.Scopes[s].Parent; id != NoScope; id = r.Scopes[id].Parent {
		if id == anc {
			return true
		}
	}
	return false
}

// Within reports whether s is anc or one of its descendants.
func (r *AnalysisResult) Within(s, anc ScopeID) bool {
	return s == anc || r.IsAncestor(anc, s)
}

// Ancestors returns the strict ancestors of s, nearest first.
func (r *AnalysisResult) Ancestors(s ScopeID) []ScopeID {
	var out []ScopeID
	for id := r.Scopes[s].Parent; id != NoScope; id = r.Scopes[id].Parent {
		out = append(out, id)
	}
	return out
}

// BindingsInScope returns the bindings declared directly in s.
func (r *AnalysisResult) BindingsInScope(s ScopeID) []BindingID {
	return r.Scopes[s].Bindings
}

// IsFreeInSubtree reports whether an unresolved reference named name occurs
// in s or any of its descendants.
func (r *AnalysisResult) IsFreeInSubtree(s ScopeID, name string) bool {
	if int(s) >= len(r.freeInSubtree) {
		return false
	}
	_, ok := r.freeInSubtree[s][name]
	return ok
}

// FreeNamesInSubtree returns the sorted names of unresolved references in s
// and its descendants.
func (r *AnalysisResult) FreeNamesInSubtree(s ScopeID) []string {
	if int(s) >= len(r.freeInSubtree) {
		return nil
	}
	return sortedKeys(r.freeInSubtree[s])
}

// FreeNames returns the sorted, de-duplicated names of all unresolved references.
func (r *AnalysisResult) FreeNames() []string {
	set := make(map[string]struct{}, len(r.FreeReferences))
	for _, fr := range r.FreeReferences {
		set[fr.Name] = struct{}{}
	}
	return sortedKeys(set)
}

// IsTainted reports whether binding id lives in a scope reachable by a
// dynamic-scope construct.
func (r *AnalysisResult) IsTainted(id BindingID) bool {
	return r.Scopes[r.Bindings[id].Scope].Tainted
}

// ReferencedWithin reports whether binding id has a reference located in s
// or one of its descendants.
func (r *AnalysisResult) ReferencedWithin(id BindingID, s ScopeID) bool {
	for _, ref := range r.Bindings[id].References {
		if r.Within(ref.Scope, s) {
			return true
		}
	}
	return false
}

// Shadowed returns the nearest binding in an ancestor scope that binding id
// hides, if any.
func (r *AnalysisResult) Shadowed(id BindingID) (BindingID, bool) {
	b := &r.Bindings[id]
	for _, anc := range r.Ancestors(b.Scope) {
		if other, ok := r.Scopes[anc].names[b.Name]; ok {
			return other, true
		}
	}
	return 0, false
}

// Duplicate is a name declared by more than one binding in one scope.
type Duplicate struct {
	Name     string      `json:"name"`
	Scope    ScopeID     `json:"scope"`
	Bindings []BindingID `json:"bindings"`
}

// DuplicateDeclarations reports every scope that holds two or more distinct
// bindings with the same name. Merged var redeclarations are one binding and
// are not reported.
func (r *AnalysisResult) DuplicateDeclarations() []Duplicate {
	var out []Duplicate
	for i := range r.Scopes {
		byName := make(map[string][]BindingID)
		var order []string
		for _, id := range r.Scopes[i].Bindings {
			name := r.Bindings[id].Name
			if _, seen := byName[name]; !seen {
				order = append(order, name)
			}
			byName[name] = append(byName[name], id)
		}
		for _, name := range order {
			if ids := byName[name]; len(ids) > 1 {
				out = append(out, Duplicate{Name: name, Scope: ScopeID(i), Bindings: ids})
			}
		}
	}
	return out
}

// ProcessingOrder returns every binding id in the order bindings should be
// named: owning scope's subtree binding count descending, then scope depth
// ascending, then declaration order.
func (r *AnalysisResult) ProcessingOrder() []BindingID {
	order := make([]BindingID, len(r.Bindings))
	for i := range order {
		order[i] = BindingID(i)
	}
	sort.SliceStable(order, func(i, j int) bool {
		si := &r.Scopes[r.Bindings[order[i]].Scope]
		sj := &r.Scopes[r.Bindings[order[j]].Scope]
		if si.subtreeBindings != sj.subtreeBindings {
			return si.subtreeBindings > sj.subtreeBindings
		}
		if si.Depth != sj.Depth {
			return si.Depth < sj.Depth
		}
		return order[i] < order[j]
	})
	return order
}

// ScopeOrder returns scope ids ordered by subtree binding count descending,
// ties broken by creation order.
func (r *AnalysisResult) ScopeOrder() []ScopeID {
	order := make([]ScopeID, len(r.Scopes))
	for i := range order {
		order[i] = ScopeID(i)
	}
	sort.SliceStable(order, func(i, j int) bool {
		ci, cj := r.Scopes[order[i]].subtreeBindings, r.Scopes[order[j]].subtreeBindings
		if ci != cj {
			return ci > cj
		}
		return order[i] < order[j]
	})
	return order
}

// Occurrences returns every declaration and reference site of binding id,
// sorted by position.
func (r *AnalysisResult) Occurrences(id BindingID) []Occurrence {
	b := &r.Bindings[id]
	out := make([]Occurrence, 0, len(b.Declarations)+len(b.References))
	for _, d := range b.Declarations {
		out = append(out, Occurrence{Span: d.Span, Form: d.Form})
	}
	for _, ref := range b.References {
		out = append(out, Occurrence{Span: ref.Span, Form: ref.Form})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Span.Start < out[j].Span.Start })
	return out
}

// RoleCounts tallies the references of binding id by role.
func (r *AnalysisResult) RoleCounts(id BindingID) map[Role]int {
	counts := make(map[Role]int)
	for _, ref := range r.Bindings[id].References {
		counts[ref.Role]++
	}
	return counts
}

// UsageHints returns short descriptions of how binding id is used: accessed
// members in first-seen order followed by observed call arities.
func (r *AnalysisResult) UsageHints(id BindingID) []string {
	var hints []string
	seenMember := make(map[string]bool)
	seenArity := make(map[int]bool)
	var arities []int
	for _, ref := range r.Bindings[id].References {
		switch ref.Role {
		case RolePropertyAccess:
			if !seenMember[ref.Member] {
				seenMember[ref.Member] = true
				hints = append(hints, "."+ref.Member)
			}
		case RoleCall:
			if !seenArity[ref.Arity] {
				seenArity[ref.Arity] = true
				arities = append(arities, ref.Arity)
			}
		case RoleRead, RoleWrite, RoleShorthand, RoleDeclaration, RoleCatch:
		}
	}
	sort.Ints(arities)
	for _, n := range arities {
		hints = append(hints, fmt.Sprintf("called with %d args", n))
	}
	return hints
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
