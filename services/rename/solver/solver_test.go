// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package solver

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/laxels/humanify-sub001/services/rename/ast"
	"github.com/laxels/humanify-sub001/services/rename/scope"
)

func analyze(t *testing.T, src string) *scope.AnalysisResult {
	t.Helper()
	res, err := scope.Analyze(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return res
}

// named returns the ids of bindings called name, in declaration order.
func named(t *testing.T, res *scope.AnalysisResult, name string) []scope.BindingID {
	t.Helper()
	var out []scope.BindingID
	for i := range res.Bindings {
		if res.Bindings[i].Name == name {
			out = append(out, scope.BindingID(i))
		}
	}
	if len(out) == 0 {
		t.Fatalf("no binding named %q", name)
	}
	return out
}

// finals returns the final name of every binding, in id order.
func finals(res *scope.AnalysisResult, sol *Solution) []string {
	out := make([]string, len(res.Bindings))
	for i := range res.Bindings {
		out[i] = res.Bindings[i].Name
		if name, ok := sol.Assignment[scope.BindingID(i)]; ok {
			out[i] = name
		}
	}
	return out
}

func cands(names ...string) []Candidate {
	out := make([]Candidate, len(names))
	for i, n := range names {
		out[i] = Candidate{Name: n, Confidence: 1 - float64(i)*0.1}
	}
	return out
}

func fallbackFor(sol *Solution, id scope.BindingID) (Fallback, bool) {
	for _, f := range sol.Fallbacks {
		if f.Binding == id {
			return f, true
		}
	}
	return Fallback{}, false
}

func TestSolve_PreservesExistingShadowing(t *testing.T) {
	res := analyze(t, `const a = 1; function foo() { const a = 2; }`)
	as := named(t, res, "a")
	if len(as) != 2 {
		t.Fatalf("got %d bindings named a, want 2", len(as))
	}

	sol := Solve(res, map[scope.BindingID][]Candidate{
		as[0]: cands("count"),
		as[1]: cands("count"),
	}, DefaultOptions())

	want := []string{"count", "foo", "count"}
	if diff := cmp.Diff(want, finals(res, sol)); diff != "" {
		t.Errorf("final names mismatch (-want +got):\n%s", diff)
	}
	if len(sol.Fallbacks) != 0 {
		t.Errorf("unexpected fallbacks: %+v", sol.Fallbacks)
	}
}

func TestSolve_RejectsFreeReferenceName(t *testing.T) {
	res := analyze(t, `const a = 1; function foo() { const a = 2; return count; }`)
	as := named(t, res, "a")

	sol := Solve(res, map[scope.BindingID][]Candidate{
		as[0]: cands("count"),
		as[1]: cands("count"),
	}, DefaultOptions())

	for _, id := range as {
		if got := sol.Assignment[id]; got != "a" {
			t.Errorf("binding %d = %q, want a", id, got)
		}
		f, ok := fallbackFor(sol, id)
		if !ok {
			t.Fatalf("no fallback for binding %d", id)
		}
		want := []Rejection{{Name: "count", Constraint: ConstraintFreeReference}}
		if diff := cmp.Diff(want, f.Rejections); diff != "" {
			t.Errorf("rejections mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestSolve_SameScopeCollision(t *testing.T) {
	res := analyze(t, `let a = 1, b = 2;`)
	a, b := named(t, res, "a")[0], named(t, res, "b")[0]

	sol := Solve(res, map[scope.BindingID][]Candidate{
		a: cands("value"),
		b: cands("value", "other"),
	}, DefaultOptions())

	if diff := cmp.Diff([]string{"value", "other"}, finals(res, sol)); diff != "" {
		t.Errorf("final names mismatch (-want +got):\n%s", diff)
	}
}

func TestSolve_CurrentNameOfUnprocessedSibling(t *testing.T) {
	res := analyze(t, `let a = 1, b = 2;`)
	a := named(t, res, "a")[0]

	sol := Solve(res, map[scope.BindingID][]Candidate{a: cands("b")}, DefaultOptions())

	f, ok := fallbackFor(sol, a)
	if !ok || f.Reason != ReasonNoCandidate {
		t.Fatalf("fallback = %+v, %v; want no_acceptable_candidate", f, ok)
	}
	if f.Rejections[0].Constraint != ConstraintSameScope {
		t.Errorf("constraint = %s, want %s", f.Rejections[0].Constraint, ConstraintSameScope)
	}
}

func TestSolve_AncestorNameWouldCapture(t *testing.T) {
	res := analyze(t, `const count = 1; function f(a) { return a + count; }`)
	a := named(t, res, "a")[0]

	sol := Solve(res, map[scope.BindingID][]Candidate{a: cands("count", "item")}, DefaultOptions())

	if got := sol.Assignment[a]; got != "item" {
		t.Errorf("a = %q, want item", got)
	}
}

func TestSolve_AncestorRenamedEarlier(t *testing.T) {
	res := analyze(t, `const x = 1; function f(y) { return x + y; }`)
	x, y := named(t, res, "x")[0], named(t, res, "y")[0]

	sol := Solve(res, map[scope.BindingID][]Candidate{
		x: cands("total"),
		y: cands("total"),
	}, DefaultOptions())

	if diff := cmp.Diff([]string{"total", "f", "y"}, finals(res, sol)); diff != "" {
		t.Errorf("final names mismatch (-want +got):\n%s", diff)
	}
	f, _ := fallbackFor(sol, y)
	if len(f.Rejections) != 1 || f.Rejections[0].Constraint != ConstraintAncestorName {
		t.Errorf("rejections = %+v, want one ancestor_name", f.Rejections)
	}
}

func TestSolve_DescendantCaptureGuard(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "referenced below",
			src:  `const a = 1; function f() { const total = 2; return a + total; }`,
			want: "a",
		},
		{
			name: "not referenced below",
			src:  `const a = 1; function f() { const total = 2; return total; } a;`,
			want: "total",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := analyze(t, tt.src)
			a := named(t, res, "a")[0]
			sol := Solve(res, map[scope.BindingID][]Candidate{a: cands("total")}, DefaultOptions())
			if got := sol.Assignment[a]; got != tt.want {
				t.Errorf("a = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSolve_InvalidAndReservedCandidates(t *testing.T) {
	res := analyze(t, `let a = 1;`)
	a := named(t, res, "a")[0]

	sol := Solve(res, map[scope.BindingID][]Candidate{
		a: {
			{Name: "class", Confidence: 0.9},
			{Name: "1abc", Confidence: 0.8},
			{Name: "my-name", Confidence: 0.7},
			{Name: "undefined", Confidence: 0.6},
			{Name: "ok", Confidence: 0.5},
		},
	}, DefaultOptions())

	if got := sol.Assignment[a]; got != "ok" {
		t.Errorf("a = %q, want ok", got)
	}
}

func TestSolve_ConfidenceOrderIsStable(t *testing.T) {
	res := analyze(t, `let a = 1;`)
	a := named(t, res, "a")[0]

	sol := Solve(res, map[scope.BindingID][]Candidate{
		a: {
			{Name: "low", Confidence: 0.2},
			{Name: "first", Confidence: 0.7},
			{Name: "second", Confidence: 0.7},
		},
	}, DefaultOptions())

	if got := sol.Assignment[a]; got != "first" {
		t.Errorf("a = %q, want first", got)
	}
	if got := sol.Confidence[a]; got != 0.7 {
		t.Errorf("confidence = %v, want 0.7", got)
	}
}

func TestSolve_TaintedBindingsKeepNames(t *testing.T) {
	res := analyze(t, `
function f() { var x = 1; eval("x"); }
var y = 2;
function g() { var z = 3; return z; }
`)
	x, y, z := named(t, res, "x")[0], named(t, res, "y")[0], named(t, res, "z")[0]

	sol := Solve(res, map[scope.BindingID][]Candidate{
		x: cands("counter"),
		y: cands("other"),
		z: cands("result"),
	}, DefaultOptions())

	for _, id := range []scope.BindingID{x, y} {
		f, ok := fallbackFor(sol, id)
		if !ok || f.Reason != ReasonTainted {
			t.Errorf("binding %d: fallback = %+v, %v; want tainted", id, f, ok)
		}
	}
	if got := sol.Assignment[z]; got != "result" {
		t.Errorf("z = %q, want result", got)
	}
}

func TestSolve_EscapingBlockFunctionKeepsName(t *testing.T) {
	res := analyze(t, `if (true) { function g() { return 1; } } console.log(g()); { function h() {} h(); }`)
	g, h := named(t, res, "g")[0], named(t, res, "h")[0]

	sol := Solve(res, map[scope.BindingID][]Candidate{
		g: cands("getOne"),
		h: cands("helper"),
	}, DefaultOptions())

	f, ok := fallbackFor(sol, g)
	if !ok || f.Reason != ReasonBlockEscape {
		t.Errorf("g: fallback = %+v, %v; want block_function_escape", f, ok)
	}
	if got := sol.Assignment[g]; got != "g" {
		t.Errorf("g = %q, want g", got)
	}
	if got := sol.Assignment[h]; got != "helper" {
		t.Errorf("h = %q, want helper", got)
	}
}

func TestSolve_FunctionExpressionNameAndParameter(t *testing.T) {
	res := analyze(t, `var f = function a(a) { return a + 1; };`)
	as := named(t, res, "a")

	sol := Solve(res, map[scope.BindingID][]Candidate{
		as[0]: cands("value"),
		as[1]: cands("value"),
	}, DefaultOptions())

	if diff := cmp.Diff([]string{"f", "value", "value"}, finals(res, sol)); diff != "" {
		t.Errorf("final names mismatch (-want +got):\n%s", diff)
	}
}

func TestSolve_Exports(t *testing.T) {
	src := `export const a = 1; const b = 2; export { b };`
	res := analyze(t, src)
	a, b := named(t, res, "a")[0], named(t, res, "b")[0]
	in := map[scope.BindingID][]Candidate{a: cands("alpha"), b: cands("beta")}

	sol := Solve(res, in, DefaultOptions())
	if diff := cmp.Diff([]string{"a", "b"}, finals(res, sol)); diff != "" {
		t.Errorf("PreserveExports: final names mismatch (-want +got):\n%s", diff)
	}

	sol = Solve(res, in, Options{PreserveExports: false})
	if diff := cmp.Diff([]string{"alpha", "beta"}, finals(res, sol)); diff != "" {
		t.Errorf("no PreserveExports: final names mismatch (-want +got):\n%s", diff)
	}
}

func TestSolve_MinConfidence(t *testing.T) {
	res := analyze(t, `let a = 1;`)
	a := named(t, res, "a")[0]

	sol := Solve(res, map[scope.BindingID][]Candidate{
		a: {{Name: "maybe", Confidence: 0.1}},
	}, Options{MinConfidence: 0.5})

	f, ok := fallbackFor(sol, a)
	if !ok || f.Reason != ReasonBelowMin {
		t.Errorf("fallback = %+v, %v; want below_min_confidence", f, ok)
	}
}

func TestSolve_IdentityAndAbsentBindings(t *testing.T) {
	res := analyze(t, `let a = 1, b = 2;`)
	a, b := named(t, res, "a")[0], named(t, res, "b")[0]

	sol := Solve(res, map[scope.BindingID][]Candidate{a: cands("a")}, DefaultOptions())

	if got := sol.Assignment[a]; got != "a" {
		t.Errorf("a = %q, want a", got)
	}
	if _, ok := sol.Assignment[b]; ok {
		t.Errorf("binding without candidates must be absent from the assignment")
	}
	if len(sol.Renamed(res)) != 0 {
		t.Errorf("Renamed = %v, want none", sol.Renamed(res))
	}
}

func TestSolve_Deterministic(t *testing.T) {
	src := `
const a = 1, b = 2;
function c(d, e) { let f = d + e; { let g = f; return g + a; } }
class H { m(i) { return i * b; } }
`
	res := analyze(t, src)
	in := make(map[scope.BindingID][]Candidate)
	for i := range res.Bindings {
		in[scope.BindingID(i)] = cands("value", "item", "result", "data")
	}

	first := Solve(res, in, DefaultOptions())
	for i := 0; i < 10; i++ {
		again := Solve(res, in, DefaultOptions())
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
	}
}

func TestSolve_SafetyInvariants(t *testing.T) {
	src := `
var total = 0, items = [];
function add(a, b) { var c = a + b; items.push(c); return console.log(c), c; }
function loop(n) {
  for (let i = 0; i < n; i++) { const x = add(i, total); total += x; }
  try { add(); } catch (e) { const msg = e.message; return msg; }
}
const s = new Set(items);
`
	res := analyze(t, src)
	in := make(map[scope.BindingID][]Candidate)
	for i := range res.Bindings {
		in[scope.BindingID(i)] = cands("value", "console", "item", "let", "result", "total", "n")
	}
	sol := Solve(res, in, DefaultOptions())
	names := finals(res, sol)

	for si := range res.Scopes {
		seen := make(map[string]scope.BindingID)
		for _, id := range res.BindingsInScope(scope.ScopeID(si)) {
			name := names[id]
			if prev, dup := seen[name]; dup {
				t.Errorf("scope %d: bindings %d and %d both named %q", si, prev, id, name)
			}
			seen[name] = id
			if ast.IsReserved(name) {
				t.Errorf("binding %d named reserved word %q", id, name)
			}
			if name != res.Bindings[id].Name && res.IsFreeInSubtree(scope.ScopeID(si), name) {
				t.Errorf("binding %d named %q, which is free in its subtree", id, name)
			}
		}
	}
}

func TestSolution_LowConfidenceNames(t *testing.T) {
	res := analyze(t, `let a = 1, b = 2, c = 3;`)
	a, b, c := named(t, res, "a")[0], named(t, res, "b")[0], named(t, res, "c")[0]

	sol := Solve(res, map[scope.BindingID][]Candidate{
		a: {{Name: "alpha", Confidence: 0.3}},
		b: {{Name: "beta", Confidence: 0.9}},
		c: {{Name: "c", Confidence: 0.1}},
	}, DefaultOptions())

	if diff := cmp.Diff([]string{"alpha"}, sol.LowConfidenceNames(res, 0.5)); diff != "" {
		t.Errorf("LowConfidenceNames mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]scope.BindingID{a, b}, sol.Renamed(res)); diff != "" {
		t.Errorf("Renamed mismatch (-want +got):\n%s", diff)
	}
}
