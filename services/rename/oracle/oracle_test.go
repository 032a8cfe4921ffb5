// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laxels/humanify-sub001/services/rename/dossier"
)

func request(ids ...string) *Request {
	req := &Request{RequestID: "test", ScopeSummary: "program scope", MaxCandidates: 3}
	for _, id := range ids {
		req.Dossiers = append(req.Dossiers, dossier.Dossier{ID: id, OriginalName: "x" + id})
	}
	return req
}

func TestNewRequest(t *testing.T) {
	b := dossier.Batch{
		ScopeSummary: "function scope \"f\"",
		Dossiers:     []dossier.Dossier{{ID: "b0"}, {ID: "b1"}},
	}
	a := NewRequest(b, 5)
	c := NewRequest(b, 5)

	assert.Equal(t, b.ScopeSummary, a.ScopeSummary)
	assert.Len(t, a.Dossiers, 2)
	assert.Equal(t, 5, a.MaxCandidates)
	assert.NotEmpty(t, a.RequestID)
	assert.NotEqual(t, a.RequestID, c.RequestID)
}

func TestNormalize_OrdersClampsAndDedupes(t *testing.T) {
	req := request("b0", "b1")
	raw := &Response{Suggestions: []Suggestion{
		{ID: "b1", Candidates: []Candidate{{Name: "count", Confidence: 0.4}}},
		{ID: "b9", Candidates: []Candidate{{Name: "ghost", Confidence: 1}}},
		{ID: " b0 ", Candidates: []Candidate{
			{Name: " total ", Confidence: 0.5},
			{Name: "", Confidence: 0.9},
			{Name: "sum", Confidence: 1.7},
			{Name: "total", Confidence: 0.8},
			{Name: "acc", Confidence: math.NaN()},
			{Name: "value", Confidence: -2},
		}},
	}}

	got := Normalize(req, raw)
	require.Len(t, got.Suggestions, 2)

	// Request order, unknown ids dropped.
	assert.Equal(t, "b0", got.Suggestions[0].ID)
	assert.Equal(t, "b1", got.Suggestions[1].ID)

	b0 := got.Suggestions[0].Candidates
	require.Len(t, b0, 3)
	assert.Equal(t, Candidate{Name: "sum", Confidence: 1}, b0[0])
	assert.Equal(t, Candidate{Name: "total", Confidence: 0.8}, b0[1])
	// acc and value both clamp to 0; oracle order breaks the tie.
	assert.Equal(t, Candidate{Name: "acc", Confidence: 0}, b0[2])
}

func TestNormalize_MergesRepeatedIDs(t *testing.T) {
	req := request("b0")
	raw := &Response{Suggestions: []Suggestion{
		{ID: "b0", Candidates: []Candidate{{Name: "a", Confidence: 0.3}}},
		{ID: "b0", Candidates: []Candidate{{Name: "b", Confidence: 0.6}}},
	}}

	got := Normalize(req, raw)
	require.Len(t, got.Suggestions, 1)
	assert.Equal(t, []Candidate{{Name: "b", Confidence: 0.6}, {Name: "a", Confidence: 0.3}}, got.Suggestions[0].Candidates)
}

func TestNormalize_NilResponse(t *testing.T) {
	got := Normalize(request("b0"), nil)
	require.NotNil(t, got)
	assert.Empty(t, got.Suggestions)
}

func TestNormalize_NoLimit(t *testing.T) {
	req := request("b0")
	req.MaxCandidates = 0
	raw := &Response{Suggestions: []Suggestion{{ID: "b0", Candidates: []Candidate{
		{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"},
	}}}}
	assert.Len(t, Normalize(req, raw).Suggestions[0].Candidates, 4)
}

func TestResponse_CandidatesFor(t *testing.T) {
	resp := &Response{Suggestions: []Suggestion{{ID: "b2", Candidates: []Candidate{{Name: "n"}}}}}
	assert.Equal(t, []Candidate{{Name: "n"}}, resp.CandidatesFor("b2"))
	assert.Nil(t, resp.CandidatesFor("b3"))

	var none *Response
	assert.Nil(t, none.CandidatesFor("b2"))
}
