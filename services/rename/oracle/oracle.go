// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package oracle defines the naming-oracle contract and its implementations.
//
// An Oracle receives one batch of dossiers and returns ranked candidate
// names per dossier id. Implementations compose:
//
//	CachingOracle -> RetryingOracle -> LLMOracle -> llm.ChatClient
//
// StaticOracle is a deterministic stand-in for tests and offline runs.
package oracle

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/laxels/humanify-sub001/services/rename/dossier"
)

// Oracle suggests names for the dossiers of one request.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use.
type Oracle interface {
	// Suggest returns candidates keyed by dossier id. A dossier whose id is
	// absent from the response has zero candidates.
	Suggest(ctx context.Context, req *Request) (*Response, error)
}

// Request is one oracle round trip.
type Request struct {
	// RequestID correlates log lines; it is not part of the request body.
	RequestID     string            `json:"-"`
	ScopeSummary  string            `json:"scopeSummary"`
	Dossiers      []dossier.Dossier `json:"dossiers"`
	MaxCandidates int               `json:"maxCandidates"`
}

// NewRequest renders a batch into a request with a fresh request id.
func NewRequest(b dossier.Batch, maxCandidates int) *Request {
	return &Request{
		RequestID:     uuid.NewString(),
		ScopeSummary:  b.ScopeSummary,
		Dossiers:      b.Dossiers,
		MaxCandidates: maxCandidates,
	}
}

// Candidate is one suggested name.
type Candidate struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

// Suggestion holds the candidates for one dossier id.
type Suggestion struct {
	ID         string      `json:"id"`
	Candidates []Candidate `json:"candidates"`
}

// Response is the oracle's answer to one Request.
type Response struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// CandidatesFor returns the candidates suggested for id, or nil.
func (r *Response) CandidatesFor(id string) []Candidate {
	if r == nil {
		return nil
	}
	for _, s := range r.Suggestions {
		if s.ID == id {
			return s.Candidates
		}
	}
	return nil
}

// Normalize cleans a response against its request.
//
// Description:
//
//	Drops suggestions for ids that were not requested and merges repeated
//	ids. Candidate names are trimmed; empty names are dropped; confidence is
//	clamped to [0, 1] (NaN becomes 0). Duplicate names keep their highest
//	confidence. Candidates are ordered by confidence descending, stable on
//	the oracle's order, and capped at req.MaxCandidates when positive.
//	Suggestions are returned in request order.
//
// Inputs:
//
//	req  - The request the response answers.
//	resp - The raw response. May be nil.
//
// Outputs:
//
//	*Response - A new, normalized response. Never nil.
func Normalize(req *Request, resp *Response) *Response {
	out := &Response{Suggestions: []Suggestion{}}
	if resp == nil {
		return out
	}

	byID := make(map[string][]Candidate, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		byID[strings.TrimSpace(s.ID)] = append(byID[strings.TrimSpace(s.ID)], s.Candidates...)
	}

	for _, d := range req.Dossiers {
		raw, ok := byID[d.ID]
		if !ok {
			continue
		}
		out.Suggestions = append(out.Suggestions, Suggestion{
			ID:         d.ID,
			Candidates: normalizeCandidates(raw, req.MaxCandidates),
		})
	}
	return out
}

func normalizeCandidates(raw []Candidate, limit int) []Candidate {
	index := make(map[string]int, len(raw))
	out := make([]Candidate, 0, len(raw))
	for _, c := range raw {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		c.Confidence = clamp(c.Confidence)
		if i, seen := index[c.Name]; seen {
			if c.Confidence > out[i].Confidence {
				out[i].Confidence = c.Confidence
			}
			continue
		}
		index[c.Name] = len(out)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
