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
	"context"
	"sync"
)

// StaticOracle answers from fixed tables.
//
// Candidates are looked up by dossier id first, then by original name.
// Requests are recorded for inspection.
//
// Thread Safety: StaticOracle is safe for concurrent use.
type StaticOracle struct {
	ByID   map[string][]Candidate
	ByName map[string][]Candidate

	// Err, when set, is returned by every call.
	Err error

	mu       sync.Mutex
	requests []*Request
}

// NewStaticOracle returns an oracle that suggests byName[originalName].
func NewStaticOracle(byName map[string][]Candidate) *StaticOracle {
	return &StaticOracle{ByName: byName}
}

// Suggest implements Oracle.
func (s *StaticOracle) Suggest(ctx context.Context, req *Request) (*Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}

	resp := &Response{}
	for _, d := range req.Dossiers {
		cands, ok := s.ByID[d.ID]
		if !ok {
			cands, ok = s.ByName[d.OriginalName]
		}
		if !ok {
			continue
		}
		resp.Suggestions = append(resp.Suggestions, Suggestion{ID: d.ID, Candidates: cands})
	}
	return Normalize(req, resp), nil
}

// Requests returns the requests received so far.
func (s *StaticOracle) Requests() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Request, len(s.requests))
	copy(out, s.requests)
	return out
}
