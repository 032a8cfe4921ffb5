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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticOracle_ByIDWinsOverByName(t *testing.T) {
	s := NewStaticOracle(map[string][]Candidate{
		"xb0": {{Name: "byName", Confidence: 0.5}},
		"xb1": {{Name: "other", Confidence: 0.5}},
	})
	s.ByID = map[string][]Candidate{"b0": {{Name: "byID", Confidence: 0.9}}}

	resp, err := s.Suggest(context.Background(), request("b0", "b1", "b2"))
	require.NoError(t, err)
	assert.Equal(t, "byID", resp.CandidatesFor("b0")[0].Name)
	assert.Equal(t, "other", resp.CandidatesFor("b1")[0].Name)
	assert.Nil(t, resp.CandidatesFor("b2"))
	assert.Len(t, s.Requests(), 1)
}
