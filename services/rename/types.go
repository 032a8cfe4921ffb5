// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rename

import (
	"github.com/laxels/humanify-sub001/services/rename/scope"
	"github.com/laxels/humanify-sub001/services/rename/solver"
	"github.com/laxels/humanify-sub001/services/rename/validate"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// SourceRequest carries one source text.
type SourceRequest struct {
	// Name labels the source in logs. Optional.
	Name   string `json:"name"`
	Source string `json:"source" binding:"required"`
}

// AnalyzeResponse is the response of POST /v1/rename/analyze.
type AnalyzeResponse struct {
	RequestID  string             `json:"request_id"`
	Analysis   scope.AnalysisJSON `json:"analysis"`
	Duplicates []scope.Duplicate  `json:"duplicates"`
}

// ValidateRequest is the body of POST /v1/rename/validate.
type ValidateRequest struct {
	Source string `json:"source" binding:"required"`

	// Original, when set, supplies the baseline of pre-existing free names.
	Original string `json:"original"`

	// Quick runs only the parse and reserved-word checks.
	Quick bool `json:"quick"`
}

// ValidateResponse is the response of POST /v1/rename/validate.
type ValidateResponse struct {
	RequestID string           `json:"request_id"`
	Result    *validate.Result `json:"result"`
}

// RenameResponse is the response of POST /v1/rename/rename.
type RenameResponse struct {
	RequestID          string                      `json:"request_id"`
	Name               string                      `json:"name"`
	Source             string                      `json:"source"`
	Renames            []RenameEntry               `json:"renames"`
	Fallbacks          []solver.Fallback           `json:"fallbacks"`
	Validation         *validate.Result            `json:"validation"`
	Attempts           int                         `json:"attempts"`
	Rejected           *validate.ValidationFailure `json:"rejected,omitempty"`
	HasDynamicFeatures bool                        `json:"has_dynamic_features"`
	DurationMs         int64                       `json:"duration_ms"`
}

// RenameEntry is one renamed binding.
type RenameEntry struct {
	Binding    int     `json:"binding"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Confidence float64 `json:"confidence"`
}

// HealthResponse is the response of GET /v1/rename/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}
