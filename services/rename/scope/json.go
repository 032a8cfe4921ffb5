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
	"encoding/json"
	"strconv"
)

// ReferenceJSON is the wire form of one reference.
type ReferenceJSON struct {
	Type    string `json:"type"`
	Context string `json:"context,omitempty"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

// BindingJSON is the wire form of one binding.
type BindingJSON struct {
	Name            string          `json:"name"`
	Kind            string          `json:"kind"`
	ScopeID         int             `json:"scopeId"`
	IsExported      bool            `json:"isExported"`
	References      []ReferenceJSON `json:"references"`
	UsageHints      []string        `json:"usageHints"`
	SurroundingCode string          `json:"surroundingCode"`
}

// ScopeJSON is the wire form of one scope.
type ScopeJSON struct {
	Kind     string `json:"kind"`
	ParentID *int   `json:"parentId,omitempty"`
	Size     int    `json:"size"`
}

// FreeReferenceJSON is the wire form of one unresolved reference.
type FreeReferenceJSON struct {
	Name string `json:"name"`
	ReferenceJSON
}

// AnalysisJSON is the wire form of an AnalysisResult, keyed by id.
type AnalysisJSON struct {
	Bindings           map[string]BindingJSON `json:"bindings"`
	Scopes             map[string]ScopeJSON   `json:"scopes"`
	HasDynamicFeatures bool                   `json:"hasDynamicFeatures"`
	FreeReferences     []FreeReferenceJSON    `json:"freeReferences"`
}

// ToJSON converts the result to its wire form.
func (r *AnalysisResult) ToJSON() AnalysisJSON {
	out := AnalysisJSON{
		Bindings:           make(map[string]BindingJSON, len(r.Bindings)),
		Scopes:             make(map[string]ScopeJSON, len(r.Scopes)),
		HasDynamicFeatures: r.HasDynamicFeatures,
		FreeReferences:     make([]FreeReferenceJSON, 0, len(r.FreeReferences)),
	}

	for i := range r.Bindings {
		b := &r.Bindings[i]
		refs := make([]ReferenceJSON, 0, len(b.References))
		for _, ref := range b.References {
			refs = append(refs, referenceJSON(ref))
		}
		hints := r.UsageHints(b.ID)
		if hints == nil {
			hints = []string{}
		}
		out.Bindings[strconv.Itoa(int(b.ID))] = BindingJSON{
			Name:            b.Name,
			Kind:            b.Kind.String(),
			ScopeID:         int(b.Scope),
			IsExported:      b.Exported,
			References:      refs,
			UsageHints:      hints,
			SurroundingCode: b.SurroundingCode,
		}
	}

	for i := range r.Scopes {
		s := &r.Scopes[i]
		sj := ScopeJSON{Kind: s.Kind.String(), Size: s.Size()}
		if s.Parent != NoScope {
			p := int(s.Parent)
			sj.ParentID = &p
		}
		out.Scopes[strconv.Itoa(int(s.ID))] = sj
	}

	for _, fr := range r.FreeReferences {
		out.FreeReferences = append(out.FreeReferences, FreeReferenceJSON{
			Name:          fr.Name,
			ReferenceJSON: referenceJSON(fr.Reference),
		})
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (r *AnalysisResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToJSON())
}

func referenceJSON(ref Reference) ReferenceJSON {
	rj := ReferenceJSON{
		Type:   ref.Role.String(),
		Line:   ref.Location.Line,
		Column: ref.Location.Column,
	}
	if ref.Role == RolePropertyAccess {
		rj.Context = ref.Member
	}
	return rj
}
