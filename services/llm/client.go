// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides chat-completion clients for the naming oracle.
//
// Backends: any OpenAI-compatible chat completions endpoint, the Anthropic
// Messages API and the Gemini generateContent API (raw net/http), plus a
// local Ollama server (via langchaingo). All implement ChatClient.
package llm

import (
	"context"
	"fmt"
	"net/http"
)

// Message is one chat message. Role is "system", "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams tunes one completion. Nil fields use the backend default.
type GenerationParams struct {
	Temperature *float32
	MaxTokens   *int
	TopP        *float32
	Stop        []string

	// ModelOverride replaces the client's configured model for one call.
	ModelOverride string

	// JSONMode asks the backend to constrain output to a JSON object.
	JSONMode bool
}

// ChatClient sends a conversation and returns the assistant's reply.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)

	// Model returns the configured model name.
	Model() string
}

// StatusError is a non-200 reply from a chat backend.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: API returned status %d: %s", e.Provider, e.StatusCode, SafeLogString(e.Body))
}

// Temporary reports whether the request may succeed if retried.
func (e *StatusError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusRequestTimeout,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return e.StatusCode >= 500
}

// RateLimited reports whether the backend rejected the request for rate.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Float32 returns a pointer to v, for GenerationParams.
func Float32(v float32) *float32 { return &v }

// Int returns a pointer to v, for GenerationParams.
func Int(v int) *int { return &v }
