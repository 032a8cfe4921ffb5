// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestOpenAIClient points an OpenAIClient at an httptest server.
func newTestOpenAIClient(server *httptest.Server) *OpenAIClient {
	return &OpenAIClient{
		httpClient: server.Client(),
		apiKey:     "test-key",
		model:      "gpt-4o-mini",
		baseURL:    server.URL,
	}
}

func writeChoice(w http.ResponseWriter, content string) {
	resp := openaiResponse{
		Choices: []openaiChoice{
			{
				Message:      openaiMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func TestNewOpenAIClient_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIClient()
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "openai:") {
		t.Errorf("error should include 'openai:' prefix, got: %s", err.Error())
	}
}

func TestNewOpenAIClient_DefaultModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_MODEL", "")

	client, err := NewOpenAIClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Model() != "gpt-4o-mini" {
		t.Errorf("model = %q, want %q", client.Model(), "gpt-4o-mini")
	}
}

func TestNewOpenAIClientWithConfig_Defaults(t *testing.T) {
	client := NewOpenAIClientWithConfig("", "", "", 0)
	if client.model != defaultOpenAIModel {
		t.Errorf("model = %q, want %q", client.model, defaultOpenAIModel)
	}
	if client.baseURL != defaultOpenAIBaseURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, defaultOpenAIBaseURL)
	}
	if client.httpClient.Timeout <= 0 {
		t.Error("expected a positive default timeout")
	}
}

func TestOpenAIClient_Chat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q, want %q", auth, "Bearer test-key")
		}

		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q, want %q", req.Model, "gpt-4o-mini")
		}
		if req.ResponseFormat != nil {
			t.Errorf("response_format should be omitted, got %+v", req.ResponseFormat)
		}
		writeChoice(w, "Hello from OpenAI!")
	}))
	defer server.Close()

	result, err := newTestOpenAIClient(server).Chat(context.Background(),
		[]Message{{Role: "user", Content: "Hello"}}, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Hello from OpenAI!" {
		t.Errorf("result = %q, want %q", result, "Hello from OpenAI!")
	}
}

func TestOpenAIClient_Chat_GenerationParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Temperature == nil || *req.Temperature != 0.2 {
			t.Errorf("temperature = %v, want 0.2", req.Temperature)
		}
		if req.MaxCompletionTokens == nil || *req.MaxCompletionTokens != 512 {
			t.Errorf("max tokens = %v, want 512", req.MaxCompletionTokens)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %+v, want json_object", req.ResponseFormat)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("model = %q, want %q (should be overridden)", req.Model, "gpt-4o")
		}
		writeChoice(w, "{}")
	}))
	defer server.Close()

	params := GenerationParams{
		Temperature:   Float32(0.2),
		MaxTokens:     Int(512),
		JSONMode:      true,
		ModelOverride: "gpt-4o",
	}
	if _, err := newTestOpenAIClient(server).Chat(context.Background(),
		[]Message{{Role: "user", Content: "Hi"}}, params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenAIClient_Chat_UnknownRoleMappedToUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, msg := range req.Messages {
			if msg.Role != "system" && msg.Role != "user" && msg.Role != "assistant" {
				t.Errorf("unexpected role %q sent to API", msg.Role)
			}
		}
		if req.Messages[1].Role != "user" {
			t.Errorf("tool role should map to user, got %q", req.Messages[1].Role)
		}
		writeChoice(w, "response")
	}))
	defer server.Close()

	messages := []Message{
		{Role: "system", Content: "system message"},
		{Role: "tool", Content: "tool output"},
	}
	if _, err := newTestOpenAIClient(server).Chat(context.Background(), messages, GenerationParams{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenAIClient_Chat_StatusError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		temporary   bool
		rateLimited bool
	}{
		{"unauthorized", http.StatusUnauthorized, false, false},
		{"rate limited", http.StatusTooManyRequests, true, true},
		{"unavailable", http.StatusServiceUnavailable, true, false},
		{"internal", http.StatusInternalServerError, true, false},
		{"bad request", http.StatusBadRequest, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error": {"message": "nope sk-abcdefghijklmnopqrstuvwxyz", "type": "x"}}`))
			}))
			defer server.Close()

			_, err := newTestOpenAIClient(server).Chat(context.Background(),
				[]Message{{Role: "user", Content: "Hi"}}, GenerationParams{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "openai:") {
				t.Errorf("error should include 'openai:' prefix, got: %s", err.Error())
			}
			if strings.Contains(err.Error(), "sk-abcdefghijklmnopqrstuvwxyz") {
				t.Errorf("error leaked API key: %s", err.Error())
			}

			var serr *StatusError
			if !errors.As(err, &serr) {
				t.Fatalf("expected *StatusError, got %T", err)
			}
			if serr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", serr.StatusCode, tt.status)
			}
			if serr.Temporary() != tt.temporary {
				t.Errorf("Temporary() = %v, want %v", serr.Temporary(), tt.temporary)
			}
			if serr.RateLimited() != tt.rateLimited {
				t.Errorf("RateLimited() = %v, want %v", serr.RateLimited(), tt.rateLimited)
			}
		})
	}
}

func TestOpenAIClient_Chat_NoChoicesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openaiResponse{Choices: []openaiChoice{}})
	}))
	defer server.Close()

	_, err := newTestOpenAIClient(server).Chat(context.Background(),
		[]Message{{Role: "user", Content: "Hi"}}, GenerationParams{})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if !strings.Contains(err.Error(), "openai:") {
		t.Errorf("error should include 'openai:' prefix, got: %s", err.Error())
	}
}

func TestOpenAIClient_Chat_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChoice(w, "late")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestOpenAIClient(server).Chat(ctx, []Message{{Role: "user", Content: "Hi"}}, GenerationParams{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewOllamaClient(t *testing.T) {
	if _, err := NewOllamaClient("", "", false); err == nil {
		t.Error("expected error for empty model")
	}

	client, err := NewOllamaClient("qwen2.5-coder:7b", "http://127.0.0.1:1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Model() != "qwen2.5-coder:7b" {
		t.Errorf("model = %q", client.Model())
	}
}
