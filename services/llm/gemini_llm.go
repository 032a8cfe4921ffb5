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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-1.5-flash"
)

// GeminiClient implements ChatClient for the Gemini generateContent API.
//
// Thread Safety: GeminiClient is safe for concurrent use.
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewGeminiClientWithConfig creates a GeminiClient with explicit configuration.
//
// Inputs:
//   - apiKey: The Gemini API key.
//   - model: The model name. Empty uses gemini-1.5-flash.
//   - baseURL: The API root, e.g. "https://generativelanguage.googleapis.com/v1beta".
//     Empty uses that root.
//   - timeout: Per-request HTTP timeout. Zero uses 120s.
func NewGeminiClientWithConfig(apiKey, model, baseURL string, timeout time.Duration) *GeminiClient {
	if model == "" {
		model = defaultGeminiModel
	}
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &GeminiClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// geminiRequest is the request payload for the Gemini generateContent API.
type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      *float32 `json:"temperature,omitempty"`
	TopP             *float32 `json:"topP,omitempty"`
	MaxOutputTokens  *int     `json:"maxOutputTokens,omitempty"`
	StopSequences    []string `json:"stopSequences,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Model implements ChatClient.
func (g *GeminiClient) Model() string { return g.model }

// Chat implements ChatClient using generateContent. JSONMode sets
// responseMimeType to application/json.
func (g *GeminiClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	model := g.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}

	reqPayload := buildGeminiRequest(messages, params)
	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("gemini: marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("gemini: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	slog.Debug("Chat via Gemini",
		slog.String("model", model),
		slog.Int("content_count", len(reqPayload.Contents)),
	)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Provider: "gemini", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("gemini: parsing response JSON: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("gemini: API error [%d] %s: %s",
			apiResp.Error.Code, apiResp.Error.Status, SafeLogString(apiResp.Error.Message))
	}
	if len(apiResp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: returned no candidates")
	}

	var textParts []string
	for _, part := range apiResp.Candidates[0].Content.Parts {
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}
	result := strings.Join(textParts, "")
	if result == "" {
		return "", fmt.Errorf("gemini: returned empty text content")
	}

	slog.Debug("Received Gemini response",
		slog.String("model", model),
		slog.Int("response_len", len(result)),
		slog.String("finish_reason", apiResp.Candidates[0].FinishReason),
	)
	return result, nil
}

// buildGeminiRequest converts messages; system messages become the
// systemInstruction and assistant turns use the "model" role.
func buildGeminiRequest(messages []Message, params GenerationParams) geminiRequest {
	var req geminiRequest

	cfg := geminiGenerationConfig{
		Temperature:     params.Temperature,
		TopP:            params.TopP,
		MaxOutputTokens: params.MaxTokens,
		StopSequences:   params.Stop,
	}
	if params.JSONMode {
		cfg.ResponseMimeType = "application/json"
	}
	if cfg.Temperature != nil || cfg.TopP != nil || cfg.MaxOutputTokens != nil ||
		len(cfg.StopSequences) > 0 || cfg.ResponseMimeType != "" {
		req.GenerationConfig = &cfg
	}

	for _, msg := range messages {
		switch strings.ToLower(msg.Role) {
		case "system":
			req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: msg.Content}}}
		case "assistant":
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: msg.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}
	return req
}
