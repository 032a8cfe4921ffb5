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

// --- Anthropic Wire Types ---

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel   = "claude-3-5-haiku-latest"
	anthropicAPIVersion     = "2023-06-01"

	// anthropicDefaultMaxTokens is required by the Messages API.
	anthropicDefaultMaxTokens = 4096
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      []systemBlock      `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
	TopP        *float32           `json:"top_p,omitempty"`
	StopSeqs    []string           `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type systemBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// --- Client Implementation ---

// AnthropicClient implements ChatClient for the Anthropic Messages API.
//
// Thread Safety: AnthropicClient is safe for concurrent use.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewAnthropicClientWithConfig creates an AnthropicClient with explicit configuration.
//
// Inputs:
//   - apiKey: The Anthropic API key.
//   - model: The model name. Empty uses claude-3-5-haiku-latest.
//   - baseURL: The full messages URL. Empty uses api.anthropic.com.
//   - timeout: Per-request HTTP timeout. Zero uses 120s.
func NewAnthropicClientWithConfig(apiKey, model, baseURL string, timeout time.Duration) *AnthropicClient {
	if model == "" {
		model = defaultAnthropicModel
	}
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// Model implements ChatClient.
func (a *AnthropicClient) Model() string { return a.model }

// Chat implements ChatClient.
//
// Description:
//
//	System messages are sent as system blocks; long ones are marked for
//	prompt caching since the naming prompt repeats on every batch. The
//	Messages API has no JSON mode, so params.JSONMode is ignored and the
//	prompt carries the format.
func (a *AnthropicClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	model := a.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}

	var (
		apiMessages  []anthropicMessage
		systemBlocks []systemBlock
	)
	for _, msg := range messages {
		switch strings.ToLower(msg.Role) {
		case "system":
			block := systemBlock{Type: "text", Text: msg.Content}
			if len(msg.Content) > 1024 {
				block.CacheControl = &cacheControl{Type: "ephemeral"}
			}
			systemBlocks = append(systemBlocks, block)
		case "assistant":
			apiMessages = append(apiMessages, anthropicMessage{Role: "assistant", Content: msg.Content})
		default:
			apiMessages = append(apiMessages, anthropicMessage{Role: "user", Content: msg.Content})
		}
	}

	reqPayload := anthropicRequest{
		Model:       model,
		Messages:    apiMessages,
		System:      systemBlocks,
		MaxTokens:   anthropicDefaultMaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		StopSeqs:    params.Stop,
	}
	if params.MaxTokens != nil {
		reqPayload.MaxTokens = *params.MaxTokens
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("anthropic: creating HTTP request: %w", err)
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	slog.Debug("Chat via Anthropic", slog.String("model", model), slog.Int("messages", len(apiMessages)))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: reading response body (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Provider: "anthropic", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("anthropic: parsing response JSON: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("anthropic: API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message))
	}

	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic: received no text content")
	}

	slog.Debug("Received Anthropic response",
		slog.String("stop_reason", apiResp.StopReason),
		slog.Int("response_len", sb.Len()),
	)
	return sb.String(), nil
}
