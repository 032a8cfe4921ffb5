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
	"os"
	"time"
)

// =============================================================================
// OpenAI Wire Types
// =============================================================================

const defaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"

const defaultOpenAIModel = "gpt-4o-mini"

type openaiRequest struct {
	Model               string                `json:"model"`
	Messages            []openaiMessage       `json:"messages"`
	Temperature         *float32              `json:"temperature,omitempty"`
	MaxCompletionTokens *int                  `json:"max_completion_tokens,omitempty"`
	TopP                *float32              `json:"top_p,omitempty"`
	Stop                []string              `json:"stop,omitempty"`
	ResponseFormat      *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Choices []openaiChoice `json:"choices"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OpenAIClient implements ChatClient for OpenAI-compatible chat completions
// endpoints using raw net/http.
//
// Description:
//
//	Works against api.openai.com and any server exposing the same
//	/v1/chat/completions contract (vLLM, llama.cpp server, LM Studio).
//
// Thread Safety: OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewOpenAIClientWithConfig creates an OpenAIClient with explicit configuration.
//
// Description:
//
//	Creates an OpenAIClient without reading environment variables. Useful
//	for testing with mock servers or when configuration comes from the
//	config file.
//
// Inputs:
//   - apiKey: The API key. May be empty for local servers.
//   - model: The model name (e.g., "gpt-4o"). Empty uses gpt-4o-mini.
//   - baseURL: The full chat completions URL. Empty uses api.openai.com.
//   - timeout: Per-request HTTP timeout. Zero uses 120s.
//
// Outputs:
//   - *OpenAIClient: The configured client.
func NewOpenAIClientWithConfig(apiKey, model, baseURL string, timeout time.Duration) *OpenAIClient {
	if model == "" {
		model = defaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// NewOpenAIClient creates a new OpenAIClient from environment variables.
//
// Description:
//
//	Reads OPENAI_API_KEY and OPENAI_MODEL from the environment.
//	Defaults to "gpt-4o-mini" if OPENAI_MODEL is not set.
//
// Outputs:
//   - *OpenAIClient: The configured client.
//   - error: Non-nil if OPENAI_API_KEY is missing.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		slog.Warn("OpenAI API Key is empty. OpenAI Client will not function.")
		return nil, fmt.Errorf("openai: API key is missing (OPENAI_API_KEY)")
	}
	if model == "" {
		model = defaultOpenAIModel
		slog.Warn("OPENAI_MODEL not set, defaulting to " + defaultOpenAIModel)
	}
	slog.Info("Initializing OpenAI client", slog.String("model", model))
	return NewOpenAIClientWithConfig(apiKey, model, defaultOpenAIBaseURL, 0), nil
}

// Model implements ChatClient.
func (o *OpenAIClient) Model() string { return o.model }

// Chat implements ChatClient using the chat completions API.
//
// Description:
//
//	Sends a chat completion request via raw HTTP. Unknown roles are mapped
//	to "user". Non-200 replies are returned as *StatusError so callers can
//	decide whether to retry.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - messages: Conversation history.
//   - params: Generation parameters.
//
// Outputs:
//   - string: The assistant's response text.
//   - error: Non-nil if the request fails.
//
// Thread Safety: This method is safe for concurrent use.
func (o *OpenAIClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	model := o.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}

	slog.Debug("Chat via OpenAI", slog.String("model", model), slog.Int("messages", len(messages)))

	oaiMessages := make([]openaiMessage, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		switch role {
		case "system", "user", "assistant":
		default:
			slog.Warn("OpenAI: unknown message role, mapping to user",
				slog.String("unknown_role", role),
				slog.String("model", model),
			)
			role = "user"
		}
		oaiMessages = append(oaiMessages, openaiMessage{Role: role, Content: msg.Content})
	}

	reqPayload := openaiRequest{
		Model:               model,
		Messages:            oaiMessages,
		Temperature:         params.Temperature,
		MaxCompletionTokens: params.MaxTokens,
		TopP:                params.TopP,
	}
	if len(params.Stop) > 0 {
		reqPayload.Stop = params.Stop
	}
	if params.JSONMode {
		reqPayload.ResponseFormat = &openaiResponseFormat{Type: "json_object"}
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("openai: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("openai: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Provider: "openai", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("openai: parsing response JSON: %w", err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("openai: API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message))
	}

	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("openai: returned no choices")
	}

	slog.Debug("Received OpenAI chat response",
		slog.String("finish_reason", apiResp.Choices[0].FinishReason),
		slog.Int("response_len", len(apiResp.Choices[0].Message.Content)),
	)

	return apiResp.Choices[0].Message.Content, nil
}
