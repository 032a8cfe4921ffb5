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
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaClient implements ChatClient against a local Ollama server.
//
// Thread Safety: OllamaClient is safe for concurrent use.
type OllamaClient struct {
	llm   *ollama.LLM
	model string
}

// NewOllamaClient creates an OllamaClient.
//
// Inputs:
//   - model: Model tag, e.g. "qwen2.5-coder:7b". Must not be empty.
//   - serverURL: Ollama base URL. Empty uses http://localhost:11434.
//   - jsonFormat: Constrain every reply to JSON.
//
// Outputs:
//   - *OllamaClient: The configured client.
//   - error: Non-nil if model is empty or langchaingo rejects the options.
func NewOllamaClient(model, serverURL string, jsonFormat bool) (*OllamaClient, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama: model is required")
	}
	if serverURL == "" {
		serverURL = defaultOllamaURL
	}

	opts := []ollama.Option{
		ollama.WithModel(model),
		ollama.WithServerURL(serverURL),
	}
	if jsonFormat {
		opts = append(opts, ollama.WithFormat("json"))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama: creating client: %w", err)
	}
	slog.Info("Initializing Ollama client", slog.String("model", model), slog.String("url", serverURL))
	return &OllamaClient{llm: client, model: model}, nil
}

// Model implements ChatClient.
func (c *OllamaClient) Model() string { return c.model }

// Chat implements ChatClient via langchaingo's GenerateContent.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(ollamaRole(msg.Role), msg.Content))
	}

	var callOpts []llms.CallOption
	if params.Temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(float64(*params.Temperature)))
	}
	if params.MaxTokens != nil {
		callOpts = append(callOpts, llms.WithMaxTokens(*params.MaxTokens))
	}
	if params.TopP != nil {
		callOpts = append(callOpts, llms.WithTopP(float64(*params.TopP)))
	}
	if len(params.Stop) > 0 {
		callOpts = append(callOpts, llms.WithStopWords(params.Stop))
	}
	if params.ModelOverride != "" {
		callOpts = append(callOpts, llms.WithModel(params.ModelOverride))
	}

	slog.Debug("Chat via Ollama", slog.String("model", c.model), slog.Int("messages", len(messages)))

	resp, err := c.llm.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("ollama: generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ollama: returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func ollamaRole(role string) llms.ChatMessageType {
	switch role {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
