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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/laxels/humanify-sub001/services/llm"
)

// defaultSystemPrompt instructs the model on the task and the reply format.
const defaultSystemPrompt = `You rename identifiers in minified JavaScript.
For each dossier, propose descriptive camelCase names (PascalCase for classes and constructors).
Every name must be a valid JavaScript identifier and must not be a reserved word.
Prefer verbs for functions and nouns for values. Never return the original name unless it is already descriptive.
Reply with a single JSON object and nothing else:
{"suggestions":[{"id":"<dossier id>","candidates":[{"name":"<name>","confidence":<0..1>,"rationale":"<short reason>"}]}]}`

// LLMOptions configures LLMOracle.
type LLMOptions struct {
	// SystemPrompt replaces the built-in instructions.
	SystemPrompt string

	// Temperature for the completion. Default: 0.2
	Temperature float32

	// MaxTokens caps the completion length. Default: 2048
	MaxTokens int

	// JSONMode asks the backend to constrain output to JSON. Default: true
	JSONMode bool

	// Logger for debug output. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultLLMOptions returns the default options.
func DefaultLLMOptions() LLMOptions {
	return LLMOptions{
		SystemPrompt: defaultSystemPrompt,
		Temperature:  0.2,
		MaxTokens:    2048,
		JSONMode:     true,
	}
}

// LLMOption is a functional option for NewLLMOracle.
type LLMOption func(*LLMOptions)

// WithSystemPrompt replaces the built-in instructions.
func WithSystemPrompt(p string) LLMOption {
	return func(o *LLMOptions) { o.SystemPrompt = p }
}

// WithTemperature sets the completion temperature.
func WithTemperature(t float32) LLMOption {
	return func(o *LLMOptions) { o.Temperature = t }
}

// WithMaxTokens sets the completion length cap.
func WithMaxTokens(n int) LLMOption {
	return func(o *LLMOptions) { o.MaxTokens = n }
}

// WithJSONMode toggles backend JSON mode.
func WithJSONMode(on bool) LLMOption {
	return func(o *LLMOptions) { o.JSONMode = on }
}

// WithLLMLogger sets the logger.
func WithLLMLogger(l *slog.Logger) LLMOption {
	return func(o *LLMOptions) { o.Logger = l }
}

// LLMOracle asks a chat model for names.
//
// Description:
//
//	Renders the request as a prompt, sends it through an llm.ChatClient and
//	decodes the JSON object in the reply. Code fences and surrounding prose
//	are tolerated. Replies that do not decode are reported as
//	*OracleError{Kind: KindMalformed}, which is transient.
//
// Thread Safety: LLMOracle is safe for concurrent use.
type LLMOracle struct {
	client llm.ChatClient
	opts   LLMOptions
}

// NewLLMOracle creates an LLMOracle. client must not be nil.
func NewLLMOracle(client llm.ChatClient, opts ...LLMOption) *LLMOracle {
	if client == nil {
		panic("NewLLMOracle: client must not be nil")
	}
	options := DefaultLLMOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &LLMOracle{client: client, opts: options}
}

// Suggest implements Oracle.
func (o *LLMOracle) Suggest(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "oracle.LLMOracle.Suggest",
		trace.WithAttributes(
			attribute.String("request_id", req.RequestID),
			attribute.String("model", o.client.Model()),
			attribute.Int("dossiers", len(req.Dossiers)),
		),
	)
	defer span.End()

	prompt, err := RenderPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("oracle: rendering prompt: %w", err)
	}

	messages := []llm.Message{
		{Role: "system", Content: o.opts.SystemPrompt},
		{Role: "user", Content: prompt},
	}
	params := llm.GenerationParams{
		Temperature: llm.Float32(o.opts.Temperature),
		MaxTokens:   llm.Int(o.opts.MaxTokens),
		JSONMode:    o.opts.JSONMode,
	}

	start := time.Now()
	reply, err := o.client.Chat(ctx, messages, params)
	if err != nil {
		oerr := Classify(err)
		span.RecordError(oerr)
		span.SetStatus(codes.Error, string(oerr.Kind))
		return nil, oerr
	}

	raw, err := ParseReply(reply)
	if err != nil {
		oerr := &OracleError{Kind: KindMalformed, Transient: true, Err: err}
		span.RecordError(oerr)
		span.SetStatus(codes.Error, string(oerr.Kind))
		o.opts.Logger.Debug("oracle reply did not decode",
			slog.String("request_id", req.RequestID),
			slog.String("reply", truncateReply(reply, 200)),
		)
		return nil, oerr
	}

	resp := Normalize(req, raw)
	span.SetAttributes(attribute.Int("suggestions", len(resp.Suggestions)))
	o.opts.Logger.Debug("oracle reply decoded",
		slog.String("request_id", req.RequestID),
		slog.Int("dossiers", len(req.Dossiers)),
		slog.Int("suggestions", len(resp.Suggestions)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

// RenderPrompt renders the user message for a request.
func RenderPrompt(req *Request) (string, error) {
	body, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Suggest up to %d names for each dossier below.\n", req.MaxCandidates)
	sb.WriteString("Scope: ")
	sb.WriteString(req.ScopeSummary)
	sb.WriteString("\n\nRequest:\n")
	sb.Write(body)
	sb.WriteString("\n")
	return sb.String(), nil
}

// ParseReply extracts the Response object from a model reply.
//
// Description:
//
//	Strips Markdown code fences, then decodes the outermost {...} span.
//	Returns an error wrapping ErrMalformedResponse when no object decodes or
//	the object has no "suggestions" field.
func ParseReply(reply string) (*Response, error) {
	text := strings.TrimSpace(reply)
	if i := strings.Index(text, "```"); i >= 0 {
		text = text[i+3:]
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		if j := strings.LastIndex(text, "```"); j >= 0 {
			text = text[:j]
		}
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedResponse)
	}

	var envelope struct {
		Suggestions *[]Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if envelope.Suggestions == nil {
		return nil, fmt.Errorf("%w: missing suggestions field", ErrMalformedResponse)
	}
	return &Response{Suggestions: *envelope.Suggestions}, nil
}

func truncateReply(s string, n int) string {
	if len(s) <= n {
		return llm.SafeLogString(s)
	}
	return llm.SafeLogString(s[:n]) + "…"
}
