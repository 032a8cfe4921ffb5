// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/laxels/humanify-sub001/services/llm"
	"github.com/laxels/humanify-sub001/services/rename/config"
	"github.com/laxels/humanify-sub001/services/rename/dossier"
	"github.com/laxels/humanify-sub001/services/rename/oracle"
	"github.com/laxels/humanify-sub001/services/rename/scope"
	"github.com/laxels/humanify-sub001/services/rename/solver"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewOracle builds the oracle chain described by cfg.
//
// Description:
//
//	"openai", "anthropic", "gemini" and "ollama" wrap an llm.ChatClient in an LLMOracle and a
//	RetryingOracle. When cfg.Oracle.Cache.Enabled, a CachingOracle backed
//	by BadgerDB sits in front of the retries, so cached batches cost no
//	round trip. "static" returns an empty StaticOracle, which makes every
//	binding keep its name; it is meant for dry runs and tests.
//
// Outputs:
//
//	oracle.Oracle - The chain.
//	io.Closer     - Releases the cache. Always non-nil.
//	error         - Non-nil if the client or the cache cannot be created.
func NewOracle(cfg *config.Config, logger *slog.Logger) (oracle.Oracle, io.Closer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	oc := cfg.Oracle

	var client llm.ChatClient
	switch oc.Provider {
	case "static":
		return oracle.NewStaticOracle(nil), nopCloser{}, nil
	case "openai", "anthropic", "gemini":
		if oc.APIKey == "" {
			return nil, nil, fmt.Errorf("pipeline: %s provider needs %s or %s",
				oc.Provider, config.APIKeyEnv(oc.Provider), config.EnvAPIKey)
		}
		switch oc.Provider {
		case "openai":
			client = llm.NewOpenAIClientWithConfig(oc.APIKey, oc.Model, oc.BaseURL, oc.Timeout)
		case "anthropic":
			client = llm.NewAnthropicClientWithConfig(oc.APIKey, oc.Model, oc.BaseURL, oc.Timeout)
		default:
			client = llm.NewGeminiClientWithConfig(oc.APIKey, oc.Model, oc.BaseURL, oc.Timeout)
		}
	case "ollama":
		c, err := llm.NewOllamaClient(oc.Model, oc.BaseURL, oc.JSONMode)
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline: %w", err)
		}
		client = c
	default:
		return nil, nil, fmt.Errorf("pipeline: unknown oracle provider %q", oc.Provider)
	}

	var o oracle.Oracle = oracle.NewLLMOracle(client,
		oracle.WithTemperature(oc.Temperature),
		oracle.WithMaxTokens(oc.MaxTokens),
		oracle.WithJSONMode(oc.JSONMode),
		oracle.WithLLMLogger(logger),
	)
	o = oracle.NewRetryingOracle(o,
		oracle.WithMaxRetries(oc.MaxRetries),
		oracle.WithBackoff(oc.InitialBackoff, oc.MaxBackoff),
		oracle.WithRateLimit(oc.RequestsPerSecond, oc.Burst),
		oracle.WithRetryLogger(logger),
	)

	if !oc.Cache.Enabled {
		return o, nopCloser{}, nil
	}
	db, err := oracle.OpenCache(oc.Cache.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: %w", err)
	}
	logger.Debug("oracle cache opened",
		slog.String("dir", oc.Cache.Dir),
		slog.Duration("ttl", oc.Cache.TTL),
	)
	return oracle.NewCachingOracle(o, db, client.Model(), oc.Cache.TTL, logger), db, nil
}

// OptionsFromConfig maps cfg onto Renamer options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) []Option {
	if logger == nil {
		logger = slog.Default()
	}
	return []Option{
		WithLogger(logger),
		WithMaxFileSize(cfg.Analysis.MaxFileSize),
		WithScopeOptions(
			scope.WithSnippetLength(cfg.Analysis.SnippetLength),
			scope.WithContextLines(cfg.Analysis.ContextLines),
			scope.WithMaxContextBytes(cfg.Analysis.MaxContextBytes),
			scope.WithLogger(logger),
		),
		WithDossierOptions(
			dossier.WithBatchSize(cfg.Dossier.BatchSize),
			dossier.WithPreserveExports(cfg.Dossier.PreserveExports),
			dossier.WithSurroundingCode(cfg.Dossier.IncludeSurroundingCode),
		),
		WithMaxCandidates(cfg.Oracle.MaxCandidates),
		WithOracleConcurrency(cfg.Oracle.Concurrency),
		WithSolverOptions(solver.Options{
			PreserveExports: cfg.Dossier.PreserveExports,
			MinConfidence:   cfg.Solver.MinConfidence,
			Logger:          logger,
		}),
		WithLowConfidence(cfg.Solver.LowConfidence),
		WithMaxValidationAttempts(cfg.Pipeline.MaxValidationAttempts),
		WithWorkers(cfg.Pipeline.Workers),
	}
}
