// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the renaming engine configuration.
//
// Configuration is layered: embedded defaults, then an optional YAML file,
// then environment variables. The result is validated with struct tags.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// MaxYAMLFileSize bounds config files.
const MaxYAMLFileSize = 1 << 20

// Environment variables read by ApplyEnv.
const (
	EnvProvider = "HUMANIFY_PROVIDER"
	EnvModel    = "HUMANIFY_MODEL"
	EnvBaseURL  = "HUMANIFY_BASE_URL"
	EnvAPIKey   = "HUMANIFY_API_KEY"
	EnvCacheDir = "HUMANIFY_CACHE_DIR"
)

// APIKeyEnv returns the provider-specific variable holding the API key, or
// "" for providers that need none.
func APIKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	}
	return ""
}

var tracer = otel.Tracer("humanify.rename.config")

// Config is the complete engine configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=auto text json"`

	Analysis AnalysisConfig `yaml:"analysis"`
	Dossier  DossierConfig  `yaml:"dossier"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Solver   SolverConfig   `yaml:"solver"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Server   ServerConfig   `yaml:"server"`
}

// AnalysisConfig bounds parsing and per-binding metadata.
type AnalysisConfig struct {
	MaxFileSize     int `yaml:"max_file_size" validate:"gte=1"`
	SnippetLength   int `yaml:"snippet_length" validate:"gte=16"`
	ContextLines    int `yaml:"context_lines" validate:"gte=0,lte=50"`
	MaxContextBytes int `yaml:"max_context_bytes" validate:"gte=0"`
}

// DossierConfig controls batching.
type DossierConfig struct {
	BatchSize              int  `yaml:"batch_size" validate:"gte=1,lte=500"`
	IncludeSurroundingCode bool `yaml:"include_surrounding_code"`
	PreserveExports        bool `yaml:"preserve_exports"`
}

// OracleConfig selects and tunes the naming oracle.
type OracleConfig struct {
	Provider string `yaml:"provider" validate:"oneof=openai anthropic gemini ollama static"`
	Model    string `yaml:"model" validate:"required_unless=Provider static"`
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
	// APIKey is never read from files; see ResolveAPIKey.
	APIKey string `yaml:"-"`

	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxCandidates int           `yaml:"max_candidates" validate:"gte=1,lte=20"`
	Temperature   float32       `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens     int           `yaml:"max_tokens" validate:"gte=1"`
	JSONMode      bool          `yaml:"json_mode"`

	MaxRetries        int           `yaml:"max_retries" validate:"gte=0,lte=20"`
	InitialBackoff    time.Duration `yaml:"initial_backoff" validate:"gt=0"`
	MaxBackoff        time.Duration `yaml:"max_backoff" validate:"gtefield=InitialBackoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int           `yaml:"burst" validate:"gte=1"`
	Concurrency       int           `yaml:"concurrency" validate:"gte=1,lte=64"`

	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig controls the persistent oracle cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Dir     string        `yaml:"dir"`
	TTL     time.Duration `yaml:"ttl" validate:"gte=0"`
}

// SolverConfig tunes candidate acceptance.
type SolverConfig struct {
	MinConfidence float64 `yaml:"min_confidence" validate:"gte=0,lte=1"`
	LowConfidence float64 `yaml:"low_confidence" validate:"gte=0,lte=1"`
}

// PipelineConfig controls file-level concurrency and recovery.
type PipelineConfig struct {
	Workers               int `yaml:"workers" validate:"gte=1,lte=256"`
	MaxValidationAttempts int `yaml:"max_validation_attempts" validate:"gte=0,lte=10"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// SlogLevel returns LogLevel as a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Default returns the embedded defaults.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return &cfg
}

// Parse overlays YAML data on the embedded defaults and validates the
// result. Environment variables are not consulted.
//
// Inputs:
//
//	ctx  - Context for tracing.
//	data - YAML bytes. May be empty.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error   - Non-nil if parsing or validation fails.
func Parse(ctx context.Context, data []byte) (*Config, error) {
	_, span := tracer.Start(ctx, "config.Parse")
	defer span.End()

	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("config: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	cfg := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing YAML: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("provider", cfg.Oracle.Provider),
		attribute.String("model", cfg.Oracle.Model),
		attribute.Int("workers", cfg.Pipeline.Workers),
	)
	return cfg, nil
}

// Load reads the file at path (skipped when empty), applies environment
// overrides, and validates.
func Load(ctx context.Context, path string) (*Config, error) {
	var data []byte
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if info.Size() > MaxYAMLFileSize {
			return nil, fmt.Errorf("config: %s exceeds maximum size (%d > %d)", path, info.Size(), MaxYAMLFileSize)
		}
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	cfg, err := Parse(ctx, data)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("config loaded",
		slog.String("path", path),
		slog.String("provider", cfg.Oracle.Provider),
		slog.String("model", cfg.Oracle.Model),
		slog.Bool("cache", cfg.Oracle.Cache.Enabled),
	)
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. getenv is usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvProvider)); v != "" {
		c.Oracle.Provider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv(EnvModel)); v != "" {
		c.Oracle.Model = v
	}
	if v := strings.TrimSpace(getenv(EnvBaseURL)); v != "" {
		c.Oracle.BaseURL = v
	}
	c.ResolveAPIKey(getenv)
	if v := strings.TrimSpace(getenv(EnvCacheDir)); v != "" {
		c.Oracle.Cache.Dir = v
		c.Oracle.Cache.Enabled = true
	}
}

// ResolveAPIKey sets Oracle.APIKey from HUMANIFY_API_KEY, falling back to
// the variable named by APIKeyEnv for the current provider. Call it again
// after changing the provider.
func (c *Config) ResolveAPIKey(getenv func(string) string) {
	c.Oracle.APIKey = strings.TrimSpace(getenv(EnvAPIKey))
	if c.Oracle.APIKey != "" {
		return
	}
	if env := APIKeyEnv(c.Oracle.Provider); env != "" {
		c.Oracle.APIKey = strings.TrimSpace(getenv(env))
	}
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		return fmt.Errorf("config: validation: %w", err)
	}
	return nil
}

// DefaultCacheDir returns ~/.humanify/cache/oracle, or "" when the home
// directory cannot be resolved.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".humanify", "cache", "oracle")
}
