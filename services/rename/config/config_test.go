// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("embedded defaults do not validate: %v", err)
	}
	if cfg.Dossier.BatchSize != 25 {
		t.Errorf("expected batch_size = 25, got %d", cfg.Dossier.BatchSize)
	}
	if !cfg.Dossier.PreserveExports {
		t.Error("expected preserve_exports = true")
	}
	if cfg.Oracle.Timeout != 120*time.Second {
		t.Errorf("expected timeout = 120s, got %s", cfg.Oracle.Timeout)
	}
	if cfg.Oracle.Cache.TTL != 7*24*time.Hour {
		t.Errorf("expected cache ttl = 168h, got %s", cfg.Oracle.Cache.TTL)
	}
	if cfg.Analysis.MaxFileSize != 10<<20 {
		t.Errorf("expected max_file_size = 10 MiB, got %d", cfg.Analysis.MaxFileSize)
	}
}

func TestParse_Overlay(t *testing.T) {
	cfg, err := Parse(context.Background(), []byte(`
oracle:
  provider: ollama
  model: llama3.1
  base_url: http://localhost:11434
pipeline:
  workers: 8
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Oracle.Provider != "ollama" || cfg.Oracle.Model != "llama3.1" {
		t.Errorf("oracle = %s/%s", cfg.Oracle.Provider, cfg.Oracle.Model)
	}
	if cfg.Pipeline.Workers != 8 {
		t.Errorf("expected workers = 8, got %d", cfg.Pipeline.Workers)
	}
	// Untouched fields keep their defaults.
	if cfg.Oracle.MaxCandidates != 5 {
		t.Errorf("expected max_candidates = 5, got %d", cfg.Oracle.MaxCandidates)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad provider", "oracle:\n  provider: carrier-pigeon\n"},
		{"zero batch", "dossier:\n  batch_size: 0\n"},
		{"confidence range", "solver:\n  min_confidence: 1.5\n"},
		{"backoff order", "oracle:\n  initial_backoff: 5s\n  max_backoff: 1s\n"},
		{"bad url", "oracle:\n  base_url: not a url\n"},
		{"bad level", "log_level: loud\n"},
		{"missing model", "oracle:\n  model: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), []byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Errorf("expected validator.ValidationErrors, got %v", err)
			}
		})
	}
}

func TestParse_StaticNeedsNoModel(t *testing.T) {
	if _, err := Parse(context.Background(), []byte("oracle:\n  provider: static\n  model: \"\"\n")); err != nil {
		t.Errorf("Parse: %v", err)
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Parse(context.Background(), []byte("oracle: [")); err == nil {
		t.Fatal("expected YAML error")
	}
	if _, err := Parse(context.Background(), make([]byte, MaxYAMLFileSize+1)); err == nil {
		t.Fatal("expected size error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvProvider: " Ollama ",
		EnvModel:    "qwen2.5-coder",
		EnvBaseURL:  "http://gpu:11434",
		EnvAPIKey:   "sk-test",
		EnvCacheDir: "/tmp/humanify",
	}
	cfg := Default()
	cfg.Oracle.Cache.Enabled = false
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Oracle.Provider != "ollama" {
		t.Errorf("provider = %q", cfg.Oracle.Provider)
	}
	if cfg.Oracle.Model != "qwen2.5-coder" || cfg.Oracle.BaseURL != "http://gpu:11434" {
		t.Errorf("model/base_url = %q/%q", cfg.Oracle.Model, cfg.Oracle.BaseURL)
	}
	if cfg.Oracle.APIKey != "sk-test" {
		t.Error("api key not applied")
	}
	if !cfg.Oracle.Cache.Enabled || cfg.Oracle.Cache.Dir != "/tmp/humanify" {
		t.Errorf("cache = %+v", cfg.Oracle.Cache)
	}
}

func TestResolveAPIKey(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":    "sk-openai",
		"ANTHROPIC_API_KEY": "sk-ant",
	}
	getenv := func(k string) string { return env[k] }

	cfg := Default()
	cfg.Oracle.Provider = "openai"
	cfg.ResolveAPIKey(getenv)
	if cfg.Oracle.APIKey != "sk-openai" {
		t.Errorf("openai key = %q", cfg.Oracle.APIKey)
	}

	cfg.Oracle.Provider = "anthropic"
	cfg.ResolveAPIKey(getenv)
	if cfg.Oracle.APIKey != "sk-ant" {
		t.Errorf("anthropic key = %q", cfg.Oracle.APIKey)
	}

	cfg.Oracle.Provider = "gemini"
	cfg.ResolveAPIKey(getenv)
	if cfg.Oracle.APIKey != "" {
		t.Errorf("gemini key = %q, want empty", cfg.Oracle.APIKey)
	}

	env[EnvAPIKey] = "sk-generic"
	cfg.ResolveAPIKey(getenv)
	if cfg.Oracle.APIKey != "sk-generic" {
		t.Errorf("generic key = %q", cfg.Oracle.APIKey)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "humanify.yaml")
	if err := os.WriteFile(path, []byte("dossier:\n  batch_size: 10\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvModel, "from-env")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dossier.BatchSize != 10 {
		t.Errorf("expected batch_size = 10, got %d", cfg.Dossier.BatchSize)
	}
	if cfg.Oracle.Model != "from-env" {
		t.Errorf("expected env model, got %q", cfg.Oracle.Model)
	}

	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	for level, want := range map[string]string{"debug": "DEBUG", "info": "INFO", "warn": "WARN", "error": "ERROR"} {
		cfg.LogLevel = level
		if got := cfg.SlogLevel().String(); got != want {
			t.Errorf("SlogLevel(%s) = %s, want %s", level, got, want)
		}
	}
}

func TestDefaultCacheDir(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	got := DefaultCacheDir()
	want := filepath.Join("/home/tester", ".humanify", "cache", "oracle")
	if got != want {
		t.Fatalf("DefaultCacheDir() = %q, want %q", got, want)
	}
}
