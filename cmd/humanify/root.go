// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/laxels/humanify-sub001/services/rename/config"
	"github.com/laxels/humanify-sub001/services/rename/pipeline"
)

// rootOptions holds the persistent flags and the state built from them.
type rootOptions struct {
	configPath   string
	logLevel     string
	logFormat    string
	provider     string
	model        string
	dryRun       bool
	trace        bool
	otlpEndpoint string

	stdout io.Writer
	stderr io.Writer

	cfg      *config.Config
	logger   *slog.Logger
	shutdown func(context.Context) error
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	ro := &rootOptions{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "humanify",
		Short:         "Rename the identifiers of minified JavaScript",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return ro.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if ro.shutdown == nil {
				return nil
			}
			return ro.shutdown(context.WithoutCancel(cmd.Context()))
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&ro.configPath, "config", "c", "", "YAML config file (defaults are embedded)")
	pf.StringVar(&ro.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&ro.logFormat, "log-format", "", "Log format: auto, text, json")
	pf.StringVar(&ro.provider, "provider", "", "Oracle provider: openai, anthropic, gemini, ollama, static")
	pf.StringVar(&ro.model, "model", "", "Oracle model name")
	pf.BoolVar(&ro.dryRun, "dry-run", false, "Use the static oracle; no names change")
	pf.BoolVar(&ro.trace, "trace", false, "Print OpenTelemetry spans to stderr")
	pf.StringVar(&ro.otlpEndpoint, "otlp-endpoint", "", "Export spans to an OTLP/gRPC collector at host:port")

	root.AddCommand(
		newRenameCmd(ro),
		newAnalyzeCmd(ro),
		newValidateCmd(ro),
		newServeCmd(ro),
		newWatchCmd(ro),
	)
	return root
}

// setup loads config, applies flag overrides and sets up logging and tracing.
func (ro *rootOptions) setup(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(ctx, ro.configPath)
	if err != nil {
		return err
	}
	if ro.logLevel != "" {
		cfg.LogLevel = ro.logLevel
	}
	if ro.logFormat != "" {
		cfg.LogFormat = ro.logFormat
	}
	if ro.provider != "" {
		cfg.Oracle.Provider = ro.provider
		cfg.ResolveAPIKey(os.Getenv)
	}
	if ro.model != "" {
		cfg.Oracle.Model = ro.model
	}
	if ro.dryRun {
		cfg.Oracle.Provider = "static"
	}
	if cfg.Oracle.Cache.Enabled && cfg.Oracle.Cache.Dir == "" {
		cfg.Oracle.Cache.Dir = config.DefaultCacheDir()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ro.cfg = cfg

	ro.logger = newLogger(ro.stderr, cfg.SlogLevel(), cfg.LogFormat, isTerminal(ro.stderr))
	slog.SetDefault(ro.logger)

	shutdown, err := setupTracing(ctx, ro.trace, ro.otlpEndpoint, ro.stderr)
	if err != nil {
		return err
	}
	ro.shutdown = shutdown
	return nil
}

// newRenamer builds the oracle chain and a Renamer from the loaded config.
// The returned closer releases the oracle cache.
func (ro *rootOptions) newRenamer() (*pipeline.Renamer, io.Closer, error) {
	o, closer, err := pipeline.NewOracle(ro.cfg, ro.logger)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.NewRenamer(o, pipeline.OptionsFromConfig(ro.cfg, ro.logger)...), closer, nil
}

func readSource(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return src, nil
}
