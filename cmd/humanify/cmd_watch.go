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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/laxels/humanify-sub001/services/rename/pipeline"
)

// watchDebounce coalesces the burst of events editors emit for one save.
const watchDebounce = 200 * time.Millisecond

func newWatchCmd(ro *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Rename JavaScript files whenever they change",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("watch needs --out")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			renamer, closer, err := ro.newRenamer()
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			w, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("creating watcher: %w", err)
			}
			defer func() { _ = w.Close() }()

			// fsnotify watches are not recursive; only top-level files are renamed.
			for _, dir := range args {
				if err := w.Add(dir); err != nil {
					return fmt.Errorf("watching %s: %w", dir, err)
				}
			}
			ro.logger.Info("watching for changes", slog.Any("dirs", args), slog.String("out", out))

			handle := func(path string) {
				renameOne(ctx, ro, renamer, path, filepath.Join(out, filepath.Base(path)))
			}
			return watchLoop(ctx, w.Events, w.Errors, watchDebounce, ro.logger, handle)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory")
	return cmd
}

// watchLoop calls handle once per changed JavaScript file after the file
// has been quiet for debounce. It returns when ctx ends or events closes.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error,
	debounce time.Duration, logger *slog.Logger, handle func(path string)) error {

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !sourceExts[filepath.Ext(ev.Name)] {
				continue
			}
			pending[ev.Name] = time.Now()
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logger.Warn("watch error", slog.String("error", err.Error()))
		case now := <-ticker.C:
			for path, at := range pending {
				if now.Sub(at) >= debounce {
					delete(pending, path)
					handle(path)
				}
			}
		}
	}
}

func renameOne(ctx context.Context, ro *rootOptions, renamer *pipeline.Renamer, path, dst string) {
	src, err := os.ReadFile(path)
	if err != nil {
		ro.logger.Warn("reading changed file", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	res, err := renamer.RenameSource(ctx, path, src)
	if err != nil {
		ro.logger.Error("rename failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		ro.logger.Error("creating output directory", slog.String("error", err.Error()))
		return
	}
	if err := os.WriteFile(dst, res.Text, 0o644); err != nil {
		ro.logger.Error("writing output", slog.String("path", dst), slog.String("error", err.Error()))
		return
	}
	printSummary(ro.stderr, []pipeline.FileResult{{Name: path, Result: res}}, isTerminal(ro.stderr))
}
