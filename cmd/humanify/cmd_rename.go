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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/laxels/humanify-sub001/services/rename/pipeline"
)

// sourceExts are the file extensions picked up from directories.
var sourceExts = map[string]bool{".js": true, ".mjs": true, ".cjs": true}

type renameFlags struct {
	out    string
	diff   bool
	report string
}

// inputFile is a source path and its path relative to the output directory.
type inputFile struct {
	path string
	rel  string
}

func newRenameCmd(ro *rootOptions) *cobra.Command {
	var f renameFlags
	cmd := &cobra.Command{
		Use:   "rename <file|dir|->...",
		Short: "Rename the bindings of JavaScript files",
		Long: `Rename analyzes each file, asks the naming oracle for names, and writes the
validated rewrite. A single file without --out is written to stdout;
directories are searched for .js, .mjs and .cjs files.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRename(cmd, ro, f, args)
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output directory")
	cmd.Flags().BoolVar(&f.diff, "diff", false, "Print unified diffs instead of the rewritten text")
	cmd.Flags().StringVar(&f.report, "report", "", "Write a JSON report of renames and fallbacks to this file")
	return cmd
}

func runRename(cmd *cobra.Command, ro *rootOptions, f renameFlags, args []string) error {
	inputs, err := collectInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return errors.New("no JavaScript files found")
	}
	if f.out == "" && !f.diff && len(inputs) > 1 {
		return errors.New("several inputs need --out or --diff")
	}

	files := make([]pipeline.File, 0, len(inputs))
	for _, in := range inputs {
		src, err := readSource(in.path)
		if err != nil {
			return err
		}
		files = append(files, pipeline.File{Name: in.path, Source: src})
	}

	renamer, closer, err := ro.newRenamer()
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	results, err := renamer.RenameFiles(cmd.Context(), files)
	if err != nil {
		return err
	}

	for i, r := range results {
		if r.Err != nil {
			continue
		}
		if err := emit(ro.stdout, f, inputs[i], files[i].Source, r.Result); err != nil {
			return err
		}
	}

	if f.report != "" {
		if err := writeReport(f.report, results); err != nil {
			return err
		}
	}
	printSummary(ro.stderr, results, isTerminal(ro.stderr))

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

func emit(stdout io.Writer, f renameFlags, in inputFile, orig []byte, res *pipeline.Result) error {
	if f.diff {
		d, err := unifiedDiff(in.rel, orig, res.Text)
		if err != nil {
			return fmt.Errorf("diffing %s: %w", in.path, err)
		}
		_, err = stdout.Write(d)
		return err
	}
	if f.out == "" {
		_, err := stdout.Write(res.Text)
		return err
	}

	dst := filepath.Join(f.out, in.rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(dst, res.Text, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	slog.Debug("wrote output", slog.String("path", dst))
	return nil
}

// collectInputs expands directories into their JavaScript files.
func collectInputs(args []string) ([]inputFile, error) {
	var out []inputFile
	for _, arg := range args {
		if arg == "-" {
			out = append(out, inputFile{path: "-", rel: "stdin.js"})
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, inputFile{path: arg, rel: filepath.Base(arg)})
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
					return filepath.SkipDir
				}
				return nil
			}
			if !sourceExts[filepath.Ext(path)] {
				return nil
			}
			rel, err := filepath.Rel(arg, path)
			if err != nil {
				return err
			}
			out = append(out, inputFile{path: path, rel: rel})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", arg, err)
		}
	}
	return out, nil
}

type reportEntry struct {
	Name   string           `json:"name"`
	Error  string           `json:"error,omitempty"`
	Result *pipeline.Result `json:"result,omitempty"`
}

func writeReport(path string, results []pipeline.FileResult) error {
	entries := make([]reportEntry, 0, len(results))
	for _, r := range results {
		e := reportEntry{Name: r.Name, Result: r.Result}
		if r.Err != nil {
			e.Error = r.Err.Error()
		}
		entries = append(entries, e)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// printSummary writes one line per file. Colors are used only on a terminal.
func printSummary(w io.Writer, results []pipeline.FileResult, tty bool) {
	r := lipgloss.NewRenderer(w)
	ok := r.NewStyle().Foreground(lipgloss.Color("2"))
	warn := r.NewStyle().Foreground(lipgloss.Color("3"))
	bad := r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dim := r.NewStyle().Faint(true)
	if !tty {
		ok, warn, bad, dim = lipgloss.NewStyle(), lipgloss.NewStyle(), lipgloss.NewStyle(), lipgloss.NewStyle()
	}

	for _, res := range results {
		switch {
		case res.Err != nil:
			fmt.Fprintf(w, "%s %s %s\n", bad.Render("FAIL"), res.Name, dim.Render(res.Err.Error()))
		case res.Result.Rejected != nil:
			fmt.Fprintf(w, "%s %s %s\n", warn.Render("KEPT"), res.Name,
				dim.Render("rewrite rejected: "+res.Result.Rejected.Error()))
		default:
			fmt.Fprintf(w, "%s %s %s\n", ok.Render("OK  "), res.Name,
				dim.Render(fmt.Sprintf("%d renamed, %d kept, %d warnings",
					len(res.Result.Renames), len(res.Result.Fallbacks), len(res.Result.Validation.Warnings))))
		}
	}
}
