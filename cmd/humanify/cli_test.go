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
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/laxels/humanify-sub001/services/rename"
	"github.com/laxels/humanify-sub001/services/rename/config"
	"github.com/laxels/humanify-sub001/services/rename/oracle"
	"github.com/laxels/humanify-sub001/services/rename/pipeline"
)

// runCLI executes the root command with a clean oracle environment.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvProvider, "")
	t.Setenv(config.EnvCacheDir, "")
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRenameCmd_DryRunToStdout(t *testing.T) {
	src := "const a = 1;\nfunction f(b) { return a + b; }\n"
	path := writeFile(t, t.TempDir(), "in.js", src)

	stdout, stderr, err := runCLI(t, "rename", "--dry-run", "--log-level", "warn", path)
	if err != nil {
		t.Fatalf("rename: %v\nstderr: %s", err, stderr)
	}
	if stdout != src {
		t.Errorf("stdout = %q, want the unchanged source", stdout)
	}
	if !strings.Contains(stderr, "OK") || !strings.Contains(stderr, "0 renamed") {
		t.Errorf("summary missing from stderr: %q", stderr)
	}
}

func TestRenameCmd_OutDirAndReport(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "a.js", "let a = 1;\n")
	writeFile(t, in, "lib/b.mjs", "export const b = 2;\n")
	writeFile(t, in, "bad.js", "function (\n")
	out := t.TempDir()
	report := filepath.Join(t.TempDir(), "report.json")

	_, _, err := runCLI(t, "rename", "--dry-run", "--log-level", "error", "--out", out, "--report", report, in)
	if err == nil || !strings.Contains(err.Error(), "1 of 3 files failed") {
		t.Fatalf("err = %v, want one failed file", err)
	}

	if got, err := os.ReadFile(filepath.Join(out, "lib", "b.mjs")); err != nil || string(got) != "export const b = 2;\n" {
		t.Errorf("lib/b.mjs = %q, %v", got, err)
	}
	if _, err := os.Stat(filepath.Join(out, "bad.js")); !os.IsNotExist(err) {
		t.Errorf("failed file was written: %v", err)
	}

	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatal(err)
	}
	var entries []reportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("report has %d entries, want 3", len(entries))
	}
}

func TestRenameCmd_SeveralInputsNeedOut(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.js", "let a;")
	b := writeFile(t, dir, "b.js", "let b;")

	_, _, err := runCLI(t, "rename", "--dry-run", a, b)
	if err == nil || !strings.Contains(err.Error(), "--out") {
		t.Fatalf("err = %v, want a hint about --out", err)
	}
}

func TestAnalyzeCmd(t *testing.T) {
	path := writeFile(t, t.TempDir(), "in.js", `const a = 1; function foo() { const a = 2; }`)

	stdout, _, err := runCLI(t, "analyze", "--dry-run", path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var got struct {
		Bindings map[string]json.RawMessage `json:"bindings"`
		Scopes   map[string]json.RawMessage `json:"scopes"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if len(got.Bindings) != 3 {
		t.Errorf("bindings = %d, want 3", len(got.Bindings))
	}

	stdout, _, err = runCLI(t, "analyze", "--dry-run", "--dossiers", path)
	if err != nil {
		t.Fatalf("analyze --dossiers: %v", err)
	}
	var reqs []oracle.Request
	if err := json.Unmarshal([]byte(stdout), &reqs); err != nil {
		t.Fatalf("decode requests: %v", err)
	}
	if len(reqs) == 0 {
		t.Error("no oracle requests rendered")
	}
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	orig := writeFile(t, dir, "orig.js", "const a = undefinedVar + 1;")
	good := writeFile(t, dir, "good.js", "const total = undefinedVar + 1;")
	bad := writeFile(t, dir, "bad.js", "const total = undefinedVar + other;")

	if _, _, err := runCLI(t, "validate", "--dry-run", "--original", orig, good); err != nil {
		t.Errorf("valid file rejected: %v", err)
	}

	stdout, _, err := runCLI(t, "validate", "--dry-run", "--original", orig, bad)
	if err == nil {
		t.Fatal("invalid file accepted")
	}
	if !strings.Contains(stdout, "undefined_reference") || !strings.Contains(stdout, "other") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestUnifiedDiff(t *testing.T) {
	orig := "let a = 1;\nlet keep = 2;\nlet b = a;\n"
	renamed := "let count = 1;\nlet keep = 2;\nlet b = count;\n"

	d, err := unifiedDiff("x.js", []byte(orig), []byte(renamed))
	if err != nil {
		t.Fatal(err)
	}
	out := string(d)
	for _, want := range []string{
		"--- a/x.js", "+++ b/x.js",
		"-let a = 1;\n+let count = 1;\n",
		" let keep = 2;\n",
		"-let b = a;\n+let b = count;\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("diff missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "@@ -") != 1 {
		t.Errorf("want one hunk:\n%s", out)
	}

	d, err = unifiedDiff("x.js", []byte(orig), []byte(orig))
	if err != nil || d != nil {
		t.Errorf("identical input: %q, %v", d, err)
	}
}

func TestUnifiedDiff_SeparateHunks(t *testing.T) {
	var a, b strings.Builder
	for i := 0; i < 20; i++ {
		line := "let x" + string(rune('a'+i)) + ";\n"
		a.WriteString(line)
		if i == 0 || i == 19 {
			line = "let renamed" + string(rune('a'+i)) + ";\n"
		}
		b.WriteString(line)
	}

	d, err := unifiedDiff("y.js", []byte(a.String()), []byte(b.String()))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(d), "@@ -"); n != 2 {
		t.Errorf("hunks = %d, want 2:\n%s", n, d)
	}
}

func TestUnifiedDiff_InsertedLine(t *testing.T) {
	d, err := unifiedDiff("z.js", []byte("let a;\nlet b;\n"), []byte("let a;\nlet x;\nlet b;\n"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(d)
	for _, want := range []string{"@@ -1,2 +1,3 @@", " let a;\n+let x;\n let b;\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("diff missing %q:\n%s", want, out)
		}
	}
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", "")
	writeFile(t, dir, "sub/b.cjs", "")
	writeFile(t, dir, "readme.md", "")
	writeFile(t, dir, "node_modules/dep.js", "")
	writeFile(t, dir, ".cache/c.js", "")
	single := writeFile(t, t.TempDir(), "one.js", "")

	inputs, err := collectInputs([]string{dir, single})
	if err != nil {
		t.Fatal(err)
	}
	var rels []string
	for _, in := range inputs {
		rels = append(rels, in.rel)
	}
	sort.Strings(rels)
	want := []string{"a.js", "one.js", filepath.Join("sub", "b.cjs")}
	if strings.Join(rels, ",") != strings.Join(want, ",") {
		t.Errorf("rels = %v, want %v", rels, want)
	}

	if _, err := collectInputs([]string{filepath.Join(dir, "missing.js")}); err == nil {
		t.Error("missing file accepted")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, slog.LevelInfo, "auto", false).Info("hello", slog.Int("n", 1))
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("auto without a terminal should log JSON: %q", buf.String())
	}

	buf.Reset()
	newLogger(&buf, slog.LevelInfo, "auto", true).Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("auto on a terminal should log text: %q", buf.String())
	}

	buf.Reset()
	newLogger(&buf, slog.LevelWarn, "text", false).Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	results := []pipeline.FileResult{
		{Name: "bad.js", Err: os.ErrNotExist},
	}
	printSummary(&buf, results, false)
	if !strings.HasPrefix(buf.String(), "FAIL bad.js") {
		t.Errorf("summary = %q", buf.String())
	}
}

func TestWatchLoop(t *testing.T) {
	events := make(chan fsnotify.Event)
	errs := make(chan error)
	ctx, cancel := context.WithCancel(context.Background())

	var (
		mu      sync.Mutex
		handled []string
	)
	done := make(chan error, 1)
	go func() {
		done <- watchLoop(ctx, events, errs, 20*time.Millisecond, slog.Default(), func(p string) {
			mu.Lock()
			handled = append(handled, p)
			mu.Unlock()
		})
	}()

	events <- fsnotify.Event{Name: "a.js", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "a.js", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "notes.txt", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "b.js", Op: fsnotify.Remove}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(handled)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watchLoop: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(handled) != 1 || handled[0] != "a.js" {
		t.Errorf("handled = %v, want [a.js]", handled)
	}
}

func TestNewRouter(t *testing.T) {
	cfg := config.Default()
	cfg.Oracle.Provider = "static"
	renamer := pipeline.NewRenamer(oracle.NewStaticOracle(nil), pipeline.OptionsFromConfig(cfg, nil)...)
	router := newRouter(rename.NewHandlers(renamer, cfg, nil), false)

	for _, path := range []string{"/metrics", "/v1/rename/health"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, w.Code)
		}
	}
}
