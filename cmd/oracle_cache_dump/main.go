// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// oracle_cache_dump inspects the naming oracle cache.
//
// The cache persists oracle responses in BadgerDB so that unchanged batches
// are not sent to the model again. This tool opens the cache read-only and
// prints every entry: key, TTL remaining, size, and the suggested names.
//
// Usage:
//
//	oracle_cache_dump [--path /path/to/oracle/cache] [--names=false]
//
// If --path is not given, reads HUMANIFY_CACHE_DIR from the environment,
// falling back to ~/.humanify/cache/oracle/.
//
// Exit codes:
//
//	0 - success, including an empty or missing cache
//	1 - error opening or reading the database
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/laxels/humanify-sub001/services/rename/config"
	"github.com/laxels/humanify-sub001/services/rename/oracle"
)

func main() {
	pathFlag := flag.String("path", "", "Path to the oracle cache directory (overrides "+config.EnvCacheDir+")")
	namesFlag := flag.Bool("names", true, "Print the suggested names of each entry")
	flag.Parse()

	dbPath := *pathFlag
	if dbPath == "" {
		dbPath = os.Getenv(config.EnvCacheDir)
	}
	if dbPath == "" {
		dbPath = config.DefaultCacheDir()
	}
	if dbPath == "" {
		fatalf("cannot resolve the cache directory; pass --path")
	}

	fmt.Printf("Oracle cache path: %s\n", dbPath)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Cache directory does not exist. No oracle responses have been cached yet.")
		os.Exit(0)
	}

	db, err := badger.Open(badger.DefaultOptions(dbPath).WithLogger(nil).WithReadOnly(true))
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	entries, err := oracle.ListCache(db)
	if err != nil {
		fatalf("%v", err)
	}
	if len(entries) == 0 {
		fmt.Println("\nNo oracle cache entries found.")
		return
	}

	fmt.Printf("\nFound %d cache entr%s:\n", len(entries), plural(len(entries), "y", "ies"))
	fmt.Println(strings.Repeat("─", 80))

	var totalBytes int
	for i, e := range entries {
		totalBytes += e.Size
		fmt.Printf("\n[%d] Key:      %s\n", i+1, e.Key)
		fmt.Printf("    TTL:      %s\n", formatTTL(e.ExpiresAt))
		fmt.Printf("    Size:     %s\n", formatBytes(e.Size))

		if e.Err != nil {
			fmt.Printf("    DECODE ERROR: %v\n", e.Err)
			continue
		}

		candidates := 0
		for _, s := range e.Response.Suggestions {
			candidates += len(s.Candidates)
		}
		fmt.Printf("    Dossiers: %d answered, %d candidates\n", len(e.Response.Suggestions), candidates)

		if !*namesFlag {
			continue
		}
		for _, s := range e.Response.Suggestions {
			names := make([]string, 0, len(s.Candidates))
			for _, c := range s.Candidates {
				names = append(names, fmt.Sprintf("%s (%.2f)", c.Name, c.Confidence))
			}
			fmt.Printf("      %-8s %s\n", s.ID, strings.Join(names, ", "))
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("─", 80))
	fmt.Printf("Summary: %d entr%s, %s, cache path: %s\n",
		len(entries), plural(len(entries), "y", "ies"), formatBytes(totalBytes), dbPath)
}

func formatTTL(expiresAt time.Time) string {
	if expiresAt.IsZero() {
		return "no expiry set"
	}
	remaining := time.Until(expiresAt)
	if remaining < 0 {
		return fmt.Sprintf("EXPIRED (%s ago)", (-remaining).Round(time.Second))
	}
	return fmt.Sprintf("%s remaining (expires %s)",
		remaining.Round(time.Second), expiresAt.Format("2006-01-02 15:04:05 MST"))
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(n int) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB (%d bytes)", float64(n)/1024/1024, n)
	case n >= 1024:
		return fmt.Sprintf("%.1f KB (%d bytes)", float64(n)/1024, n)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

func plural(n int, singular, pluralSuffix string) string {
	if n == 1 {
		return singular
	}
	return pluralSuffix
}

// fatalf prints to stderr and exits 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "oracle_cache_dump: "+format+"\n", args...)
	os.Exit(1)
}
