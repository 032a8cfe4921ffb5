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
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{12, "12 bytes"},
		{2048, "2.0 KB (2048 bytes)"},
		{3 * 1024 * 1024, "3.0 MB (3145728 bytes)"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatTTL(t *testing.T) {
	if got := formatTTL(time.Time{}); got != "no expiry set" {
		t.Errorf("formatTTL(zero) = %q", got)
	}
	if got := formatTTL(time.Now().Add(-time.Hour)); !strings.HasPrefix(got, "EXPIRED") {
		t.Errorf("formatTTL(past) = %q", got)
	}
	if got := formatTTL(time.Now().Add(time.Hour)); !strings.Contains(got, "remaining") {
		t.Errorf("formatTTL(future) = %q", got)
	}
}

func TestPlural(t *testing.T) {
	if plural(1, "y", "ies") != "y" || plural(2, "y", "ies") != "ies" {
		t.Fatal("plural suffix mismatch")
	}
}
