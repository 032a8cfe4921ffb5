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
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

const diffContext = 3

// unifiedDiff renders a unified diff between orig and renamed. It returns
// nil when the two are identical.
//
// difflib groups the line edits into hunks; go-diff prints them.
func unifiedDiff(name string, orig, renamed []byte) ([]byte, error) {
	a := splitLines(orig)
	b := splitLines(renamed)

	groups := difflib.NewMatcher(a, b).GetGroupedOpCodes(diffContext)
	if len(groups) == 0 {
		return nil, nil
	}

	fd := &diff.FileDiff{OrigName: "a/" + name, NewName: "b/" + name}
	for _, group := range groups {
		first, last := group[0], group[len(group)-1]

		var body bytes.Buffer
		for _, op := range group {
			switch op.Tag {
			case 'e':
				for _, l := range a[op.I1:op.I2] {
					writeLine(&body, ' ', l)
				}
			case 'r', 'd', 'i':
				for _, l := range a[op.I1:op.I2] {
					writeLine(&body, '-', l)
				}
				for _, l := range b[op.J1:op.J2] {
					writeLine(&body, '+', l)
				}
			}
		}
		fd.Hunks = append(fd.Hunks, &diff.Hunk{
			OrigStartLine: hunkStart(first.I1, last.I2),
			OrigLines:     int32(last.I2 - first.I1),
			NewStartLine:  hunkStart(first.J1, last.J2),
			NewLines:      int32(last.J2 - first.J1),
			Body:          body.Bytes(),
		})
	}
	return diff.PrintFileDiff(fd)
}

// hunkStart converts a 0-based range to the 1-based start line of a hunk
// header. An empty range names the line before it.
func hunkStart(lo, hi int) int32 {
	if hi == lo {
		return int32(lo)
	}
	return int32(lo + 1)
}

func splitLines(src []byte) []string {
	if len(src) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(src), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func writeLine(buf *bytes.Buffer, prefix byte, line string) {
	buf.WriteByte(prefix)
	buf.WriteString(line)
	if !strings.HasSuffix(line, "\n") {
		buf.WriteByte('\n')
	}
}
