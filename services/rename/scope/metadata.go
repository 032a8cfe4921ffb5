// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scope

import (
	"bytes"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// snippet returns the declaration header of site with whitespace collapsed,
// bounded to SnippetLength bytes. Function and class bodies are elided.
func (b *builder) snippet(site *sitter.Node) string {
	if site == nil || b.opts.SnippetLength <= 0 {
		return ""
	}
	start := int(site.StartByte())
	end := int(site.EndByte())
	elided := false
	if body := site.ChildByFieldName("body"); body != nil && int(body.StartByte()) > start {
		end = int(body.StartByte())
		elided = true
	}

	text := strings.Join(strings.Fields(string(b.content[start:end])), " ")
	if elided {
		text += " {…}"
	}
	return truncate(text, b.opts.SnippetLength)
}

// surrounding returns ContextLines lines on each side of offset, bounded to
// a window of MaxContextBytes centred on offset.
func (b *builder) surrounding(offset int) string {
	if b.opts.MaxContextBytes <= 0 {
		return ""
	}
	content := b.content
	half := b.opts.MaxContextBytes / 2

	start := lineStart(content, offset)
	for i := 0; i < b.opts.ContextLines && start > 0; i++ {
		start = lineStart(content, start-1)
	}
	end := lineEnd(content, offset)
	for i := 0; i < b.opts.ContextLines && end < len(content); i++ {
		end = lineEnd(content, end+1)
	}

	if offset-start > half {
		start = offset - half
	}
	if end-offset > half {
		end = offset + half
	}
	for start < offset && !utf8.RuneStart(content[start]) {
		start++
	}
	for end > offset && end < len(content) && !utf8.RuneStart(content[end]) {
		end--
	}
	return string(content[start:end])
}

func lineStart(content []byte, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	return bytes.LastIndexByte(content[:offset], '\n') + 1
}

func lineEnd(content []byte, offset int) int {
	if offset >= len(content) {
		return len(content)
	}
	if i := bytes.IndexByte(content[offset:], '\n'); i >= 0 {
		return offset + i
	}
	return len(content)
}

// truncate bounds s to n bytes on a rune boundary, marking the cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
