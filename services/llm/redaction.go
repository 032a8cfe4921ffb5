// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"regexp"
)

// redactionPattern pairs a compiled regex with a replacement label.
type redactionPattern struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// redactionPatterns is the ordered list of secret patterns to redact.
// More specific prefixes come first.
var redactionPatterns = []redactionPattern{
	{
		Pattern:     regexp.MustCompile(`sk-proj-[A-Za-z0-9_-]{20,}`),
		Replacement: "[REDACTED:openai_project_key]",
	},
	{
		Pattern:     regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
		Replacement: "[REDACTED:openai_key]",
	},
	{
		Pattern:     regexp.MustCompile(`Bearer\s+[A-Za-z0-9._-]{10,}`),
		Replacement: "[REDACTED:bearer_token]",
	},
	{
		Pattern:     regexp.MustCompile(`key=[A-Za-z0-9._-]{10,}`),
		Replacement: "key=[REDACTED]",
	},
}

// SafeLogString redacts API keys and bearer tokens from s before it is
// logged or embedded in an error.
//
// Limitations:
//   - Pattern-based; keys with non-standard prefixes are not detected.
//   - Single-line matching only.
//
// Thread Safety: This function is safe for concurrent use.
func SafeLogString(s string) string {
	if s == "" {
		return s
	}
	for _, p := range redactionPatterns {
		s = p.Pattern.ReplaceAllString(s, p.Replacement)
	}
	return s
}
