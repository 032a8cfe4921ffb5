// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// humanify renames the identifiers of minified JavaScript.
//
// Usage:
//
//	humanify rename bundle.js --out ./readable
//	humanify rename src/ --out ./readable --diff
//	humanify analyze bundle.js
//	humanify validate renamed.js --original bundle.js
//	humanify serve --addr :12217
//	humanify watch src/ --out ./readable
//
// The naming oracle is chosen by config (--config, HUMANIFY_PROVIDER,
// HUMANIFY_MODEL). Cloud providers read HUMANIFY_API_KEY or their own key
// variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY). --dry-run
// uses a static oracle that keeps every name, which exercises the pipeline
// without a model.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "humanify: %v\n", err)
		os.Exit(1)
	}
}
