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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/laxels/humanify-sub001/services/rename/scope"
	"github.com/laxels/humanify-sub001/services/rename/validate"
)

func newValidateCmd(ro *rootOptions) *cobra.Command {
	var (
		original string
		quick    bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "validate <file|->",
		Short: "Validate a (rewritten) JavaScript file",
		Long: `Validate re-analyzes the file and reports errors (parse errors, undefined
references, duplicate declarations, reserved words) and warnings. With
--original, free names already present in the original are not errors.
Exits non-zero when the file is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var r *validate.Result
			if quick {
				r = validate.QuickValidate(ctx, src)
			} else {
				var base validate.Baseline
				if original != "" {
					orig, err := readSource(original)
					if err != nil {
						return err
					}
					res, err := scope.Analyze(ctx, orig)
					if err != nil {
						return fmt.Errorf("analyzing original: %w", err)
					}
					base = validate.BaselineFrom(res)
				}
				r = validate.Validate(ctx, src, base)
			}

			if asJSON {
				enc := json.NewEncoder(ro.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(r); err != nil {
					return err
				}
			} else {
				printIssues(ro, "error", r.Errors)
				printIssues(ro, "warning", r.Warnings)
			}
			return r.Err()
		},
	}
	cmd.Flags().StringVar(&original, "original", "", "Original file whose free names are allowed")
	cmd.Flags().BoolVar(&quick, "quick", false, "Only check syntax and reserved words")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func printIssues(ro *rootOptions, severity string, issues []validate.Issue) {
	for _, is := range issues {
		loc := "-"
		if is.Location != nil {
			loc = is.Location.String()
		}
		fmt.Fprintf(ro.stdout, "%s: %s [%s] %s\n", loc, severity, is.Type, is.Message)
	}
}
