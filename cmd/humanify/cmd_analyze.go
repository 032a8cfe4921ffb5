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

	"github.com/spf13/cobra"

	"github.com/laxels/humanify-sub001/services/rename/dossier"
	"github.com/laxels/humanify-sub001/services/rename/oracle"
	"github.com/laxels/humanify-sub001/services/rename/scope"
)

func newAnalyzeCmd(ro *rootOptions) *cobra.Command {
	var dossiers bool
	cmd := &cobra.Command{
		Use:   "analyze <file|->",
		Short: "Print the scope graph and binding index of a file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			a := ro.cfg.Analysis
			res, err := scope.Analyze(cmd.Context(), src,
				scope.WithSnippetLength(a.SnippetLength),
				scope.WithContextLines(a.ContextLines),
				scope.WithMaxContextBytes(a.MaxContextBytes),
				scope.WithLogger(ro.logger),
			)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(ro.stdout)
			enc.SetIndent("", "  ")
			if !dossiers {
				return enc.Encode(res)
			}

			// The requests the oracle would receive.
			batches := dossier.Build(res,
				dossier.WithBatchSize(ro.cfg.Dossier.BatchSize),
				dossier.WithPreserveExports(ro.cfg.Dossier.PreserveExports),
				dossier.WithSurroundingCode(ro.cfg.Dossier.IncludeSurroundingCode),
			)
			reqs := make([]*oracle.Request, 0, len(batches))
			for _, b := range batches {
				reqs = append(reqs, oracle.NewRequest(b, ro.cfg.Oracle.MaxCandidates))
			}
			return enc.Encode(reqs)
		},
	}
	cmd.Flags().BoolVar(&dossiers, "dossiers", false, "Print the oracle requests instead of the analysis")
	return cmd
}
