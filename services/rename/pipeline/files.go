// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// File is one named source.
type File struct {
	Name   string
	Source []byte
}

// FileResult pairs a File with its outcome. Exactly one of Result and Err
// is set.
type FileResult struct {
	Name   string
	Result *Result
	Err    error
}

// RenameFiles renames several sources concurrently.
//
// Description:
//
//	Runs RenameSource for each file with at most Options.Workers in flight.
//	A failing file does not stop the others; its error is reported in its
//	FileResult. Results are returned in input order.
//
// Outputs:
//
//	[]FileResult - One entry per file.
//	error        - Only ctx.Err() when ctx ends before all files finish.
func (r *Renamer) RenameFiles(ctx context.Context, files []File) ([]FileResult, error) {
	results := make([]FileResult, len(files))

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i := range files {
		g.Go(func() error {
			f := files[i]
			results[i].Name = f.Name
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			res, err := r.RenameSource(ctx, f.Name, f.Source)
			if err != nil {
				r.logger.Error("rename failed",
					slog.String("name", f.Name),
					slog.String("error", err.Error()),
				)
				results[i].Err = err
				return nil
			}
			results[i].Result = res
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}
