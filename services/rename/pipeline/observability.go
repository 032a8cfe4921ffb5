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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("humanify.rename.pipeline")

var (
	// filesTotal counts processed sources by outcome.
	//
	// Labels:
	//   - outcome: "renamed", "identity", "parse_error", "oracle_error",
	//     "invalid", "too_large"
	filesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "humanify",
			Subsystem: "pipeline",
			Name:      "files_total",
			Help:      "Total sources processed by outcome.",
		},
		[]string{"outcome"},
	)

	renamesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "humanify",
			Subsystem: "pipeline",
			Name:      "renames_total",
			Help:      "Total bindings renamed in validated output.",
		},
	)

	// validationRetriesTotal counts re-solves after a rewrite failed validation.
	validationRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "humanify",
			Subsystem: "pipeline",
			Name:      "validation_retries_total",
			Help:      "Total re-solves after a rewrite failed validation.",
		},
	)
)
