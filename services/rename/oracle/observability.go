// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

const oracleTracerName = "humanify.rename.oracle"

var tracer = otel.Tracer(oracleTracerName)

var (
	// oracleCallDuration measures the duration of single oracle round trips.
	//
	// Labels:
	//   - status: "success" or "error"
	oracleCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "humanify",
			Subsystem: "oracle",
			Name:      "call_duration_seconds",
			Help:      "Duration of naming oracle round trips in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	// oracleCallsTotal counts oracle round trips.
	oracleCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "humanify",
			Subsystem: "oracle",
			Name:      "calls_total",
			Help:      "Total number of naming oracle round trips.",
		},
		[]string{"status"},
	)

	// oracleErrorsTotal counts oracle failures by kind.
	//
	// Labels:
	//   - kind: "unavailable", "rate_limited", "timeout", "malformed", "canceled"
	oracleErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "humanify",
			Subsystem: "oracle",
			Name:      "errors_total",
			Help:      "Total naming oracle errors by kind.",
		},
		[]string{"kind"},
	)

	// oracleRetriesTotal counts retries scheduled after transient failures.
	oracleRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "humanify",
			Subsystem: "oracle",
			Name:      "retries_total",
			Help:      "Total naming oracle retries after transient failures.",
		},
	)

	// oracleCacheLookups counts cache lookups.
	//
	// Labels:
	//   - result: "hit", "miss" or "error"
	oracleCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "humanify",
			Subsystem: "oracle",
			Name:      "cache_lookups_total",
			Help:      "Total naming oracle cache lookups by result.",
		},
		[]string{"result"},
	)
)

func recordOracleCall(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		oracleErrorsTotal.WithLabelValues(string(Classify(err).Kind)).Inc()
	}
	oracleCallDuration.WithLabelValues(status).Observe(duration.Seconds())
	oracleCallsTotal.WithLabelValues(status).Inc()
}
