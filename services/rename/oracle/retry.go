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
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// RetryOptions configures RetryingOracle.
type RetryOptions struct {
	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries int

	// InitialInterval is the first backoff delay. Default: 500ms
	InitialInterval time.Duration

	// MaxInterval caps a single backoff delay. Default: 10s
	MaxInterval time.Duration

	// Multiplier grows the delay between attempts. Default: 2
	Multiplier float64

	// RandomizationFactor is the jitter fraction. Default: 0.5
	RandomizationFactor float64

	// RequestsPerSecond limits outgoing round trips; 0 disables the limit.
	RequestsPerSecond float64

	// Burst is the limiter burst size. Default: 1
	Burst int

	// Logger for retry notices. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultRetryOptions returns the default options.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:          3,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.5,
		Burst:               1,
	}
}

// RetryOption is a functional option for NewRetryingOracle.
type RetryOption func(*RetryOptions)

// WithMaxRetries sets the retry ceiling.
func WithMaxRetries(n int) RetryOption {
	return func(o *RetryOptions) { o.MaxRetries = n }
}

// WithBackoff sets the initial and maximum backoff delay.
func WithBackoff(initial, max time.Duration) RetryOption {
	return func(o *RetryOptions) {
		o.InitialInterval = initial
		o.MaxInterval = max
	}
}

// WithRateLimit limits round trips to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) RetryOption {
	return func(o *RetryOptions) {
		o.RequestsPerSecond = rps
		o.Burst = burst
	}
}

// WithRetryLogger sets the logger.
func WithRetryLogger(l *slog.Logger) RetryOption {
	return func(o *RetryOptions) { o.Logger = l }
}

// RetryingOracle retries transient failures of another Oracle.
//
// Description:
//
//	Each attempt waits on an optional token-bucket limiter, then calls the
//	wrapped oracle. Transient *OracleErrors are retried with exponential
//	backoff and jitter up to MaxRetries; permanent errors and context
//	cancellation end the loop at once. The final failure is returned as an
//	*OracleError carrying the attempt count.
//
// Thread Safety: RetryingOracle is safe for concurrent use.
type RetryingOracle struct {
	next    Oracle
	opts    RetryOptions
	limiter *rate.Limiter
}

// NewRetryingOracle wraps next. next must not be nil.
func NewRetryingOracle(next Oracle, opts ...RetryOption) *RetryingOracle {
	if next == nil {
		panic("NewRetryingOracle: next must not be nil")
	}
	options := DefaultRetryOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.MaxRetries < 0 {
		options.MaxRetries = 0
	}

	r := &RetryingOracle{next: next, opts: options}
	if options.RequestsPerSecond > 0 {
		burst := options.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), burst)
	}
	return r
}

// Suggest implements Oracle.
func (r *RetryingOracle) Suggest(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "oracle.RetryingOracle.Suggest",
		trace.WithAttributes(
			attribute.String("request_id", req.RequestID),
			attribute.Int("max_retries", r.opts.MaxRetries),
		),
	)
	defer span.End()

	attempts := 0
	operation := func() (*Response, error) {
		attempts++
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(Classify(err))
			}
		}

		start := time.Now()
		resp, err := r.next.Suggest(ctx, req)
		recordOracleCall(time.Since(start), err)
		if err == nil {
			return resp, nil
		}

		oerr := Classify(err)
		if !oerr.Transient || ctx.Err() != nil {
			return nil, backoff.Permanent(oerr)
		}
		return nil, oerr
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialInterval
	b.MaxInterval = r.opts.MaxInterval
	b.Multiplier = r.opts.Multiplier
	b.RandomizationFactor = r.opts.RandomizationFactor

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.opts.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			oracleRetriesTotal.Inc()
			r.opts.Logger.Warn("oracle call failed, retrying",
				slog.String("request_id", req.RequestID),
				slog.String("error", err.Error()),
				slog.Duration("backoff", next),
			)
		}),
	)
	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		oerr := Classify(err)
		oerr.Attempts = attempts
		span.RecordError(oerr)
		span.SetStatus(codes.Error, string(oerr.Kind))
		return nil, oerr
	}
	return resp, nil
}
