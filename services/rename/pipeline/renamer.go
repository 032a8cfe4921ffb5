// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs the renaming engine end to end: analysis, dossier
// batching, oracle round trips, solving, rewriting and validation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/laxels/humanify-sub001/services/rename/dossier"
	"github.com/laxels/humanify-sub001/services/rename/oracle"
	"github.com/laxels/humanify-sub001/services/rename/rewrite"
	"github.com/laxels/humanify-sub001/services/rename/scope"
	"github.com/laxels/humanify-sub001/services/rename/solver"
	"github.com/laxels/humanify-sub001/services/rename/validate"
)

// ErrSourceInvalid is wrapped when the unmodified input fails validation,
// so not even the identity rewrite can be returned.
var ErrSourceInvalid = errors.New("pipeline: source fails validation")

// ErrTooLarge is returned for sources above Options.MaxFileSize.
var ErrTooLarge = errors.New("pipeline: source too large")

// Options configures a Renamer.
type Options struct {
	// ScopeOptions are passed to scope.Analyze.
	ScopeOptions []scope.Option

	// DossierOptions are passed to dossier.Build.
	DossierOptions []dossier.Option

	// MaxFileSize rejects larger sources; 0 disables the check.
	// Default: 10 MiB
	MaxFileSize int

	// MaxCandidates requested per dossier. Default: 5
	MaxCandidates int

	// OracleConcurrency bounds concurrent oracle requests per file.
	// Default: 4
	OracleConcurrency int

	// Solver options. Logger is filled from Options.Logger when nil.
	Solver solver.Options

	// LowConfidence is the confidence below which accepted names are
	// reported as low_confidence warnings. Default: 0.5
	LowConfidence float64

	// MaxValidationAttempts is the number of re-solves after a failed
	// validation before falling back to the original text. Default: 2
	MaxValidationAttempts int

	// Workers bounds concurrent files in RenameFiles. Default: 4
	Workers int

	// Logger for progress. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		MaxFileSize:           10 << 20,
		MaxCandidates:         5,
		OracleConcurrency:     4,
		Solver:                solver.DefaultOptions(),
		LowConfidence:         0.5,
		MaxValidationAttempts: 2,
		Workers:               4,
	}
}

// Option is a functional option for NewRenamer.
type Option func(*Options)

// WithScopeOptions sets the analysis options.
func WithScopeOptions(opts ...scope.Option) Option {
	return func(o *Options) { o.ScopeOptions = opts }
}

// WithDossierOptions sets the batching options.
func WithDossierOptions(opts ...dossier.Option) Option {
	return func(o *Options) { o.DossierOptions = opts }
}

// WithMaxFileSize sets the source size limit in bytes.
func WithMaxFileSize(n int) Option {
	return func(o *Options) { o.MaxFileSize = n }
}

// WithMaxCandidates sets the number of candidates requested per dossier.
func WithMaxCandidates(n int) Option {
	return func(o *Options) { o.MaxCandidates = n }
}

// WithOracleConcurrency bounds concurrent oracle requests per file.
func WithOracleConcurrency(n int) Option {
	return func(o *Options) { o.OracleConcurrency = n }
}

// WithSolverOptions sets the solver options.
func WithSolverOptions(s solver.Options) Option {
	return func(o *Options) { o.Solver = s }
}

// WithLowConfidence sets the low_confidence warning threshold.
func WithLowConfidence(c float64) Option {
	return func(o *Options) { o.LowConfidence = c }
}

// WithMaxValidationAttempts sets the re-solve ceiling.
func WithMaxValidationAttempts(n int) Option {
	return func(o *Options) { o.MaxValidationAttempts = n }
}

// WithWorkers bounds concurrent files.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Rename is one binding that received a new name.
type Rename struct {
	Binding    scope.BindingID `json:"binding"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Confidence float64         `json:"confidence"`
}

// Result is the outcome of renaming one source.
type Result struct {
	Name string `json:"name"`
	Text []byte `json:"-"`

	Renames    []Rename          `json:"renames"`
	Fallbacks  []solver.Fallback `json:"fallbacks"`
	Validation *validate.Result  `json:"validation"`

	// Attempts is the number of solve/validate rounds.
	Attempts int `json:"attempts"`

	// Rejected is the last failure when the original text was returned
	// instead of a rewrite.
	Rejected *validate.ValidationFailure `json:"rejected,omitempty"`

	HasDynamicFeatures bool          `json:"hasDynamicFeatures"`
	Batches            int           `json:"batches"`
	Duration           time.Duration `json:"duration"`
}

// Renamer runs the engine.
//
// Thread Safety: Renamer is safe for concurrent use if its Oracle is.
type Renamer struct {
	oracle oracle.Oracle
	opts   Options
	logger *slog.Logger
}

// NewRenamer creates a Renamer. o must not be nil.
func NewRenamer(o oracle.Oracle, opts ...Option) *Renamer {
	if o == nil {
		panic("NewRenamer: oracle must not be nil")
	}
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Solver.Logger == nil {
		options.Solver.Logger = options.Logger
	}
	if options.OracleConcurrency < 1 {
		options.OracleConcurrency = 1
	}
	if options.Workers < 1 {
		options.Workers = 1
	}
	if options.MaxValidationAttempts < 0 {
		options.MaxValidationAttempts = 0
	}
	return &Renamer{oracle: o, opts: options, logger: options.Logger}
}

// RenameSource renames the bindings of one source text.
//
// Description:
//
//	Analyzes src, sends its dossier batches to the oracle (concurrently,
//	bounded by OracleConcurrency), merges the suggestions by scope id and
//	batch index, then solves, rewrites and validates. When validation
//	fails, the implicated names are removed from the implicated bindings'
//	candidates and the solver runs again, up to MaxValidationAttempts
//	times. If every attempt fails, the original text is validated and
//	returned with Rejected set.
//
// Inputs:
//
//	ctx  - Context for cancellation of oracle calls.
//	name - A label for logs and the result, usually the file path.
//	src  - The source text.
//
// Outputs:
//
//	*Result - The rewritten text and report. Text always passed validation.
//	error   - ErrTooLarge, *ast.ParseError for invalid input, *oracle.OracleError when
//	          the oracle fails after retries, ErrSourceInvalid when even the
//	          original text fails validation, or a context error.
func (r *Renamer) RenameSource(ctx context.Context, name string, src []byte) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.RenameSource",
		trace.WithAttributes(attribute.String("name", name), attribute.Int("bytes", len(src))),
	)
	defer span.End()
	start := time.Now()

	if r.opts.MaxFileSize > 0 && len(src) > r.opts.MaxFileSize {
		filesTotal.WithLabelValues("too_large").Inc()
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, name, len(src), r.opts.MaxFileSize)
	}

	res, err := scope.Analyze(ctx, src, r.opts.ScopeOptions...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analyze failed")
		filesTotal.WithLabelValues("parse_error").Inc()
		return nil, fmt.Errorf("pipeline: analyzing %s: %w", name, err)
	}

	batches := dossier.Build(res, r.opts.DossierOptions...)
	r.logger.Debug("analysis complete",
		slog.String("name", name),
		slog.Int("scopes", len(res.Scopes)),
		slog.Int("bindings", len(res.Bindings)),
		slog.Int("batches", len(batches)),
		slog.Bool("dynamic", res.HasDynamicFeatures),
	)

	candidates, err := r.suggest(ctx, batches)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "oracle failed")
		filesTotal.WithLabelValues("oracle_error").Inc()
		return nil, fmt.Errorf("pipeline: naming %s: %w", name, err)
	}

	out, err := r.solve(ctx, name, src, res, candidates)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		filesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	out.Name = name
	out.HasDynamicFeatures = res.HasDynamicFeatures
	out.Batches = len(batches)
	out.Duration = time.Since(start)

	outcome := "renamed"
	if out.Rejected != nil {
		outcome = "identity"
	}
	filesTotal.WithLabelValues(outcome).Inc()
	renamesTotal.Add(float64(len(out.Renames)))
	span.SetAttributes(
		attribute.Int("renames", len(out.Renames)),
		attribute.Int("fallbacks", len(out.Fallbacks)),
		attribute.Int("attempts", out.Attempts),
	)
	r.logger.Info("renamed source",
		slog.String("name", name),
		slog.Int("renames", len(out.Renames)),
		slog.Int("fallbacks", len(out.Fallbacks)),
		slog.Int("attempts", out.Attempts),
		slog.String("outcome", outcome),
		slog.Duration("duration", out.Duration),
	)
	return out, nil
}

// suggest fans the batches out to the oracle and merges the responses by
// scope id, then batch index.
func (r *Renamer) suggest(ctx context.Context, batches []dossier.Batch) (map[scope.BindingID][]solver.Candidate, error) {
	responses := make([]*oracle.Response, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.OracleConcurrency)
	for i := range batches {
		g.Go(func() error {
			req := oracle.NewRequest(batches[i], r.opts.MaxCandidates)
			resp, err := r.oracle.Suggest(gctx, req)
			if err != nil {
				return err
			}
			responses[i] = oracle.Normalize(req, resp)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	order := make([]int, len(batches))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ba, bb := batches[order[a]], batches[order[b]]
		if ba.Scope != bb.Scope {
			return ba.Scope < bb.Scope
		}
		return ba.Index < bb.Index
	})

	merged := make(map[scope.BindingID][]solver.Candidate)
	for _, i := range order {
		for _, s := range responses[i].Suggestions {
			id, ok := dossier.ParseID(s.ID)
			if !ok {
				continue
			}
			for _, c := range s.Candidates {
				merged[id] = append(merged[id], solver.Candidate{Name: c.Name, Confidence: c.Confidence})
			}
		}
	}
	return merged, nil
}

// solve runs solve/rewrite/validate rounds, narrowing candidates after
// each failed validation.
func (r *Renamer) solve(ctx context.Context, name string, src []byte, res *scope.AnalysisResult,
	candidates map[scope.BindingID][]solver.Candidate) (*Result, error) {

	base := validate.BaselineFrom(res)
	var lastFailure *validate.ValidationFailure

	for attempt := 1; attempt <= r.opts.MaxValidationAttempts+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sol := solver.Solve(res, candidates, r.opts.Solver)
		renamed := sol.Renamed(res)
		text, err := rewrite.Apply(src, res, sol.Assignment)
		if err != nil {
			return nil, fmt.Errorf("pipeline: rewriting %s: %w", name, err)
		}

		attemptBase := base
		attemptBase.LowConfidence = sol.LowConfidenceNames(res, r.opts.LowConfidence)
		vr := validate.Validate(ctx, text, attemptBase)
		if vr.Valid {
			return &Result{
				Text:       text,
				Renames:    renames(res, sol, renamed),
				Fallbacks:  sol.Fallbacks,
				Validation: vr,
				Attempts:   attempt,
			}, nil
		}

		vf, _ := validate.AsFailure(vr.Err())
		lastFailure = vf
		validationRetriesTotal.Inc()
		r.logger.Warn("rewrite failed validation",
			slog.String("name", name),
			slog.Int("attempt", attempt),
			slog.String("error", vf.Error()),
		)

		if len(renamed) == 0 || !narrow(res, sol, renamed, candidates, vf) {
			break
		}
	}

	vr := validate.Validate(ctx, src, base)
	if !vr.Valid {
		vf, _ := validate.AsFailure(vr.Err())
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceInvalid, name, vf)
	}
	r.logger.Warn("returning original text", slog.String("name", name))
	return &Result{
		Text:       src,
		Validation: vr,
		Attempts:   r.opts.MaxValidationAttempts + 1,
		Rejected:   lastFailure,
	}, nil
}

// narrow removes each implicated final name from the candidates of the
// bindings that received it. Returns false when the failure names no
// renamed binding, so another round cannot help.
func narrow(res *scope.AnalysisResult, sol *solver.Solution, renamed []scope.BindingID,
	candidates map[scope.BindingID][]solver.Candidate, vf *validate.ValidationFailure) bool {

	implicated := make(map[string]bool)
	for _, n := range vf.Names() {
		implicated[n] = true
	}

	changed := false
	for _, id := range renamed {
		final := sol.Assignment[id]
		// Undefined references name the original identifier that lost its
		// binding, so match on either name.
		if !implicated[final] && !implicated[res.Binding(id).Name] {
			continue
		}
		kept := candidates[id][:0:0]
		for _, c := range candidates[id] {
			if c.Name != final {
				kept = append(kept, c)
			}
		}
		candidates[id] = kept
		changed = true
	}
	return changed
}

func renames(res *scope.AnalysisResult, sol *solver.Solution, ids []scope.BindingID) []Rename {
	out := make([]Rename, 0, len(ids))
	for _, id := range ids {
		out = append(out, Rename{
			Binding:    id,
			From:       res.Binding(id).Name,
			To:         sol.Assignment[id],
			Confidence: sol.Confidence[id],
		})
	}
	return out
}
