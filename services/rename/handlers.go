// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rename

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/laxels/humanify-sub001/services/rename/ast"
	"github.com/laxels/humanify-sub001/services/rename/config"
	"github.com/laxels/humanify-sub001/services/rename/oracle"
	"github.com/laxels/humanify-sub001/services/rename/pipeline"
	"github.com/laxels/humanify-sub001/services/rename/scope"
	"github.com/laxels/humanify-sub001/services/rename/validate"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

var tracer = otel.Tracer("humanify.rename.http")

// Handlers serves the renaming engine over HTTP.
//
// Thread Safety: Handlers is safe for concurrent use.
type Handlers struct {
	renamer *pipeline.Renamer
	cfg     *config.Config
	logger  *slog.Logger
}

// NewHandlers creates Handlers. renamer and cfg must not be nil.
func NewHandlers(renamer *pipeline.Renamer, cfg *config.Config, logger *slog.Logger) *Handlers {
	if renamer == nil || cfg == nil {
		panic("NewHandlers: renamer and cfg must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{renamer: renamer, cfg: cfg, logger: logger}
}

// getOrCreateRequestID returns the caller's request id or a new one, and
// echoes it in the response headers.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(RequestIDHeader, id)
	return id
}

func (h *Handlers) fail(c *gin.Context, status int, code, msg, requestID string) {
	c.JSON(status, ErrorResponse{Error: msg, Code: code, RequestID: requestID})
}

// bind decodes a JSON body within the configured size bound.
func (h *Handlers) bind(c *gin.Context, dst any, requestID string) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(2*h.cfg.Analysis.MaxFileSize))
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large", requestID)
			return false
		}
		h.fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), requestID)
		return false
	}
	return true
}

// HandleAnalyze handles POST /v1/rename/analyze.
//
// Description:
//
//	Builds the scope graph of the source and returns it with every
//	binding, reference and free reference.
//
// Response:
//
//	200 OK: AnalyzeResponse
//	400 Bad Request: Missing source
//	422 Unprocessable Entity: Source does not parse
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleAnalyze"))

	var req SourceRequest
	if !h.bind(c, &req, requestID) {
		return
	}

	ctx, span := tracer.Start(c.Request.Context(), "rename.HandleAnalyze",
		trace.WithAttributes(attribute.Int("bytes", len(req.Source))),
	)
	defer span.End()

	res, err := scope.Analyze(ctx, []byte(req.Source),
		scope.WithSnippetLength(h.cfg.Analysis.SnippetLength),
		scope.WithContextLines(h.cfg.Analysis.ContextLines),
		scope.WithMaxContextBytes(h.cfg.Analysis.MaxContextBytes),
		scope.WithLogger(logger),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analyze failed")
		h.failAnalysis(c, err, requestID)
		return
	}

	dups := res.DuplicateDeclarations()
	if dups == nil {
		dups = []scope.Duplicate{}
	}
	logger.Debug("analyzed",
		slog.Int("scopes", len(res.Scopes)),
		slog.Int("bindings", len(res.Bindings)),
	)
	c.JSON(http.StatusOK, AnalyzeResponse{
		RequestID:  requestID,
		Analysis:   res.ToJSON(),
		Duplicates: dups,
	})
}

// HandleValidate handles POST /v1/rename/validate.
//
// Response:
//
//	200 OK: ValidateResponse, valid or not
//	400 Bad Request: Missing source
//	422 Unprocessable Entity: Original does not parse
func (h *Handlers) HandleValidate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)

	var req ValidateRequest
	if !h.bind(c, &req, requestID) {
		return
	}
	ctx := c.Request.Context()

	if req.Quick {
		c.JSON(http.StatusOK, ValidateResponse{
			RequestID: requestID,
			Result:    validate.QuickValidate(ctx, []byte(req.Source)),
		})
		return
	}

	var base validate.Baseline
	if req.Original != "" {
		res, err := scope.Analyze(ctx, []byte(req.Original))
		if err != nil {
			h.failAnalysis(c, err, requestID)
			return
		}
		base = validate.BaselineFrom(res)
	}

	c.JSON(http.StatusOK, ValidateResponse{
		RequestID: requestID,
		Result:    validate.Validate(ctx, []byte(req.Source), base),
	})
}

// HandleRename handles POST /v1/rename/rename.
//
// Description:
//
//	Runs the full pipeline on one source and returns the rewritten text
//	with its renames, fallbacks and validation report.
//
// Response:
//
//	200 OK: RenameResponse
//	400 Bad Request: Missing source
//	413 Request Entity Too Large: Source above analysis.max_file_size
//	422 Unprocessable Entity: Source does not parse or fails validation
//	502 Bad Gateway: Naming oracle failed
//	504 Gateway Timeout: Request context ended
func (h *Handlers) HandleRename(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleRename"))

	var req SourceRequest
	if !h.bind(c, &req, requestID) {
		return
	}
	name := req.Name
	if name == "" {
		name = requestID
	}

	res, err := h.renamer.RenameSource(c.Request.Context(), name, []byte(req.Source))
	if err != nil {
		logger.Warn("rename failed", slog.String("error", err.Error()))
		h.failRename(c, err, requestID)
		return
	}

	out := RenameResponse{
		RequestID:          requestID,
		Name:               res.Name,
		Source:             string(res.Text),
		Renames:            make([]RenameEntry, 0, len(res.Renames)),
		Fallbacks:          res.Fallbacks,
		Validation:         res.Validation,
		Attempts:           res.Attempts,
		Rejected:           res.Rejected,
		HasDynamicFeatures: res.HasDynamicFeatures,
		DurationMs:         res.Duration.Milliseconds(),
	}
	for _, r := range res.Renames {
		out.Renames = append(out.Renames, RenameEntry{
			Binding:    int(r.Binding),
			From:       r.From,
			To:         r.To,
			Confidence: r.Confidence,
		})
	}
	c.JSON(http.StatusOK, out)
}

// HandleHealth handles GET /v1/rename/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Provider: h.cfg.Oracle.Provider,
		Model:    h.cfg.Oracle.Model,
	})
}

func (h *Handlers) failAnalysis(c *gin.Context, err error, requestID string) {
	var perr *ast.ParseError
	switch {
	case errors.As(err, &perr):
		h.fail(c, http.StatusUnprocessableEntity, "PARSE_ERROR", perr.Error(), requestID)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.fail(c, http.StatusGatewayTimeout, "CANCELED", err.Error(), requestID)
	default:
		h.fail(c, http.StatusInternalServerError, "ANALYSIS_FAILED", err.Error(), requestID)
	}
}

func (h *Handlers) failRename(c *gin.Context, err error, requestID string) {
	var (
		perr *ast.ParseError
		oerr *oracle.OracleError
	)
	switch {
	case errors.Is(err, pipeline.ErrTooLarge):
		h.fail(c, http.StatusRequestEntityTooLarge, "SOURCE_TOO_LARGE", err.Error(), requestID)
	case errors.As(err, &perr):
		h.fail(c, http.StatusUnprocessableEntity, "PARSE_ERROR", perr.Error(), requestID)
	case errors.Is(err, pipeline.ErrSourceInvalid):
		h.fail(c, http.StatusUnprocessableEntity, "SOURCE_INVALID", err.Error(), requestID)
	case errors.As(err, &oerr) && oerr.Kind != oracle.KindCanceled:
		h.fail(c, http.StatusBadGateway, "ORACLE_"+strings.ToUpper(string(oerr.Kind)), err.Error(), requestID)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &oerr):
		h.fail(c, http.StatusGatewayTimeout, "CANCELED", err.Error(), requestID)
	default:
		h.fail(c, http.StatusInternalServerError, "RENAME_FAILED", err.Error(), requestID)
	}
}
