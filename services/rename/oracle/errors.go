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
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/laxels/humanify-sub001/services/llm"
)

// ErrorKind classifies oracle failures.
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable"
	KindRateLimited ErrorKind = "rate_limited"
	KindTimeout     ErrorKind = "timeout"
	KindMalformed   ErrorKind = "malformed"
	KindCanceled    ErrorKind = "canceled"
)

// ErrMalformedResponse is wrapped by errors for replies that do not decode
// into a Response.
var ErrMalformedResponse = errors.New("malformed oracle response")

// OracleError reports a failed oracle round trip.
type OracleError struct {
	Kind ErrorKind
	// Transient is set when a retry may succeed.
	Transient bool
	// Attempts is the number of round trips made, when known.
	Attempts int
	Err      error
}

func (e *OracleError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("oracle: %s after %d attempts: %v", e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("oracle: %s: %v", e.Kind, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// Classify maps any error from an oracle call onto an *OracleError.
//
// Description:
//
//	An existing *OracleError in the chain is returned as a copy. Context
//	cancellation is permanent. Timeouts, connection resets, rate limiting
//	and 5xx replies are transient. Everything else is a permanent
//	unavailable error.
func Classify(err error) *OracleError {
	if err == nil {
		return nil
	}

	var oerr *OracleError
	if errors.As(err, &oerr) {
		cp := *oerr
		return &cp
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &OracleError{Kind: KindCanceled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &OracleError{Kind: KindTimeout, Transient: true, Err: err}
	case errors.Is(err, ErrMalformedResponse):
		return &OracleError{Kind: KindMalformed, Transient: true, Err: err}
	}

	var serr *llm.StatusError
	if errors.As(err, &serr) {
		switch {
		case serr.RateLimited():
			return &OracleError{Kind: KindRateLimited, Transient: true, Err: err}
		case serr.Temporary():
			return &OracleError{Kind: KindUnavailable, Transient: true, Err: err}
		default:
			return &OracleError{Kind: KindUnavailable, Err: err}
		}
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &OracleError{Kind: KindTimeout, Transient: true, Err: err}
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &OracleError{Kind: KindUnavailable, Transient: true, Err: err}
	}

	// Backends wrapped by third-party clients only expose error text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return &OracleError{Kind: KindRateLimited, Transient: true, Err: err}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return &OracleError{Kind: KindTimeout, Transient: true, Err: err}
	case strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") || strings.Contains(msg, "server error"):
		return &OracleError{Kind: KindUnavailable, Transient: true, Err: err}
	}
	return &OracleError{Kind: KindUnavailable, Err: err}
}
