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
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/laxels/humanify-sub001/services/llm"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      ErrorKind
		transient bool
	}{
		{"canceled", context.Canceled, KindCanceled, false},
		{"wrapped canceled", fmt.Errorf("chat: %w", context.Canceled), KindCanceled, false},
		{"deadline", context.DeadlineExceeded, KindTimeout, true},
		{"malformed", fmt.Errorf("%w: bad", ErrMalformedResponse), KindMalformed, true},
		{"429", &llm.StatusError{Provider: "openai", StatusCode: http.StatusTooManyRequests}, KindRateLimited, true},
		{"503", &llm.StatusError{Provider: "openai", StatusCode: http.StatusServiceUnavailable}, KindUnavailable, true},
		{"500", &llm.StatusError{Provider: "openai", StatusCode: http.StatusInternalServerError}, KindUnavailable, true},
		{"401", &llm.StatusError{Provider: "openai", StatusCode: http.StatusUnauthorized}, KindUnavailable, false},
		{"net timeout", timeoutErr{}, KindTimeout, true},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), KindUnavailable, true},
		{"conn refused", syscall.ECONNREFUSED, KindUnavailable, true},
		{"eof", io.ErrUnexpectedEOF, KindUnavailable, true},
		{"text rate limit", errors.New("ollama: Rate limit exceeded"), KindRateLimited, true},
		{"text refused", errors.New("dial tcp: connection refused"), KindUnavailable, true},
		{"other", errors.New("model not found"), KindUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.transient, got.Transient)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClassify_ExistingErrorIsCopied(t *testing.T) {
	orig := &OracleError{Kind: KindMalformed, Transient: true, Err: ErrMalformedResponse}
	got := Classify(fmt.Errorf("wrap: %w", orig))
	got.Attempts = 4

	assert.Equal(t, KindMalformed, got.Kind)
	assert.Equal(t, 0, orig.Attempts)
}

func TestOracleError_Message(t *testing.T) {
	e := &OracleError{Kind: KindTimeout, Err: context.DeadlineExceeded}
	assert.Equal(t, "oracle: timeout: context deadline exceeded", e.Error())

	e.Attempts = 3
	assert.Equal(t, "oracle: timeout after 3 attempts: context deadline exceeded", e.Error())
}
