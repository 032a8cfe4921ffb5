// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast wraps tree-sitter-javascript for the renaming engine.
//
// It owns parsing, the node-type vocabulary, parse-error reporting, and the
// JavaScript reserved-word table. Everything above this package works with
// byte offsets and the *sitter.Node handles produced here.
package ast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("humanify.rename.ast")

var (
	// ErrFileTooLarge is returned when the input exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("ast: file too large")

	// ErrInvalidContent is returned when the input is not valid UTF-8.
	ErrInvalidContent = errors.New("ast: content is not valid UTF-8")

	// ErrParse is the sentinel wrapped by every *ParseError.
	ErrParse = errors.New("ast: parse error")
)

// Location is a position in source text. Line is 1-based, Column and
// Offset are 0-based byte positions.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

// String renders the location as line:column.
func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// ParseError reports syntactically invalid input.
//
// Description:
//
//	Produced when tree-sitter recovers from an error (ERROR node) or has to
//	synthesize a token (MISSING node). No partial analysis is ever built on
//	top of a tree that produced a ParseError.
type ParseError struct {
	Location Location
	// Near is a short excerpt of the offending source.
	Near    string
	Missing bool
}

func (e *ParseError) Error() string {
	if e.Missing {
		return fmt.Sprintf("ast: parse error at %s: missing token near %q", e.Location, e.Near)
	}
	return fmt.Sprintf("ast: parse error at %s: unexpected input near %q", e.Location, e.Near)
}

// Unwrap lets errors.Is match ErrParse.
func (e *ParseError) Unwrap() error { return ErrParse }

// ParserOptions configures Parser behavior.
type ParserOptions struct {
	// MaxFileSize is the maximum input size in bytes.
	// Default: 10MB
	MaxFileSize int
}

// DefaultParserOptions returns the default options.
func DefaultParserOptions() ParserOptions {
	return ParserOptions{
		MaxFileSize: 10 * 1024 * 1024,
	}
}

// ParserOption is a functional option for configuring Parser.
type ParserOption func(*ParserOptions)

// WithMaxFileSize sets the maximum file size for parsing.
func WithMaxFileSize(size int) ParserOption {
	return func(o *ParserOptions) {
		o.MaxFileSize = size
	}
}

// Parser parses JavaScript source into tree-sitter syntax trees.
//
// Thread Safety:
//
//	Parser is safe for concurrent use. Each Parse call creates its own
//	tree-sitter parser instance.
type Parser struct {
	options ParserOptions
}

// NewParser creates a Parser with the given options.
func NewParser(opts ...ParserOption) *Parser {
	options := DefaultParserOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Parser{options: options}
}

// Tree is a parsed program together with the source it was parsed from.
//
// The tree owns native memory; callers must Close it when done. Node
// handles obtained from Root are invalid after Close.
type Tree struct {
	Content []byte
	tree    *sitter.Tree
}

// Root returns the program node.
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Close releases the native tree.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Parse parses content and rejects any input tree-sitter had to recover from.
//
// Description:
//
//	Validates size and encoding, parses with tree-sitter-javascript and then
//	scans the tree for ERROR or MISSING nodes. The first one found (in
//	source order) is reported as a *ParseError and the tree is released.
//
// Inputs:
//
//	ctx     - Context for cancellation. Checked before and after parsing.
//	content - Raw JavaScript source bytes.
//
// Outputs:
//
//	*Tree - The syntax tree. Never nil on success; caller must Close it.
//	error - ErrFileTooLarge, ErrInvalidContent, *ParseError, or a context error.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *Parser) Parse(ctx context.Context, content []byte) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("javascript parse canceled before start: %w", err)
	}

	if len(content) > p.options.MaxFileSize {
		return nil, ErrFileTooLarge
	}
	if !utf8.Valid(content) {
		return nil, ErrInvalidContent
	}

	ctx, span := tracer.Start(ctx, "ast.Parse")
	defer span.End()

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		tree.Close()
		return nil, fmt.Errorf("javascript parse canceled after tree-sitter: %w", err)
	}

	root := tree.RootNode()
	span.SetAttributes(
		attribute.Int("bytes", len(content)),
		attribute.Bool("has_error", root.HasError()),
	)

	if root.HasError() {
		perr := firstSyntaxError(root, content)
		tree.Close()
		slog.Debug("javascript parse rejected",
			slog.String("location", perr.Location.String()),
			slog.Bool("missing", perr.Missing),
		)
		return nil, perr
	}

	return &Tree{Content: content, tree: tree}, nil
}

// firstSyntaxError finds the first ERROR or MISSING node in source order.
func firstSyntaxError(root *sitter.Node, content []byte) *ParseError {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}

		if node.IsMissing() || node.Type() == NodeError {
			return &ParseError{
				Location: LocationOf(node),
				Near:     excerpt(content, int(node.StartByte()), 40),
				Missing:  node.IsMissing(),
			}
		}
		if !node.HasError() {
			continue
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, node.Child(i))
		}
	}

	// HasError was set but no culprit was found; report the root.
	return &ParseError{Location: LocationOf(root), Near: excerpt(content, 0, 40)}
}

// excerpt returns up to n bytes of content starting at offset, cut on a rune boundary.
func excerpt(content []byte, offset, n int) string {
	if offset >= len(content) {
		return ""
	}
	end := offset + n
	if end > len(content) {
		end = len(content)
	}
	for end > offset && !utf8.Valid(content[offset:end]) {
		end--
	}
	return string(content[offset:end])
}
