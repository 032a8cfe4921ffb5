// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scope builds the scope graph and binding index of a JavaScript
// program.
//
// Analyze performs a single top-down traversal of the tree-sitter syntax
// tree. Scopes are pushed on entry to programs, functions, blocks, catch
// clauses and class bodies. A named function expression gets an extra
// scope holding only its name, between the enclosing scope and the
// function scope. Declarations attach to the scope dictated by
// their kind; identifier uses are classified and queued. Once the traversal
// is complete every queued use is resolved by walking the parent chain, so
// uses that precede their (hoisted) declaration resolve correctly.
//
// Thread Safety:
//
//	Analyze is safe for concurrent use. The returned AnalysisResult is
//	immutable and may be shared.
package scope

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/laxels/humanify-sub001/services/rename/ast"
)

var tracer = otel.Tracer("humanify.rename.scope")

// ctxCheckInterval is how many nodes are visited between context checks.
const ctxCheckInterval = 1000

// Options configures Analyze.
type Options struct {
	// SnippetLength bounds Binding.DeclarationSnippet in bytes.
	// Default: 160
	SnippetLength int

	// ContextLines is the number of lines captured on each side of a
	// declaration for Binding.SurroundingCode.
	// Default: 2
	ContextLines int

	// MaxContextBytes bounds Binding.SurroundingCode in bytes.
	// Default: 600
	MaxContextBytes int

	// Parser overrides the default parser.
	Parser *ast.Parser

	// Logger receives debug output. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		SnippetLength:   160,
		ContextLines:    2,
		MaxContextBytes: 600,
	}
}

// Option is a functional option for Analyze.
type Option func(*Options)

// WithSnippetLength sets the declaration snippet bound.
func WithSnippetLength(n int) Option {
	return func(o *Options) { o.SnippetLength = n }
}

// WithContextLines sets the number of surrounding lines captured per side.
func WithContextLines(n int) Option {
	return func(o *Options) { o.ContextLines = n }
}

// WithMaxContextBytes sets the surrounding-code bound.
func WithMaxContextBytes(n int) Option {
	return func(o *Options) { o.MaxContextBytes = n }
}

// WithParser sets the parser used by Analyze.
func WithParser(p *ast.Parser) Option {
	return func(o *Options) { o.Parser = p }
}

// WithLogger sets the logger used by Analyze.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Analyze parses src and builds its scope graph and binding index.
//
// Description:
//
//	Parses with tree-sitter-javascript, rejecting any input that required
//	error recovery, and then traverses the tree once. See the package
//	documentation for the scoping rules.
//
// Inputs:
//
//	ctx  - Context for cancellation. Checked periodically during traversal.
//	src  - JavaScript source bytes.
//	opts - Functional options.
//
// Outputs:
//
//	*AnalysisResult - The scope graph. Never nil on success.
//	error           - *ast.ParseError for invalid syntax, or a context error.
//
// Thread Safety:
//
//	Safe for concurrent use.
func Analyze(ctx context.Context, src []byte, opts ...Option) (*AnalysisResult, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	parser := options.Parser
	if parser == nil {
		parser = ast.NewParser()
	}

	ctx, span := tracer.Start(ctx, "scope.Analyze")
	defer span.End()
	start := time.Now()

	tree, err := parser.Parse(ctx, src)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}
	defer tree.Close()

	b := newBuilder(ctx, tree.Content, options)
	root := tree.Root()
	b.pushScope(ScopeProgram, root, "")
	b.walkChildren(root)
	b.popScope()
	if b.err != nil {
		span.RecordError(b.err)
		span.SetStatus(codes.Error, "analysis canceled")
		return nil, fmt.Errorf("scope analysis canceled: %w", b.err)
	}

	res := b.finish()

	span.SetAttributes(
		attribute.Int("scopes", len(res.Scopes)),
		attribute.Int("bindings", len(res.Bindings)),
		attribute.Int("free_references", len(res.FreeReferences)),
		attribute.Bool("dynamic", res.HasDynamicFeatures),
	)
	options.Logger.Debug("scope analysis complete",
		slog.Int("scopes", len(res.Scopes)),
		slog.Int("bindings", len(res.Bindings)),
		slog.Int("free_references", len(res.FreeReferences)),
		slog.Bool("dynamic", res.HasDynamicFeatures),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// pendingRef is a use waiting for resolution.
type pendingRef struct {
	name    string
	ref     Reference
	exports bool
}

// builder carries traversal state for one Analyze call.
type builder struct {
	ctx     context.Context
	content []byte
	opts    Options
	res     *AnalysisResult

	cur     ScopeID
	pending []pendingRef
	dynamic []ScopeID
	visited int
	err     error
}

func newBuilder(ctx context.Context, content []byte, opts Options) *builder {
	return &builder{
		ctx:     ctx,
		content: content,
		opts:    opts,
		res:     &AnalysisResult{},
		cur:     NoScope,
	}
}

// =============================================================================
// Scope stack
// =============================================================================

func (b *builder) pushScope(kind ScopeKind, n *sitter.Node, label string) ScopeID {
	id := ScopeID(len(b.res.Scopes))
	depth := 0
	if b.cur != NoScope {
		depth = b.res.Scopes[b.cur].Depth + 1
		b.res.Scopes[b.cur].Children = append(b.res.Scopes[b.cur].Children, id)
	}
	b.res.Scopes = append(b.res.Scopes, Scope{
		ID:     id,
		Kind:   kind,
		Parent: b.cur,
		Depth:  depth,
		Label:  label,
		Span:   Span{Start: int(n.StartByte()), End: int(n.EndByte())},
		Start:  ast.LocationOf(n),
		names:  make(map[string]BindingID),
	})
	b.cur = id
	return id
}

func (b *builder) popScope() {
	b.cur = b.res.Scopes[b.cur].Parent
}

// hoistTarget returns the nearest function or program scope.
func (b *builder) hoistTarget() ScopeID {
	for id := b.cur; id != NoScope; id = b.res.Scopes[id].Parent {
		switch b.res.Scopes[id].Kind {
		case ScopeFunction, ScopeProgram:
			return id
		case ScopeBlock, ScopeCatch, ScopeClass, ScopeFunctionName:
		}
	}
	return RootScope
}

// =============================================================================
// Traversal
// =============================================================================

// tick counts a visited node and checks the context periodically.
func (b *builder) tick() bool {
	if b.err != nil {
		return false
	}
	b.visited++
	if b.visited%ctxCheckInterval == 0 {
		if err := b.ctx.Err(); err != nil {
			b.err = err
			return false
		}
	}
	return true
}

func (b *builder) walkChildren(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		b.walk(n.NamedChild(i))
	}
}

func (b *builder) walk(n *sitter.Node) {
	if n == nil || !n.IsNamed() || !b.tick() {
		return
	}

	switch n.Type() {
	case ast.NodeIdentifier:
		b.use(n, ast.Text(n, b.content))

	case ast.NodeShorthandProperty:
		b.use(n, ast.Text(n, b.content))

	case ast.NodeLexicalDeclaration, ast.NodeVariableDeclaration:
		b.declaration(n, false)

	case ast.NodeFunctionDeclaration, ast.NodeGeneratorFuncDecl:
		b.functionDeclaration(n, false)

	case ast.NodeFunctionExpression, ast.NodeFunctionLegacy, ast.NodeGeneratorFunction, ast.NodeArrowFunction:
		b.function(n, n.ChildByFieldName("name"))

	case ast.NodeMethodDefinition:
		if name := n.ChildByFieldName("name"); name != nil && name.Type() != ast.NodePropertyIdentifier {
			b.walk(name)
		}
		b.function(n, nil)

	case ast.NodeClassDeclaration:
		b.classDeclaration(n, false)

	case ast.NodeClass:
		b.class(n, n.ChildByFieldName("name"))

	case ast.NodeStatementBlock, ast.NodeSwitchBody, ast.NodeClassStaticBlock:
		b.pushScope(ScopeBlock, n, "")
		b.walkChildren(n)
		b.popScope()

	case ast.NodeForStatement:
		b.pushScope(ScopeBlock, n, "for")
		b.walkChildren(n)
		b.popScope()

	case ast.NodeForInStatement:
		b.forIn(n)

	case ast.NodeCatchClause:
		b.catchClause(n)

	case ast.NodeWithStatement:
		b.markDynamic(n)
		b.walkChildren(n)

	case ast.NodeAssignmentExpression, ast.NodeAugmentedAssignment:
		b.assignTarget(n.ChildByFieldName("left"))
		b.walk(n.ChildByFieldName("right"))

	case ast.NodeExportStatement:
		b.exportStatement(n)

	case ast.NodeImportStatement:
		b.importStatement(n)

	default:
		b.walkChildren(n)
	}
}

// use queues an identifier use for resolution.
func (b *builder) use(n *sitter.Node, name string) {
	role, member, arity := Classify(n, b.content)
	form := FormPlain
	if n.Type() == ast.NodeShorthandProperty {
		form = FormShorthandProperty
	}
	b.pending = append(b.pending, pendingRef{
		name: name,
		ref:  b.reference(n, role, member, arity, form),
	})
}

func (b *builder) reference(n *sitter.Node, role Role, member string, arity int, form Form) Reference {
	return Reference{
		Role:     role,
		Member:   member,
		Arity:    arity,
		Form:     form,
		Span:     Span{Start: int(n.StartByte()), End: int(n.EndByte())},
		Location: ast.LocationOf(n),
		Scope:    b.cur,
	}
}

// assignTarget walks the target of an assignment; bare identifiers and
// pattern leaves are writes.
func (b *builder) assignTarget(n *sitter.Node) {
	if n == nil || !n.IsNamed() || !b.tick() {
		return
	}
	switch n.Type() {
	case ast.NodeIdentifier:
		b.pending = append(b.pending, pendingRef{
			name: ast.Text(n, b.content),
			ref:  b.reference(n, RoleWrite, "", 0, FormPlain),
		})
	case ast.NodeShorthandPattern:
		b.pending = append(b.pending, pendingRef{
			name: ast.Text(n, b.content),
			ref:  b.reference(n, RoleWrite, "", 0, FormShorthandPattern),
		})
	case ast.NodeObjectPattern, ast.NodeArrayPattern, ast.NodeRestPattern:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			b.assignTarget(n.NamedChild(i))
		}
	case ast.NodePairPattern:
		if key := n.ChildByFieldName("key"); key != nil && key.Type() != ast.NodePropertyIdentifier {
			b.walk(key)
		}
		b.assignTarget(n.ChildByFieldName("value"))
	case ast.NodeAssignmentPattern, ast.NodeObjectAssignmentPattern:
		b.assignTarget(n.ChildByFieldName("left"))
		b.walk(n.ChildByFieldName("right"))
	case ast.NodeParenthesized:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			b.assignTarget(n.NamedChild(i))
		}
	default:
		b.walk(n)
	}
}

// =============================================================================
// Declarations
// =============================================================================

// declaration handles let/const/var statements.
func (b *builder) declaration(n *sitter.Node, exported bool) {
	kind := KindVar
	if n.Type() == ast.NodeLexicalDeclaration {
		kind = KindLet
		if first := n.Child(0); first != nil && first.Type() == "const" {
			kind = KindConst
		}
	}
	target := b.cur
	if kind.Hoisted() {
		target = b.hoistTarget()
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		decl := n.NamedChild(i)
		if decl.Type() != ast.NodeVariableDeclarator {
			b.walk(decl)
			continue
		}
		name := decl.ChildByFieldName("name")
		value := decl.ChildByFieldName("value")
		ids := b.declarePattern(name, kind, target, exported, n)
		if value != nil {
			if len(ids) == 1 && name.Type() == ast.NodeIdentifier {
				b.setInitShape(ids[0], value)
			}
			b.walk(value)
		}
	}
}

// declarePattern declares every identifier bound by pattern p.
func (b *builder) declarePattern(p *sitter.Node, kind BindingKind, target ScopeID, exported bool, site *sitter.Node) []BindingID {
	if p == nil || !p.IsNamed() || !b.tick() {
		return nil
	}
	role := RoleDeclaration
	if kind == KindCatchParam {
		role = RoleCatch
	}

	switch p.Type() {
	case ast.NodeIdentifier:
		return []BindingID{b.declare(p, kind, target, exported, site, role, FormPlain)}

	case ast.NodeShorthandPattern:
		return []BindingID{b.declare(p, kind, target, exported, site, role, FormShorthandPattern)}

	case ast.NodeObjectPattern, ast.NodeArrayPattern, ast.NodeRestPattern:
		var ids []BindingID
		for i := 0; i < int(p.NamedChildCount()); i++ {
			ids = append(ids, b.declarePattern(p.NamedChild(i), kind, target, exported, site)...)
		}
		return ids

	case ast.NodePairPattern:
		if key := p.ChildByFieldName("key"); key != nil && key.Type() != ast.NodePropertyIdentifier {
			b.walk(key)
		}
		return b.declarePattern(p.ChildByFieldName("value"), kind, target, exported, site)

	case ast.NodeAssignmentPattern, ast.NodeObjectAssignmentPattern:
		left := p.ChildByFieldName("left")
		right := p.ChildByFieldName("right")
		ids := b.declarePattern(left, kind, target, exported, site)
		if right != nil {
			if len(ids) == 1 {
				b.setInitShape(ids[0], right)
			}
			b.walk(right)
		}
		return ids

	default:
		// Member expressions in for-in heads and similar non-binding targets.
		b.assignTarget(p)
		return nil
	}
}

// declare records one declaration site, merging var-like redeclarations.
func (b *builder) declare(n *sitter.Node, kind BindingKind, target ScopeID, exported bool, site *sitter.Node, role Role, form Form) BindingID {
	name := ast.Text(n, b.content)
	decl := Declaration{
		Role:     role,
		Form:     form,
		Span:     Span{Start: int(n.StartByte()), End: int(n.EndByte())},
		Location: ast.LocationOf(n),
	}

	sc := &b.res.Scopes[target]
	if prev, ok := sc.names[name]; ok && kind.mergesWith(b.res.Bindings[prev].Kind) {
		existing := &b.res.Bindings[prev]
		existing.Declarations = append(existing.Declarations, decl)
		existing.Exported = existing.Exported || exported
		return prev
	}

	id := BindingID(len(b.res.Bindings))
	b.res.Bindings = append(b.res.Bindings, Binding{
		ID:                 id,
		Name:               name,
		Kind:               kind,
		Scope:              target,
		Exported:           exported,
		Declarations:       []Declaration{decl},
		DeclarationSnippet: b.snippet(site),
		SurroundingCode:    b.surrounding(int(n.StartByte())),
	})
	sc.Bindings = append(sc.Bindings, id)
	if _, ok := sc.names[name]; !ok {
		sc.names[name] = id
	}
	return id
}

func (b *builder) setInitShape(id BindingID, value *sitter.Node) {
	if shape := shapeOf(value, b.content); shape != "" {
		b.res.Bindings[id].InitShape = shape
	}
}

// =============================================================================
// Functions and classes
// =============================================================================

func (b *builder) functionDeclaration(n *sitter.Node, exported bool) {
	name := n.ChildByFieldName("name")
	if name != nil {
		id := b.declare(name, KindFunction, b.cur, exported, n, RoleDeclaration, FormPlain)
		if b.res.Bindings[id].InitShape == "" {
			b.res.Bindings[id].InitShape = "function"
		}
	}
	b.function(n, nil)
}

// function opens a function scope. selfName is the name of a named function
// expression; it binds in a ScopeFunctionName scope wrapping the function
// scope.
func (b *builder) function(n *sitter.Node, selfName *sitter.Node) {
	label := ""
	if name := n.ChildByFieldName("name"); name != nil {
		label = ast.Text(name, b.content)
	}

	if selfName != nil && selfName.Type() == ast.NodeIdentifier {
		own := b.pushScope(ScopeFunctionName, n, label)
		defer b.popScope()
		b.declare(selfName, KindFunction, own, false, n, RoleDeclaration, FormPlain)
	}

	fn := b.pushScope(ScopeFunction, n, label)
	defer b.popScope()

	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			b.declarePattern(params.NamedChild(i), KindParam, fn, false, n)
		}
	}
	if param := n.ChildByFieldName("parameter"); param != nil {
		b.declarePattern(param, KindParam, fn, false, n)
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	if body.Type() == ast.NodeStatementBlock {
		b.walkChildren(body)
		return
	}
	b.walk(body)
}

func (b *builder) classDeclaration(n *sitter.Node, exported bool) {
	if name := n.ChildByFieldName("name"); name != nil {
		id := b.declare(name, KindClass, b.cur, exported, n, RoleDeclaration, FormPlain)
		b.res.Bindings[id].InitShape = "class"
	}
	b.class(n, nil)
}

// class walks the heritage clause in the enclosing scope and the body in a
// class scope. selfName is a class expression's own name.
func (b *builder) class(n *sitter.Node, selfName *sitter.Node) {
	var body *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case ast.NodeClassBody:
			body = child
		case "class_heritage":
			b.walkChildren(child)
		}
	}

	label := ""
	if name := n.ChildByFieldName("name"); name != nil {
		label = ast.Text(name, b.content)
	}
	cls := b.pushScope(ScopeClass, n, label)
	defer b.popScope()

	if selfName != nil && selfName.Type() == ast.NodeIdentifier {
		id := b.declare(selfName, KindClass, cls, false, n, RoleDeclaration, FormPlain)
		b.res.Bindings[id].InitShape = "class"
	}
	if body != nil {
		b.walkChildren(body)
	}
}

// =============================================================================
// Statements with their own scoping rules
// =============================================================================

func (b *builder) forIn(n *sitter.Node) {
	b.pushScope(ScopeBlock, n, "for")
	defer b.popScope()

	kind, declared := BindingKind(0), false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.IsNamed() {
			continue
		}
		switch child.Type() {
		case "var":
			kind, declared = KindVar, true
		case "let":
			kind, declared = KindLet, true
		case "const":
			kind, declared = KindConst, true
		}
		if declared {
			break
		}
	}

	left := n.ChildByFieldName("left")
	if declared {
		target := b.cur
		if kind.Hoisted() {
			target = b.hoistTarget()
		}
		b.declarePattern(left, kind, target, false, n)
	} else {
		b.assignTarget(left)
	}
	b.walk(n.ChildByFieldName("right"))
	b.walk(n.ChildByFieldName("body"))
}

func (b *builder) catchClause(n *sitter.Node) {
	b.pushScope(ScopeCatch, n, "catch")
	defer b.popScope()

	if param := n.ChildByFieldName("parameter"); param != nil {
		b.declarePattern(param, KindCatchParam, b.cur, false, n)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		b.walkChildren(body)
	}
}

func (b *builder) exportStatement(n *sitter.Node) {
	if n.ChildByFieldName("source") != nil {
		// Re-exports name bindings of another module.
		return
	}
	if decl := n.ChildByFieldName("declaration"); decl != nil {
		switch decl.Type() {
		case ast.NodeLexicalDeclaration, ast.NodeVariableDeclaration:
			b.declaration(decl, true)
		case ast.NodeFunctionDeclaration, ast.NodeGeneratorFuncDecl:
			b.functionDeclaration(decl, true)
		case ast.NodeClassDeclaration:
			b.classDeclaration(decl, true)
		default:
			b.walk(decl)
		}
	}
	if value := n.ChildByFieldName("value"); value != nil {
		b.walk(value)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != ast.NodeExportClause {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			spec := clause.NamedChild(j)
			if spec.Type() != ast.NodeExportSpecifier {
				continue
			}
			name := spec.ChildByFieldName("name")
			if name == nil || name.Type() != ast.NodeIdentifier {
				continue
			}
			form := FormExportSpecifier
			if spec.ChildByFieldName("alias") != nil {
				form = FormPlain
			}
			b.pending = append(b.pending, pendingRef{
				name:    ast.Text(name, b.content),
				ref:     b.reference(name, RoleRead, "", 0, form),
				exports: true,
			})
		}
	}
}

func (b *builder) importStatement(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != ast.NodeImportClause {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			part := clause.NamedChild(j)
			switch part.Type() {
			case ast.NodeIdentifier:
				b.declareImport(part, n, FormPlain)
			case ast.NodeNamespaceImport:
				for k := 0; k < int(part.NamedChildCount()); k++ {
					if id := part.NamedChild(k); id.Type() == ast.NodeIdentifier {
						b.declareImport(id, n, FormPlain)
					}
				}
			case ast.NodeNamedImports:
				for k := 0; k < int(part.NamedChildCount()); k++ {
					spec := part.NamedChild(k)
					if spec.Type() != ast.NodeImportSpecifier {
						continue
					}
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						b.declareImport(alias, n, FormPlain)
					} else if name := spec.ChildByFieldName("name"); name != nil && name.Type() == ast.NodeIdentifier {
						b.declareImport(name, n, FormImportSpecifier)
					}
				}
			}
		}
	}
}

func (b *builder) declareImport(id, site *sitter.Node, form Form) {
	bid := b.declare(id, KindImport, RootScope, false, site, RoleDeclaration, form)
	b.res.Bindings[bid].InitShape = "module import"
}

// markDynamic records a construct that can introduce bindings at runtime.
func (b *builder) markDynamic(n *sitter.Node) {
	b.dynamic = append(b.dynamic, b.cur)
	b.res.DynamicSites = append(b.res.DynamicSites, ast.LocationOf(n))
}

// =============================================================================
// Finalization
// =============================================================================

// finish resolves queued uses and computes derived scope data.
func (b *builder) finish() *AnalysisResult {
	res := b.res

	for _, p := range b.pending {
		if id, ok := b.resolve(p.name, p.ref.Scope); ok {
			bnd := &res.Bindings[id]
			bnd.References = append(bnd.References, p.ref)
			if p.exports {
				bnd.Exported = true
			}
			continue
		}
		res.FreeReferences = append(res.FreeReferences, FreeReference{Name: p.name, Reference: p.ref})
		if p.name == "eval" && p.ref.Role == RoleCall {
			b.dynamic = append(b.dynamic, p.ref.Scope)
			res.DynamicSites = append(res.DynamicSites, p.ref.Location)
		}
	}
	b.pending = nil

	// Children always have larger ids than their parents.
	for i := len(res.Scopes) - 1; i >= 0; i-- {
		sc := &res.Scopes[i]
		sc.subtreeBindings += len(sc.Bindings)
		if sc.Parent != NoScope {
			res.Scopes[sc.Parent].subtreeBindings += sc.subtreeBindings
		}
	}

	res.freeInSubtree = make([]map[string]struct{}, len(res.Scopes))
	for _, fr := range res.FreeReferences {
		for id := fr.Scope; id != NoScope; id = res.Scopes[id].Parent {
			set := res.freeInSubtree[id]
			if set == nil {
				set = make(map[string]struct{})
				res.freeInSubtree[id] = set
			}
			set[fr.Name] = struct{}{}
		}
	}

	b.markEscapingBlockFunctions()

	res.HasDynamicFeatures = len(b.dynamic) > 0
	for _, id := range b.dynamic {
		res.taint(id)
	}
	return res
}

// markEscapingBlockFunctions sets EscapesBlock on block-level function
// declarations that a sloppy-mode script would also expose in the nearest
// function or program scope: the name is free somewhere under that scope,
// or that scope declares it as a var or function. Strict code gets the same
// treatment since the analysis does not track strictness.
func (b *builder) markEscapingBlockFunctions() {
	res := b.res
	for i := range res.Bindings {
		bnd := &res.Bindings[i]
		if bnd.Kind != KindFunction {
			continue
		}
		switch res.Scopes[bnd.Scope].Kind {
		case ScopeBlock, ScopeCatch:
		case ScopeProgram, ScopeFunction, ScopeClass, ScopeFunctionName:
			continue
		}

		outer := bnd.Scope
		for outer != NoScope {
			k := res.Scopes[outer].Kind
			if k == ScopeFunction || k == ScopeProgram {
				break
			}
			outer = res.Scopes[outer].Parent
		}
		if outer == NoScope {
			continue
		}

		if _, ok := res.freeInSubtree[outer][bnd.Name]; ok {
			bnd.EscapesBlock = true
			continue
		}
		if other, ok := res.Scopes[outer].names[bnd.Name]; ok {
			switch res.Bindings[other].Kind {
			case KindVar, KindFunction:
				bnd.EscapesBlock = true
			case KindLet, KindConst, KindClass, KindParam, KindCatchParam, KindImport:
			}
		}
	}
}

// resolve walks the parent chain from s; the first scope declaring name wins.
func (b *builder) resolve(name string, s ScopeID) (BindingID, bool) {
	for id := s; id != NoScope; id = b.res.Scopes[id].Parent {
		if bid, ok := b.res.Scopes[id].names[name]; ok {
			return bid, true
		}
	}
	return 0, false
}

// taint marks s, its ancestors, and its whole subtree.
func (r *AnalysisResult) taint(s ScopeID) {
	for id := s; id != NoScope; id = r.Scopes[id].Parent {
		r.Scopes[id].Tainted = true
	}
	stack := []ScopeID{s}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		r.Scopes[id].Tainted = true
		stack = append(stack, r.Scopes[id].Children...)
	}
}
