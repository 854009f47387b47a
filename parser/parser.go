// Package parser turns Tide source text into a parsed representation:
// a function literal AST plus a scope tree with resolved variables.
//
// The parser touches only its inputs — the source text and an immutable
// snapshot of the enclosing scope chain — so it is safe to invoke from a
// background thread when the source resource permits it. It never raises
// into the runtime; syntax errors are returned as values and surfaced by
// the caller on the main thread.
//
// Left-associative operator chains are parsed iteratively, so recursion
// depth tracks expression nesting, not expression length.
package parser

import (
	"fmt"

	"github.com/tidelang/tide/ast"
)

// parseFramesPerSlot scales the job's stack budget (in slots) into a parser
// recursion bound. Parser frames are shallow compared to the analysis and
// codegen walkers, so the parser gets the most headroom.
const parseFramesPerSlot = 64

// Result is the parsed representation of one compilation unit.
type Result struct {
	// Fn is the unit's root function literal.
	Fn *ast.Func

	// Functions is the unit's function table, root first, nested arrow
	// functions in creation order. Function table indices in the AST
	// refer into this slice.
	Functions []*ast.Func

	// Chain is the outer scope chain snapshot the unit was resolved
	// against.
	Chain *ast.ScopeChain
}

// Parse parses src as a single Tide function literal, resolving free
// variables against chain. stackLimit is the job's stack budget in slots.
//
// Errors are *SyntaxError for malformed source and *DepthError when the
// recursion budget is exceeded.
func Parse(src string, chain *ast.ScopeChain, stackLimit int) (*Result, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{
		toks:      toks,
		chain:     chain,
		maxDepth:  stackLimit * parseFramesPerSlot,
		chainVars: make(map[string]*ast.Variable),
		globals:   make(map[string]*ast.Variable),
	}

	p.skipSeparators()
	fn, err := p.funcLit()
	if err != nil {
		return nil, err
	}
	p.skipSeparators()
	if p.peek().typ != tokEOF {
		return nil, p.errAt(p.peek(), fmt.Sprintf("unexpected %s after function body", p.peek()))
	}

	return &Result{Fn: fn, Functions: p.funcs, Chain: chain}, nil
}

type parser struct {
	toks []token
	i    int

	chain     *ast.ScopeChain
	scope     *ast.Scope
	fnLevel   int
	funcs     []*ast.Func
	chainVars map[string]*ast.Variable
	globals   map[string]*ast.Variable

	depth    int
	maxDepth int
}

// ──────────────────────────────────────────────────
// Token plumbing
// ──────────────────────────────────────────────────

func (p *parser) peek() token { return p.toks[p.i] }
func (p *parser) peekAt(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.typ != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) match(tt tokenType) bool {
	if p.peek().typ == tt {
		p.i++
		return true
	}
	return false
}

func (p *parser) need(tt tokenType, what string) (token, error) {
	t := p.peek()
	if t.typ != tt {
		return token{}, p.errAt(t, fmt.Sprintf("expected %s, found %s", what, t))
	}
	return p.next(), nil
}

// skipNewlines consumes newline tokens where line breaks are insignificant
// (after operators, inside parentheses).
func (p *parser) skipNewlines() {
	for p.peek().typ == tokNewline {
		p.i++
	}
}

// skipSeparators consumes newline and semicolon tokens between statements.
func (p *parser) skipSeparators() {
	for p.peek().typ == tokNewline || p.peek().typ == tokSemi {
		p.i++
	}
}

func (p *parser) errAt(t token, msg string) error {
	return &SyntaxError{Msg: msg, Pos: t.pos}
}

// enter charges one recursion frame against the stack budget.
func (p *parser) enter(t token) error {
	p.depth++
	if p.depth > p.maxDepth {
		return &DepthError{Pos: t.pos}
	}
	return nil
}

func (p *parser) exit() { p.depth-- }

// ──────────────────────────────────────────────────
// Functions
// ──────────────────────────────────────────────────

// funcLit parses `params => body` where params is a bare identifier or a
// parenthesised list, and body is a block or a single expression.
func (p *parser) funcLit() (*ast.Func, error) {
	start := p.peek()
	if err := p.enter(start); err != nil {
		return nil, err
	}
	defer p.exit()

	fn := &ast.Func{Level: p.fnLevel, Index: len(p.funcs), Position: start.pos}
	p.funcs = append(p.funcs, fn)

	fnScope := ast.NewScope(p.scope)
	fnScope.Fn = fn
	fn.Scope = fnScope

	// Parameter list.
	var paramNames []token
	if p.peek().typ == tokIdent {
		paramNames = append(paramNames, p.next())
	} else {
		if _, err := p.need(tokLParen, "'(' or parameter name"); err != nil {
			return nil, err
		}
		p.skipNewlines()
		for p.peek().typ != tokRParen {
			t, err := p.need(tokIdent, "parameter name")
			if err != nil {
				return nil, err
			}
			paramNames = append(paramNames, t)
			p.skipNewlines()
			if !p.match(tokComma) {
				break
			}
			p.skipNewlines()
		}
		if _, err := p.need(tokRParen, "')'"); err != nil {
			return nil, err
		}
	}
	for _, t := range paramNames {
		v := fnScope.Declare(t.text, true)
		fn.Params = append(fn.Params, v)
	}

	if _, err := p.need(tokArrow, "'=>'"); err != nil {
		return nil, err
	}
	p.skipNewlines()

	// Body: a block, or a single expression treated as `return expr`.
	prevScope, prevLevel := p.scope, p.fnLevel
	p.scope, p.fnLevel = fnScope, fn.Level
	defer func() { p.scope, p.fnLevel = prevScope, prevLevel }()

	if p.peek().typ == tokLBrace {
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		fn.Body = body
		return fn, nil
	}

	exprTok := p.peek()
	x, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	fn.Body = &ast.Block{
		Stmts:    []ast.Stmt{&ast.Return{Value: x, Position: exprTok.pos}},
		Scope:    fnScope,
		Position: exprTok.pos,
	}
	return fn, nil
}

// ──────────────────────────────────────────────────
// Statements
// ──────────────────────────────────────────────────

func (p *parser) block() (*ast.Block, error) {
	open, err := p.need(tokLBrace, "'{'")
	if err != nil {
		return nil, err
	}
	if err := p.enter(open); err != nil {
		return nil, err
	}
	defer p.exit()

	scope := ast.NewScope(p.scope)
	prev := p.scope
	p.scope = scope
	defer func() { p.scope = prev }()

	b := &ast.Block{Scope: scope, Position: open.pos}
	for {
		p.skipSeparators()
		if p.peek().typ == tokRBrace {
			p.next()
			return b, nil
		}
		if p.peek().typ == tokEOF {
			return nil, p.errAt(p.peek(), "unterminated block, expected '}'")
		}
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, st)
		switch p.peek().typ {
		case tokNewline, tokSemi, tokRBrace, tokEOF:
		default:
			return nil, p.errAt(p.peek(), fmt.Sprintf("expected newline or ';' after statement, found %s", p.peek()))
		}
	}
}

func (p *parser) statement() (ast.Stmt, error) {
	t := p.peek()
	switch t.typ {
	case tokLet:
		return p.letStmt()
	case tokReturn:
		return p.returnStmt()
	case tokFor:
		return p.forStmt()
	case tokIf:
		return p.ifStmt()
	case tokIdent:
		switch p.peekAt(1).typ {
		case tokAssign, tokPlusEq, tokMinusEq, tokStarEq, tokSlashEq:
			return p.assignStmt()
		}
	}
	x, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	return &ast.ExprStmt{X: x, Position: t.pos}, nil
}

func (p *parser) letStmt() (ast.Stmt, error) {
	kw := p.next()
	name, err := p.need(tokIdent, "variable name")
	if err != nil {
		return nil, err
	}
	if _, err := p.need(tokAssign, "'='"); err != nil {
		return nil, err
	}
	p.skipNewlines()
	val, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	// Initialiser is resolved before the name is visible.
	v := p.scope.Declare(name.text, false)
	return &ast.Let{Var: v, Value: val, Position: kw.pos}, nil
}

func (p *parser) returnStmt() (ast.Stmt, error) {
	kw := p.next()
	switch p.peek().typ {
	case tokNewline, tokSemi, tokRBrace, tokEOF:
		return &ast.Return{Position: kw.pos}, nil
	}
	val, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	return &ast.Return{Value: val, Position: kw.pos}, nil
}

func (p *parser) forStmt() (ast.Stmt, error) {
	kw := p.next()
	name, err := p.need(tokIdent, "loop variable")
	if err != nil {
		return nil, err
	}
	if _, err := p.need(tokIn, "'in'"); err != nil {
		return nil, err
	}
	p.skipNewlines()

	from, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(tokDotDot, "'..'"); err != nil {
		return nil, err
	}
	p.skipNewlines()
	to, err := p.expr(0)
	if err != nil {
		return nil, err
	}

	// The loop variable lives in its own scope enclosing the body.
	loopScope := ast.NewScope(p.scope)
	v := loopScope.Declare(name.text, false)

	prev := p.scope
	p.scope = loopScope
	body, berr := p.block()
	p.scope = prev
	if berr != nil {
		return nil, berr
	}

	return &ast.ForRange{Var: v, From: from, To: to, Body: body, Position: kw.pos}, nil
}

func (p *parser) ifStmt() (ast.Stmt, error) {
	kw := p.next()
	cond, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	st := &ast.If{Cond: cond, Then: then, Position: kw.pos}
	if p.peek().typ == tokElse {
		p.next()
		p.skipNewlines()
		els, err := p.block()
		if err != nil {
			return nil, err
		}
		st.Else = els
	}
	return st, nil
}

func (p *parser) assignStmt() (ast.Stmt, error) {
	name := p.next()
	opTok := p.next()
	p.skipNewlines()
	val, err := p.expr(0)
	if err != nil {
		return nil, err
	}

	var op ast.AssignOp
	switch opTok.typ {
	case tokAssign:
		op = ast.AssignSet
	case tokPlusEq:
		op = ast.AssignAdd
	case tokMinusEq:
		op = ast.AssignSub
	case tokStarEq:
		op = ast.AssignMul
	case tokSlashEq:
		op = ast.AssignDiv
	}

	target := &ast.Ident{Name: name.text, Var: p.resolve(name.text), Position: name.pos}
	return &ast.Assign{Target: target, Op: op, Value: val, Position: opTok.pos}, nil
}

// ──────────────────────────────────────────────────
// Expressions (Pratt)
// ──────────────────────────────────────────────────

// lbp returns the left binding power of an infix token. Zero means the
// token does not continue an expression.
func lbp(tt tokenType) int {
	switch tt {
	case tokOrOr:
		return 10
	case tokAndAnd:
		return 20
	case tokEq, tokNe:
		return 30
	case tokLt, tokLe, tokGt, tokGe:
		return 40
	case tokPlus, tokMinus:
		return 50
	case tokStar, tokSlash, tokPercent:
		return 60
	case tokLParen: // call
		return 90
	default:
		return 0
	}
}

func binOpFor(tt tokenType) ast.BinOp {
	switch tt {
	case tokPlus:
		return ast.OpAdd
	case tokMinus:
		return ast.OpSub
	case tokStar:
		return ast.OpMul
	case tokSlash:
		return ast.OpDiv
	case tokPercent:
		return ast.OpMod
	case tokEq:
		return ast.OpEq
	case tokNe:
		return ast.OpNe
	case tokLt:
		return ast.OpLt
	case tokLe:
		return ast.OpLe
	case tokGt:
		return ast.OpGt
	case tokGe:
		return ast.OpGe
	case tokAndAnd:
		return ast.OpAnd
	default:
		return ast.OpOr
	}
}

// expr parses an expression with at least the given binding power. Chains
// of same-precedence operators are consumed by the loop, not by recursion.
func (p *parser) expr(minBP int) (ast.Expr, error) {
	start := p.peek()
	if err := p.enter(start); err != nil {
		return nil, err
	}
	defer p.exit()

	left, err := p.primary()
	if err != nil {
		return nil, err
	}

	for {
		t := p.peek()
		bp := lbp(t.typ)
		if bp == 0 || bp < minBP {
			return left, nil
		}

		if t.typ == tokLParen { // call postfix
			left, err = p.callArgs(left, t)
			if err != nil {
				return nil, err
			}
			continue
		}

		p.next()
		p.skipNewlines()
		right, err := p.expr(bp + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: binOpFor(t.typ), X: left, Y: right, Position: t.pos}
	}
}

func (p *parser) callArgs(callee ast.Expr, open token) (ast.Expr, error) {
	p.next() // '('
	p.skipNewlines()
	call := &ast.Call{Callee: callee, Position: open.pos}
	for p.peek().typ != tokRParen {
		arg, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		p.skipNewlines()
		if !p.match(tokComma) {
			break
		}
		p.skipNewlines()
	}
	if _, err := p.need(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *parser) primary() (ast.Expr, error) {
	t := p.peek()
	switch t.typ {
	case tokNumber:
		p.next()
		return &ast.NumberLit{Value: t.num, Position: t.pos}, nil
	case tokString:
		p.next()
		return &ast.StringLit{Value: t.text, Position: t.pos}, nil
	case tokTrue, tokFalse:
		p.next()
		return &ast.BoolLit{Value: t.typ == tokTrue, Position: t.pos}, nil
	case tokMinus:
		p.next()
		x, err := p.expr(70)
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: ast.UnaryNeg, X: x, Position: t.pos}, nil
	case tokBang:
		p.next()
		x, err := p.expr(70)
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: ast.UnaryNot, X: x, Position: t.pos}, nil
	case tokIdent:
		if p.peekAt(1).typ == tokArrow {
			return p.nestedFunc()
		}
		p.next()
		return &ast.Ident{Name: t.text, Var: p.resolve(t.text), Position: t.pos}, nil
	case tokLParen:
		if p.arrowAhead() {
			return p.nestedFunc()
		}
		p.next()
		p.skipNewlines()
		x, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		p.skipNewlines()
		if _, err := p.need(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return x, nil
	default:
		return nil, p.errAt(t, fmt.Sprintf("unexpected %s", t))
	}
}

func (p *parser) nestedFunc() (ast.Expr, error) {
	t := p.peek()
	prevLevel := p.fnLevel
	p.fnLevel++
	fn, err := p.funcLit()
	p.fnLevel = prevLevel
	if err != nil {
		return nil, err
	}
	return &ast.FuncLit{Fn: fn, Position: t.pos}, nil
}

// arrowAhead reports whether the '(' at the cursor opens an arrow-function
// parameter list, i.e. the matching ')' is directly followed by '=>'.
func (p *parser) arrowAhead() bool {
	depth := 0
	for k := p.i; k < len(p.toks); k++ {
		switch p.toks[k].typ {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth == 0 {
				return p.peekAt(k-p.i+1).typ == tokArrow
			}
		case tokEOF:
			return false
		}
	}
	return false
}

// ──────────────────────────────────────────────────
// Name resolution
// ──────────────────────────────────────────────────

// resolve binds a name use to a variable: unit scopes first, then the
// outer scope chain snapshot, then a per-unit global placeholder.
//
// A unit variable referenced from a function nested below its declaration
// is marked captured and becomes a context slot; everything else stays
// unallocated until scope analysis.
func (p *parser) resolve(name string) *ast.Variable {
	if v := p.scope.Lookup(name); v != nil {
		if v.FuncLevel < p.fnLevel {
			v.Captured = true
			v.Kind = ast.KindContextSlot
		}
		return v
	}

	if idx, slot, ok := p.chain.Resolve(name); ok {
		if v, seen := p.chainVars[name]; seen {
			return v
		}
		v := &ast.Variable{
			Name:       name,
			Kind:       ast.KindContextSlot,
			Slot:       slot,
			FuncLevel:  -1,
			FromChain:  true,
			ChainIndex: idx,
		}
		p.chainVars[name] = v
		return v
	}

	if v, seen := p.globals[name]; seen {
		return v
	}
	v := &ast.Variable{Name: name, Kind: ast.KindGlobal, Slot: -1, FuncLevel: -1}
	p.globals[name] = v
	return v
}
