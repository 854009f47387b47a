package compiler

import (
	"github.com/tidelang/tide/ast"
	"github.com/tidelang/tide/parser"
)

// analyseFramesPerSlot scales the job's stack budget into the analyser's
// recursion bound. Analysis frames are heavier than parser frames and
// lighter than codegen frames.
const analyseFramesPerSlot = 16

// Analyze performs scope and variable-slot allocation over a parsed unit:
// captured variables get context slots, everything else gets frame locals,
// and synthetic loop-limit locals are materialised. It fails with an
// OverflowError if the representation is too deep for stackLimit, before
// any code generation has been attempted.
func Analyze(res *parser.Result, stackLimit int) error {
	a := &analyser{limit: stackLimit * analyseFramesPerSlot}
	for _, fn := range res.Functions {
		if err := a.allocate(fn); err != nil {
			return err
		}
	}
	return nil
}

type analyser struct {
	depth int
	limit int

	// Per-function allocation cursors.
	nextLocal int
	nextCtx   int
}

func (a *analyser) enter(pos ast.Position) error {
	a.depth++
	if a.depth > a.limit {
		return &OverflowError{Phase: "analyse", Pos: pos}
	}
	return nil
}

func (a *analyser) exit() { a.depth-- }

// allocate assigns storage for every variable of one function and walks
// its body to size the representation against the budget.
func (a *analyser) allocate(fn *ast.Func) error {
	a.nextLocal, a.nextCtx = 0, 0

	if err := a.allocateScope(fn.Scope, fn); err != nil {
		return err
	}
	if err := a.walkBlock(fn.Body); err != nil {
		return err
	}

	fn.NumLocals = a.nextLocal
	fn.NumContextSlots = a.nextCtx
	return nil
}

// allocateScope assigns slots in declaration order, descending into block
// scopes but not into nested functions (they allocate separately).
func (a *analyser) allocateScope(s *ast.Scope, fn *ast.Func) error {
	if err := a.enter(fn.Position); err != nil {
		return err
	}
	defer a.exit()

	for _, v := range s.Vars {
		if v.FromChain {
			continue
		}
		if v.Kind == ast.KindContextSlot {
			v.Slot = a.nextCtx
			a.nextCtx++
			continue
		}
		v.Kind = ast.KindLocal
		v.Slot = a.nextLocal
		a.nextLocal++
	}

	for _, inner := range s.Inner {
		if inner.Fn != nil {
			continue
		}
		if err := a.allocateScope(inner, fn); err != nil {
			return err
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Body walk: budget charging + loop synthetics
// ──────────────────────────────────────────────────

func (a *analyser) walkBlock(b *ast.Block) error {
	if err := a.enter(b.Position); err != nil {
		return err
	}
	defer a.exit()

	for _, st := range b.Stmts {
		if err := a.walkStmt(st); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyser) walkStmt(st ast.Stmt) error {
	if err := a.enter(st.Pos()); err != nil {
		return err
	}
	defer a.exit()

	switch s := st.(type) {
	case *ast.Let:
		return a.walkExpr(s.Value)
	case *ast.Assign:
		return a.walkExpr(s.Value)
	case *ast.Return:
		if s.Value != nil {
			return a.walkExpr(s.Value)
		}
		return nil
	case *ast.ExprStmt:
		return a.walkExpr(s.X)
	case *ast.If:
		if err := a.walkExpr(s.Cond); err != nil {
			return err
		}
		if err := a.walkBlock(s.Then); err != nil {
			return err
		}
		if s.Else != nil {
			return a.walkBlock(s.Else)
		}
		return nil
	case *ast.ForRange:
		if err := a.walkExpr(s.From); err != nil {
			return err
		}
		if err := a.walkExpr(s.To); err != nil {
			return err
		}
		// The evaluated range end lives in a synthetic frame local.
		s.LimitVar = &ast.Variable{Kind: ast.KindLocal, Slot: a.nextLocal}
		a.nextLocal++
		return a.walkBlock(s.Body)
	case *ast.Block:
		return a.walkBlock(s)
	default:
		return nil
	}
}

func (a *analyser) walkExpr(x ast.Expr) error {
	if err := a.enter(x.Pos()); err != nil {
		return err
	}
	defer a.exit()

	switch e := x.(type) {
	case *ast.Unary:
		return a.walkExpr(e.X)
	case *ast.Binary:
		if err := a.walkExpr(e.X); err != nil {
			return err
		}
		return a.walkExpr(e.Y)
	case *ast.Call:
		if err := a.walkExpr(e.Callee); err != nil {
			return err
		}
		for _, arg := range e.Args {
			if err := a.walkExpr(arg); err != nil {
				return err
			}
		}
		return nil
	case *ast.FuncLit:
		// Nested functions are allocated as their own table entries.
		return nil
	default:
		return nil
	}
}
