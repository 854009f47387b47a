package compiler

import (
	"fmt"

	"github.com/tidelang/tide/ast"
	"github.com/tidelang/tide/parser"
)

// codegenFramesPerSlot scales the job's stack budget into the code
// generator's recursion bound. Codegen frames are the heaviest walker
// frames, so this is the tightest bound in the pipeline.
const codegenFramesPerSlot = 2

// Generate emits bytecode for an analysed unit. The result is immutable.
//
// A unit whose codegen recursion or operand stack exceeds stackLimit fails
// with an OverflowError; the caller records it and surfaces it at
// finalisation rather than raising from here.
func Generate(res *parser.Result, stackLimit int) (*Artifact, error) {
	g := &generator{limit: stackLimit * codegenFramesPerSlot, stackLimit: stackLimit}

	art := &Artifact{Functions: make([]*FuncCode, len(res.Functions))}
	for i, fn := range res.Functions {
		fc, err := g.emitFunc(fn)
		if err != nil {
			return nil, err
		}
		art.Functions[i] = fc
	}
	return art, nil
}

type generator struct {
	depth      int
	limit      int
	stackLimit int
}

func (g *generator) enter(pos ast.Position) error {
	g.depth++
	if g.depth > g.limit {
		return &OverflowError{Phase: "generate", Pos: pos}
	}
	return nil
}

func (g *generator) exit() { g.depth-- }

// emitter builds the code for one function.
type emitter struct {
	g  *generator
	fn *ast.Func

	code     []Instr
	consts   []Const
	constIdx map[Const]int

	cur, max int // operand stack simulation
}

func (g *generator) emitFunc(fn *ast.Func) (*FuncCode, error) {
	e := &emitter{g: g, fn: fn, constIdx: make(map[Const]int)}

	if err := e.block(fn.Body); err != nil {
		return nil, err
	}
	// Falling off the end returns undefined.
	e.emit(Instr{Op: OpUndef}, 1)
	e.emit(Instr{Op: OpReturn}, -1)

	params := make([]SlotRef, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = SlotRef{Context: p.Kind == ast.KindContextSlot, Slot: p.Slot}
	}

	return &FuncCode{
		Name:            fn.Name,
		NumParams:       len(fn.Params),
		NumLocals:       fn.NumLocals,
		NumContextSlots: fn.NumContextSlots,
		Params:          params,
		Code:            e.code,
		Consts:          e.consts,
		MaxStack:        e.max,
	}, nil
}

// ──────────────────────────────────────────────────
// Emission plumbing
// ──────────────────────────────────────────────────

// emit appends an instruction and applies its stack effect.
func (e *emitter) emit(in Instr, effect int) {
	e.code = append(e.code, in)
	e.cur += effect
	if e.cur > e.max {
		e.max = e.cur
	}
}

// emitJump appends a jump with a to-be-patched target and returns its pc.
func (e *emitter) emitJump(op Opcode, effect int) int {
	e.emit(Instr{Op: op, A: -1}, effect)
	return len(e.code) - 1
}

// patch points the jump at pc to the next instruction to be emitted.
func (e *emitter) patch(pc int) {
	e.code[pc].A = len(e.code)
}

func (e *emitter) constant(c Const) int {
	if idx, ok := e.constIdx[c]; ok {
		return idx
	}
	idx := len(e.consts)
	e.consts = append(e.consts, c)
	e.constIdx[c] = idx
	return idx
}

// checkStack enforces the operand-stack share of the budget.
func (e *emitter) checkStack(pos ast.Position) error {
	if e.max > e.g.stackLimit {
		return &OverflowError{Phase: "generate", Pos: pos}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Variable access
// ──────────────────────────────────────────────────

// ctxDepth computes the context-chain hop count from the function being
// emitted to the variable's owning context. Every activation pushes one
// context, so unit-internal hops are level differences and chain variables
// sit one past the unit root.
func (e *emitter) ctxDepth(v *ast.Variable) int {
	if v.FromChain {
		return e.fn.Level + 1 + v.ChainIndex
	}
	return e.fn.Level - v.FuncLevel
}

func (e *emitter) load(v *ast.Variable, pos ast.Position) error {
	switch v.Kind {
	case ast.KindLocal:
		e.emit(Instr{Op: OpLoadLocal, A: v.Slot}, 1)
	case ast.KindContextSlot:
		e.emit(Instr{Op: OpLoadCtx, A: e.ctxDepth(v), B: v.Slot}, 1)
	case ast.KindGlobal:
		e.emit(Instr{Op: OpLoadGlobal, A: e.constant(Const{Kind: ConstString, Str: v.Name})}, 1)
	default:
		return fmt.Errorf("compiler: variable %q unallocated at codegen", v.Name)
	}
	return e.checkStack(pos)
}

func (e *emitter) store(v *ast.Variable, pos ast.Position) error {
	switch v.Kind {
	case ast.KindLocal:
		e.emit(Instr{Op: OpStoreLocal, A: v.Slot}, -1)
	case ast.KindContextSlot:
		e.emit(Instr{Op: OpStoreCtx, A: e.ctxDepth(v), B: v.Slot}, -1)
	case ast.KindGlobal:
		e.emit(Instr{Op: OpStoreGlobal, A: e.constant(Const{Kind: ConstString, Str: v.Name})}, -1)
	default:
		return fmt.Errorf("compiler: variable %q unallocated at codegen", v.Name)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Statements
// ──────────────────────────────────────────────────

func (e *emitter) block(b *ast.Block) error {
	if err := e.g.enter(b.Position); err != nil {
		return err
	}
	defer e.g.exit()

	for _, st := range b.Stmts {
		if err := e.stmt(st); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) stmt(st ast.Stmt) error {
	if err := e.g.enter(st.Pos()); err != nil {
		return err
	}
	defer e.g.exit()

	switch s := st.(type) {
	case *ast.Let:
		if err := e.expr(s.Value); err != nil {
			return err
		}
		return e.store(s.Var, s.Position)

	case *ast.Assign:
		v := s.Target.Var
		if s.Op != ast.AssignSet {
			if err := e.load(v, s.Position); err != nil {
				return err
			}
		}
		if err := e.expr(s.Value); err != nil {
			return err
		}
		switch s.Op {
		case ast.AssignAdd:
			e.emit(Instr{Op: OpAdd}, -1)
		case ast.AssignSub:
			e.emit(Instr{Op: OpSub}, -1)
		case ast.AssignMul:
			e.emit(Instr{Op: OpMul}, -1)
		case ast.AssignDiv:
			e.emit(Instr{Op: OpDiv}, -1)
		}
		return e.store(v, s.Position)

	case *ast.Return:
		if s.Value != nil {
			if err := e.expr(s.Value); err != nil {
				return err
			}
		} else {
			e.emit(Instr{Op: OpUndef}, 1)
		}
		e.emit(Instr{Op: OpReturn}, -1)
		return nil

	case *ast.ExprStmt:
		if err := e.expr(s.X); err != nil {
			return err
		}
		e.emit(Instr{Op: OpPop}, -1)
		return nil

	case *ast.If:
		if err := e.expr(s.Cond); err != nil {
			return err
		}
		elseJump := e.emitJump(OpJumpIfFalse, -1)
		if err := e.block(s.Then); err != nil {
			return err
		}
		if s.Else == nil {
			e.patch(elseJump)
			return nil
		}
		endJump := e.emitJump(OpJump, 0)
		e.patch(elseJump)
		if err := e.block(s.Else); err != nil {
			return err
		}
		e.patch(endJump)
		return nil

	case *ast.ForRange:
		if err := e.expr(s.From); err != nil {
			return err
		}
		if err := e.store(s.Var, s.Position); err != nil {
			return err
		}
		if err := e.expr(s.To); err != nil {
			return err
		}
		if err := e.store(s.LimitVar, s.Position); err != nil {
			return err
		}

		loopStart := len(e.code)
		if err := e.load(s.Var, s.Position); err != nil {
			return err
		}
		if err := e.load(s.LimitVar, s.Position); err != nil {
			return err
		}
		e.emit(Instr{Op: OpLt}, -1)
		endJump := e.emitJump(OpJumpIfFalse, -1)

		if err := e.block(s.Body); err != nil {
			return err
		}

		if err := e.load(s.Var, s.Position); err != nil {
			return err
		}
		e.emit(Instr{Op: OpConst, A: e.constant(Const{Kind: ConstNumber, Num: 1})}, 1)
		e.emit(Instr{Op: OpAdd}, -1)
		if err := e.store(s.Var, s.Position); err != nil {
			return err
		}
		e.emit(Instr{Op: OpJump, A: loopStart}, 0)
		e.patch(endJump)
		return nil

	case *ast.Block:
		return e.block(s)

	default:
		return fmt.Errorf("compiler: unknown statement %T", st)
	}
}

// ──────────────────────────────────────────────────
// Expressions
// ──────────────────────────────────────────────────

var binOpcodes = map[ast.BinOp]Opcode{
	ast.OpAdd: OpAdd, ast.OpSub: OpSub, ast.OpMul: OpMul,
	ast.OpDiv: OpDiv, ast.OpMod: OpMod,
	ast.OpEq: OpEq, ast.OpNe: OpNe,
	ast.OpLt: OpLt, ast.OpLe: OpLe, ast.OpGt: OpGt, ast.OpGe: OpGe,
	ast.OpAnd: OpAnd, ast.OpOr: OpOr,
}

func (e *emitter) expr(x ast.Expr) error {
	if err := e.g.enter(x.Pos()); err != nil {
		return err
	}
	defer e.g.exit()

	switch n := x.(type) {
	case *ast.NumberLit:
		e.emit(Instr{Op: OpConst, A: e.constant(Const{Kind: ConstNumber, Num: n.Value})}, 1)
		return e.checkStack(n.Position)

	case *ast.StringLit:
		e.emit(Instr{Op: OpConst, A: e.constant(Const{Kind: ConstString, Str: n.Value})}, 1)
		return e.checkStack(n.Position)

	case *ast.BoolLit:
		e.emit(Instr{Op: OpConst, A: e.constant(Const{Kind: ConstBool, Bool: n.Value})}, 1)
		return e.checkStack(n.Position)

	case *ast.Ident:
		return e.load(n.Var, n.Position)

	case *ast.Unary:
		if err := e.expr(n.X); err != nil {
			return err
		}
		if n.Op == ast.UnaryNeg {
			e.emit(Instr{Op: OpNeg}, 0)
		} else {
			e.emit(Instr{Op: OpNot}, 0)
		}
		return nil

	case *ast.Binary:
		if err := e.expr(n.X); err != nil {
			return err
		}
		if err := e.expr(n.Y); err != nil {
			return err
		}
		e.emit(Instr{Op: binOpcodes[n.Op]}, -1)
		return nil

	case *ast.Call:
		if err := e.expr(n.Callee); err != nil {
			return err
		}
		for _, arg := range n.Args {
			if err := e.expr(arg); err != nil {
				return err
			}
		}
		e.emit(Instr{Op: OpCall, A: len(n.Args)}, -len(n.Args))
		return e.checkStack(n.Position)

	case *ast.FuncLit:
		e.emit(Instr{Op: OpClosure, A: n.Fn.Index}, 1)
		return e.checkStack(n.Position)

	default:
		return fmt.Errorf("compiler: unknown expression %T", x)
	}
}
