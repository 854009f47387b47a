// Package ast defines the parsed representation of a Tide function: the
// syntax tree, the scope tree with resolved variables, and the thread-safe
// snapshot of an enclosing scope chain that lets the parser resolve free
// variables without touching the runtime heap.
package ast

// Position is a location in the source text of a compilation unit.
// Line and Col are 1-based; Offset is a 0-based byte offset.
type Position struct {
	Line   int `json:"line"`
	Col    int `json:"col"`
	Offset int `json:"offset"`
}

// ──────────────────────────────────────────────────
// Variables and scopes
// ──────────────────────────────────────────────────

// VarKind classifies how a resolved variable is accessed at run time.
type VarKind int

const (
	// KindUnallocated means the variable is declared but has not been
	// assigned a storage slot. Parameters and uncaptured locals stay
	// unallocated until scope analysis runs.
	KindUnallocated VarKind = iota

	// KindLocal is a stack slot in the owning function's frame.
	KindLocal

	// KindContextSlot is a slot in a persistent context: either a local
	// captured by a nested function, or a variable from the enclosing
	// scope chain.
	KindContextSlot

	// KindGlobal means the name resolved nowhere and is looked up in the
	// runtime's global table by name.
	KindGlobal
)

// String returns the kind name used in logs and diagnostics.
func (k VarKind) String() string {
	switch k {
	case KindUnallocated:
		return "unallocated"
	case KindLocal:
		return "local"
	case KindContextSlot:
		return "context"
	case KindGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Variable is a declared or chain-resolved variable.
type Variable struct {
	Name string
	Kind VarKind

	// Slot is the local or context slot index. Valid for chain variables
	// immediately, and for unit-declared variables after scope analysis.
	Slot int

	// FuncLevel is the nesting level of the declaring function within
	// the compilation unit (0 = the unit itself). -1 for variables
	// resolved through the outer scope chain or as globals.
	FuncLevel int

	// FromChain marks a variable resolved through the enclosing scope
	// chain snapshot rather than declared inside the unit.
	FromChain bool

	// ChainIndex is the index into the scope chain for chain variables
	// (0 = nearest enclosing scope).
	ChainIndex int

	// Captured marks a unit-declared variable referenced from a nested
	// function; capture forces context-slot allocation.
	Captured bool

	// Param marks a function parameter.
	Param bool
}

// Scope is one lexical scope inside the compilation unit.
type Scope struct {
	Parent *Scope
	Inner  []*Scope

	// Fn is non-nil on function scopes.
	Fn *Func

	Vars   []*Variable
	byName map[string]*Variable
}

// NewScope creates a scope nested in parent (parent may be nil for the
// unit's root function scope).
func NewScope(parent *Scope) *Scope {
	s := &Scope{Parent: parent, byName: make(map[string]*Variable)}
	if parent != nil {
		parent.Inner = append(parent.Inner, s)
	}
	return s
}

// Declare adds a variable to the scope. Redeclaration returns the existing
// variable; Tide treats `let` shadowing within one scope as rebinding.
func (s *Scope) Declare(name string, param bool) *Variable {
	if v, ok := s.byName[name]; ok {
		return v
	}
	v := &Variable{Name: name, Kind: KindUnallocated, Slot: -1, Param: param}
	if fs := s.FuncScope(); fs != nil && fs.Fn != nil {
		v.FuncLevel = fs.Fn.Level
	}
	s.byName[name] = v
	s.Vars = append(s.Vars, v)
	return v
}

// Lookup resolves a name through this scope and its ancestors within the
// compilation unit. Returns nil if the name is not declared in the unit.
func (s *Scope) Lookup(name string) *Variable {
	for sc := s; sc != nil; sc = sc.Parent {
		if v, ok := sc.byName[name]; ok {
			return v
		}
	}
	return nil
}

// FuncScope returns the nearest enclosing function scope (possibly s).
func (s *Scope) FuncScope() *Scope {
	for sc := s; sc != nil; sc = sc.Parent {
		if sc.Fn != nil {
			return sc
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Outer scope chain snapshot
// ──────────────────────────────────────────────────

// OuterVar is one variable visible from an enclosing runtime scope,
// identified by name and its context slot index in that scope.
type OuterVar struct {
	Name string
	Slot int
}

// OuterScope is the snapshot of one enclosing lexical scope.
type OuterScope struct {
	Vars []OuterVar
}

// ScopeChain is a thread-safe snapshot of the enclosing lexical scope
// chain of a compilation unit, innermost scope first. It is built on the
// main thread before parsing and is immutable afterwards, which is what
// permits the parser to resolve free variables off the main thread.
type ScopeChain struct {
	Scopes []OuterScope
}

// Resolve finds name in the chain. It returns the chain index of the
// owning scope (0 = innermost) and the variable's context slot.
func (c *ScopeChain) Resolve(name string) (chainIndex, slot int, ok bool) {
	if c == nil {
		return 0, 0, false
	}
	for i, sc := range c.Scopes {
		for _, v := range sc.Vars {
			if v.Name == name {
				return i, v.Slot, true
			}
		}
	}
	return 0, 0, false
}

// ──────────────────────────────────────────────────
// Nodes
// ──────────────────────────────────────────────────

// Node is implemented by every syntax tree node.
type Node interface {
	Pos() Position
}

// Expr is implemented by expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is implemented by statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Func is a function literal: the root of a compilation unit and every
// nested arrow function inside it.
type Func struct {
	Name     string
	Params   []*Variable
	Body     *Block
	Scope    *Scope
	Level    int // nesting depth within the unit; 0 for the unit root
	Index    int // function table index assigned by the parser
	Position Position

	// NumLocals and NumContextSlots are filled in by scope analysis.
	NumLocals       int
	NumContextSlots int
}

// Pos implements Node.
func (f *Func) Pos() Position { return f.Position }

// Block is a braced statement list with its own scope.
type Block struct {
	Stmts    []Stmt
	Scope    *Scope
	Position Position
}

func (b *Block) Pos() Position { return b.Position }
func (b *Block) stmtNode()     {}

// Let declares and initialises a variable.
type Let struct {
	Var      *Variable
	Value    Expr
	Position Position
}

func (l *Let) Pos() Position { return l.Position }
func (l *Let) stmtNode()     {}

// AssignOp is the operator of an assignment statement.
type AssignOp int

const (
	AssignSet AssignOp = iota // =
	AssignAdd                 // +=
	AssignSub                 // -=
	AssignMul                 // *=
	AssignDiv                 // /=
)

// Assign writes to an already-declared variable.
type Assign struct {
	Target   *Ident
	Op       AssignOp
	Value    Expr
	Position Position
}

func (a *Assign) Pos() Position { return a.Position }
func (a *Assign) stmtNode()     {}

// Return exits the enclosing function, optionally with a value.
type Return struct {
	Value    Expr // may be nil
	Position Position
}

func (r *Return) Pos() Position { return r.Position }
func (r *Return) stmtNode()     {}

// If is a conditional with an optional else block.
type If struct {
	Cond     Expr
	Then     *Block
	Else     *Block // may be nil
	Position Position
}

func (i *If) Pos() Position { return i.Position }
func (i *If) stmtNode()     {}

// ForRange iterates an integer range: `for i in from..to { ... }`.
// The loop variable counts from `from` inclusive to `to` exclusive.
type ForRange struct {
	Var      *Variable
	From, To Expr
	Body     *Block
	Position Position

	// LimitVar is a synthetic local holding the evaluated range end,
	// declared during scope analysis.
	LimitVar *Variable
}

func (f *ForRange) Pos() Position { return f.Position }
func (f *ForRange) stmtNode()     {}

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	X        Expr
	Position Position
}

func (e *ExprStmt) Pos() Position { return e.Position }
func (e *ExprStmt) stmtNode()     {}

// NumberLit is a numeric literal.
type NumberLit struct {
	Value    float64
	Position Position
}

func (n *NumberLit) Pos() Position { return n.Position }
func (n *NumberLit) exprNode()     {}

// StringLit is a string literal.
type StringLit struct {
	Value    string
	Position Position
}

func (s *StringLit) Pos() Position { return s.Position }
func (s *StringLit) exprNode()     {}

// BoolLit is `true` or `false`.
type BoolLit struct {
	Value    bool
	Position Position
}

func (b *BoolLit) Pos() Position { return b.Position }
func (b *BoolLit) exprNode()     {}

// Ident is a variable reference, resolved to Var during parsing.
type Ident struct {
	Name     string
	Var      *Variable
	Position Position
}

func (i *Ident) Pos() Position { return i.Position }
func (i *Ident) exprNode()     {}

// UnaryOp is the operator of a unary expression.
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota // -x
	UnaryNot                // !x
)

// Unary is a prefix expression.
type Unary struct {
	Op       UnaryOp
	X        Expr
	Position Position
}

func (u *Unary) Pos() Position { return u.Position }
func (u *Unary) exprNode()     {}

// BinOp is the operator of a binary expression.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

// Binary is an infix expression.
type Binary struct {
	Op       BinOp
	X, Y     Expr
	Position Position
}

func (b *Binary) Pos() Position { return b.Position }
func (b *Binary) exprNode()     {}

// Call invokes a callee with arguments.
type Call struct {
	Callee   Expr
	Args     []Expr
	Position Position
}

func (c *Call) Pos() Position { return c.Position }
func (c *Call) exprNode()     {}

// FuncLit is a nested arrow function expression.
type FuncLit struct {
	Fn       *Func
	Position Position
}

func (f *FuncLit) Pos() Position { return f.Position }
func (f *FuncLit) exprNode()     {}
