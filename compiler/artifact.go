// Package compiler lowers a parsed Tide function into an executable
// bytecode artifact. It exposes the two halves the compile job drives as
// separate phases: Analyze performs scope and variable-slot allocation and
// is where oversized units are rejected before any code is generated;
// Generate emits bytecode for an analysed unit.
//
// Both walkers charge recursion frames against the job's stack budget and
// fail with an OverflowError instead of exhausting the goroutine stack.
package compiler

// Opcode is a bytecode operation.
type Opcode int

const (
	OpConst Opcode = iota // push constant A
	OpUndef               // push undefined

	OpLoadLocal   // push locals[A]
	OpStoreLocal  // locals[A] = pop
	OpLoadCtx     // push context slot B at depth A
	OpStoreCtx    // context slot B at depth A = pop
	OpLoadGlobal  // push global named by string constant A
	OpStoreGlobal // global named by string constant A = pop

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpNot
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr

	OpJump        // pc = A
	OpJumpIfFalse // pop cond; if falsy pc = A
	OpPop

	OpClosure // push closure over function table entry A
	OpCall    // pop A args then callee; push result
	OpReturn  // pop return value and exit the frame
)

var opcodeNames = map[Opcode]string{
	OpConst: "const", OpUndef: "undef",
	OpLoadLocal: "load_local", OpStoreLocal: "store_local",
	OpLoadCtx: "load_ctx", OpStoreCtx: "store_ctx",
	OpLoadGlobal: "load_global", OpStoreGlobal: "store_global",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod",
	OpNeg: "neg", OpNot: "not",
	OpEq: "eq", OpNe: "ne", OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge",
	OpAnd: "and", OpOr: "or",
	OpJump: "jump", OpJumpIfFalse: "jump_if_false", OpPop: "pop",
	OpClosure: "closure", OpCall: "call", OpReturn: "return",
}

// String returns the mnemonic for the opcode.
func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return "invalid"
}

// Instr is one bytecode instruction with up to two operands.
type Instr struct {
	Op Opcode `json:"op"`
	A  int    `json:"a,omitempty"`
	B  int    `json:"b,omitempty"`
}

// ConstKind tags a constant pool entry.
type ConstKind string

// Constant pool entry kinds.
const (
	ConstNumber ConstKind = "num"
	ConstString ConstKind = "str"
	ConstBool   ConstKind = "bool"
)

// Const is one constant pool entry.
type Const struct {
	Kind ConstKind `json:"kind"`
	Num  float64   `json:"num,omitempty"`
	Str  string    `json:"str,omitempty"`
	Bool bool      `json:"bool,omitempty"`
}

// SlotRef locates a parameter's storage: a frame local, or a context slot
// when the parameter is captured by a nested function.
type SlotRef struct {
	Context bool `json:"context,omitempty"`
	Slot    int  `json:"slot"`
}

// FuncCode is the compiled form of one function in the unit.
type FuncCode struct {
	Name            string    `json:"name,omitempty"`
	NumParams       int       `json:"num_params"`
	NumLocals       int       `json:"num_locals"`
	NumContextSlots int       `json:"num_context_slots"`
	Params          []SlotRef `json:"params,omitempty"`
	Code            []Instr   `json:"code"`
	Consts          []Const   `json:"consts,omitempty"`
	MaxStack        int       `json:"max_stack"`
}

// Artifact is the executable output of compiling one unit: the function
// table, root function first. Artifacts are immutable after generation and
// JSON-serialisable so they can live in a compilation cache.
type Artifact struct {
	Functions []*FuncCode `json:"functions"`
}

// Root returns the unit's root function code.
func (a *Artifact) Root() *FuncCode { return a.Functions[0] }
