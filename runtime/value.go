package runtime

import (
	"strconv"

	"github.com/tidelang/tide/compiler"
)

// Kind tags a runtime value.
type Kind int

const (
	KindUndefined Kind = iota
	KindNumber
	KindString
	KindBool
	KindClosure
)

// Value is a Tide runtime value. The zero value is undefined.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	fn   *Closure
}

// Undefined returns the undefined value.
func Undefined() Value { return Value{} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool wraps a bool.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func closureValue(c *Closure) Value { return Value{kind: KindClosure, fn: c} }

// Kind returns the value's kind tag.
func (v Value) Kind() Kind { return v.kind }

// Num returns the numeric payload; zero for non-numbers.
func (v Value) Num() float64 { return v.num }

// Str returns the string payload; empty for non-strings.
func (v Value) Str() string { return v.str }

// IsUndefined reports whether the value is undefined.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// Truthy reports the value's boolean interpretation: false, 0, "" and
// undefined are falsy, everything else is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num != 0
	case KindString:
		return v.str != ""
	case KindClosure:
		return true
	default:
		return false
	}
}

// Equal reports structural equality. Closures compare by identity.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == w.num
	case KindString:
		return v.str == w.str
	case KindBool:
		return v.b == w.b
	case KindClosure:
		return v.fn == w.fn
	default:
		return true
	}
}

// String renders the value for logs and the REPL-style CLI output.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindClosure:
		if v.fn.Fn.Name != "" {
			return "<fn " + v.fn.Fn.Name + ">"
		}
		return "<fn>"
	default:
		return "undefined"
	}
}

// Context is one link of the runtime context chain. Every function
// activation pushes a context, even an empty one, so the hop counts baked
// into the bytecode stay uniform.
type Context struct {
	parent *Context
	slots  []Value
}

// at walks depth parent links up the chain.
func (c *Context) at(depth int) *Context {
	for ; depth > 0; depth-- {
		c = c.parent
	}
	return c
}

// Closure is a compiled function bound to the context chain it was
// created in.
type Closure struct {
	Fn  *compiler.FuncCode
	Art *compiler.Artifact
	Ctx *Context
}
