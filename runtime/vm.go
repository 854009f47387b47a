package runtime

import (
	"fmt"

	"github.com/tidelang/tide"
	"github.com/tidelang/tide/compiler"
)

// maxCallDepth bounds interpreter re-entrancy. Compiled operand stacks are
// already bounded per frame by the compile-time budget; this guards runaway
// call recursion in user code.
const maxCallDepth = 512

// Call invokes a compiled function with the given arguments. The function
// must have an installed artifact. Runtime faults (calling a non-function,
// mixed-type arithmetic, unbound globals, call-depth exhaustion) are
// returned as errors; they are not raised as pending exceptions.
func (r *Runtime) Call(f *Function, args ...Value) (Value, error) {
	if f.artifact == nil {
		return Undefined(), fmt.Errorf("%w: %s", tide.ErrNotCompiled, f.ID)
	}
	var outer *Context
	if f.outer != nil {
		outer = f.outer.ctx
	}
	m := &vm{rt: r}
	return m.call(&Closure{Fn: f.artifact.Root(), Art: f.artifact, Ctx: outer}, args)
}

type vm struct {
	rt    *Runtime
	depth int
}

func (m *vm) call(c *Closure, args []Value) (Value, error) {
	m.depth++
	defer func() { m.depth-- }()
	if m.depth > maxCallDepth {
		return Undefined(), fmt.Errorf("tide: call depth limit exceeded")
	}

	fn := c.Fn
	ctx := &Context{parent: c.Ctx, slots: make([]Value, fn.NumContextSlots)}
	locals := make([]Value, fn.NumLocals)

	for i, p := range fn.Params {
		var a Value
		if i < len(args) {
			a = args[i]
		}
		if p.Context {
			ctx.slots[p.Slot] = a
		} else {
			locals[p.Slot] = a
		}
	}

	stack := make([]Value, 0, fn.MaxStack)
	push := func(v Value) { stack = append(stack, v) }
	pop := func() Value {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	for pc := 0; pc < len(fn.Code); pc++ {
		in := fn.Code[pc]
		switch in.Op {
		case compiler.OpConst:
			push(constValue(fn.Consts[in.A]))
		case compiler.OpUndef:
			push(Undefined())

		case compiler.OpLoadLocal:
			push(locals[in.A])
		case compiler.OpStoreLocal:
			locals[in.A] = pop()
		case compiler.OpLoadCtx:
			push(ctx.at(in.A).slots[in.B])
		case compiler.OpStoreCtx:
			ctx.at(in.A).slots[in.B] = pop()

		case compiler.OpLoadGlobal:
			name := fn.Consts[in.A].Str
			v, ok := m.rt.globals[name]
			if !ok {
				return Undefined(), fmt.Errorf("tide: %q is not defined", name)
			}
			push(v)
		case compiler.OpStoreGlobal:
			m.rt.globals[fn.Consts[in.A].Str] = pop()

		case compiler.OpAdd:
			y, x := pop(), pop()
			if x.kind == KindString && y.kind == KindString {
				push(String(x.str + y.str))
				break
			}
			n, err := numPair(x, y, "+")
			if err != nil {
				return Undefined(), err
			}
			push(Number(n[0] + n[1]))
		case compiler.OpSub, compiler.OpMul, compiler.OpDiv, compiler.OpMod:
			y, x := pop(), pop()
			n, err := numPair(x, y, in.Op.String())
			if err != nil {
				return Undefined(), err
			}
			switch in.Op {
			case compiler.OpSub:
				push(Number(n[0] - n[1]))
			case compiler.OpMul:
				push(Number(n[0] * n[1]))
			case compiler.OpDiv:
				push(Number(n[0] / n[1]))
			default:
				push(Number(float64(int64(n[0]) % int64(n[1]))))
			}

		case compiler.OpNeg:
			x := pop()
			if x.kind != KindNumber {
				return Undefined(), fmt.Errorf("tide: cannot negate %s", kindName(x.kind))
			}
			push(Number(-x.num))
		case compiler.OpNot:
			push(Bool(!pop().Truthy()))

		case compiler.OpEq:
			y, x := pop(), pop()
			push(Bool(x.Equal(y)))
		case compiler.OpNe:
			y, x := pop(), pop()
			push(Bool(!x.Equal(y)))
		case compiler.OpLt, compiler.OpLe, compiler.OpGt, compiler.OpGe:
			y, x := pop(), pop()
			n, err := numPair(x, y, in.Op.String())
			if err != nil {
				return Undefined(), err
			}
			switch in.Op {
			case compiler.OpLt:
				push(Bool(n[0] < n[1]))
			case compiler.OpLe:
				push(Bool(n[0] <= n[1]))
			case compiler.OpGt:
				push(Bool(n[0] > n[1]))
			default:
				push(Bool(n[0] >= n[1]))
			}

		case compiler.OpAnd:
			y, x := pop(), pop()
			push(Bool(x.Truthy() && y.Truthy()))
		case compiler.OpOr:
			y, x := pop(), pop()
			push(Bool(x.Truthy() || y.Truthy()))

		case compiler.OpJump:
			pc = in.A - 1
		case compiler.OpJumpIfFalse:
			if !pop().Truthy() {
				pc = in.A - 1
			}
		case compiler.OpPop:
			pop()

		case compiler.OpClosure:
			push(closureValue(&Closure{Fn: c.Art.Functions[in.A], Art: c.Art, Ctx: ctx}))

		case compiler.OpCall:
			argv := make([]Value, in.A)
			copy(argv, stack[len(stack)-in.A:])
			stack = stack[:len(stack)-in.A]
			callee := pop()
			if callee.kind != KindClosure {
				return Undefined(), fmt.Errorf("tide: %s is not callable", kindName(callee.kind))
			}
			res, err := m.call(callee.fn, argv)
			if err != nil {
				return Undefined(), err
			}
			push(res)

		case compiler.OpReturn:
			return pop(), nil

		default:
			return Undefined(), fmt.Errorf("tide: invalid opcode %d at pc %d", in.Op, pc)
		}
	}
	return Undefined(), nil
}

func constValue(c compiler.Const) Value {
	switch c.Kind {
	case compiler.ConstNumber:
		return Number(c.Num)
	case compiler.ConstString:
		return String(c.Str)
	default:
		return Bool(c.Bool)
	}
}

func numPair(x, y Value, op string) ([2]float64, error) {
	if x.kind != KindNumber || y.kind != KindNumber {
		return [2]float64{}, fmt.Errorf("tide: operator %s needs numbers, got %s and %s",
			op, kindName(x.kind), kindName(y.kind))
	}
	return [2]float64{x.num, y.num}, nil
}

func kindName(k Kind) string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindClosure:
		return "function"
	default:
		return "undefined"
	}
}
