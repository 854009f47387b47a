package parser_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/tidelang/tide/ast"
	"github.com/tidelang/tide/parser"
)

func parse(t *testing.T, src string) *parser.Result {
	t.Helper()
	res, err := parser.Parse(src, nil, 64)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return res
}

func onlyReturn(t *testing.T, fn *ast.Func) ast.Expr {
	t.Helper()
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("expected a single statement, got %d", len(fn.Body.Stmts))
	}
	ret, ok := fn.Body.Stmts[0].(*ast.Return)
	if !ok {
		t.Fatalf("expected a return, got %T", fn.Body.Stmts[0])
	}
	return ret.Value
}

func TestParse_SimpleArrow(t *testing.T) {
	res := parse(t, "(a, b) => a + b")

	if len(res.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(res.Functions))
	}
	fn := res.Fn
	if len(fn.Params) != 2 || fn.Params[0].Name != "a" || fn.Params[1].Name != "b" {
		t.Fatalf("unexpected params: %+v", fn.Params)
	}

	bin, ok := onlyReturn(t, fn).(*ast.Binary)
	if !ok || bin.Op != ast.OpAdd {
		t.Fatalf("expected an add, got %#v", bin)
	}
}

func TestParse_BareParameter(t *testing.T) {
	res := parse(t, "x => x")
	if len(res.Fn.Params) != 1 || res.Fn.Params[0].Name != "x" {
		t.Fatalf("unexpected params: %+v", res.Fn.Params)
	}
}

func TestParse_Precedence(t *testing.T) {
	res := parse(t, "(a) => 1 + 2 * 3")

	add, ok := onlyReturn(t, res.Fn).(*ast.Binary)
	if !ok || add.Op != ast.OpAdd {
		t.Fatalf("expected add at the root, got %#v", add)
	}
	mul, ok := add.Y.(*ast.Binary)
	if !ok || mul.Op != ast.OpMul {
		t.Fatalf("expected mul on the right, got %#v", add.Y)
	}
}

func TestParse_ParensOverridePrecedence(t *testing.T) {
	res := parse(t, "(a) => (1 + 2) * 3")

	mul, ok := onlyReturn(t, res.Fn).(*ast.Binary)
	if !ok || mul.Op != ast.OpMul {
		t.Fatalf("expected mul at the root, got %#v", mul)
	}
	if add, ok := mul.X.(*ast.Binary); !ok || add.Op != ast.OpAdd {
		t.Fatalf("expected add on the left, got %#v", mul.X)
	}
}

func TestParse_LongChainsAreIterative(t *testing.T) {
	// A flat operator chain thousands of terms long must parse within a
	// tiny budget; only nesting consumes recursion.
	src := "(a) => 1" + strings.Repeat(" + 1", 5000)
	if _, err := parser.Parse(src, nil, 1); err != nil {
		t.Fatalf("flat chain should not consume the budget: %v", err)
	}
}

func TestParse_DepthError(t *testing.T) {
	src := "(a) => " + strings.Repeat("(", 200) + "1" + strings.Repeat(")", 200)

	_, err := parser.Parse(src, nil, 1)
	var de *parser.DepthError
	if !errors.As(err, &de) {
		t.Fatalf("expected *parser.DepthError, got %v", err)
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"stray byte", "^^^"},
		{"missing arrow", "(a) a"},
		{"unterminated block", "(a) => { return a"},
		{"unterminated params", "(a, => a"},
		{"missing initialiser", "(a) => { let x }"},
		{"junk after body", "(a) => a 1"},
		{"statements on one line", "(a) => { let x = 1 return x }"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parser.Parse(tc.src, nil, 64)
			var se *parser.SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("expected *parser.SyntaxError, got %v", err)
			}
			if se.Pos.Line < 1 || se.Pos.Col < 1 {
				t.Errorf("positions are 1-based, got %d:%d", se.Pos.Line, se.Pos.Col)
			}
		})
	}
}

func TestParse_NestedFunctionCapture(t *testing.T) {
	res := parse(t, "(a) => (b) => a + b")

	if len(res.Functions) != 2 {
		t.Fatalf("expected 2 functions in the table, got %d", len(res.Functions))
	}
	inner := res.Functions[1]
	if inner.Level != 1 {
		t.Errorf("inner function level = %d, want 1", inner.Level)
	}

	a := res.Fn.Params[0]
	if !a.Captured {
		t.Error("outer parameter referenced from the inner function must be captured")
	}
	if a.Kind != ast.KindContextSlot {
		t.Errorf("captured variable kind = %s, want context", a.Kind)
	}

	b := inner.Params[0]
	if b.Captured || b.Kind != ast.KindUnallocated {
		t.Errorf("inner parameter must stay unallocated, got %s (captured=%v)", b.Kind, b.Captured)
	}
}

func TestParse_ChainResolution(t *testing.T) {
	chain := &ast.ScopeChain{Scopes: []ast.OuterScope{
		{Vars: []ast.OuterVar{{Name: "g", Slot: 0}}},
		{Vars: []ast.OuterVar{{Name: "h", Slot: 2}}},
	}}

	res, err := parser.Parse("(x) => g(h(x))", chain, 64)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	outerCall, ok := onlyReturn(t, res.Fn).(*ast.Call)
	if !ok {
		t.Fatal("expected a call")
	}
	g := outerCall.Callee.(*ast.Ident).Var
	if !g.FromChain || g.ChainIndex != 0 || g.Slot != 0 || g.Kind != ast.KindContextSlot {
		t.Errorf("g resolved wrong: %+v", g)
	}

	innerCall := outerCall.Args[0].(*ast.Call)
	h := innerCall.Callee.(*ast.Ident).Var
	if !h.FromChain || h.ChainIndex != 1 || h.Slot != 2 {
		t.Errorf("h resolved wrong: %+v", h)
	}
}

func TestParse_UnresolvedNameIsGlobal(t *testing.T) {
	res := parse(t, "(x) => { print(x)\nprint(x) }")

	var idents []*ast.Ident
	for _, st := range res.Fn.Body.Stmts {
		call := st.(*ast.ExprStmt).X.(*ast.Call)
		idents = append(idents, call.Callee.(*ast.Ident))
	}
	if idents[0].Var.Kind != ast.KindGlobal {
		t.Errorf("unresolved name kind = %s, want global", idents[0].Var.Kind)
	}
	if idents[0].Var != idents[1].Var {
		t.Error("uses of one global must share a placeholder variable")
	}
}

func TestParse_Statements(t *testing.T) {
	src := "(n) => {\n" +
		"  let s = 0\n" +
		"  for i in 0..n {\n" +
		"    s += i\n" +
		"  }\n" +
		"  if s > 10 {\n" +
		"    return s\n" +
		"  } else {\n" +
		"    return 0\n" +
		"  }\n" +
		"}"
	res := parse(t, src)

	stmts := res.Fn.Body.Stmts
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(stmts))
	}
	if _, ok := stmts[0].(*ast.Let); !ok {
		t.Errorf("expected let, got %T", stmts[0])
	}
	loop, ok := stmts[1].(*ast.ForRange)
	if !ok {
		t.Fatalf("expected for, got %T", stmts[1])
	}
	if loop.Var.Name != "i" {
		t.Errorf("loop variable = %q, want i", loop.Var.Name)
	}
	asn := loop.Body.Stmts[0].(*ast.Assign)
	if asn.Op != ast.AssignAdd {
		t.Errorf("expected +=, got %v", asn.Op)
	}
	cond, ok := stmts[2].(*ast.If)
	if !ok || cond.Else == nil {
		t.Fatalf("expected if/else, got %#v", stmts[2])
	}
}

func TestParse_StringAndBoolLiterals(t *testing.T) {
	res := parse(t, "(a) => {\n let s = \"hi\"\n return true\n}")
	let := res.Fn.Body.Stmts[0].(*ast.Let)
	if lit, ok := let.Value.(*ast.StringLit); !ok || lit.Value != "hi" {
		t.Errorf("expected string literal hi, got %#v", let.Value)
	}
	ret := res.Fn.Body.Stmts[1].(*ast.Return)
	if lit, ok := ret.Value.(*ast.BoolLit); !ok || !lit.Value {
		t.Errorf("expected true literal, got %#v", ret.Value)
	}
}
