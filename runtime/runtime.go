// Package runtime is the Tide execution heap: scripts, function handles,
// globals, the runtime scope chain and the bytecode interpreter.
//
// A Runtime is confined to one owner goroutine, by convention the engine's
// main loop. Nothing in this package locks; the only pieces background
// goroutines may touch are the immutable snapshots handed out explicitly,
// a Function's ScopeSnapshot and its script's source resource.
package runtime

import (
	"fmt"
	"log/slog"

	"github.com/tidelang/tide"
	"github.com/tidelang/tide/ast"
	"github.com/tidelang/tide/compiler"
	"github.com/tidelang/tide/id"
	"github.com/tidelang/tide/source"
)

// Exception is an error raised into the runtime. It stays pending on the
// Runtime until inspected and cleared by the owner.
type Exception struct {
	Msg string
	Pos ast.Position
}

// Error implements error.
func (e *Exception) Error() string {
	return fmt.Sprintf("%s at %d:%d", e.Msg, e.Pos.Line, e.Pos.Col)
}

// Runtime owns the global table and the pending-exception slot.
type Runtime struct {
	log     *slog.Logger
	globals map[string]Value
	pending *Exception
}

// New creates an empty runtime. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Runtime {
	if log == nil {
		log = slog.Default()
	}
	return &Runtime{log: log, globals: make(map[string]Value)}
}

// SetGlobal binds a global by name.
func (r *Runtime) SetGlobal(name string, v Value) { r.globals[name] = v }

// Global looks up a global by name.
func (r *Runtime) Global(name string) (Value, bool) {
	v, ok := r.globals[name]
	return v, ok
}

// Raise records ex as the pending exception. A later Raise overwrites an
// earlier one; the owner is expected to inspect between failures.
func (r *Runtime) Raise(ex *Exception) {
	r.log.Debug("exception raised", "msg", ex.Msg, "line", ex.Pos.Line, "col", ex.Pos.Col)
	r.pending = ex
}

// HasPending reports whether an exception is pending.
func (r *Runtime) HasPending() bool { return r.pending != nil }

// Pending returns the pending exception, or nil.
func (r *Runtime) Pending() *Exception { return r.pending }

// ClearPending drops the pending exception.
func (r *Runtime) ClearPending() { r.pending = nil }

// ──────────────────────────────────────────────────
// Scripts and functions
// ──────────────────────────────────────────────────

// Script pairs an identity with the source resource it was created from.
type Script struct {
	ID       id.ScriptID
	Resource *source.Resource
}

// NewScript registers a source resource as a script.
func (r *Runtime) NewScript(res *source.Resource) *Script {
	return &Script{ID: id.NewScriptID(), Resource: res}
}

// Function is a compilation unit: a function literal inside a script,
// identified by its byte span, plus the scope chain it closes over and,
// once compiled, its installed artifact.
type Function struct {
	ID     id.FunctionID
	Name   string
	Script *Script

	// Start and End delimit the literal within the script source.
	// End == 0 means the whole script.
	Start, End int

	outer    *HeapScope
	artifact *compiler.Artifact
}

// NewFunction creates a function handle over a span of script, closing
// over outer (which may be nil for a top-level function).
func (r *Runtime) NewFunction(script *Script, name string, start, end int, outer *HeapScope) *Function {
	return &Function{
		ID:     id.NewFunctionID(),
		Name:   name,
		Script: script,
		Start:  start,
		End:    end,
		outer:  outer,
	}
}

// Source returns the function literal's text.
func (f *Function) Source() string {
	text := f.Script.Resource.Text()
	if f.End > f.Start {
		return text[f.Start:f.End]
	}
	return text
}

// ScopeSnapshot captures the function's enclosing scope chain as an
// immutable value safe to hand to a background parse.
func (f *Function) ScopeSnapshot() *ast.ScopeChain {
	return f.outer.Snapshot()
}

// Install binds a compiled artifact to the function. Reinstall replaces.
func (f *Function) Install(art *compiler.Artifact) { f.artifact = art }

// Artifact returns the installed artifact, or nil before compilation.
func (f *Function) Artifact() *compiler.Artifact { return f.artifact }

// IsCompiled reports whether an artifact is installed.
func (f *Function) IsCompiled() bool { return f.artifact != nil }

// FunctionValue wraps a compiled function handle as a callable value, so
// an embedder can bind compiled units into the global table.
func FunctionValue(f *Function) (Value, error) {
	if f.artifact == nil {
		return Undefined(), fmt.Errorf("%w: %s", tide.ErrNotCompiled, f.ID)
	}
	var outer *Context
	if f.outer != nil {
		outer = f.outer.ctx
	}
	return closureValue(&Closure{Fn: f.artifact.Root(), Art: f.artifact, Ctx: outer}), nil
}

// ──────────────────────────────────────────────────
// Runtime scope chain
// ──────────────────────────────────────────────────

// HeapScope is one live lexical scope on the runtime heap: named slots
// backed by a Context link, chained to its enclosing scope.
type HeapScope struct {
	parent *HeapScope
	names  []string
	ctx    *Context
}

// NewHeapScope creates a scope with the given slot names nested in parent
// (parent may be nil).
func NewHeapScope(parent *HeapScope, names ...string) *HeapScope {
	var pctx *Context
	if parent != nil {
		pctx = parent.ctx
	}
	return &HeapScope{
		parent: parent,
		names:  names,
		ctx:    &Context{parent: pctx, slots: make([]Value, len(names))},
	}
}

// Set writes the named slot. It reports whether the name exists in this
// scope (parents are not searched; a scope owns exactly its own slots).
func (h *HeapScope) Set(name string, v Value) bool {
	for i, n := range h.names {
		if n == name {
			h.ctx.slots[i] = v
			return true
		}
	}
	return false
}

// Get reads the named slot from this scope.
func (h *HeapScope) Get(name string) (Value, bool) {
	for i, n := range h.names {
		if n == name {
			return h.ctx.slots[i], true
		}
	}
	return Undefined(), false
}

// Snapshot flattens the chain into an immutable name-to-slot view,
// innermost scope first. Safe to build only on the owner goroutine; safe
// to read from anywhere afterwards.
func (h *HeapScope) Snapshot() *ast.ScopeChain {
	chain := &ast.ScopeChain{}
	for sc := h; sc != nil; sc = sc.parent {
		outer := ast.OuterScope{Vars: make([]ast.OuterVar, len(sc.names))}
		for i, n := range sc.names {
			outer.Vars[i] = ast.OuterVar{Name: n, Slot: i}
		}
		chain.Scopes = append(chain.Scopes, outer)
	}
	return chain
}
