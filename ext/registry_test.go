package ext_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tidelang/tide/ext"
	"github.com/tidelang/tide/job"
	"github.com/tidelang/tide/runtime"
	"github.com/tidelang/tide/source"
)

func newTestJob() *job.Job {
	rt := runtime.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	script := rt.NewScript(source.FromText("(a) => a"))
	fn := rt.NewFunction(script, "f", 0, 0, nil)
	return job.New(rt, fn, 64)
}

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnJobQueued(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobQueued")
	return nil
}

func (e *allHooksExt) OnParseStarted(_ context.Context, _ *job.Job, _ bool) error {
	e.calls = append(e.calls, "OnParseStarted")
	return nil
}

func (e *allHooksExt) OnParseFinished(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnParseFinished")
	return nil
}

func (e *allHooksExt) OnJobCompiled(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobCompiled")
	return nil
}

func (e *allHooksExt) OnJobFailed(_ context.Context, _ *job.Job, _ *job.Failure) error {
	e.calls = append(e.calls, "OnJobFailed")
	return nil
}

func (e *allHooksExt) OnJobRetrying(_ context.Context, _ *job.Job, _ int, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobRetrying")
	return nil
}

func (e *allHooksExt) OnCacheHit(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnCacheHit")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// queueOnlyExt only implements the queue hook.
type queueOnlyExt struct {
	calls []string
}

func (e *queueOnlyExt) Name() string { return "queue-only" }

func (e *queueOnlyExt) OnJobQueued(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobQueued")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnJobQueued(_ context.Context, _ *job.Job) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	qo := &queueOnlyExt{}
	r.Register(all)
	r.Register(qo)

	ctx := context.Background()
	j := newTestJob()

	// Both implement OnJobQueued → both called.
	r.EmitJobQueued(ctx, j)
	if len(all.calls) != 1 || all.calls[0] != "OnJobQueued" {
		t.Fatalf("all: expected [OnJobQueued], got %v", all.calls)
	}
	if len(qo.calls) != 1 || qo.calls[0] != "OnJobQueued" {
		t.Fatalf("qo: expected [OnJobQueued], got %v", qo.calls)
	}

	// Only all implements OnParseStarted → qo not called.
	r.EmitParseStarted(ctx, j, false)
	if len(all.calls) != 2 || all.calls[1] != "OnParseStarted" {
		t.Fatalf("all: expected OnParseStarted as 2nd, got %v", all.calls)
	}
	if len(qo.calls) != 1 {
		t.Fatalf("qo: should still have 1 call, got %v", qo.calls)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	j := newTestJob()

	r.EmitJobQueued(ctx, j)
	r.EmitParseStarted(ctx, j, true)
	r.EmitParseFinished(ctx, j, time.Millisecond)
	r.EmitJobCompiled(ctx, j, time.Millisecond)
	r.EmitJobFailed(ctx, j, &job.Failure{Kind: job.InternalError, Msg: "x"})
	r.EmitJobRetrying(ctx, j, 1, time.Millisecond)
	r.EmitCacheHit(ctx, j)
	r.EmitShutdown(ctx)

	expected := []string{
		"OnJobQueued", "OnParseStarted", "OnParseFinished", "OnJobCompiled",
		"OnJobFailed", "OnJobRetrying", "OnCacheHit", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	failing := &failingExt{}
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(failing)
	r.Register(all)

	r.EmitJobQueued(context.Background(), newTestJob())

	if len(all.calls) != 1 || all.calls[0] != "OnJobQueued" {
		t.Fatalf("all: expected [OnJobQueued] despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ctx := context.Background()
	j := newTestJob()

	// None of these should panic or error.
	r.EmitJobQueued(ctx, j)
	r.EmitParseStarted(ctx, j, false)
	r.EmitParseFinished(ctx, j, time.Second)
	r.EmitJobCompiled(ctx, j, time.Second)
	r.EmitJobFailed(ctx, j, &job.Failure{})
	r.EmitJobRetrying(ctx, j, 1, time.Second)
	r.EmitCacheHit(ctx, j)
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ext1 := &allHooksExt{}
	ext2 := &allHooksExt{}
	r.Register(ext1)
	r.Register(ext2)

	r.EmitJobQueued(context.Background(), newTestJob())

	if len(ext1.calls) != 1 {
		t.Errorf("ext1: expected 1 call, got %d", len(ext1.calls))
	}
	if len(ext2.calls) != 1 {
		t.Errorf("ext2: expected 1 call, got %d", len(ext2.calls))
	}
}
