package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/tidelang/tide/job"
	"github.com/tidelang/tide/middleware"
	"github.com/tidelang/tide/runtime"
	"github.com/tidelang/tide/source"
)

func newTestJob() *job.Job {
	rt := runtime.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	script := rt.NewScript(source.FromText("(a) => a"))
	fn := rt.NewFunction(script, "f", 0, 0, nil)
	return job.New(rt, fn, 64)
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ *job.Job, _ string, next middleware.Handler) error {
		order = append(order, "mw1-before")
		err := next(ctx)
		order = append(order, "mw1-after")
		return err
	}

	mw2 := func(ctx context.Context, _ *job.Job, _ string, next middleware.Handler) error {
		order = append(order, "mw2-before")
		err := next(ctx)
		order = append(order, "mw2-after")
		return err
	}

	chain := middleware.Chain(mw1, mw2)
	handler := func(_ context.Context) error {
		order = append(order, "handler")
		return nil
	}

	err := chain(context.Background(), newTestJob(), "parse", handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	handler := func(_ context.Context) error {
		called = true
		return nil
	}

	err := chain(context.Background(), newTestJob(), "compile", handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	mw := func(ctx context.Context, _ *job.Job, _ string, next middleware.Handler) error {
		return next(ctx)
	}
	chain := middleware.Chain(mw)
	want := errors.New("handler error")

	err := chain(context.Background(), newTestJob(), "compile", func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestChain_SeesPhase(t *testing.T) {
	var seen string
	mw := func(ctx context.Context, _ *job.Job, phase string, next middleware.Handler) error {
		seen = phase
		return next(ctx)
	}
	chain := middleware.Chain(mw)

	_ = chain(context.Background(), newTestJob(), "finalize_parsing", func(_ context.Context) error {
		return nil
	})
	if seen != "finalize_parsing" {
		t.Fatalf("phase = %q, want finalize_parsing", seen)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := middleware.Recover(logger)
	j := newTestJob()

	err := mw(context.Background(), j, "parse", func(_ context.Context) error {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	if !strings.Contains(err.Error(), "test panic") || !strings.Contains(err.Error(), "parse") {
		t.Errorf("unexpected error message: %q", err)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := middleware.Recover(logger)

	called := false
	err := mw(context.Background(), newTestJob(), "compile", func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestLogging_Success(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := middleware.Logging(logger)

	called := false
	err := mw(context.Background(), newTestJob(), "parse", func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestLogging_Error(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := middleware.Logging(logger)
	want := errors.New("fail")

	err := mw(context.Background(), newTestJob(), "finalize_compiling", func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
