// Package worker provides the engine's execution helpers: an Executor that
// runs compile job phases through the middleware chain, and a Pool of
// goroutines for parses that may leave the main loop.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/tidelang/tide/ext"
	"github.com/tidelang/tide/job"
	"github.com/tidelang/tide/middleware"
)

// Pipeline phase names, as seen by middleware, traces and metrics.
const (
	PhasePrepareToParse    = "prepare_to_parse"
	PhaseParse             = "parse"
	PhaseFinalizeParsing   = "finalize_parsing"
	PhasePrepareToCompile  = "prepare_to_compile"
	PhaseCompile           = "compile"
	PhaseFinalizeCompiling = "finalize_compiling"
)

// Executor runs individual job phases through the middleware chain and
// emits the parse lifecycle events. It holds no job state, so one Executor
// serves the main loop and every background parse goroutine at once.
type Executor struct {
	extensions *ext.Registry
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given middleware chain.
func NewExecutor(extensions *ext.Registry, logger *slog.Logger, mws ...middleware.Middleware) *Executor {
	return &Executor{
		extensions: extensions,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Phase runs one pipeline phase through the middleware chain. A non-nil
// error is either the phase's own failure return or a panic converted by
// the recover middleware.
func (e *Executor) Phase(ctx context.Context, j *job.Job, phase string, fn func() error) error {
	return e.mw(ctx, j, phase, func(context.Context) error {
		return fn()
	})
}

// Parse runs the parse phase, bracketed by the ParseStarted and
// ParseFinished events. The job records its own parse errors; a non-nil
// return means the phase itself faulted.
func (e *Executor) Parse(ctx context.Context, j *job.Job, background bool) error {
	e.extensions.EmitParseStarted(ctx, j, background)
	start := time.Now()

	err := e.Phase(ctx, j, PhaseParse, func() error {
		j.Parse()
		return nil
	})

	e.extensions.EmitParseFinished(ctx, j, time.Since(start))
	return err
}
