// Package middleware provides composable middleware around compile job
// phases. Middleware wraps phase execution synchronously and can modify it
// (recover from panics, log, add tracing, record metrics, etc.).
package middleware

import (
	"context"

	"github.com/tidelang/tide/job"
)

// Handler is the terminal function that executes one pipeline phase.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the job being driven, the phase name (for example
// "parse" or "finalize_compiling"), and the next handler to call.
// Middleware MUST call next to continue the chain (unless
// short-circuiting on error).
type Middleware func(ctx context.Context, j *job.Job, phase string, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, metrics) executes as:
//
//	logging → recover → metrics → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, phase string, next Handler) error {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, j, phase, prev)
			}
		}
		return h(ctx)
	}
}
