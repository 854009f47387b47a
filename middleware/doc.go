// Package middleware provides composable middleware around compile job
// phases.
//
// A [Middleware] is a function that wraps a phase handler. Middleware are
// composed into a chain using [Chain] and applied around each pipeline
// phase the engine drives. They are applied right-to-left: the first
// middleware in the slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] — logs phase, duration, and outcome at each execution
//   - [Recover] — catches panics and converts them to errors
//   - [Tracing] — wraps each phase in an OpenTelemetry span
//   - [Metrics] — records per-phase duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, j *job.Job, phase string, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., circuit breaker, rate limiting).
package middleware
