// Package ext defines the extension system for the Tide compile engine.
// Extensions are notified of pipeline lifecycle events (job queued, parse
// started, job compiled, job failed, etc.) and can react to them —
// logging, metrics, tracing, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/tidelang/tide/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// JobQueued is called after a compile job is accepted by the engine.
type JobQueued interface {
	OnJobQueued(ctx context.Context, j *job.Job) error
}

// ParseStarted is called when a job's parse step begins. background
// reports whether the parse runs off the main loop.
type ParseStarted interface {
	OnParseStarted(ctx context.Context, j *job.Job, background bool) error
}

// ParseFinished is called when a job's parse step completes, successfully
// or not; the outcome is not surfaced until finalisation.
type ParseFinished interface {
	OnParseFinished(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobCompiled is called after a job reaches done and its artifact is
// installed.
type JobCompiled interface {
	OnJobCompiled(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job fails terminally (no more retries).
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, failure *job.Failure) error
}

// JobRetrying is called when a job fails with an internal error and is
// scheduled for another attempt.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *job.Job, attempt int, delay time.Duration) error
}

// CacheHit is called when a queued unit is satisfied from the compilation
// cache without running the pipeline.
type CacheHit interface {
	OnCacheHit(ctx context.Context, j *job.Job) error
}

// Shutdown is called during graceful engine shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
