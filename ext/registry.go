package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/tidelang/tide/job"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobQueuedEntry struct {
	name string
	hook JobQueued
}

type parseStartedEntry struct {
	name string
	hook ParseStarted
}

type parseFinishedEntry struct {
	name string
	hook ParseFinished
}

type jobCompiledEntry struct {
	name string
	hook JobCompiled
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type jobRetryingEntry struct {
	name string
	hook JobRetrying
}

type cacheHitEntry struct {
	name string
	hook CacheHit
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	jobQueued     []jobQueuedEntry
	parseStarted  []parseStartedEntry
	parseFinished []parseFinishedEntry
	jobCompiled   []jobCompiledEntry
	jobFailed     []jobFailedEntry
	jobRetrying   []jobRetryingEntry
	cacheHit      []cacheHitEntry
	shutdown      []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobQueued); ok {
		r.jobQueued = append(r.jobQueued, jobQueuedEntry{name, h})
	}
	if h, ok := e.(ParseStarted); ok {
		r.parseStarted = append(r.parseStarted, parseStartedEntry{name, h})
	}
	if h, ok := e.(ParseFinished); ok {
		r.parseFinished = append(r.parseFinished, parseFinishedEntry{name, h})
	}
	if h, ok := e.(JobCompiled); ok {
		r.jobCompiled = append(r.jobCompiled, jobCompiledEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(JobRetrying); ok {
		r.jobRetrying = append(r.jobRetrying, jobRetryingEntry{name, h})
	}
	if h, ok := e.(CacheHit); ok {
		r.cacheHit = append(r.cacheHit, cacheHitEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitJobQueued notifies all extensions that implement JobQueued.
func (r *Registry) EmitJobQueued(ctx context.Context, j *job.Job) {
	for _, e := range r.jobQueued {
		if err := e.hook.OnJobQueued(ctx, j); err != nil {
			r.logHookError("OnJobQueued", e.name, err)
		}
	}
}

// EmitParseStarted notifies all extensions that implement ParseStarted.
func (r *Registry) EmitParseStarted(ctx context.Context, j *job.Job, background bool) {
	for _, e := range r.parseStarted {
		if err := e.hook.OnParseStarted(ctx, j, background); err != nil {
			r.logHookError("OnParseStarted", e.name, err)
		}
	}
}

// EmitParseFinished notifies all extensions that implement ParseFinished.
func (r *Registry) EmitParseFinished(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.parseFinished {
		if err := e.hook.OnParseFinished(ctx, j, elapsed); err != nil {
			r.logHookError("OnParseFinished", e.name, err)
		}
	}
}

// EmitJobCompiled notifies all extensions that implement JobCompiled.
func (r *Registry) EmitJobCompiled(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.jobCompiled {
		if err := e.hook.OnJobCompiled(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobCompiled", e.name, err)
		}
	}
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, failure *job.Failure) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, j, failure); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitJobRetrying notifies all extensions that implement JobRetrying.
func (r *Registry) EmitJobRetrying(ctx context.Context, j *job.Job, attempt int, delay time.Duration) {
	for _, e := range r.jobRetrying {
		if err := e.hook.OnJobRetrying(ctx, j, attempt, delay); err != nil {
			r.logHookError("OnJobRetrying", e.name, err)
		}
	}
}

// EmitCacheHit notifies all extensions that implement CacheHit.
func (r *Registry) EmitCacheHit(ctx context.Context, j *job.Job) {
	for _, e := range r.cacheHit {
		if err := e.hook.OnCacheHit(ctx, j); err != nil {
			r.logHookError("OnCacheHit", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
