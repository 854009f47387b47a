package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tidelang/tide"
	"github.com/tidelang/tide/ast"
	"github.com/tidelang/tide/backoff"
	"github.com/tidelang/tide/cache"
	"github.com/tidelang/tide/ext"
	"github.com/tidelang/tide/job"
	mw "github.com/tidelang/tide/middleware"
	"github.com/tidelang/tide/observability"
	"github.com/tidelang/tide/queue"
	"github.com/tidelang/tide/runtime"
	"github.com/tidelang/tide/worker"
)

// Engine drives compile jobs for one runtime. Create with New, then Start;
// Enqueue hands back a Task the caller can wait on.
type Engine struct {
	rt     *runtime.Runtime
	cfg    tide.Config
	logger *slog.Logger

	extensions *ext.Registry
	pendingExt []ext.Extension
	mws        []mw.Middleware
	bo         backoff.Strategy
	store      cache.Store
	gate       *queue.Manager
	pool       *worker.Pool
	exec       *worker.Executor

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	tasks  chan *Task
	parsed chan *Task
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	stopped bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration.
func WithConfig(cfg tide.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithExtension registers an extension with the engine.
func WithExtension(x ext.Extension) Option {
	return func(e *Engine) { e.pendingExt = append(e.pendingExt, x) }
}

// WithMiddleware adds middleware to the engine's chain, after the default
// stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, m) }
}

// WithBackoff sets the retry backoff strategy for internal-error retries.
// If not set, backoff.DefaultStrategy() (exponential with jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(e *Engine) { e.bo = b }
}

// WithCache sets the compilation cache. The engine consults it before
// parsing and fills it after a successful compile. The caller owns the
// cache lifecycle.
func WithCache(s cache.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware and the observability extension. If not set, the global
// provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// New creates an Engine for rt.
func New(rt *runtime.Runtime, opts ...Option) *Engine {
	e := &Engine{
		rt:     rt,
		cfg:    tide.DefaultConfig(),
		logger: slog.Default(),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.bo == nil {
		e.bo = backoff.DefaultStrategy()
	}

	e.extensions = ext.NewRegistry(e.logger)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if e.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(e.tracerProvider.Tracer("github.com/tidelang/tide"))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if e.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(e.meterProvider.Meter("github.com/tidelang/tide"))
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension first, then the
	// caller's extensions in option order.
	var obsExt *observability.MetricsExtension
	if e.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(
			e.meterProvider.Meter("github.com/tidelang/tide/observability"))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	e.extensions.Register(obsExt)
	for _, x := range e.pendingExt {
		e.extensions.Register(x)
	}
	e.pendingExt = nil

	// Default middleware stack: recover → tracing → metrics → logging,
	// then caller middleware innermost.
	allMws := []mw.Middleware{
		mw.Recover(e.logger),
		tracingMw,
		metricsMw,
		mw.Logging(e.logger),
	}
	allMws = append(allMws, e.mws...)

	e.exec = worker.NewExecutor(e.extensions, e.logger, allMws...)
	e.gate = queue.NewManager(queue.Config{
		MaxConcurrency: e.cfg.Concurrency,
		RateLimit:      e.cfg.ParseRateLimit,
		RateBurst:      e.cfg.ParseRateBurst,
	})
	e.pool = worker.NewPool(e.logger, worker.WithPoolConcurrency(e.cfg.Concurrency))

	e.tasks = make(chan *Task, 128)
	e.parsed = make(chan *Task, e.cfg.Concurrency+1)

	return e
}

// Extensions returns the extension registry.
func (e *Engine) Extensions() *ext.Registry { return e.extensions }

// Runtime returns the engine's runtime.
func (e *Engine) Runtime() *runtime.Runtime { return e.rt }

// Gate returns the background parse admission gate.
func (e *Engine) Gate() *queue.Manager { return e.gate }

// Config returns the engine configuration.
func (e *Engine) Config() tide.Config { return e.cfg }

// Start launches the parse pool and the main loop. The main loop owns the
// runtime heap from Start until Stop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return tide.ErrEngineStopped
	}
	if e.running {
		return tide.ErrEngineRunning
	}
	if e.rt == nil {
		return tide.ErrNoRuntime
	}
	e.running = true

	e.logger.Info("engine starting",
		slog.Int("stack_limit", e.cfg.StackLimit),
		slog.Int("concurrency", e.cfg.Concurrency),
		slog.Int("max_retries", e.cfg.MaxRetries),
	)

	if err := e.pool.Start(ctx); err != nil {
		e.running = false
		return fmt.Errorf("start parse pool: %w", err)
	}

	e.wg.Add(1)
	go e.mainLoop()
	return nil
}

// Stop shuts the engine down: no new jobs are accepted, in-flight
// background parses drain, and every still-queued task fails with
// ErrEngineStopped. ShutdownTimeout bounds the wait when ctx has no
// earlier deadline.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.stopped = true
	e.mu.Unlock()

	e.logger.Info("engine stopping")
	close(e.stopCh)

	if e.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
		defer cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn("engine main loop shutdown timed out")
	}

	if err := e.pool.Stop(ctx); err != nil {
		e.logger.Warn("parse pool stop", slog.String("error", err.Error()))
	}

	// Retry timers (counted in e.wg) and the pool are drained, so nothing
	// feeds these channels anymore.
	e.drainChannels()

	e.extensions.EmitShutdown(ctx)
	e.logger.Info("engine stopped")
	return nil
}

// Enqueue creates a compile job for fn and queues it. The returned Task
// completes when the job reaches done or failed.
func (e *Engine) Enqueue(ctx context.Context, fn *runtime.Function) (*Task, error) {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if !running {
		return nil, tide.ErrEngineStopped
	}

	j := job.New(e.rt, fn, e.cfg.StackLimit, job.WithLogger(e.logger))
	t := newTask(j)

	e.extensions.EmitJobQueued(ctx, j)

	select {
	case e.tasks <- t:
		return t, nil
	case <-e.stopCh:
		return nil, tide.ErrEngineStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// mainLoop is the single goroutine that owns the runtime heap.
func (e *Engine) mainLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopCh:
			return
		case t := <-e.tasks:
			e.begin(t)
		case t := <-e.parsed:
			e.finish(t)
		}
	}
}

// begin takes a queued task through the cache check, parse preparation and
// the parse itself, dispatching the parse to the pool when permitted.
func (e *Engine) begin(t *Task) {
	ctx := context.Background()
	j := t.job

	if e.store != nil && t.attempt == 0 && e.tryCache(ctx, t) {
		return
	}

	if err := e.exec.Phase(ctx, j, worker.PhasePrepareToParse, func() error {
		j.PrepareToParse()
		return nil
	}); err != nil {
		e.retryOrFail(t, faultFailure(err))
		return
	}

	if j.CanParseOnBackgroundThread() && e.gate.Acquire() {
		submitted := e.pool.Submit(func() {
			defer e.gate.Release()
			t.phaseErr = e.exec.Parse(ctx, j, true)
			select {
			case e.parsed <- t:
			case <-e.stopCh:
				t.fail(tide.ErrEngineStopped)
			}
		})
		if submitted {
			return
		}
		e.gate.Release()
	}

	t.phaseErr = e.exec.Parse(ctx, j, false)
	e.finish(t)
}

// finish drives a parsed job through the heap-touching phases. Main loop
// only.
func (e *Engine) finish(t *Task) {
	ctx := context.Background()
	j := t.job

	if t.phaseErr != nil {
		err := t.phaseErr
		t.phaseErr = nil
		e.retryOrFail(t, faultFailure(err))
		return
	}

	if err := e.exec.Phase(ctx, j, worker.PhaseFinalizeParsing, j.FinalizeParsing); err != nil {
		e.jobFailed(t, err)
		return
	}
	if err := e.exec.Phase(ctx, j, worker.PhasePrepareToCompile, j.PrepareToCompile); err != nil {
		e.jobFailed(t, err)
		return
	}
	if err := e.exec.Phase(ctx, j, worker.PhaseCompile, func() error {
		j.Compile()
		return nil
	}); err != nil {
		e.retryOrFail(t, faultFailure(err))
		return
	}
	if err := e.exec.Phase(ctx, j, worker.PhaseFinalizeCompiling, j.FinalizeCompiling); err != nil {
		e.jobFailed(t, err)
		return
	}

	art := j.Artifact()
	if e.store != nil {
		key := cache.KeyFor(j.Function().Source(), e.cfg.StackLimit)
		if err := e.store.Put(ctx, key, art); err != nil {
			e.logger.Warn("cache put failed",
				slog.String("job_id", j.ID().String()),
				slog.String("error", err.Error()),
			)
		}
	}

	e.extensions.EmitJobCompiled(ctx, j, time.Since(t.start))
	t.complete(art)
}

// tryCache completes the task from the cache when possible. Reports
// whether the task was completed.
func (e *Engine) tryCache(ctx context.Context, t *Task) bool {
	j := t.job
	key := cache.KeyFor(j.Function().Source(), e.cfg.StackLimit)

	art, err := e.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, tide.ErrArtifactNotFound) {
			e.logger.Warn("cache lookup failed",
				slog.String("job_id", j.ID().String()),
				slog.String("error", err.Error()),
			)
		}
		return false
	}

	e.extensions.EmitCacheHit(ctx, j)
	j.Function().Install(art)
	e.extensions.EmitJobCompiled(ctx, j, time.Since(t.start))
	t.complete(art)
	return true
}

// jobFailed handles a phase that reported an error: source failures are
// terminal, internal faults go through the retry path.
func (e *Engine) jobFailed(t *Task, err error) {
	f := t.job.Failure()
	if f == nil {
		f = faultFailure(err)
	}
	e.retryOrFail(t, f)
}

// retryOrFail retries internal failures with backoff, up to MaxRetries;
// everything else, and an exhausted budget, ends the task. Main loop only:
// the retry path resets heap state.
func (e *Engine) retryOrFail(t *Task, f *job.Failure) {
	ctx := context.Background()

	if f.Kind == job.InternalError && t.attempt < e.cfg.MaxRetries {
		t.attempt++
		delay := e.bo.Delay(t.attempt)
		e.extensions.EmitJobRetrying(ctx, t.job, t.attempt, delay)

		// A failed finalise may have raised; the retry withdraws it.
		e.rt.ClearPending()
		t.job.Reset()

		e.logger.Info("job retry scheduled",
			slog.String("job_id", t.job.ID().String()),
			slog.Int("attempt", t.attempt),
			slog.Int("max_retries", e.cfg.MaxRetries),
			slog.Duration("delay", delay),
		)

		// The callback joins e.wg so Stop waits for it before draining;
		// otherwise a send racing the closed stopCh could strand the task
		// in a channel nothing reads anymore.
		e.wg.Add(1)
		time.AfterFunc(delay, func() {
			defer e.wg.Done()
			select {
			case <-e.stopCh:
				t.fail(tide.ErrEngineStopped)
				return
			default:
			}
			select {
			case e.tasks <- t:
			case <-e.stopCh:
				t.fail(tide.ErrEngineStopped)
			}
		})
		return
	}

	e.extensions.EmitJobFailed(ctx, t.job, f)
	e.logger.Warn("job failed",
		slog.String("job_id", t.job.ID().String()),
		slog.String("kind", f.Kind.String()),
		slog.String("error", f.Msg),
	)

	var err error = f
	if f.Kind == job.InternalError && t.attempt >= e.cfg.MaxRetries && t.attempt > 0 {
		err = fmt.Errorf("%w: %s", tide.ErrRetriesExceeded, f.Msg)
	}
	t.fail(err)
}

// drainChannels fails every task still queued at shutdown.
func (e *Engine) drainChannels() {
	for {
		select {
		case t := <-e.tasks:
			t.fail(tide.ErrEngineStopped)
		case t := <-e.parsed:
			t.fail(tide.ErrEngineStopped)
		default:
			return
		}
	}
}

// faultFailure wraps a phase fault (a recovered panic) as an internal
// failure so it shares the retry path.
func faultFailure(err error) *job.Failure {
	return &job.Failure{Kind: job.InternalError, Msg: err.Error(), Pos: ast.Position{}}
}
