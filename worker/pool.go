package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tidelang/tide/id"
)

// Task is one unit of background work, typically a closure that parses a
// job off the main loop and hands the result back to it.
type Task func()

// Pool manages a fixed set of goroutines that execute submitted tasks.
// It never touches the runtime heap; the closures it runs are constrained
// to background-safe work by their construction.
type Pool struct {
	concurrency int
	queueDepth  int
	workerID    id.WorkerID
	logger      *slog.Logger

	tasks  chan Task
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithQueueDepth sets the task queue buffer size. A full queue makes
// Submit refuse, pushing the work back onto the caller.
func WithQueueDepth(n int) PoolOption {
	return func(p *Pool) { p.queueDepth = n }
}

// NewPool creates a worker pool.
func NewPool(logger *slog.Logger, opts ...PoolOption) *Pool {
	p := &Pool{
		concurrency: 4,
		queueDepth:  64,
		workerID:    id.NewWorkerID(),
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.tasks = make(chan Task, p.queueDepth)
	return p
}

// WorkerID returns the pool's unique identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Debug("parse pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.run()
	}
	return nil
}

// Submit offers a task to the pool. It reports false when the pool is not
// running or its queue is full; the caller then runs the work inline.
func (p *Pool) Submit(t Task) bool {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return false
	}

	select {
	case p.tasks <- t:
		return true
	default:
		return false
	}
}

// Stop signals the workers to finish queued tasks and waits for them. If
// the context expires first, Stop returns while workers drain in the
// background.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Debug("parse pool stopped")
	case <-ctx.Done():
		p.logger.Warn("parse pool shutdown timed out")
		return ctx.Err()
	}
	return nil
}

// run is one worker goroutine. After stop it drains the queue so no
// accepted task is abandoned.
func (p *Pool) run() {
	defer p.wg.Done()

	for {
		select {
		case t := <-p.tasks:
			t()
		case <-p.stopCh:
			for {
				select {
				case t := <-p.tasks:
					t()
				default:
					return
				}
			}
		}
	}
}
