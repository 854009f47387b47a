package engine

import (
	"context"
	"sync"
	"time"

	"github.com/tidelang/tide/compiler"
	"github.com/tidelang/tide/id"
	"github.com/tidelang/tide/job"
)

// Task is the caller's handle on an enqueued compile. The engine completes
// it exactly once, with either the compiled artifact or the failure.
type Task struct {
	id      id.TaskID
	job     *job.Job
	start   time.Time
	attempt int

	// phaseErr carries a phase fault (a recovered panic) from a background
	// parse back to the main loop.
	phaseErr error

	once     sync.Once
	done     chan struct{}
	artifact *compiler.Artifact
	err      error
}

func newTask(j *job.Job) *Task {
	return &Task{id: id.NewTaskID(), job: j, start: time.Now(), done: make(chan struct{})}
}

// ID returns the task's identity.
func (t *Task) ID() id.TaskID { return t.id }

// Job returns the underlying compile job.
func (t *Task) Job() *job.Job { return t.job }

// Wait blocks until the task completes or the context expires, returning
// the compiled artifact or the failure that ended the job.
func (t *Task) Wait(ctx context.Context) (*compiler.Artifact, error) {
	select {
	case <-t.done:
		return t.artifact, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed when the task completes.
func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) complete(art *compiler.Artifact) {
	t.once.Do(func() {
		t.artifact = art
		close(t.done)
	})
}

func (t *Task) fail(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}
