package export

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/realexport/realexport/internal/models"
)

// State is the terminal state of a finished export run.
type State int

const (
	StateCompleted State = iota
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome reports how a run ended. ItemsCompleted counts units finished
// before the run stopped; output already written stays on disk.
type Outcome struct {
	State          State
	ItemsCompleted int
	Err            error
}

// Job is a running export that can be cancelled and waited on.
type Job struct {
	cancel  context.CancelFunc
	done    chan struct{}
	items   atomic.Int64
	outcome Outcome
}

// Start launches an export run in the background. The supplied progress
// callback is invoked from the run's goroutine.
func (e *Exporter) Start(
	ctx context.Context,
	data *models.Export,
	opts models.ExportOptions,
	progress ProgressFunc,
) *Job {
	runCtx, cancel := context.WithCancel(ctx)
	job := &Job{cancel: cancel, done: make(chan struct{})}

	wrapped := func(p models.ExportProgress) {
		job.items.Store(int64(p.Current))
		if progress != nil {
			progress(p)
		}
	}

	go func() {
		defer close(job.done)
		defer cancel()

		err := e.Export(runCtx, data, opts, wrapped)
		completed := int(job.items.Load())

		switch {
		case err == nil:
			job.outcome = Outcome{State: StateCompleted, ItemsCompleted: completed}
		case errors.Is(err, context.Canceled):
			job.outcome = Outcome{State: StateCancelled, ItemsCompleted: completed}
		default:
			job.outcome = Outcome{State: StateFailed, ItemsCompleted: completed, Err: err}
		}
	}()

	return job
}

// Cancel requests a stop; the run finishes its current unit first.
func (j *Job) Cancel() {
	j.cancel()
}

// Wait blocks until the run reaches a terminal state.
func (j *Job) Wait() Outcome {
	<-j.done
	return j.outcome
}
