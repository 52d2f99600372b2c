// Package jobs runs fire-and-forget background work identified by job ids.
// Callers submit a function, receive an id immediately, and poll status or
// results at any time afterwards. There is no cancel API; a job either
// completes or records its failure.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"copydesk/internal/logging"
)

// Status is the pollable lifecycle of a submitted job.
type Status string

const (
	StatusNotFound   Status = "JOBNOTFOUND"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Fn is the unit of background work. The returned payload becomes the job
// result available through Result.
type Fn func(ctx context.Context) (any, error)

type job struct {
	id        string
	kind      string
	status    Status
	result    any
	err       error
	submitted time.Time
	finished  time.Time
}

// Runner executes submitted jobs on background goroutines and retains
// finished jobs for status polling, pruning the oldest beyond the retention
// limit.
type Runner struct {
	logger    *slog.Logger
	retention int

	mu    sync.Mutex
	jobs  map[string]*job
	order []string
	wg    sync.WaitGroup
}

// NewRunner constructs a runner retaining up to retention finished jobs.
func NewRunner(logger *slog.Logger, retention int) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if retention <= 0 {
		retention = 100
	}
	return &Runner{
		logger:    logger.With(logging.String(logging.FieldComponent, "job-runner")),
		retention: retention,
		jobs:      make(map[string]*job),
	}
}

// Submit schedules fn on a background goroutine and returns its job id. The
// job outlives the caller's context; cancellation of ctx does not cancel it.
func (r *Runner) Submit(ctx context.Context, kind string, fn Fn) string {
	id := uuid.NewString()
	j := &job{id: id, kind: kind, status: StatusProcessing, submitted: time.Now().UTC()}

	r.mu.Lock()
	r.jobs[id] = j
	r.order = append(r.order, id)
	r.prune()
	r.mu.Unlock()

	jobCtx := context.WithoutCancel(ctx)
	logger := r.logger.With(logging.String(logging.FieldJobID, id), logging.String("kind", kind))
	logger.Info("job submitted")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		result, err := fn(jobCtx)

		r.mu.Lock()
		j.finished = time.Now().UTC()
		j.result = result
		if err != nil {
			j.status = StatusFailed
			j.err = err
		} else {
			j.status = StatusCompleted
		}
		r.mu.Unlock()

		if err != nil {
			logger.Error("job failed", logging.Error(err), logging.Duration("elapsed", j.finished.Sub(j.submitted)))
			return
		}
		logger.Info("job completed", logging.Duration("elapsed", j.finished.Sub(j.submitted)))
	}()
	return id
}

// Status reports the job's current status, or StatusNotFound for unknown or
// pruned ids.
func (r *Runner) Status(id string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return StatusNotFound
	}
	return j.status
}

// Result returns the job's result payload and error once finished. The
// second return is false while the job is still processing or unknown.
func (r *Runner) Result(id string) (any, error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.status == StatusProcessing {
		return nil, nil, false
	}
	return j.result, j.err, true
}

// Wait blocks until all submitted jobs finish. Intended for shutdown and
// tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// prune drops the oldest finished jobs beyond the retention limit. Callers
// hold r.mu.
func (r *Runner) prune() {
	if len(r.order) <= r.retention {
		return
	}
	kept := make([]string, 0, len(r.order))
	excess := len(r.order) - r.retention
	for _, id := range r.order {
		j := r.jobs[id]
		if excess > 0 && j != nil && j.status != StatusProcessing {
			delete(r.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}
