package grading

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pencilops/gradeflow/internal/grader"
)

// UpdateFunc observes task transitions. The dispatcher calls it with a copy
// of the task after every status change, so observers never race the pool.
type UpdateFunc func(task Task)

// Dispatcher runs grading tasks across a bounded worker pool. Tasks are
// submitted in order; completion order depends on per-task latency.
type Dispatcher struct {
	capability grader.Capability
	cfg        Config
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher backed by the given grading capability.
func NewDispatcher(capability grader.Capability, cfg Config, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		capability: capability,
		cfg:        cfg,
		logger:     logger.With("system", "grading"),
	}
}

// Dispatch grades every task against slice using at most PoolSize concurrent
// workers. Each task gets MaxRetries+1 attempts with a per-attempt timeout;
// a task that exhausts its attempts is marked failed without aborting its
// siblings. The returned slice preserves submission order. Dispatch returns
// ctx.Err when cancelled; tasks not yet submitted stay queued.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks []Task, slice grader.RubricSlice, onUpdate UpdateFunc) ([]Task, error) {
	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}

	results := make([]Task, len(tasks))
	copy(results, tasks)

	var mu sync.Mutex
	notify := func(i int, mutate func(*Task)) {
		mu.Lock()
		mutate(&results[i])
		snapshot := results[i]
		mu.Unlock()
		if onUpdate != nil {
			onUpdate(snapshot)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.PoolSize)

	for i, task := range tasks {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			notify(i, func(t *Task) { t.Status = TaskRunning })

			result, attempts, err := d.grade(gctx, task, slice)

			notify(i, func(t *Task) {
				t.Attempts = attempts
				if err != nil {
					t.Status = TaskFailed
					t.Err = err.Error()
				} else {
					t.Status = TaskDone
					t.Result = result
				}
			})

			if err != nil {
				d.logger.WarnContext(gctx, "task failed",
					"task", task.ID,
					"student", task.Student,
					"attempts", attempts,
					"error", err,
				)
			}
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("grading dispatch: %w", err)
	}
	return results, nil
}

// grade runs up to MaxRetries+1 attempts, each under its own timeout. A
// failed attempt retries immediately; only cancellation stops the loop early.
func (d *Dispatcher) grade(ctx context.Context, task Task, slice grader.RubricSlice) (*grader.Result, int, error) {
	var lastErr error

	attempts := 0
	for attempts <= d.cfg.MaxRetries {
		if ctx.Err() != nil {
			return nil, attempts, ctx.Err()
		}
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.TaskTimeout)
		result, err := d.capability.Grade(attemptCtx, task.Pages, slice)
		cancel()

		if err == nil {
			return result, attempts, nil
		}
		lastErr = err
	}

	return nil, attempts, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempts, lastErr)
}

// FailedTasks filters the terminal task list down to failures.
func FailedTasks(tasks []Task) []Task {
	var failed []Task
	for _, t := range tasks {
		if t.Status == TaskFailed {
			failed = append(failed, t)
		}
	}
	return failed
}
