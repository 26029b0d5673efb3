package campaign

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/log"
	"github.com/felixgeelhaar/sweep/internal/process"
)

// TaskSummary counts the outcome of a task list. Executed == Succeeded + Failed.
type TaskSummary struct {
	Executed  int
	Succeeded int
	Failed    int
	Errors    []string
	Warnings  []string
}

// CriticalTaskError aborts a task list after a critical task failed
type CriticalTaskError struct {
	TaskID string
	Err    error
}

func (e *CriticalTaskError) Error() string {
	return fmt.Sprintf("critical task %s failed: %v", e.TaskID, e.Err)
}

// Unwrap exposes the coded error so errors.CodeOf reports TASK-001
func (e *CriticalTaskError) Unwrap() error {
	return errors.NewCriticalTaskError(e.TaskID, e.Err)
}

// TaskExecutor runs task lists sequentially
type TaskExecutor struct {
	runner   process.Runner
	logger   *log.Logger
	tracer   trace.Tracer
	observer Observer
	workDir  string

	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsed      time.Duration
}

// NewTaskExecutor creates an executor that runs tasks through runner
func NewTaskExecutor(runner process.Runner, opts Options) *TaskExecutor {
	opts = opts.withDefaults()
	return &TaskExecutor{
		runner:          runner,
		logger:          opts.Logger,
		tracer:          opts.Tracer,
		observer:        opts.Observer,
		workDir:         opts.WorkDir,
		initialInterval: opts.RetryInitialInterval,
		maxInterval:     opts.RetryMaxInterval,
		maxElapsed:      opts.RetryMaxElapsed,
	}
}

// RunAll runs tasks in order. A failed non-critical task adds a warning and
// the list continues; a failed critical task stops the list and RunAll
// returns the summary so far together with a *CriticalTaskError.
func (e *TaskExecutor) RunAll(ctx context.Context, phaseID string, tasks []Task) (TaskSummary, error) {
	var summary TaskSummary

	for _, task := range tasks {
		start := time.Now()
		attempts, err := e.run(ctx, task)
		e.observer.TaskCompleted(phaseID, task, attempts, err, time.Since(start))

		summary.Executed++
		if err == nil {
			summary.Succeeded++
			continue
		}

		summary.Failed++
		summary.Errors = append(summary.Errors, fmt.Sprintf("task %s failed: %v", task.ID, err))

		if task.Critical {
			e.logger.Error("critical task failed, aborting phase", "phase", phaseID, "task", task.ID, "attempts", attempts, "error", err)
			return summary, &CriticalTaskError{TaskID: task.ID, Err: err}
		}

		e.logger.Warn("non-critical task failed, continuing", "phase", phaseID, "task", task.ID, "attempts", attempts, "error", err)
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("non-critical task %s failed; continuing", task.Label()))
	}

	return summary, nil
}

// run executes one task with up to 1+Retries attempts
func (e *TaskExecutor) run(ctx context.Context, task Task) (int, error) {
	ctx, span := e.tracer.Start(ctx, "campaign.task",
		trace.WithAttributes(
			attribute.String("task.id", task.ID),
			attribute.Bool("task.critical", task.Critical),
		))
	defer span.End()

	cmd := process.Command{
		Name:    task.Command,
		Args:    task.Args,
		Dir:     e.workDir,
		Env:     task.Env,
		Timeout: task.Timeout,
		OnLine: func(stream process.Stream, line string) {
			e.logger.Debug("task output", "task", task.ID, "stream", string(stream), "line", line)
		},
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initialInterval
	b.MaxInterval = e.maxInterval

	attempts := 0
	var lastErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		_, err := e.runner.Run(ctx, cmd)
		lastErr = err
		if err == nil {
			return struct{}{}, nil
		}
		var spawnErr *process.SpawnError
		if stderrors.As(err, &spawnErr) || ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(task.Retries+1)),
		// zero replaces the 15 minute default of backoff with no limit
		backoff.WithMaxElapsedTime(e.maxElapsed),
		backoff.WithNotify(func(err error, wait time.Duration) {
			e.logger.Info("retrying task", "task", task.ID, "attempt", attempts, "wait", wait.String(), "error", err)
		}),
	)

	// Retry reports the context error when cancelled while waiting; the
	// task's own failure is more useful
	if err != nil && lastErr != nil {
		err = lastErr
	}

	span.SetAttributes(attribute.Int("task.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return attempts, err
}
