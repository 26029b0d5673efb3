package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sweeperrors "github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/process/processtest"
)

func TestRunAllAllSucceed(t *testing.T) {
	fake := processtest.New()
	executor := NewTaskExecutor(fake, testOptions())

	summary, err := executor.RunAll(context.Background(), "p1", []Task{
		task("a", "step-a", true),
		task("b", "step-b", false),
	})

	require.NoError(t, err)
	assert.Equal(t, TaskSummary{Executed: 2, Succeeded: 2}, summary)
	assert.Equal(t, []string{"step-a", "step-b"}, fake.CallKeys())
}

func TestRunAllCriticalFailureAborts(t *testing.T) {
	fake := processtest.New().On("step-b", fail(1))
	executor := NewTaskExecutor(fake, testOptions())

	summary, err := executor.RunAll(context.Background(), "p1", []Task{
		task("a", "step-a", false),
		task("b", "step-b", true),
		task("c", "step-c", false),
	})

	require.Error(t, err)
	var critical *CriticalTaskError
	require.True(t, errors.As(err, &critical))
	assert.Equal(t, "b", critical.TaskID)
	assert.True(t, sweeperrors.HasCode(err, sweeperrors.ErrCodeCriticalTaskFailure))

	assert.Equal(t, 2, summary.Executed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Errors, 1)
	assert.Zero(t, fake.Count("step-c"), "tasks after a critical failure must not run")
}

func TestRunAllNonCriticalFailureContinues(t *testing.T) {
	fake := processtest.New().On("step-a", fail(3))
	executor := NewTaskExecutor(fake, testOptions())

	summary, err := executor.RunAll(context.Background(), "p1", []Task{
		task("a", "step-a", false),
		task("b", "step-b", true),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Executed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Errors, 1)
	assert.Len(t, summary.Warnings, 1)
	assert.Equal(t, 1, fake.Count("step-b"))
}

func TestRunAllRetries(t *testing.T) {
	t.Run("succeeds on a later attempt", func(t *testing.T) {
		fake := processtest.New().On("flaky", fail(1), fail(1), processtest.Response{})
		executor := NewTaskExecutor(fake, testOptions())

		tk := task("flaky", "flaky", true)
		tk.Retries = 3
		summary, err := executor.RunAll(context.Background(), "p1", []Task{tk})

		require.NoError(t, err)
		assert.Equal(t, 3, fake.Count("flaky"))
		assert.Equal(t, TaskSummary{Executed: 1, Succeeded: 1}, summary, "a task counts once regardless of attempts")
	})

	t.Run("gives up after retries are exhausted", func(t *testing.T) {
		fake := processtest.New().On("broken", fail(1))
		executor := NewTaskExecutor(fake, testOptions())

		tk := task("broken", "broken", false)
		tk.Retries = 2
		summary, err := executor.RunAll(context.Background(), "p1", []Task{tk})

		require.NoError(t, err)
		assert.Equal(t, 3, fake.Count("broken"))
		assert.Equal(t, 1, summary.Failed)
	})

	t.Run("zero retries runs once", func(t *testing.T) {
		fake := processtest.New().On("once", fail(1))
		executor := NewTaskExecutor(fake, testOptions())

		_, _ = executor.RunAll(context.Background(), "p1", []Task{task("once", "once", false)})
		assert.Equal(t, 1, fake.Count("once"))
	})

	t.Run("attempts are not bounded by elapsed time", func(t *testing.T) {
		fake := processtest.New().On("slow", fail(1))
		opts := testOptions()
		opts.RetryInitialInterval = 20 * time.Millisecond
		opts.RetryMaxInterval = 20 * time.Millisecond
		executor := NewTaskExecutor(fake, opts)

		tk := task("slow", "slow", false)
		tk.Retries = 3
		_, _ = executor.RunAll(context.Background(), "p1", []Task{tk})
		assert.Equal(t, 4, fake.Count("slow"))
	})

	t.Run("elapsed budget stops retries early", func(t *testing.T) {
		fake := processtest.New().On("slow", fail(1))
		opts := testOptions()
		opts.RetryInitialInterval = 20 * time.Millisecond
		opts.RetryMaxInterval = 20 * time.Millisecond
		opts.RetryMaxElapsed = 5 * time.Millisecond
		executor := NewTaskExecutor(fake, opts)

		tk := task("slow", "slow", false)
		tk.Retries = 3
		summary, _ := executor.RunAll(context.Background(), "p1", []Task{tk})
		assert.Equal(t, 1, fake.Count("slow"))
		assert.Equal(t, 1, summary.Failed)
	})

	t.Run("spawn errors are not retried", func(t *testing.T) {
		fake := processtest.New().On("missing", processtest.Response{SpawnErr: errors.New("executable file not found")})
		executor := NewTaskExecutor(fake, testOptions())

		tk := task("missing", "missing", false)
		tk.Retries = 5
		_, _ = executor.RunAll(context.Background(), "p1", []Task{tk})
		assert.Equal(t, 1, fake.Count("missing"))
	})
}

func TestRunAllPassesEnvAndTimeout(t *testing.T) {
	fake := processtest.New()
	executor := NewTaskExecutor(fake, testOptions())

	tk := task("a", "step-a", false)
	tk.Env = map[string]string{"NODE_ENV": "production"}
	tk.Args = []string{"--fix"}
	_, err := executor.RunAll(context.Background(), "p1", []Task{tk})

	require.NoError(t, err)
	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "production", calls[0].Env["NODE_ENV"])
	assert.Equal(t, []string{"--fix"}, calls[0].Args)
}

func TestRunAllNotifiesObserver(t *testing.T) {
	fake := processtest.New()
	obs := &recordingObserver{}
	opts := testOptions()
	opts.Observer = obs

	_, err := NewTaskExecutor(fake, opts).RunAll(context.Background(), "p1", []Task{
		task("a", "step-a", false),
		task("b", "step-b", false),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, obs.tasks)
}
