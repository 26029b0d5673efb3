package campaign

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sweep/internal/process/processtest"
)

func TestPhaseSucceeds(t *testing.T) {
	fake := processtest.New()
	obs := &recordingObserver{}
	opts := testOptions()
	opts.Observer = obs

	phase := Phase{
		ID:               "build",
		Tasks:            []Task{task("install", "npm-install", true)},
		RollbackTasks:    []Task{task("undo", "git-restore", false)},
		ValidationChecks: []ValidationCheck{check("build", KindBuild, "npm-build")},
		SuccessCriteria:  SuccessCriteria{BuildSuccess: true},
	}

	result := NewPhaseExecutor(fake, opts).Execute(context.Background(), phase)

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.False(t, result.RollbackPerformed)
	assert.Equal(t, StateSucceeded, result.State)
	assert.Equal(t, 1, result.TasksExecuted)
	assert.Equal(t, 1, result.TasksSucceeded)
	assert.Len(t, result.ValidationResults, 1)
	assert.Equal(t, result.EndTime.Sub(result.StartTime), result.Duration)
	assert.Zero(t, fake.Count("git-restore"))

	assert.Equal(t, []PhaseState{
		StatePrerequisitesChecked,
		StateTasksRun,
		StateValidated,
		StateCriteriaEvaluated,
		StateSucceeded,
	}, obs.transitions)
	assert.Len(t, obs.completed, 1)
}

// A phase with one critical task exiting 1 and one rollback task exiting 0.
func TestPhaseCriticalFailureRollsBack(t *testing.T) {
	fake := processtest.New().On("codemod", fail(1))
	obs := &recordingObserver{}
	opts := testOptions()
	opts.Observer = obs

	phase := Phase{
		ID:               "rewrite",
		Tasks:            []Task{task("codemod", "codemod", true), task("format", "prettier", false)},
		RollbackTasks:    []Task{task("restore", "git-restore", false)},
		ValidationChecks: []ValidationCheck{check("build", KindBuild, "npm-build")},
	}

	result := NewPhaseExecutor(fake, opts).Execute(context.Background(), phase)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.TasksFailed)
	assert.Equal(t, result.TasksSucceeded+result.TasksFailed, result.TasksExecuted)
	assert.True(t, result.RollbackPerformed)
	assert.GreaterOrEqual(t, len(result.Errors), 1)
	assert.Equal(t, StateRolledBack, result.State)

	assert.Zero(t, fake.Count("prettier"), "no task runs after a critical failure")
	assert.Zero(t, fake.Count("npm-build"), "validation is skipped after a critical failure")
	assert.Equal(t, 1, fake.Count("git-restore"))

	assert.Equal(t, []PhaseState{
		StatePrerequisitesChecked,
		StateFailed,
		StateRollingBack,
		StateRolledBack,
	}, obs.transitions)
}

func TestPhaseWithoutRollbackTasks(t *testing.T) {
	fake := processtest.New().On("codemod", fail(1))

	phase := Phase{
		ID:    "rewrite",
		Tasks: []Task{task("codemod", "codemod", true)},
	}

	result := NewPhaseExecutor(fake, testOptions()).Execute(context.Background(), phase)

	assert.False(t, result.Success)
	assert.False(t, result.RollbackPerformed)
	assert.Equal(t, StateFailed, result.State)
}

func TestPhaseRollbackFailuresAreRecorded(t *testing.T) {
	fake := processtest.New().
		On("codemod", fail(1)).
		On("restore-a", fail(1))

	phase := Phase{
		ID:            "rewrite",
		Tasks:         []Task{task("codemod", "codemod", true)},
		RollbackTasks: []Task{task("a", "restore-a", true), task("b", "restore-b", true)},
	}

	result := NewPhaseExecutor(fake, testOptions()).Execute(context.Background(), phase)

	assert.False(t, result.Success)
	assert.True(t, result.RollbackPerformed)
	assert.Equal(t, 1, fake.Count("restore-b"), "every rollback task runs")
	assert.Equal(t, 1, result.TasksExecuted, "rollback tasks are not counted")

	var rollbackErrors int
	for _, e := range result.Errors {
		if strings.HasPrefix(e, "rollback: ") {
			rollbackErrors++
		}
	}
	assert.Equal(t, 1, rollbackErrors)
}

func TestPhaseMissingPrerequisite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("{}"), 0644))

	fake := processtest.New()
	opts := testOptions()
	opts.WorkDir = dir

	phase := Phase{
		ID:            "build",
		Prerequisites: []string{"package.json", "node_modules"},
		Tasks:         []Task{task("build", "npm-build", true)},
		RollbackTasks: []Task{task("restore", "git-restore", false)},
	}

	result := NewPhaseExecutor(fake, opts).Execute(context.Background(), phase)

	assert.False(t, result.Success)
	assert.Zero(t, result.TasksExecuted)
	assert.Equal(t, []string{"git-restore"}, fake.CallKeys(), "no task runs before prerequisites are met")
	assert.True(t, result.RollbackPerformed)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "PHASE-001")
	assert.Contains(t, result.Errors[0], "node_modules")
}

func TestPhasePrerequisitesPresent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "node_modules"), 0755))

	opts := testOptions()
	opts.WorkDir = dir

	result := NewPhaseExecutor(processtest.New(), opts).Execute(context.Background(), Phase{
		ID:            "build",
		Prerequisites: []string{"node_modules"},
	})

	assert.True(t, result.Success)
}

func TestPhaseRunsAllChecksThenFailsOnCriteria(t *testing.T) {
	fake := processtest.New().On("npm-build", fail(1))

	phase := Phase{
		ID: "verify",
		ValidationChecks: []ValidationCheck{
			check("build", KindBuild, "npm-build"),
			check("test", KindTest, "npm-test"),
			check("lint", KindLint, "npm-lint"),
		},
		SuccessCriteria: SuccessCriteria{BuildSuccess: true, TestsPass: true},
		RollbackTasks:   []Task{task("restore", "git-restore", false)},
	}

	result := NewPhaseExecutor(fake, testOptions()).Execute(context.Background(), phase)

	assert.False(t, result.Success)
	assert.Len(t, result.ValidationResults, 3, "a failing check does not stop the others")
	assert.True(t, result.RollbackPerformed)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "buildSuccess")
}

func TestPhaseUnrequiredCheckFailureWarns(t *testing.T) {
	fake := processtest.New().On("npm-lint", fail(1))

	phase := Phase{
		ID: "verify",
		ValidationChecks: []ValidationCheck{
			check("build", KindBuild, "npm-build"),
			check("lint", KindLint, "npm-lint"),
		},
		SuccessCriteria: SuccessCriteria{BuildSuccess: true},
	}

	result := NewPhaseExecutor(fake, testOptions()).Execute(context.Background(), phase)

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Warnings, 1)
}
