package campaign

import (
	"time"

	"github.com/felixgeelhaar/sweep/internal/log"
	"github.com/felixgeelhaar/sweep/internal/process/processtest"
)

func testOptions() Options {
	return Options{
		Logger:               log.Discard(),
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     2 * time.Millisecond,
	}
}

func task(id, command string, critical bool) Task {
	return Task{ID: id, Name: id, Command: command, Critical: critical}
}

func check(id string, kind CheckKind, command string) ValidationCheck {
	return ValidationCheck{ID: id, Name: id, Kind: kind, Command: command}
}

func fail(code int) processtest.Response {
	return processtest.Response{ExitCode: code, Stderr: "boom"}
}

// recordingObserver captures transitions for assertions
type recordingObserver struct {
	NopObserver
	transitions []PhaseState
	tasks       []string
	completed   []DeploymentResult
}

func (r *recordingObserver) PhaseTransition(_ string, _, to PhaseState) {
	r.transitions = append(r.transitions, to)
}

func (r *recordingObserver) TaskCompleted(_ string, task Task, _ int, _ error, _ time.Duration) {
	r.tasks = append(r.tasks, task.ID)
}

func (r *recordingObserver) PhaseCompleted(result DeploymentResult) {
	r.completed = append(r.completed, result)
}
