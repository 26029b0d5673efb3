// Package campaign runs ordered, checkpointed deployment phases: each phase
// checks its prerequisites, runs its tasks as external processes, runs its
// validation checks, evaluates its success criteria and rolls back on
// failure. Phases run strictly in order and a deployment stops at the first
// failed phase.
package campaign

import (
	"context"
	"strings"
	"time"
)

// CheckKind classifies a validation check
type CheckKind string

const (
	KindBuild  CheckKind = "build"
	KindTest   CheckKind = "test"
	KindLint   CheckKind = "lint"
	KindCustom CheckKind = "custom"
)

// Task is one external process invocation
type Task struct {
	ID       string
	Name     string
	Command  string
	Args     []string
	Timeout  time.Duration
	Retries  int
	Critical bool
	Env      map[string]string
}

// Label returns the name, falling back to the ID
func (t Task) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// OutputValidator inspects the combined output of a check
type OutputValidator func(output string) bool

// ValidationCheck is a read-only command gating phase success. It passes when
// the process exits with ExpectedExitCode and OutputValidator, if set,
// accepts the output.
type ValidationCheck struct {
	ID               string
	Name             string
	Kind             CheckKind
	Command          string
	Args             []string
	Timeout          time.Duration
	ExpectedExitCode int
	OutputValidator  OutputValidator
}

// CustomValidator is an asynchronous success predicate
type CustomValidator func(ctx context.Context) (bool, error)

// CustomCheck is a named custom success predicate
type CustomCheck struct {
	Name      string
	Validator CustomValidator
}

// SuccessCriteria turns validation results into a pass/fail decision
type SuccessCriteria struct {
	BuildSuccess       bool
	TestsPass          bool
	LintingPass        bool
	ConfigurationValid bool
	CustomChecks       []CustomCheck
}

// Phase is one ordered unit of a deployment
type Phase struct {
	ID               string
	Name             string
	Description      string
	Prerequisites    []string
	Tasks            []Task
	RollbackTasks    []Task
	ValidationChecks []ValidationCheck
	SuccessCriteria  SuccessCriteria
}

// Campaign is a named, ordered list of phases
type Campaign struct {
	Name        string
	Description string
	WorkDir     string
	Phases      []Phase

	// Fingerprint is the blake3 digest of the source file, when loaded from one
	Fingerprint string

	// Warnings lists configuration smells found at load time that do not
	// prevent running, e.g. criteria flags without a matching check
	Warnings []string
}

// Phase returns the phase with the given ID
func (c *Campaign) Phase(id string) (Phase, bool) {
	for _, p := range c.Phases {
		if p.ID == id {
			return p, true
		}
	}
	return Phase{}, false
}

// Select returns the phases whose IDs are listed, preserving campaign order
func (c *Campaign) Select(ids []string) []Phase {
	if len(ids) == 0 {
		return c.Phases
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[strings.TrimSpace(id)] = true
	}
	var out []Phase
	for _, p := range c.Phases {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// ValidationResult is the outcome of one validation check
type ValidationResult struct {
	CheckID   string        `json:"checkId" yaml:"checkId"`
	CheckName string        `json:"checkName" yaml:"checkName"`
	Success   bool          `json:"success" yaml:"success"`
	Output    string        `json:"output" yaml:"output"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// PhaseState is a node of the phase state machine
type PhaseState string

const (
	StatePending              PhaseState = "pending"
	StatePrerequisitesChecked PhaseState = "prerequisites_checked"
	StateTasksRun             PhaseState = "tasks_run"
	StateValidated            PhaseState = "validated"
	StateCriteriaEvaluated    PhaseState = "criteria_evaluated"
	StateSucceeded            PhaseState = "succeeded"
	StateFailed               PhaseState = "failed"
	StateRollingBack          PhaseState = "rolling_back"
	StateRolledBack           PhaseState = "rolled_back"
)

// DeploymentResult describes one attempted phase.
// TasksExecuted == TasksSucceeded + TasksFailed and Duration == EndTime-StartTime.
// Rollback tasks are not counted in the task counters.
type DeploymentResult struct {
	Success           bool               `json:"success" yaml:"success"`
	Phase             string             `json:"phase" yaml:"phase"`
	State             PhaseState         `json:"state" yaml:"state"`
	StartTime         time.Time          `json:"startTime" yaml:"startTime"`
	EndTime           time.Time          `json:"endTime" yaml:"endTime"`
	Duration          time.Duration      `json:"duration" yaml:"duration"`
	TasksExecuted     int                `json:"tasksExecuted" yaml:"tasksExecuted"`
	TasksSucceeded    int                `json:"tasksSucceeded" yaml:"tasksSucceeded"`
	TasksFailed       int                `json:"tasksFailed" yaml:"tasksFailed"`
	ValidationResults []ValidationResult `json:"validationResults" yaml:"validationResults"`
	Errors            []string           `json:"errors" yaml:"errors"`
	Warnings          []string           `json:"warnings" yaml:"warnings"`
	RollbackPerformed bool               `json:"rollbackPerformed" yaml:"rollbackPerformed"`
}

// AllSucceeded reports whether every result succeeded and none is missing
func AllSucceeded(results []DeploymentResult, phases int) bool {
	if len(results) != phases {
		return false
	}
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}
