package campaign

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/log"
	"github.com/felixgeelhaar/sweep/internal/process"
)

// rollbackPrefix marks errors produced while rolling back
const rollbackPrefix = "rollback: "

// PhaseExecutor drives one phase through its state machine:
//
//	pending -> prerequisites_checked -> tasks_run -> validated -> criteria_evaluated -> succeeded
//	                                                                                 -> failed -> rolling_back -> rolled_back
//
// A missing prerequisite or critical task failure jumps straight to failed.
type PhaseExecutor struct {
	tasks    *TaskExecutor
	checker  *Checker
	criteria *CriteriaEvaluator
	logger   *log.Logger
	tracer   trace.Tracer
	observer Observer
	workDir  string
}

// NewPhaseExecutor wires a phase executor and its collaborators around runner
func NewPhaseExecutor(runner process.Runner, opts Options) *PhaseExecutor {
	opts = opts.withDefaults()
	return &PhaseExecutor{
		tasks:    NewTaskExecutor(runner, opts),
		checker:  NewChecker(runner, opts),
		criteria: NewCriteriaEvaluator(opts),
		logger:   opts.Logger,
		tracer:   opts.Tracer,
		observer: opts.Observer,
		workDir:  opts.WorkDir,
	}
}

type phaseRun struct {
	phase    Phase
	result   *DeploymentResult
	observer Observer
}

func (r *phaseRun) transition(to PhaseState) {
	from := r.result.State
	r.result.State = to
	r.observer.PhaseTransition(r.phase.ID, from, to)
}

// Execute runs the phase and returns its result. It never returns an error:
// every failure is reported in the result.
func (p *PhaseExecutor) Execute(ctx context.Context, phase Phase) DeploymentResult {
	ctx, span := p.tracer.Start(ctx, "campaign.phase",
		trace.WithAttributes(attribute.String("phase.id", phase.ID)))
	defer span.End()

	logger := p.logger.With("phase", phase.ID)
	logger.Info("phase started", "name", phase.Name)

	result := DeploymentResult{
		Phase:     phase.ID,
		State:     StatePending,
		StartTime: time.Now(),
		Errors:    []string{},
		Warnings:  []string{},
	}
	run := &phaseRun{phase: phase, result: &result, observer: p.observer}

	if p.execute(ctx, run, logger) {
		result.Success = true
		run.transition(StateSucceeded)
	} else {
		run.transition(StateFailed)
		p.rollback(ctx, run, logger)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	span.SetAttributes(
		attribute.Bool("phase.success", result.Success),
		attribute.Bool("phase.rollback", result.RollbackPerformed),
	)
	if !result.Success {
		span.SetStatus(codes.Error, "phase failed")
	}

	logger.Info("phase finished",
		"success", result.Success,
		"state", string(result.State),
		"tasks_executed", result.TasksExecuted,
		"tasks_failed", result.TasksFailed,
		"rollback", result.RollbackPerformed,
		"duration", result.Duration.String())

	p.observer.PhaseCompleted(result)
	return result
}

// execute runs the forward stages and reports whether the phase succeeded
func (p *PhaseExecutor) execute(ctx context.Context, run *phaseRun, logger *log.Logger) bool {
	phase, result := run.phase, run.result

	if err := p.checkPrerequisites(phase); err != nil {
		logger.WithError(err).Error("prerequisite missing")
		result.Errors = append(result.Errors, err.Summary())
		return false
	}
	run.transition(StatePrerequisitesChecked)

	summary, err := p.tasks.RunAll(ctx, phase.ID, phase.Tasks)
	result.TasksExecuted = summary.Executed
	result.TasksSucceeded = summary.Succeeded
	result.TasksFailed = summary.Failed
	result.Errors = append(result.Errors, summary.Errors...)
	result.Warnings = append(result.Warnings, summary.Warnings...)
	if err != nil {
		return false
	}
	run.transition(StateTasksRun)

	result.ValidationResults = make([]ValidationResult, 0, len(phase.ValidationChecks))
	for _, check := range phase.ValidationChecks {
		vr := p.checker.Run(ctx, check)
		p.observer.CheckCompleted(phase.ID, check, vr)
		result.ValidationResults = append(result.ValidationResults, vr)
	}
	run.transition(StateValidated)

	verdict := p.criteria.Evaluate(ctx, phase.SuccessCriteria, result.ValidationResults)
	run.transition(StateCriteriaEvaluated)

	if !verdict.Success {
		logger.Warn("success criteria unmet", "error", errors.NewCriteriaUnmetError(verdict.Errors).Message)
		result.Errors = append(result.Errors, verdict.Errors...)
		return false
	}

	for _, vr := range result.ValidationResults {
		if !vr.Success {
			result.Warnings = append(result.Warnings, fmt.Sprintf("validation check %s failed but is not required by the success criteria", vr.CheckID))
		}
	}
	return true
}

func (p *PhaseExecutor) checkPrerequisites(phase Phase) *errors.SweepError {
	for _, path := range phase.Prerequisites {
		full := path
		if !filepath.IsAbs(path) && p.workDir != "" {
			full = filepath.Join(p.workDir, path)
		}
		if _, err := os.Stat(full); err != nil {
			return errors.NewPrerequisiteMissingError(path)
		}
	}
	return nil
}

// rollback runs the rollback tasks of a failed phase. Rollback failures are
// recorded with a distinct prefix and never escalate.
func (p *PhaseExecutor) rollback(ctx context.Context, run *phaseRun, logger *log.Logger) {
	phase, result := run.phase, run.result
	if len(phase.RollbackTasks) == 0 {
		return
	}

	run.transition(StateRollingBack)
	result.RollbackPerformed = true
	logger.Warn("rolling back phase", "rollback_tasks", len(phase.RollbackTasks))

	// Every rollback task runs; criticality only matters for forward tasks
	for _, task := range phase.RollbackTasks {
		task.Critical = false
		summary, _ := p.tasks.RunAll(ctx, phase.ID, []Task{task})
		for _, msg := range summary.Errors {
			rbErr := errors.New(errors.ErrCodeRollbackFailure, msg)
			logger.WithError(rbErr).Error("rollback task failed")
			result.Errors = append(result.Errors, rollbackPrefix+msg)
		}
	}

	run.transition(StateRolledBack)
}
