package campaign

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/log"
	"github.com/felixgeelhaar/sweep/internal/process"
)

// Manager runs phases in order and stops at the first failure. A Manager
// runs one deployment at a time; callers wanting parallel deployments create
// one Manager each.
type Manager struct {
	runner process.Runner
	opts   Options
	logger *log.Logger
	tracer trace.Tracer
}

// NewManager creates a deployment manager that runs processes through runner
func NewManager(runner process.Runner, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		runner: runner,
		opts:   opts,
		logger: opts.Logger,
		tracer: opts.Tracer,
	}
}

// ExecuteDeployment runs phases and returns one result per attempted phase.
// The results are always a prefix of phases.
func (m *Manager) ExecuteDeployment(ctx context.Context, phases []Phase) []DeploymentResult {
	return m.Deploy(ctx, phases, nil).Results()
}

// Deploy runs phases, recording every event in journal, and returns the
// journal. A nil journal is replaced with a fresh one.
func (m *Manager) Deploy(ctx context.Context, phases []Phase, journal *Journal) *Journal {
	if journal == nil {
		journal = NewJournal("", "")
	}

	ctx, span := m.tracer.Start(ctx, "campaign.deployment",
		trace.WithAttributes(
			attribute.String("deployment.run_id", journal.RunID()),
			attribute.Int("deployment.phases", len(phases)),
		))
	defer span.End()

	opts := m.opts
	opts.Observer = Observers{m.opts.Observer, journal}
	executor := NewPhaseExecutor(m.runner, opts)

	logger := m.logger.With("run_id", journal.RunID())
	logger.Info("deployment started", "phases", len(phases))
	journal.start()

	success := true
	for i, phase := range phases {
		if err := ctx.Err(); err != nil {
			logger.Warn("deployment interrupted", "next_phase", phase.ID, "error", err)
			success = false
			break
		}

		result := m.executePhase(ctx, executor, phase, journal, logger)
		journal.addResult(result)

		if !result.Success {
			success = false
			logger.Error("deployment stopped at failed phase",
				"phase", phase.ID,
				"position", i+1,
				"skipped", len(phases)-i-1)
			break
		}
	}

	journal.finish(success)
	span.SetAttributes(attribute.Bool("deployment.success", success))
	logger.Info("deployment finished", "success", success, "phases_attempted", len(journal.Results()))
	return journal
}

// executePhase runs one phase and converts a panic into a failed result
func (m *Manager) executePhase(ctx context.Context, executor *PhaseExecutor, phase Phase, journal *Journal, logger *log.Logger) (result DeploymentResult) {
	start := time.Now()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := errors.NewPhasePanicError(phase.ID, r)
		logger.WithError(err).Error("phase aborted")
		end := time.Now()
		result = DeploymentResult{
			Success:       false,
			Phase:         phase.ID,
			State:         StateFailed,
			StartTime:     start,
			EndTime:       end,
			Duration:      end.Sub(start),
			TasksExecuted: 1,
			TasksFailed:   1,
			Errors:        []string{err.Summary()},
			Warnings:      []string{},
		}
		journal.PhaseCompleted(result)
	}()
	return executor.Execute(ctx, phase)
}
