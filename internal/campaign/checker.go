package campaign

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/log"
	"github.com/felixgeelhaar/sweep/internal/process"
)

// Checker runs validation checks. Failures of any kind are captured in the
// returned ValidationResult and never returned as errors.
type Checker struct {
	runner  process.Runner
	logger  *log.Logger
	tracer  trace.Tracer
	workDir string
}

// NewChecker creates a checker that runs checks through runner
func NewChecker(runner process.Runner, opts Options) *Checker {
	opts = opts.withDefaults()
	return &Checker{
		runner:  runner,
		logger:  opts.Logger,
		tracer:  opts.Tracer,
		workDir: opts.WorkDir,
	}
}

// Run executes one check. It passes when the process exits with the expected
// code and the output validator, if any, accepts the combined output.
func (c *Checker) Run(ctx context.Context, check ValidationCheck) (result ValidationResult) {
	ctx, span := c.tracer.Start(ctx, "campaign.check",
		trace.WithAttributes(
			attribute.String("check.id", check.ID),
			attribute.String("check.kind", string(check.Kind)),
		))
	defer span.End()

	start := time.Now()
	result = ValidationResult{CheckID: check.ID, CheckName: check.Name}
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("check %s panicked: %v", check.ID, r)
		}
		result.Duration = time.Since(start)
		span.SetAttributes(attribute.Bool("check.success", result.Success))
		if !result.Success {
			span.SetStatus(codes.Error, result.Error)
		}
	}()

	out, err := c.runner.Run(ctx, process.Command{
		Name:    check.Command,
		Args:    check.Args,
		Dir:     c.workDir,
		Timeout: check.Timeout,
	})

	code, exitOut, exited := process.ExitCodeOf(err)
	if exitOut != nil {
		out = exitOut
	}
	result.Output = out.Combined()

	if !exited {
		result.Error = err.Error()
		c.logger.Warn("validation check could not run", "check", check.ID, "error", err)
		return result
	}

	if code != check.ExpectedExitCode {
		result.Error = errors.New(errors.ErrCodeValidationFailed,
			fmt.Sprintf("check %s exited with code %d, expected %d", check.ID, code, check.ExpectedExitCode)).Message
		c.logger.Info("validation check failed", "check", check.ID, "exit_code", code, "expected", check.ExpectedExitCode)
		return result
	}

	if check.OutputValidator != nil && !check.OutputValidator(result.Output) {
		result.Error = errors.New(errors.ErrCodeValidationFailed,
			fmt.Sprintf("check %s output rejected by validator", check.ID)).Message
		c.logger.Info("validation check output rejected", "check", check.ID)
		return result
	}

	result.Success = true
	c.logger.Debug("validation check passed", "check", check.ID, "duration", time.Since(start).String())
	return result
}
