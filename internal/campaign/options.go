package campaign

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/sweep/internal/log"
)

const tracerName = "github.com/felixgeelhaar/sweep/internal/campaign"

// ConfigValidator re-validates configuration state for the
// configurationValid success criterion
type ConfigValidator func(ctx context.Context) error

// Options configures the deployment components. The zero value is usable.
type Options struct {
	Logger *log.Logger

	// WorkDir is the working directory of every task and check, and the base
	// of relative prerequisite paths
	WorkDir string

	// Observer receives lifecycle events; nil means none
	Observer Observer

	// Tracer defaults to the global otel tracer
	Tracer trace.Tracer

	ConfigValidator ConfigValidator

	// RetryInitialInterval and RetryMaxInterval shape the exponential
	// backoff between task attempts
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	// RetryMaxElapsed caps the total time spent on one task across its
	// attempts. Zero leaves the attempts bounded by Task.Retries alone.
	RetryMaxElapsed time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.DefaultLogger()
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}
	if o.RetryInitialInterval <= 0 {
		o.RetryInitialInterval = 500 * time.Millisecond
	}
	if o.RetryMaxInterval <= 0 {
		o.RetryMaxInterval = 10 * time.Second
	}
	return o
}

// Observer receives deployment lifecycle events. Implementations must not
// block; they run inline on the orchestrator goroutine.
type Observer interface {
	PhaseTransition(phaseID string, from, to PhaseState)
	TaskCompleted(phaseID string, task Task, attempts int, err error, duration time.Duration)
	CheckCompleted(phaseID string, check ValidationCheck, result ValidationResult)
	PhaseCompleted(result DeploymentResult)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) PhaseTransition(string, PhaseState, PhaseState) {}
func (NopObserver) TaskCompleted(string, Task, int, error, time.Duration) {}
func (NopObserver) CheckCompleted(string, ValidationCheck, ValidationResult) {}
func (NopObserver) PhaseCompleted(DeploymentResult) {}

// Observers fans events out to several observers in order
type Observers []Observer

func (obs Observers) PhaseTransition(phaseID string, from, to PhaseState) {
	for _, o := range obs {
		o.PhaseTransition(phaseID, from, to)
	}
}

func (obs Observers) TaskCompleted(phaseID string, task Task, attempts int, err error, d time.Duration) {
	for _, o := range obs {
		o.TaskCompleted(phaseID, task, attempts, err, d)
	}
}

func (obs Observers) CheckCompleted(phaseID string, check ValidationCheck, result ValidationResult) {
	for _, o := range obs {
		o.CheckCompleted(phaseID, check, result)
	}
}

func (obs Observers) PhaseCompleted(result DeploymentResult) {
	for _, o := range obs {
		o.PhaseCompleted(result)
	}
}
