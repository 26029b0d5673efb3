// Package monitor runs the quality monitoring loop: collect a snapshot,
// compare it with history, raise and dispatch alerts, persist the snapshot
// and render the report. Runs can be triggered once, on a schedule or by
// file changes.
package monitor

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/sweep/internal/alert"
	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/log"
	"github.com/felixgeelhaar/sweep/internal/metrics"
	"github.com/felixgeelhaar/sweep/internal/quality"
	"github.com/felixgeelhaar/sweep/internal/telemetry"
)

// Collector produces one quality snapshot. It never fails; a failed
// collection yields sentinel metrics.
type Collector interface {
	Collect(ctx context.Context) quality.QualityMetrics
}

// History is the persistent record of snapshots. Load may return the
// records it could read together with an error.
type History interface {
	Path() string
	Load() ([]quality.QualityMetrics, error)
	Append(quality.QualityMetrics) error
}

// Options wires a Monitor
type Options struct {
	Collector Collector
	History   History
	Analyzer  *quality.RegressionAnalyzer
	Engine    *alert.Engine
	Alerting  alert.AlertingConfig

	// ReportPath is where the markdown report is written; empty skips it
	ReportPath           string
	ExplicitAnyThreshold int

	// Metrics is optional
	Metrics *metrics.Metrics
	Logger  *log.Logger
}

// Result is the outcome of one monitoring run
type Result struct {
	Metrics  quality.QualityMetrics
	Analysis quality.RegressionAnalysis
	Alerts   []quality.Alert
	Dispatch alert.DispatchReport
	Report   quality.Report
}

// Monitor executes monitoring runs one at a time
type Monitor struct {
	opts Options
	mu   sync.Mutex
	now  func() time.Time
}

// New creates a monitor
func New(opts Options) *Monitor {
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger()
	}
	if opts.Analyzer == nil {
		opts.Analyzer = quality.NewRegressionAnalyzer(quality.DefaultRegressionConfig())
	}
	if opts.Engine == nil {
		opts.Engine = alert.NewEngine(alert.DefaultThresholds(), nil, opts.Logger)
	}
	return &Monitor{opts: opts, now: time.Now}
}

// RunOnce performs one monitoring run. trigger names what started it and
// is recorded on the trace span. The returned error reports persistence
// failures only; the Result is complete even when it is non-nil.
func (m *Monitor) RunOnce(ctx context.Context, trigger string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := telemetry.StartMonitorSpan(ctx, trigger)
	defer span.End()

	logger := m.opts.Logger
	history, err := m.opts.History.Load()
	if err != nil {
		logger.Warn("quality history partly unreadable", "path", m.opts.History.Path(), "records", len(history), "error", err)
	}

	snapshot := m.opts.Collector.Collect(ctx)
	analysis := m.opts.Analyzer.Analyze(snapshot, history)
	snapshot.RegressionDetected = analysis.Detected

	alerts := m.opts.Engine.Evaluate(snapshot)
	alerts = append(alerts, m.opts.Engine.EvaluateRegression(analysis)...)
	dispatch := m.opts.Engine.Dispatch(ctx, alerts, m.opts.Alerting)

	res := Result{
		Metrics:  snapshot,
		Analysis: analysis,
		Alerts:   alerts,
		Dispatch: dispatch,
		Report:   quality.BuildReport(snapshot, alerts, analysis, history, m.opts.ExplicitAnyThreshold),
	}

	var persistErr error
	if err := m.opts.History.Append(snapshot); err != nil {
		persistErr = err
		logger.LogErrorContext(ctx, err)
	}
	if m.opts.ReportPath != "" {
		if err := quality.WriteReport(m.opts.ReportPath, res.Report); err != nil {
			if persistErr == nil {
				persistErr = err
			}
			logger.LogErrorContext(ctx, err)
		}
	}

	if mt := m.opts.Metrics; mt != nil {
		mt.ObserveQuality(snapshot)
		mt.ObserveRegression(analysis)
		mt.ObserveAlerts(alerts)
		mt.ObserveDispatch(dispatch)
		mt.ObserveMonitorRun(res.Report.Status, m.now())
	}

	span.SetAttributes(
		attribute.String("monitor.status", string(res.Report.Status)),
		attribute.Float64("quality.score", snapshot.QualityScore),
		attribute.Int("monitor.alerts", len(alerts)),
	)
	if persistErr != nil {
		telemetry.RecordError(span, persistErr)
	} else {
		telemetry.RecordSuccess(span)
	}

	logger.InfoContext(ctx, "monitoring run finished",
		"trigger", trigger,
		"status", res.Report.Status,
		"score", snapshot.QualityScore,
		"total_issues", snapshot.TotalIssues,
		"regression", analysis.Detected,
		"alerts", len(alerts),
		"delivery_failures", len(dispatch.Failed()),
	)
	return res, persistErr
}

// Handler receives the outcome of each scheduled or watched run
type Handler func(Result, error)

// Schedule runs immediately and then every interval until ctx is done
func (m *Monitor) Schedule(ctx context.Context, interval time.Duration, handle Handler) error {
	if interval <= 0 {
		return errors.NewConfigInvalidError("monitor.interval", "must be positive")
	}

	handle(m.RunOnce(ctx, "schedule"))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			handle(m.RunOnce(ctx, "schedule"))
		}
	}
}
