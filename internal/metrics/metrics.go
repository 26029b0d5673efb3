package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/felixgeelhaar/sweep/internal/alert"
	"github.com/felixgeelhaar/sweep/internal/campaign"
	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/quality"
)

// Metrics holds all Prometheus metrics for Sweep
type Metrics struct {
	// Campaign metrics
	PhaseTransitions *prometheus.CounterVec
	PhaseResults     *prometheus.CounterVec
	PhaseDuration    *prometheus.HistogramVec
	Rollbacks        *prometheus.CounterVec
	TaskExecutions   *prometheus.CounterVec
	TaskAttempts     *prometheus.HistogramVec
	TaskDuration     *prometheus.HistogramVec
	CheckResults     *prometheus.CounterVec
	CheckDuration    *prometheus.HistogramVec

	// Quality monitoring metrics
	QualityScore     prometheus.Gauge
	QualityIssues    *prometheus.GaugeVec
	DomainIssues     *prometheus.GaugeVec
	LintingDuration  prometheus.Gauge
	CollectFailures  prometheus.Counter
	Regressions      *prometheus.CounterVec
	Alerts           *prometheus.CounterVec
	AlertDeliveries  *prometheus.CounterVec
	MonitorRuns      *prometheus.CounterVec
	LastMonitorRunTS prometheus.Gauge

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		PhaseTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_phase_transitions_total",
				Help: "Total number of phase state transitions",
			},
			[]string{"phase", "to"},
		),
		PhaseResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_phase_results_total",
				Help: "Total number of finished phases by outcome",
			},
			[]string{"phase", "success"},
		),
		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sweep_phase_duration_seconds",
				Help:    "Phase execution duration in seconds",
				Buckets: []float64{1.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0, 600.0, 1800.0},
			},
			[]string{"phase"},
		),
		Rollbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_phase_rollbacks_total",
				Help: "Total number of phase rollbacks",
			},
			[]string{"phase"},
		),
		TaskExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_task_executions_total",
				Help: "Total number of task executions",
			},
			[]string{"phase", "critical", "success"},
		),
		TaskAttempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sweep_task_attempts",
				Help:    "Attempts needed per task",
				Buckets: []float64{1, 2, 3, 5, 8, 11},
			},
			[]string{"phase"},
		),
		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sweep_task_duration_seconds",
				Help:    "Task execution duration in seconds",
				Buckets: []float64{1.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0, 600.0},
			},
			[]string{"phase"},
		),
		CheckResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_check_results_total",
				Help: "Total number of validation checks by kind and outcome",
			},
			[]string{"kind", "success"},
		),
		CheckDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sweep_check_duration_seconds",
				Help:    "Validation check duration in seconds",
				Buckets: []float64{0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0},
			},
			[]string{"kind"},
		),

		QualityScore: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sweep_quality_score",
				Help: "Quality score of the latest snapshot (0-100)",
			},
		),
		QualityIssues: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sweep_quality_issues",
				Help: "Issue counters of the latest snapshot",
			},
			[]string{"metric"},
		),
		DomainIssues: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sweep_quality_domain_issues",
				Help: "Issues per domain bucket in the latest snapshot",
			},
			[]string{"domain"},
		),
		LintingDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sweep_quality_linting_duration_seconds",
				Help: "Wall time of the latest static analysis run",
			},
		),
		CollectFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sweep_quality_collect_failures_total",
				Help: "Total number of failed quality collections",
			},
		),
		Regressions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_quality_regressions_total",
				Help: "Total number of detected quality regressions",
			},
			[]string{"severity"},
		),
		Alerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_alerts_total",
				Help: "Total number of raised alerts",
			},
			[]string{"severity", "metric"},
		),
		AlertDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_alert_deliveries_total",
				Help: "Total number of alert batches handed to channels",
			},
			[]string{"channel", "success"},
		),
		MonitorRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_monitor_runs_total",
				Help: "Total number of monitoring runs by report status",
			},
			[]string{"status"},
		),
		LastMonitorRunTS: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sweep_monitor_last_run_timestamp_seconds",
				Help: "Unix time of the latest monitoring run",
			},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// PhaseTransition implements campaign.Observer
func (m *Metrics) PhaseTransition(phaseID string, _, to campaign.PhaseState) {
	m.PhaseTransitions.WithLabelValues(phaseID, string(to)).Inc()
}

// TaskCompleted implements campaign.Observer
func (m *Metrics) TaskCompleted(phaseID string, task campaign.Task, attempts int, err error, d time.Duration) {
	m.TaskExecutions.WithLabelValues(phaseID, strconv.FormatBool(task.Critical), strconv.FormatBool(err == nil)).Inc()
	m.TaskAttempts.WithLabelValues(phaseID).Observe(float64(attempts))
	m.TaskDuration.WithLabelValues(phaseID).Observe(d.Seconds())
	if code := errors.CodeOf(err); code != "" {
		m.Errors.WithLabelValues(string(code), "task").Inc()
	}
}

// CheckCompleted implements campaign.Observer
func (m *Metrics) CheckCompleted(_ string, check campaign.ValidationCheck, result campaign.ValidationResult) {
	m.CheckResults.WithLabelValues(string(check.Kind), strconv.FormatBool(result.Success)).Inc()
	m.CheckDuration.WithLabelValues(string(check.Kind)).Observe(result.Duration.Seconds())
}

// PhaseCompleted implements campaign.Observer
func (m *Metrics) PhaseCompleted(result campaign.DeploymentResult) {
	m.PhaseResults.WithLabelValues(result.Phase, strconv.FormatBool(result.Success)).Inc()
	m.PhaseDuration.WithLabelValues(result.Phase).Observe(result.Duration.Seconds())
	if result.RollbackPerformed {
		m.Rollbacks.WithLabelValues(result.Phase).Inc()
	}
}

// ObserveQuality records a snapshot. Sentinel snapshots only count as
// collection failures and leave the gauges at their last good values.
func (m *Metrics) ObserveQuality(q quality.QualityMetrics) {
	if q.IsSentinel() {
		m.CollectFailures.Inc()
		return
	}
	m.QualityScore.Set(q.QualityScore)
	for name, v := range map[string]int{
		"totalIssues":       q.TotalIssues,
		"errors":            q.Errors,
		"warnings":          q.Warnings,
		"parserErrors":      q.ParserErrors,
		"explicitAnyErrors": q.ExplicitAnyErrors,
		"importOrderIssues": q.ImportOrderIssues,
		"unusedVariables":   q.UnusedVariables,
		"reactHooksIssues":  q.ReactHooksIssues,
		"consoleStatements": q.ConsoleStatements,
	} {
		m.QualityIssues.WithLabelValues(name).Set(float64(v))
	}
	for domain, v := range q.DomainSpecificIssues {
		m.DomainIssues.WithLabelValues(domain).Set(float64(v))
	}
	m.LintingDuration.Set(float64(q.PerformanceMetrics.LintingDuration) / 1000)
}

// ObserveRegression counts a detected regression
func (m *Metrics) ObserveRegression(a quality.RegressionAnalysis) {
	if a.Detected {
		m.Regressions.WithLabelValues(string(a.Severity)).Inc()
	}
}

// ObserveAlerts counts raised alerts
func (m *Metrics) ObserveAlerts(alerts []quality.Alert) {
	for _, a := range alerts {
		m.Alerts.WithLabelValues(string(a.Severity), a.Metric).Inc()
	}
}

// ObserveDispatch counts channel deliveries. Skipped channels are ignored.
func (m *Metrics) ObserveDispatch(r alert.DispatchReport) {
	for _, res := range r.Results {
		if res.Skipped {
			continue
		}
		m.AlertDeliveries.WithLabelValues(res.Channel, strconv.FormatBool(res.Error == "")).Inc()
		if res.Error != "" {
			m.Errors.WithLabelValues(string(errors.ErrCodeAlertChannel), "alert").Inc()
		}
	}
}

// ObserveMonitorRun records the outcome of a monitoring run
func (m *Metrics) ObserveMonitorRun(status quality.Status, at time.Time) {
	m.MonitorRuns.WithLabelValues(string(status)).Inc()
	m.LastMonitorRunTS.Set(float64(at.Unix()))
}

var _ campaign.Observer = (*Metrics)(nil)
