package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/log"
	"github.com/felixgeelhaar/sweep/internal/quality"
)

// Thresholds configures the alert rules. Zero performance limits disable
// the corresponding warning.
type Thresholds struct {
	ExplicitAny        int     `yaml:"explicitAny" json:"explicitAny" validate:"gte=0"`
	MinQualityScore    float64 `yaml:"minQualityScore" json:"minQualityScore" validate:"gte=0,lte=100"`
	MaxLintingDuration int64   `yaml:"maxLintingDurationMs" json:"maxLintingDurationMs" validate:"gte=0"`
	MinCacheHitRate    float64 `yaml:"minCacheHitRate" json:"minCacheHitRate" validate:"gte=0,lte=1"`
	MaxMemoryMB        float64 `yaml:"maxMemoryMB" json:"maxMemoryMB" validate:"gte=0"`
}

// DefaultThresholds returns the stock alert rules
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExplicitAny:        quality.DefaultExplicitAnyThreshold,
		MinQualityScore:    70,
		MaxLintingDuration: 120000,
		MaxMemoryMB:        2048,
	}
}

// Engine evaluates alert rules and dispatches alerts to channels
type Engine struct {
	thresholds Thresholds
	registry   *Registry
	logger     *log.Logger

	now   func() time.Time
	newID func() string
}

// NewEngine creates an engine. registry may be nil when nothing is
// dispatched.
func NewEngine(thresholds Thresholds, registry *Registry, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if thresholds.ExplicitAny <= 0 {
		thresholds.ExplicitAny = quality.DefaultExplicitAnyThreshold
	}
	return &Engine{
		thresholds: thresholds,
		registry:   registry,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Thresholds returns the effective alert rules
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

func (e *Engine) alert(sev quality.Severity, metric string, value, threshold float64, msg string) quality.Alert {
	return quality.Alert{
		ID:           e.newID(),
		Timestamp:    e.now(),
		Severity:     sev,
		Metric:       metric,
		CurrentValue: value,
		Threshold:    threshold,
		Message:      msg,
	}
}

// Evaluate applies the threshold rules to one snapshot
func (e *Engine) Evaluate(m quality.QualityMetrics) []quality.Alert {
	t := e.thresholds

	if m.IsSentinel() {
		msg := "quality metrics unavailable"
		if m.Failure != "" {
			msg += ": " + m.Failure
		}
		return []quality.Alert{e.alert(quality.SeverityWarning, "totalIssues", -1, 0, msg)}
	}

	var alerts []quality.Alert
	if m.ParserErrors > 0 {
		alerts = append(alerts, e.alert(quality.SeverityCritical, "parserErrors", float64(m.ParserErrors), 0,
			fmt.Sprintf("%d parser error(s) block analysis of the affected files", m.ParserErrors)))
	}
	if m.ExplicitAnyErrors > t.ExplicitAny {
		alerts = append(alerts, e.alert(quality.SeverityError, "explicitAnyErrors", float64(m.ExplicitAnyErrors), float64(t.ExplicitAny),
			fmt.Sprintf("%d explicit any usages exceed the limit of %d", m.ExplicitAnyErrors, t.ExplicitAny)))
	}
	if t.MinQualityScore > 0 && m.QualityScore < t.MinQualityScore {
		alerts = append(alerts, e.alert(quality.SeverityError, "qualityScore", m.QualityScore, t.MinQualityScore,
			fmt.Sprintf("quality score %.1f is below %.1f", m.QualityScore, t.MinQualityScore)))
	}

	perf := m.PerformanceMetrics
	if t.MaxLintingDuration > 0 && perf.LintingDuration > t.MaxLintingDuration {
		alerts = append(alerts, e.alert(quality.SeverityWarning, "lintingDuration", float64(perf.LintingDuration), float64(t.MaxLintingDuration),
			fmt.Sprintf("linting took %dms, limit %dms", perf.LintingDuration, t.MaxLintingDuration)))
	}
	if t.MinCacheHitRate > 0 && perf.FilesProcessed > 0 && perf.CacheHitRate < t.MinCacheHitRate {
		alerts = append(alerts, e.alert(quality.SeverityWarning, "cacheHitRate", perf.CacheHitRate, t.MinCacheHitRate,
			fmt.Sprintf("cache hit rate %.0f%% is below %.0f%%", perf.CacheHitRate*100, t.MinCacheHitRate*100)))
	}
	if t.MaxMemoryMB > 0 && perf.MemoryUsage > t.MaxMemoryMB {
		alerts = append(alerts, e.alert(quality.SeverityWarning, "memoryUsage", perf.MemoryUsage, t.MaxMemoryMB,
			fmt.Sprintf("linting used %.0f MB, limit %.0f MB", perf.MemoryUsage, t.MaxMemoryMB)))
	}
	return alerts
}

// EvaluateRegression raises one alert for a detected regression
func (e *Engine) EvaluateRegression(analysis quality.RegressionAnalysis) []quality.Alert {
	if !analysis.Detected {
		return nil
	}
	sev := analysis.Severity
	if sev == "" {
		sev = quality.SeverityWarning
	}
	return []quality.Alert{e.alert(sev, "regression", float64(len(analysis.AffectedMetrics)), 0,
		"quality regression in "+strings.Join(analysis.AffectedMetrics, ", "))}
}

// Dispatch sends alerts to every configured channel concurrently. Each
// channel gets its own timeout and only the alerts its severity filter
// admits; a channel with nothing to send is skipped. Channel failures are
// reported per channel and never affect the others.
func (e *Engine) Dispatch(ctx context.Context, alerts []quality.Alert, cfg AlertingConfig) DispatchReport {
	if !cfg.Enabled || len(cfg.Channels) == 0 {
		return DispatchReport{}
	}

	results := make([]ChannelResult, len(cfg.Channels))
	var g errgroup.Group
	for i, chCfg := range cfg.Channels {
		batch := chCfg.Filter(alerts)
		results[i] = ChannelResult{Channel: chCfg.Name, Sent: len(batch)}
		if len(batch) == 0 {
			results[i].Skipped = true
			continue
		}

		ch, err := e.registry.Build(chCfg)
		if err != nil {
			results[i].Sent = 0
			results[i].Error = errors.NewAlertChannelError(chCfg.Name, err).Summary()
			e.logger.Warn("alert channel unavailable", "channel", chCfg.Name, "error", err)
			continue
		}

		g.Go(func() error {
			start := time.Now()
			err := e.send(ctx, ch, chCfg.Timeout(), batch)
			results[i].Duration = time.Since(start)
			if err != nil {
				results[i].Sent = 0
				results[i].Error = errors.NewAlertChannelError(chCfg.Name, err).Summary()
				e.logger.Warn("alert delivery failed", "channel", chCfg.Name, "error", err)
				return nil
			}
			e.logger.Debug("alerts delivered", "channel", chCfg.Name, "count", len(batch))
			return nil
		})
	}
	_ = g.Wait()

	return DispatchReport{Results: results}
}

// send abandons a channel that ignores its context once the timeout expires
func (e *Engine) send(ctx context.Context, ch Channel, timeout time.Duration, batch []quality.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("channel panicked: %v", r)
			}
		}()
		done <- ch.Send(ctx, batch)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("delivery timed out after %s: %w", timeout, ctx.Err())
	}
}
