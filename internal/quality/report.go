package quality

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/felixgeelhaar/sweep/internal/errors"
)

// Status summarizes a monitoring run
type Status string

const (
	StatusHealthy     Status = "HEALTHY"
	StatusDegraded    Status = "DEGRADED"
	StatusCritical    Status = "CRITICAL"
	StatusUnavailable Status = "UNAVAILABLE"
)

// Report is the data behind the monitoring report
type Report struct {
	GeneratedAt     time.Time          `json:"generatedAt" yaml:"generatedAt"`
	Status          Status             `json:"status" yaml:"status"`
	Metrics         QualityMetrics     `json:"metrics" yaml:"metrics"`
	Alerts          []Alert            `json:"alerts" yaml:"alerts"`
	Regression      RegressionAnalysis `json:"regression" yaml:"regression"`
	Recommendations []string           `json:"recommendations" yaml:"recommendations"`
	NextActions     []string           `json:"nextActions" yaml:"nextActions"`

	// Trend is the recent average score; HasTrend is false without history
	Trend    float64 `json:"trend,omitempty" yaml:"trend,omitempty"`
	HasTrend bool    `json:"-" yaml:"-"`
}

// BuildReport assembles the report of one monitoring run
func BuildReport(m QualityMetrics, alerts []Alert, analysis RegressionAnalysis, history []QualityMetrics, explicitAnyThreshold int) Report {
	r := Report{
		GeneratedAt:     time.Now(),
		Metrics:         m,
		Alerts:          alerts,
		Regression:      analysis,
		Recommendations: Recommendations(m, explicitAnyThreshold, analysis),
		NextActions:     NextActions(m, alerts, analysis),
	}
	r.Trend, r.HasTrend = Trend(history, 5)

	switch {
	case m.IsSentinel():
		r.Status = StatusUnavailable
	case hasSeverity(alerts, SeverityCritical) || analysis.Severity == SeverityCritical:
		r.Status = StatusCritical
	case len(alerts) > 0 || analysis.Detected:
		r.Status = StatusDegraded
	default:
		r.Status = StatusHealthy
	}
	return r
}

// DomainRow is one line of the domain metrics table
type DomainRow struct {
	Name   string
	Issues int
}

// DomainRows returns the domain buckets sorted by name
func (r Report) DomainRows() []DomainRow {
	rows := make([]DomainRow, 0, len(r.Metrics.DomainSpecificIssues))
	for name, n := range r.Metrics.DomainSpecificIssues {
		rows = append(rows, DomainRow{Name: name, Issues: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"ts":   func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"join": strings.Join,
	"pct":  func(f float64) float64 { return f * 100 },
}).Parse(`# Quality Monitoring Report

Generated {{ ts .GeneratedAt }}

## Overall Status

**{{ .Status }}** (score {{ printf "%.1f" .Metrics.QualityScore }}/100{{ if .HasTrend }}, recent average {{ printf "%.1f" .Trend }}{{ end }})
{{ if .Metrics.Failure }}
Collection failed: {{ .Metrics.Failure }}
{{ end }}{{ if .Regression.Detected }}
Regression detected ({{ .Regression.Severity }}): {{ join .Regression.AffectedMetrics ", " }}
{{ end }}{{ if .Alerts }}
| Severity | Metric | Value | Threshold | Message |
|---|---|---|---|---|
{{ range .Alerts }}| {{ .Severity }} | {{ .Metric }} | {{ .CurrentValue }} | {{ .Threshold }} | {{ .Message }} |
{{ end }}{{ end }}
## Detailed Metrics

| Metric | Value |
|---|---|
| Total issues | {{ .Metrics.TotalIssues }} |
| Errors | {{ .Metrics.Errors }} |
| Warnings | {{ .Metrics.Warnings }} |
| Parser errors | {{ .Metrics.ParserErrors }} |
| Explicit any | {{ .Metrics.ExplicitAnyErrors }} |
| Import order | {{ .Metrics.ImportOrderIssues }} |
| Unused variables | {{ .Metrics.UnusedVariables }} |
| React hooks | {{ .Metrics.ReactHooksIssues }} |
| Console statements | {{ .Metrics.ConsoleStatements }} |

## Domain Metrics
{{ with .DomainRows }}
| Domain | Issues |
|---|---|
{{ range . }}| {{ .Name }} | {{ .Issues }} |
{{ end }}{{ else }}
No domain buckets configured.
{{ end }}
## Performance Metrics

| Metric | Value |
|---|---|
| Linting duration | {{ .Metrics.PerformanceMetrics.LintingDuration }} ms |
| Cache hit rate | {{ printf "%.1f" (pct .Metrics.PerformanceMetrics.CacheHitRate) }}% |
| Memory usage | {{ printf "%.1f" .Metrics.PerformanceMetrics.MemoryUsage }} MB |
| Files processed | {{ .Metrics.PerformanceMetrics.FilesProcessed }} |

## Recommendations
{{ range .Recommendations }}
- {{ . }}{{ else }}
- none{{ end }}

## Next Actions
{{ range .NextActions }}
- {{ . }}{{ end }}
`))

// RenderMarkdown writes the report as markdown
func RenderMarkdown(w io.Writer, r Report) error {
	return reportTemplate.Execute(w, r)
}

// WriteReport renders r to path, replacing any previous report
func WriteReport(path string, r Report) error {
	var buf bytes.Buffer
	if err := RenderMarkdown(&buf, r); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "render quality report", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "create report directory", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write quality report", err)
	}
	return nil
}
