// Package quality collects static-analysis findings into QualityMetrics
// snapshots, keeps their history, detects regressions against that history
// and renders the monitoring report.
package quality

import (
	"time"
)

// Severity ranks alerts and regressions
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
)

// Rank orders severities, higher is worse. Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// PerformanceMetrics describes the cost of one static-analysis run
type PerformanceMetrics struct {
	// LintingDuration is the tool's wall time in milliseconds
	LintingDuration int64 `json:"lintingDuration" yaml:"lintingDuration"`
	// CacheHitRate is the fraction of files served from the tool's cache
	CacheHitRate float64 `json:"cacheHitRate" yaml:"cacheHitRate"`
	// MemoryUsage is the tool's peak resident memory in MB
	MemoryUsage    float64 `json:"memoryUsage" yaml:"memoryUsage"`
	FilesProcessed int     `json:"filesProcessed" yaml:"filesProcessed"`
}

// QualityMetrics is one snapshot of static-analysis findings.
// TotalIssues == -1 with QualityScore == 0 marks a run whose tool failed.
type QualityMetrics struct {
	Timestamp            time.Time          `json:"timestamp" yaml:"timestamp"`
	TotalIssues          int                `json:"totalIssues" yaml:"totalIssues"`
	Errors               int                `json:"errors" yaml:"errors"`
	Warnings             int                `json:"warnings" yaml:"warnings"`
	ParserErrors         int                `json:"parserErrors" yaml:"parserErrors"`
	ExplicitAnyErrors    int                `json:"explicitAnyErrors" yaml:"explicitAnyErrors"`
	ImportOrderIssues    int                `json:"importOrderIssues" yaml:"importOrderIssues"`
	UnusedVariables      int                `json:"unusedVariables" yaml:"unusedVariables"`
	ReactHooksIssues     int                `json:"reactHooksIssues" yaml:"reactHooksIssues"`
	ConsoleStatements    int                `json:"consoleStatements" yaml:"consoleStatements"`
	DomainSpecificIssues map[string]int     `json:"domainSpecificIssues" yaml:"domainSpecificIssues"`
	PerformanceMetrics   PerformanceMetrics `json:"performanceMetrics" yaml:"performanceMetrics"`
	QualityScore         float64            `json:"qualityScore" yaml:"qualityScore"`
	RegressionDetected   bool               `json:"regressionDetected" yaml:"regressionDetected"`

	// Failure explains a sentinel snapshot
	Failure string `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// SentinelMetrics returns the snapshot recorded when the tool could not run
// or its output could not be read
func SentinelMetrics(ts time.Time, failure string) QualityMetrics {
	return QualityMetrics{
		Timestamp:            ts,
		TotalIssues:          -1,
		QualityScore:         0,
		DomainSpecificIssues: map[string]int{},
		Failure:              failure,
	}
}

// IsSentinel reports whether m records a failed collection
func (m QualityMetrics) IsSentinel() bool {
	return m.TotalIssues < 0
}

// Alert is a threshold breach notification
type Alert struct {
	ID           string    `json:"id" yaml:"id"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	Severity     Severity  `json:"severity" yaml:"severity"`
	Metric       string    `json:"metric" yaml:"metric"`
	CurrentValue float64   `json:"currentValue" yaml:"currentValue"`
	Threshold    float64   `json:"threshold" yaml:"threshold"`
	Message      string    `json:"message" yaml:"message"`
	Resolved     bool      `json:"resolved" yaml:"resolved"`
}

// RegressionAnalysis is the outcome of comparing a snapshot with history
type RegressionAnalysis struct {
	Detected        bool     `json:"detected" yaml:"detected"`
	AffectedMetrics []string `json:"affectedMetrics" yaml:"affectedMetrics"`
	Severity        Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
}
