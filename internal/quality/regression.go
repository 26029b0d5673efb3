package quality

import (
	"fmt"
	"math"
)

// InsufficientHistoryNotice opens the recommendation given when there is no
// usable history to compare against
const InsufficientHistoryNotice = "insufficient historical data"

// RegressionConfig sets the regression tolerances
type RegressionConfig struct {
	// Tolerance is the relative increase a counter may grow by, e.g. 0.10
	Tolerance float64 `yaml:"tolerance" json:"tolerance" validate:"gte=0"`
	// ScoreDrop is the number of score points the quality score may lose
	ScoreDrop float64 `yaml:"scoreDrop" json:"scoreDrop" validate:"gte=0,lte=100"`
}

// DefaultRegressionConfig tolerates 10% growth and a 5 point score drop
func DefaultRegressionConfig() RegressionConfig {
	return RegressionConfig{Tolerance: 0.10, ScoreDrop: 5}
}

// RegressionAnalyzer compares snapshots with their history
type RegressionAnalyzer struct {
	config RegressionConfig
}

// NewRegressionAnalyzer creates an analyzer; zero tolerances take defaults
func NewRegressionAnalyzer(config RegressionConfig) *RegressionAnalyzer {
	def := DefaultRegressionConfig()
	if config.Tolerance <= 0 {
		config.Tolerance = def.Tolerance
	}
	if config.ScoreDrop <= 0 {
		config.ScoreDrop = def.ScoreDrop
	}
	return &RegressionAnalyzer{config: config}
}

type trackedCounter struct {
	name  string
	value func(QualityMetrics) int
	fix   string
}

var trackedCounters = []trackedCounter{
	{"totalIssues", func(m QualityMetrics) int { return m.TotalIssues }, "review the changes since the last run for newly introduced lint findings"},
	{"errors", func(m QualityMetrics) int { return m.Errors }, "fix new lint errors before the next campaign phase"},
	{"parserErrors", func(m QualityMetrics) int { return m.ParserErrors }, "restore the files that no longer parse; a rewrite likely produced invalid syntax"},
	{"explicitAnyErrors", func(m QualityMetrics) int { return m.ExplicitAnyErrors }, "replace newly added explicit any types with concrete types"},
	{"unusedVariables", func(m QualityMetrics) int { return m.UnusedVariables }, "remove unused variables and imports left behind by the rewrite"},
	{"reactHooksIssues", func(m QualityMetrics) int { return m.ReactHooksIssues }, "check hook dependency arrays and hook call order"},
}

// Analyze compares current with the most recent usable record of history.
// Sentinel records are not usable. A counter regresses when it grows by more
// than the tolerance and by at least one; any growth from zero counts.
// The analysis takes the worst severity of its regressions: parser errors
// are critical, growth from zero is an error, and other changes are graded
// by relativeSeverity.
func (a *RegressionAnalyzer) Analyze(current QualityMetrics, history []QualityMetrics) RegressionAnalysis {
	analysis := RegressionAnalysis{AffectedMetrics: []string{}, Recommendations: []string{}}

	if current.IsSentinel() {
		analysis.Recommendations = append(analysis.Recommendations,
			"quality metrics are unavailable for this run; restore the static analysis tool before comparing against history")
		return analysis
	}

	baseline, ok := latestUsable(history)
	if !ok {
		analysis.Recommendations = append(analysis.Recommendations,
			InsufficientHistoryNotice+": record at least one successful monitoring run to enable regression detection")
		return analysis
	}

	var severity Severity
	raise := func(s Severity) {
		if s.Rank() > severity.Rank() {
			severity = s
		}
	}

	for _, c := range trackedCounters {
		prev, cur := c.value(baseline), c.value(current)
		increase := cur - prev
		if increase < 1 {
			continue
		}
		sev := SeverityError
		if prev > 0 {
			relative := float64(increase) / float64(prev)
			if relative <= a.config.Tolerance {
				continue
			}
			sev = relativeSeverity(relative)
		}
		if c.name == "parserErrors" {
			sev = SeverityCritical
		}
		raise(sev)

		analysis.AffectedMetrics = append(analysis.AffectedMetrics, c.name)
		analysis.Recommendations = append(analysis.Recommendations,
			fmt.Sprintf("%s rose from %d to %d: %s", c.name, prev, cur, c.fix))
	}

	if drop := baseline.QualityScore - current.QualityScore; drop > a.config.ScoreDrop {
		analysis.AffectedMetrics = append(analysis.AffectedMetrics, "qualityScore")
		analysis.Recommendations = append(analysis.Recommendations,
			fmt.Sprintf("qualityScore fell from %.1f to %.1f: pause the campaign and investigate the largest penalties", baseline.QualityScore, current.QualityScore))
		relative := 0.0
		if baseline.QualityScore > 0 {
			relative = drop / baseline.QualityScore
		}
		raise(relativeSeverity(relative))
	}

	if len(analysis.AffectedMetrics) == 0 {
		return analysis
	}
	analysis.Detected = true
	analysis.Severity = severity
	return analysis
}

// relativeSeverity grades a relative worsening: above 50% is critical,
// above 25% is error
func relativeSeverity(relative float64) Severity {
	switch {
	case relative > 0.50:
		return SeverityCritical
	case relative > 0.25:
		return SeverityError
	default:
		return SeverityWarning
	}
}

func latestUsable(history []QualityMetrics) (QualityMetrics, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].IsSentinel() {
			return history[i], true
		}
	}
	return QualityMetrics{}, false
}

// Trend returns the average quality score of the last n usable records, and
// false when there are none
func Trend(history []QualityMetrics, n int) (float64, bool) {
	if n <= 0 {
		n = len(history)
	}
	sum, count := 0.0, 0
	for i := len(history) - 1; i >= 0 && count < n; i-- {
		if history[i].IsSentinel() {
			continue
		}
		sum += history[i].QualityScore
		count++
	}
	if count == 0 {
		return 0, false
	}
	return math.Round(sum/float64(count)*10) / 10, true
}
