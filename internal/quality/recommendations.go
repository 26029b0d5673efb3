package quality

import "fmt"

// Recommendations lists improvement hints for a snapshot, followed by the
// regression analysis' own recommendations
func Recommendations(m QualityMetrics, explicitAnyThreshold int, analysis RegressionAnalysis) []string {
	var recs []string
	if m.IsSentinel() {
		recs = append(recs, "the static analysis tool did not produce a report; run it manually to see why")
		return append(recs, analysis.Recommendations...)
	}
	if explicitAnyThreshold <= 0 {
		explicitAnyThreshold = DefaultExplicitAnyThreshold
	}

	if m.ParserErrors > 0 {
		recs = append(recs, fmt.Sprintf("fix %d parser error(s) first; they block every other analysis of the affected files", m.ParserErrors))
	}
	if m.ExplicitAnyErrors > explicitAnyThreshold {
		recs = append(recs, fmt.Sprintf("reduce explicit any usage from %d to below %d", m.ExplicitAnyErrors, explicitAnyThreshold))
	}
	if m.UnusedVariables > 0 {
		recs = append(recs, fmt.Sprintf("remove %d unused variable(s)", m.UnusedVariables))
	}
	if m.ImportOrderIssues > 0 {
		recs = append(recs, fmt.Sprintf("run the import sorter to fix %d import order issue(s)", m.ImportOrderIssues))
	}
	if m.ReactHooksIssues > 0 {
		recs = append(recs, fmt.Sprintf("review %d React hooks finding(s)", m.ReactHooksIssues))
	}
	if m.ConsoleStatements > 0 {
		recs = append(recs, fmt.Sprintf("replace %d console statement(s) with the application logger", m.ConsoleStatements))
	}
	if m.PerformanceMetrics.FilesProcessed > 0 && m.PerformanceMetrics.CacheHitRate == 0 {
		recs = append(recs, "enable the lint cache to shorten monitoring runs")
	}
	return append(recs, analysis.Recommendations...)
}

// NextActions derives the operator's next steps from the run's outcome
func NextActions(m QualityMetrics, alerts []Alert, analysis RegressionAnalysis) []string {
	switch {
	case m.IsSentinel():
		return []string{"restore the static analysis tool", "re-run monitoring before starting further campaign phases"}
	case hasSeverity(alerts, SeverityCritical):
		return []string{"halt running campaigns", "resolve critical alerts", "re-run monitoring to confirm the fix"}
	case analysis.Detected:
		return []string{"compare the latest campaign phase with the previous snapshot", "roll back the phase if the regression is not intended"}
	case len(alerts) > 0:
		return []string{"schedule fixes for the open alerts", "continue the campaign"}
	default:
		return []string{"continue the campaign"}
	}
}

func hasSeverity(alerts []Alert, s Severity) bool {
	for _, a := range alerts {
		if a.Severity == s {
			return true
		}
	}
	return false
}
