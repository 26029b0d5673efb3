package quality

import "math"

// DefaultExplicitAnyThreshold is the explicit-any count tolerated before
// the score and alerts react
const DefaultExplicitAnyThreshold = 100

// Penalty weights. A single parser error costs half the score so any broken
// file drops the score below 60.
const (
	parserErrorPenalty = 50.0

	explicitAnyBasePenalty = 20.0
	explicitAnyPerTen      = 1.0
	explicitAnyMaxPenalty  = 40.0

	importOrderWeight = 0.1
	importOrderCap    = 10.0
	unusedVarWeight   = 0.2
	unusedVarCap      = 10.0
	reactHooksWeight  = 0.5
	reactHooksCap     = 10.0
	consoleWeight     = 0.1
	consoleCap        = 5.0
	otherErrorWeight  = 0.25
	otherErrorCap     = 15.0
)

// Score derives the 0-100 quality score of a snapshot. Sentinel snapshots
// score 0.
func Score(m QualityMetrics, explicitAnyThreshold int) float64 {
	if m.IsSentinel() {
		return 0
	}
	if explicitAnyThreshold <= 0 {
		explicitAnyThreshold = DefaultExplicitAnyThreshold
	}

	score := 100.0
	score -= parserErrorPenalty * float64(m.ParserErrors)

	if excess := m.ExplicitAnyErrors - explicitAnyThreshold; excess > 0 {
		score -= math.Min(explicitAnyBasePenalty+explicitAnyPerTen*float64(excess)/10, explicitAnyMaxPenalty)
	}

	score -= capped(importOrderWeight*float64(m.ImportOrderIssues), importOrderCap)
	score -= capped(unusedVarWeight*float64(m.UnusedVariables), unusedVarCap)
	score -= capped(reactHooksWeight*float64(m.ReactHooksIssues), reactHooksCap)
	score -= capped(consoleWeight*float64(m.ConsoleStatements), consoleCap)
	score -= capped(otherErrorWeight*float64(otherErrors(m)), otherErrorCap)

	score = math.Max(0, math.Min(100, score))
	return math.Round(score*10) / 10
}

// otherErrors estimates errors not attributed to a rule-specific counter.
// Counters include warnings, so the estimate never goes below zero.
func otherErrors(m QualityMetrics) int {
	n := m.Errors - m.ParserErrors - m.ExplicitAnyErrors - m.ImportOrderIssues -
		m.UnusedVariables - m.ReactHooksIssues - m.ConsoleStatements
	if n < 0 {
		return 0
	}
	return n
}

func capped(v, limit float64) float64 {
	return math.Min(v, limit)
}
