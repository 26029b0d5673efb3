package monitor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/sweep/internal/campaign"
)

// CollectorFactory builds a collector for a campaign working directory
type CollectorFactory func(workDir string) Collector

// RegisterQualityChecks adds custom checks that gate campaign phases on
// code quality:
//
//	quality-metrics-collectable  the static analysis tool produces a report
//	quality-score-at-least       with: {min: "80"}
func RegisterQualityChecks(registry *campaign.CustomCheckRegistry, newCollector CollectorFactory) {
	registry.Register("quality-metrics-collectable", func(workDir string, _ map[string]string) (campaign.CustomValidator, error) {
		return func(ctx context.Context) (bool, error) {
			m := newCollector(workDir).Collect(ctx)
			return !m.IsSentinel(), nil
		}, nil
	})

	registry.Register("quality-score-at-least", func(workDir string, params map[string]string) (campaign.CustomValidator, error) {
		raw := params["min"]
		if raw == "" {
			return nil, fmt.Errorf("parameter %q is required", "min")
		}
		floor, err := strconv.ParseFloat(raw, 64)
		if err != nil || floor < 0 || floor > 100 {
			return nil, fmt.Errorf("parameter %q must be a score between 0 and 100, got %q", "min", raw)
		}
		return func(ctx context.Context) (bool, error) {
			m := newCollector(workDir).Collect(ctx)
			if m.IsSentinel() {
				return false, fmt.Errorf("quality metrics unavailable: %s", m.Failure)
			}
			return m.QualityScore >= floor, nil
		}, nil
	})
}
