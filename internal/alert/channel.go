// Package alert turns quality snapshots and regression analyses into alerts
// and delivers them to the configured notification channels.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/sweep/internal/quality"
)

// DefaultChannelTimeout bounds a channel that does not set timeoutMs
const DefaultChannelTimeout = 10 * time.Second

// Channel delivers a batch of alerts
type Channel interface {
	// Name returns the configured channel name
	Name() string

	// Send delivers the batch. It must honour ctx cancellation.
	Send(ctx context.Context, alerts []quality.Alert) error
}

// ChannelConfig describes one notification channel
type ChannelConfig struct {
	Name string `yaml:"name" json:"name" validate:"required"`

	// Type selects the factory: console, file, webhook, slack or script
	Type string `yaml:"type" json:"type" validate:"required"`

	// Config holds type specific settings such as url, path or run
	Config map[string]string `yaml:"config" json:"config"`

	// Headers are added to webhook requests
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// SeverityFilter limits the channel to these severities; empty means all
	SeverityFilter []quality.Severity `yaml:"severityFilter,omitempty" json:"severityFilter,omitempty" validate:"dive,oneof=critical error warning"`

	TimeoutMs int `yaml:"timeoutMs,omitempty" json:"timeoutMs,omitempty" validate:"gte=0"`
}

// Timeout returns the per-channel delivery timeout
func (c ChannelConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return DefaultChannelTimeout
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Accepts reports whether the channel's severity filter admits s
func (c ChannelConfig) Accepts(s quality.Severity) bool {
	if len(c.SeverityFilter) == 0 {
		return true
	}
	for _, f := range c.SeverityFilter {
		if f == s {
			return true
		}
	}
	return false
}

// Filter returns the alerts the channel accepts, in order
func (c ChannelConfig) Filter(alerts []quality.Alert) []quality.Alert {
	var out []quality.Alert
	for _, a := range alerts {
		if c.Accepts(a.Severity) {
			out = append(out, a)
		}
	}
	return out
}

func (c ChannelConfig) setting(key string) (string, error) {
	v := c.Config[key]
	if v == "" {
		return "", fmt.Errorf("channel %s: config.%s is required", c.Name, key)
	}
	return v, nil
}

// AlertingConfig is the alerting section of the sweep config
type AlertingConfig struct {
	Enabled  bool            `yaml:"enabled" json:"enabled"`
	Channels []ChannelConfig `yaml:"channels" json:"channels" validate:"dive"`
}

// ChannelResult records one channel's delivery
type ChannelResult struct {
	Channel  string        `json:"channel"`
	Sent     int           `json:"sent"`
	Skipped  bool          `json:"skipped,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// DispatchReport is the outcome of one Dispatch call, one result per
// configured channel in configuration order
type DispatchReport struct {
	Results []ChannelResult `json:"results"`
}

// Failed returns the results of channels that could not deliver
func (r DispatchReport) Failed() []ChannelResult {
	var out []ChannelResult
	for _, res := range r.Results {
		if res.Error != "" {
			out = append(out, res)
		}
	}
	return out
}

// Delivered counts alerts handed to channels successfully
func (r DispatchReport) Delivered() int {
	n := 0
	for _, res := range r.Results {
		if res.Error == "" {
			n += res.Sent
		}
	}
	return n
}
