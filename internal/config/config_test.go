package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/log"
	"github.com/felixgeelhaar/sweep/internal/quality"
)

// chdir moves into a fresh directory and clears the SWEEP_ variables
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{EnvConfig, EnvLogLevel, EnvLogFormat, EnvQualityCommand, EnvAlertingEnabled, EnvSlackWebhookURL} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return dir
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	chdir(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Source)
	assert.Equal(t, "npx", cfg.Quality.Command)
	assert.Equal(t, 70.0, cfg.Thresholds.MinQualityScore)
	assert.Equal(t, 0.10, cfg.Regression.Tolerance)
	assert.Equal(t, ".sweep/quality-history.jsonl", cfg.Paths.History)
	assert.True(t, cfg.Alerting.Enabled)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	chdir(t)

	_, err := Load("nope.yaml")
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigNotFound))
}

func TestLoadFile(t *testing.T) {
	dir := chdir(t)
	writeConfig(t, filepath.Join(dir, DefaultPath), `
logging:
  level: debug
quality:
  command: pnpm
  args: [eslint, --format, json, src]
  timeoutMs: 60000
  rules:
    no-restricted-syntax: explicitAnyErrors
thresholds:
  minQualityScore: 80
  explicitAny: 50
regression:
  tolerance: 0.2
  scoreDrop: 3
alerting:
  enabled: true
  channels:
    - name: ops
      type: webhook
      config:
        url: https://hooks.example.com/sweep
      severityFilter: [critical, error]
      timeoutMs: 2000
monitor:
  interval: 5m
`)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPath, cfg.Source)
	assert.Equal(t, log.LevelDebug, cfg.LogConfig().Level)
	assert.Equal(t, 80.0, cfg.Thresholds.MinQualityScore)
	assert.Equal(t, 0.2, cfg.Regression.Tolerance)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.Interval)
	require.Len(t, cfg.Alerting.Channels, 1)
	assert.Equal(t, 2*time.Second, cfg.Alerting.Channels[0].Timeout())

	cc := cfg.CollectorConfig("/repo")
	assert.Equal(t, "pnpm", cc.Command)
	assert.Equal(t, "/repo", cc.Dir)
	assert.Equal(t, time.Minute, cc.Timeout)
	assert.Equal(t, quality.CounterExplicitAny, cc.Rules["no-restricted-syntax"])
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "bad yaml", content: "quality: [", want: "CONFIG-003"},
		{name: "bad log level", content: "logging:\n  level: loud\n", want: "logging.level must be one of"},
		{name: "unknown counter", content: "quality:\n  rules:\n    eqeqeq: strictness\n", want: `unknown counter "strictness"`},
		{name: "bad severity filter", content: "alerting:\n  channels:\n    - {name: a, type: console, severityFilter: [info]}\n", want: "severityFilter"},
		{name: "duplicate channel", content: "alerting:\n  channels:\n    - {name: a, type: console}\n    - {name: a, type: file}\n", want: `duplicate channel name "a"`},
		{name: "score out of range", content: "thresholds:\n  minQualityScore: 120\n", want: "minQualityScore"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chdir(t)
			path := filepath.Join(dir, "sweep.yaml")
			writeConfig(t, path, tt.content)

			_, err := Load(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := chdir(t)
	writeConfig(t, filepath.Join(dir, ".env"), "SWEEP_SLACK_WEBHOOK_URL=https://hooks.slack.example/T000\n")
	t.Setenv(EnvLogFormat, "JSON")
	t.Setenv(EnvQualityCommand, "yarn eslint -f json .")
	t.Setenv(EnvAlertingEnabled, "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, log.FormatJSON, cfg.LogConfig().Format)
	assert.Equal(t, "yarn", cfg.Quality.Command)
	assert.Equal(t, []string{"eslint", "-f", "json", "."}, cfg.Quality.Args)
	assert.False(t, cfg.Alerting.Enabled)

	require.Len(t, cfg.Alerting.Channels, 2)
	assert.Equal(t, "slack", cfg.Alerting.Channels[1].Type)
	assert.Equal(t, "https://hooks.slack.example/T000", cfg.Alerting.Channels[1].Config["webhookUrl"])
}

func TestEnvConfigPath(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "custom.yaml")
	writeConfig(t, path, "thresholds:\n  minQualityScore: 90\n")
	t.Setenv(EnvConfig, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 90.0, cfg.Thresholds.MinQualityScore)
}

func TestBadAlertingEnv(t *testing.T) {
	chdir(t)
	t.Setenv(EnvAlertingEnabled, "sometimes")

	_, err := Load("")
	assert.ErrorContains(t, err, EnvAlertingEnabled)
}

func TestBlankQualityCommandEnv(t *testing.T) {
	chdir(t)
	t.Setenv(EnvQualityCommand, "   ")

	_, err := Load("")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))
	assert.ErrorContains(t, err, EnvQualityCommand)
}
