package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sweep/internal/campaign"
	"github.com/felixgeelhaar/sweep/internal/config"
	"github.com/felixgeelhaar/sweep/internal/log"
	"github.com/felixgeelhaar/sweep/internal/metrics"
	"github.com/felixgeelhaar/sweep/internal/monitor"
	"github.com/felixgeelhaar/sweep/internal/process"
	"github.com/felixgeelhaar/sweep/internal/quality"
	"github.com/felixgeelhaar/sweep/internal/telemetry"
	"github.com/felixgeelhaar/sweep/internal/ux"
	"github.com/felixgeelhaar/sweep/internal/version"
)

// environment is everything a command needs once flags and config are read
type environment struct {
	cc      *CommandContext
	cfg     *config.Config
	logger  *log.Logger
	metrics *metrics.Metrics
	runner  process.Runner
	out     io.Writer
	errOut  io.Writer
	format  ux.Formatter
}

// setupEnvironment loads the configuration and configures logging, metrics
// and tracing. The returned cleanup flushes telemetry and must be deferred.
func setupEnvironment(cmd *cobra.Command) (*environment, func(), error) {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create command context: %w", err)
	}

	formatter, err := ux.NewFormatter(cc.Format, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
	if err != nil {
		return nil, nil, fmt.Errorf("invalid flag --format: %w", err)
	}

	cfg, err := config.Load(cc.ConfigPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := setupLogging(cfg, cc, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}

	env := &environment{
		cc:      cc,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.InitDefault(),
		runner:  process.NewExecRunner(logger),
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		format:  formatter,
	}
	if cfg.Source != "" {
		logger.Debug("configuration loaded", "path", cfg.Source)
	}

	return env, setupTelemetry(cmd.Context(), cfg, logger), nil
}

func setupLogging(cfg *config.Config, cc *CommandContext, w io.Writer) (*log.Logger, error) {
	lc := cfg.LogConfig()
	if cc.LogLevel != "" {
		level, err := log.ParseLevel(cc.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid flag --log-level: %w", err)
		}
		lc.Level = level
	}
	if cc.Verbose {
		lc.Level = log.LevelDebug
	}
	if cc.LogFormat != "" {
		lc.Format = log.ParseFormat(cc.LogFormat)
	}
	lc.Output = log.NewOutput(w)
	lc.ServiceVersion = version.GetInfo().Version

	logger := log.New(lc)
	log.SetDefaultLogger(logger)
	return logger, nil
}

func setupTelemetry(ctx context.Context, cfg *config.Config, logger *log.Logger) func() {
	if !cfg.Telemetry.Enabled {
		return func() {}
	}

	tc := cfg.Telemetry
	tc.ServiceVersion = version.GetInfo().Version
	shutdown, err := telemetry.InitProvider(ctx, tc)
	if err != nil {
		logger.Warn("Failed to initialize telemetry", "error", err)
		return func() {}
	}

	logger.Debug("Telemetry enabled",
		"endpoint", tc.Endpoint,
		"sample_rate", tc.SampleRate,
	)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush telemetry", "error", err)
		}
	}
}

// newCollector builds a quality collector running in workDir
func (e *environment) newCollector(workDir string) monitor.Collector {
	return quality.NewCollector(e.runner, e.cfg.CollectorConfig(workDir), e.logger)
}

// checkRegistry returns the custom checks campaigns may reference
func (e *environment) checkRegistry() *campaign.CustomCheckRegistry {
	registry := campaign.NewCustomCheckRegistry()
	campaign.RegisterBuiltinChecks(registry, e.runner)
	monitor.RegisterQualityChecks(registry, e.newCollector)
	return registry
}

// print writes a command result in the selected output format
func (e *environment) print(data any) error {
	return e.format.Format(data)
}
