package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/sweep/internal/alert"
	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/exitcode"
	"github.com/felixgeelhaar/sweep/internal/metrics"
	"github.com/felixgeelhaar/sweep/internal/monitor"
	"github.com/felixgeelhaar/sweep/internal/quality"
	"github.com/felixgeelhaar/sweep/internal/ux"
)

type monitorOptions struct {
	watch            []string
	watchConfigured  bool
	interval         time.Duration
	schedule         bool
	metricsAddr      string
	failOnRegression bool
}

func newMonitorCmd() *cobra.Command {
	opts := &monitorOptions{}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Collect quality metrics, detect regressions and send alerts",
		Long: `Run static analysis, compare the result with the recorded history,
raise alerts for threshold breaches and regressions, write the markdown
report and append the snapshot to the history.

Without --watch, --schedule or --interval a single run is performed.

Examples:
  sweep monitor
  sweep monitor --fail-on-regression
  sweep monitor --interval 10m --metrics-addr :9090
  sweep monitor --watch src --watch lib`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&opts.watch, "watch", nil, "re-run after changes under these paths")
	flags.BoolVar(&opts.watchConfigured, "watch-config", false, "re-run after changes under monitor.watchPaths")
	flags.DurationVar(&opts.interval, "interval", 0, "re-run on this interval")
	flags.BoolVar(&opts.schedule, "schedule", false, "re-run on monitor.interval")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	flags.BoolVar(&opts.failOnRegression, "fail-on-regression", false, "exit non-zero on a regression or critical alert (single run only)")
	return cmd
}

func runMonitor(cmd *cobra.Command, opts *monitorOptions) error {
	if opts.interval < 0 {
		return fmt.Errorf("invalid flag --interval: must be positive, got %s", opts.interval)
	}
	env, cleanup, err := setupEnvironment(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	m := buildMonitor(env)

	if opts.metricsAddr != "" {
		srv, err := metrics.Serve(opts.metricsAddr, nil, env.logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Close(shutdownCtx)
		}()
	}

	watchPaths := opts.watch
	if opts.watchConfigured {
		watchPaths = append(watchPaths, env.cfg.Monitor.WatchPaths...)
	}
	interval := opts.interval
	if opts.schedule && interval == 0 {
		interval = env.cfg.Monitor.Interval
	}

	report := func(trigger string) monitor.Handler {
		return func(res monitor.Result, err error) {
			if err != nil && !isInterrupted(err) {
				env.logger.LogErrorContext(ctx, err)
			}
			if perr := env.print(newMonitorSummary(trigger, env.cfg.Paths.Report, res, err)); perr != nil {
				env.logger.Warn("failed to print monitoring result", "error", perr)
			}
		}
	}

	if len(watchPaths) == 0 && interval == 0 && !opts.schedule {
		res, err := m.RunOnce(ctx, "once")
		report("once")(res, err)
		if err != nil {
			return err
		}
		if opts.failOnRegression {
			return gate(res)
		}
		return nil
	}

	if opts.schedule && interval <= 0 {
		source := env.cfg.Source
		if source == "" {
			source = "defaults"
		}
		return errors.NewConfigInvalidError(source, "monitor.interval must be positive")
	}

	g, gctx := errgroup.WithContext(ctx)
	if interval > 0 {
		g.Go(func() error {
			return m.Schedule(gctx, interval, report("schedule"))
		})
	}
	if len(watchPaths) > 0 {
		g.Go(func() error {
			return m.Watch(gctx, watchPaths, env.cfg.Monitor.Debounce, report("watch"))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// buildMonitor wires the collector, history, analyzer and alerting
func buildMonitor(env *environment) *monitor.Monitor {
	consoleOut := env.out
	if ux.IsStructured(env.cc.Format) {
		consoleOut = env.errOut
	}
	channels := alert.NewRegistry()
	alert.RegisterBuiltinChannels(channels, env.runner, consoleOut)

	return monitor.New(monitor.Options{
		Collector:            env.newCollector(""),
		History:              quality.NewHistoryStore(env.cfg.Paths.History, env.logger),
		Analyzer:             quality.NewRegressionAnalyzer(env.cfg.Regression),
		Engine:               alert.NewEngine(env.cfg.Thresholds, channels, env.logger),
		Alerting:             env.cfg.Alerting,
		ReportPath:           env.cfg.Paths.Report,
		ExplicitAnyThreshold: env.cfg.Quality.ExplicitAnyThreshold,
		Metrics:              env.metrics,
		Logger:               env.logger,
	})
}

// gate maps a single run to the exit code of --fail-on-regression.
// Critical alerts take precedence over regressions.
func gate(res monitor.Result) error {
	for _, a := range res.Alerts {
		if a.Severity == quality.SeverityCritical {
			return exitcode.WithCode(exitcode.CriticalAlert,
				fmt.Errorf("critical quality alert on %s: %s", a.Metric, a.Message))
		}
	}
	if res.Analysis.Detected {
		return exitcode.WithCode(exitcode.RegressionDetected,
			fmt.Errorf("quality regression detected in %s", strings.Join(res.Analysis.AffectedMetrics, ", ")))
	}
	return nil
}
