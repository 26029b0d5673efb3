package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/sweep/internal/campaign"
	"github.com/felixgeelhaar/sweep/internal/config"
	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/exitcode"
	"github.com/felixgeelhaar/sweep/internal/telemetry"
)

type deployOptions struct {
	campaignPath string
	only         []string
	journalDir   string
}

func newDeployCmd() *cobra.Command {
	opts := &deployOptions{}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Run a deployment campaign",
		Long: `Run the phases of a campaign in order. Each phase checks its prerequisites,
runs its tasks, runs its validation checks and evaluates its success
criteria; a failed phase runs its rollback tasks and stops the campaign.

Every run is recorded as a JSON journal under paths.deployments.

Examples:
  sweep deploy -c campaign.yaml
  sweep deploy -c campaign.yaml --only build,test
  sweep deploy -c campaign.yaml --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDeploy(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.campaignPath, "campaign", "c", "", "campaign file")
	cmd.Flags().StringSliceVar(&opts.only, "only", nil, "run only these phase IDs, in campaign order")
	cmd.Flags().StringVar(&opts.journalDir, "journal-dir", "", "directory for the run journal (default paths.deployments)")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

func runDeploy(cmd *cobra.Command, opts *deployOptions) (err error) {
	env, cleanup, err := setupEnvironment(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, span := telemetry.StartCommandSpan(cmd.Context(), "deploy")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	registry := env.checkRegistry()
	c, err := campaign.Load(opts.campaignPath, registry)
	if err != nil {
		return err
	}
	for _, w := range c.Warnings {
		env.logger.Warn("campaign warning", "campaign", c.Name, "warning", w)
	}

	phases, err := selectPhases(c, opts.campaignPath, opts.only)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String("campaign.name", c.Name),
		attribute.Int("campaign.phases", len(phases)),
	)

	manager := campaign.NewManager(env.runner, campaign.Options{
		Logger:          env.logger,
		WorkDir:         c.WorkDir,
		Observer:        env.metrics,
		ConfigValidator: revalidate(env.cc.ConfigPath, opts.campaignPath, registry),
	})
	journal := manager.Deploy(ctx, phases, campaign.NewJournal(c.Name, c.Fingerprint))

	dir := opts.journalDir
	if dir == "" {
		dir = env.cfg.Paths.Deployments
	}
	journalPath, saveErr := journal.Save(dir)
	if saveErr != nil {
		env.logger.LogErrorContext(ctx, saveErr)
	}

	summary := newDeploySummary(c.Name, journal.RunID(), journalPath, len(phases), journal.Results())
	if err := env.print(summary); err != nil {
		return err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if !summary.Success {
		return exitcode.WithCode(exitcode.DeploymentFailed,
			fmt.Errorf("deployment failed at phase %s", summary.FailedPhase))
	}
	return saveErr
}

// selectPhases applies --only, rejecting IDs the campaign does not define
func selectPhases(c *campaign.Campaign, path string, only []string) ([]campaign.Phase, error) {
	for _, id := range only {
		id = strings.TrimSpace(id)
		if _, ok := c.Phase(id); !ok {
			return nil, errors.NewConfigInvalidError(path, fmt.Sprintf("unknown phase %q in --only", id))
		}
	}
	phases := c.Select(only)
	if len(phases) == 0 {
		return nil, errors.NewConfigInvalidError(path, "no phases to run")
	}
	return phases, nil
}

// revalidate backs the configurationValid criterion: both the sweep
// configuration and the campaign file must still load
func revalidate(configPath, campaignPath string, registry *campaign.CustomCheckRegistry) campaign.ConfigValidator {
	return func(context.Context) error {
		if _, err := config.Load(configPath); err != nil {
			return err
		}
		_, err := campaign.Load(campaignPath, registry)
		return err
	}
}

// isInterrupted reports whether err stems from cancellation of the command
func isInterrupted(err error) bool {
	return stderrors.Is(err, context.Canceled)
}
