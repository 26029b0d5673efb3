package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sweep/internal/campaign"
	"github.com/felixgeelhaar/sweep/internal/telemetry"
)

func newValidateCmd() *cobra.Command {
	var campaignPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a campaign file without running it",
		Long: `Load and validate a campaign file and list its phases, tasks, checks
and success criteria. Nothing is executed.

Examples:
  sweep validate -c campaign.yaml
  sweep validate -c campaign.yaml --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			env, cleanup, err := setupEnvironment(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			_, span := telemetry.StartCommandSpan(cmd.Context(), "validate")
			defer func() {
				telemetry.RecordError(span, err)
				span.End()
			}()

			c, err := campaign.Load(campaignPath, env.checkRegistry())
			if err != nil {
				return err
			}
			for _, w := range c.Warnings {
				env.logger.Warn("campaign warning", "campaign", c.Name, "warning", w)
			}
			return env.print(newCampaignOverview(c))
		},
	}

	cmd.Flags().StringVarP(&campaignPath, "campaign", "c", "", "campaign file")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}
