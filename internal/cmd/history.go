package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sweep/internal/quality"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded quality snapshots",
		Long: `List the most recent quality snapshots from the history file
(paths.history), oldest first. Failed collections are shown as unavailable.

Examples:
  sweep history
  sweep history --limit 50 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return fmt.Errorf("invalid flag --limit: must not be negative")
			}
			env, cleanup, err := setupEnvironment(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			store := quality.NewHistoryStore(env.cfg.Paths.History, env.logger)
			records, err := store.Recent(limit)
			if err != nil {
				return err
			}
			if records == nil {
				records = []quality.QualityMetrics{}
			}
			return env.print(historyList(records))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of snapshots to show, 0 for all")
	return cmd
}
