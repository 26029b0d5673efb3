// Package cmd implements the sweep command line.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sweep/internal/exitcode"
)

// NewRootCommand builds the sweep command tree
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "sweep",
		Short: "Campaign deployment and code quality regression monitoring",
		Long: `sweep runs deployment campaigns (ordered phases of shell tasks, validation
checks and success criteria, rolled back on failure) and monitors code
quality over time, alerting when static analysis results regress.

` + exitCodeHelp(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default .sweep/config.yaml, or $SWEEP_CONFIG)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json, auto")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.String("format", "text", "output format: text, json, yaml")

	root.AddCommand(
		newDeployCmd(),
		newValidateCmd(),
		newMonitorCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)
	return root
}

func exitCodeHelp() string {
	var b strings.Builder
	b.WriteString("Exit codes:\n")
	for _, code := range exitcode.Codes() {
		fmt.Fprintf(&b, "  %-4d %s\n", code, exitcode.GetExitCodeDescription(code))
	}
	return b.String()
}

// ExecuteContext runs the root command with ctx
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
