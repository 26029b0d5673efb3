package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sweep/internal/ux"
	"github.com/felixgeelhaar/sweep/internal/version"
)

func newVersionCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			info := version.GetInfo()

			if ux.IsStructured(format) {
				formatter, err := ux.NewFormatter(format, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
				if err != nil {
					return err
				}
				return formatter.Format(info)
			}

			if verbose {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), info.String())
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "sweep %s\n", info.Version)
			return err
		},
	}

	cmd.Flags().BoolVar(&verbose, "long", false, "show detailed version information")
	return cmd
}
