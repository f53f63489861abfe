package main

import (
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "signalnews",
		Short: "Signal News report service.",
		Long: `signalnews serves the Signal News API: a daily news feed, trending topics and
simulated report generation with live progress. It also runs a generation
locally in the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(
		newServeCmd(opts),
		newGenerateCmd(opts),
		newPhasesCmd(),
	)
	return cmd
}
