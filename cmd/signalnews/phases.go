package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/signal-news/internal/phase"
)

func newPhasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "phases [message...]",
		Short: "List generation phases or classify step messages",
		Long: `Without arguments, prints every phase with the percentage reached when it
starts. With arguments, prints the phase each message maps to.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if len(args) == 0 {
				fmt.Fprintln(w, "PHASE\tTITLE\tPERCENT")
				for _, p := range phase.All() {
					fmt.Fprintf(w, "%s\t%s\t%.0f%%\n", p.ID, p.Title, phase.Percent(p))
				}
				return w.Flush()
			}
			fmt.Fprintln(w, "MESSAGE\tPHASE\tPERCENT")
			for _, msg := range args {
				p, ok := phase.Match(msg)
				if !ok {
					fmt.Fprintf(w, "%s\t-\t-\n", msg)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%.0f%%\n", msg, p.ID, phase.Percent(p))
			}
			return w.Flush()
		},
	}
}
