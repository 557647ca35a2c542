package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var suggestLimit int

// suggestCmd prints people-you-may-know for a user.
var suggestCmd = &cobra.Command{
	Use:   "suggest <user>",
	Short: "Print follow suggestions for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.resolveUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		sugg, err := a.feed.Suggestions(cmd.Context(), u.ID, suggestLimit)
		if err != nil {
			return err
		}
		if len(sugg) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no suggestions")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "USERNAME\tSCORE\tSIMILARITY\tMUTUAL")
		for _, s := range sugg {
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%d\n", s.Profile.Username, s.Score, s.Similarity, s.Mutual)
		}
		return tw.Flush()
	},
}

func init() {
	suggestCmd.Flags().IntVar(&suggestLimit, "limit", 10, "max suggestions")
	rootCmd.AddCommand(suggestCmd)
}
