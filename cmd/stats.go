package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statsCmd prints table totals and the most used tags.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print database counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.feed.Counts(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "profiles: %d\nposts:    %d (%d unrated)\nevents:   %d\nfollows:  %d\nmissions: %d\n",
			c.Profiles, c.Posts, c.Unrated, c.Events, c.Follows, c.Missions)
		if len(c.TopTags) > 0 {
			fmt.Fprintln(w, "top tags:")
			for _, t := range c.TopTags {
				fmt.Fprintf(w, "  %-20s %d\n", t.Tag, t.Count)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
