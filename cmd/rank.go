package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"bepro/internal/feed"

	"github.com/spf13/cobra"
)

var (
	rankMode  string
	rankQuery string
	rankLimit int
)

// rankCmd prints a user's feed the way the API would serve it.
var rankCmd = &cobra.Command{
	Use:   "rank <user>",
	Short: "Print a ranked feed for a user (id or username)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := feed.ParseMode(rankMode)
		if err != nil {
			return err
		}
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.resolveUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		posts, err := a.feed.Feed(cmd.Context(), u.ID, mode, rankQuery, rankLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tSCORE\tID\tAUTHOR\tTAGS\tHEADLINE")
		for i, sp := range posts {
			headline, _, _ := strings.Cut(strings.TrimSpace(sp.Post.Content), "\n")
			if r := []rune(headline); len(r) > 60 {
				headline = string(r[:59]) + "…"
			}
			fmt.Fprintf(tw, "%d\t%.2f\t%s\t%s\t%s\t%s\n", i+1, sp.Score, sp.Post.ID, sp.Post.AuthorName, strings.Join(sp.Post.Tags, ","), headline)
		}
		return tw.Flush()
	},
}

func init() {
	rankCmd.Flags().StringVar(&rankMode, "mode", string(feed.Recommended), "recommended|trending|recent|lowCringe")
	rankCmd.Flags().StringVarP(&rankQuery, "query", "q", "", "case-insensitive filter on content, author or tags")
	rankCmd.Flags().IntVar(&rankLimit, "limit", 20, "max posts to print")
	rootCmd.AddCommand(rankCmd)
}
