package cmd

import (
	"fmt"

	"bepro/internal/redisclient"
	"bepro/internal/storage"

	"github.com/spf13/cobra"
)

// redisCmd groups Redis-related subcommands.
var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis utilities",
}

var redisPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping Redis and print PONG",
	RunE: func(cmd *cobra.Command, args []string) error {
		rdb := redisclient.New(GetConfig().Redis)
		defer rdb.Close()

		res, err := redisclient.Ping(cmd.Context(), rdb)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res)
		return nil
	},
}

// redisClearFeedCmd drops every cached feed mode for a user.
var redisClearFeedCmd = &cobra.Command{
	Use:   "clear-feed <user>",
	Short: "Delete a user's cached feeds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.resolveUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := a.cache.InvalidateFeeds(cmd.Context(), u.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared cached feeds for %s\n", u.Username)
		return nil
	},
}

var trendingLimit int

// redisTrendingCmd prints the leaderboard written by the trending refresher.
var redisTrendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Print the trending leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		rdb := redisclient.New(GetConfig().Redis)
		defer rdb.Close()

		top, err := storage.NewRedisStore(rdb).TopTrending(cmd.Context(), trendingLimit)
		if err != nil {
			return err
		}
		for i, r := range top {
			fmt.Fprintf(cmd.OutOrStdout(), "%3d  %8.2f  %s\n", i+1, r.Score, r.ID)
		}
		return nil
	},
}

func init() {
	redisTrendingCmd.Flags().IntVar(&trendingLimit, "limit", 20, "entries to print, 0 for all")
	redisCmd.AddCommand(redisPingCmd, redisClearFeedCmd, redisTrendingCmd)
	rootCmd.AddCommand(redisCmd)
}
