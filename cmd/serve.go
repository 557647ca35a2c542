package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bepro/internal/redisclient"
	"bepro/internal/server"
	"bepro/internal/stats"
	"bepro/worker"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()
		cfg := a.cfg

		if _, err := redisclient.Ping(cmd.Context(), a.rdb); err != nil {
			return err
		}
		if cfg.App.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		statsCache := &stats.Cache{TTL: time.Minute, Load: a.store.Counts}
		srv := server.New(server.Config{
			Addr:         cfg.Server.Addr,
			ReadTimeout:  a.dur.ReadTimeout,
			WriteTimeout: a.dur.WriteTimeout,
		}, a.feed, statsCache)

		ws := []worker.Worker{
			srv,
			&worker.TrendingRefresher{
				Posts:    a.store,
				Board:    a.cache,
				Interval: a.dur.TrendingInterval,
				Limit:    cfg.Ranking.CandidateLimit,
				TopN:     100,
			},
		}
		if a.ai != nil {
			slog.Info("serve: sensationalism rater enabled", "model", cfg.OpenAI.Model)
			ws = append(ws, &worker.SensationalismRater{
				Store:    a.store,
				Marks:    a.cache,
				Rater:    a.ai,
				Interval: a.dur.RatingInterval,
			})
		} else {
			slog.Info("serve: openai.api_key not set, rater and missions disabled")
		}

		sched := worker.NewScheduler(time.Local, 0)
		builder := &worker.DigestBuilder{
			Profiles:  a.store,
			Feed:      a.feed,
			OutputDir: cfg.Digest.OutputDir,
			TopN:      cfg.Digest.TopN,
			Title:     cfg.Digest.Title,
			Preface:   cfg.Digest.Preface,
		}
		if err := sched.AddJob("digest", cfg.Digest.Schedule, builder.RunOnce); err != nil {
			return err
		}
		ws = append(ws, sched)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			select {
			case s := <-sigc:
				slog.Info("serve: received signal, shutting down", "signal", s.String())
				cancel()
			case <-ctx.Done():
			}
		}()

		return worker.NewManager(ws...).Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
