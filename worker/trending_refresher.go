package worker

import (
	"context"
	"log/slog"
	"time"

	"bepro/internal/model"
	"bepro/internal/recommend"
)

// PostLister loads candidate posts, newest first.
type PostLister interface {
	ListPosts(ctx context.Context, limit int) ([]model.Post, error)
}

// TrendingBoard stores the trending leaderboard.
type TrendingBoard interface {
	SetTrending(ctx context.Context, posts []model.ScoredPost) error
}

// TrendingRefresher periodically scores the candidate posts by engagement
// and replaces the trending leaderboard.
type TrendingRefresher struct {
	Posts    PostLister
	Board    TrendingBoard
	Interval time.Duration
	Limit    int // candidate posts considered
	TopN     int // leaderboard size
}

func (w *TrendingRefresher) Start(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = 10 * time.Minute
	}
	w.runOnce(ctx)

	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.runOnce(ctx)
		}
	}
}

func (w *TrendingRefresher) runOnce(ctx context.Context) {
	if err := w.RunOnce(ctx); err != nil {
		slog.Error("trending: refresh failed", "error", err)
	}
}

// RunOnce rebuilds the leaderboard from the current candidates.
func (w *TrendingRefresher) RunOnce(ctx context.Context) error {
	posts, err := w.Posts.ListPosts(ctx, w.Limit)
	if err != nil {
		return err
	}
	ranked := recommend.Trending(posts)
	// posts nobody engaged with only add noise
	kept := ranked[:0]
	for _, sp := range ranked {
		if sp.Score > 0 {
			kept = append(kept, sp)
		}
	}
	if w.TopN > 0 && len(kept) > w.TopN {
		kept = kept[:w.TopN]
	}
	if err := w.Board.SetTrending(ctx, kept); err != nil {
		return err
	}
	slog.Info("trending: leaderboard refreshed", "candidates", len(posts), "ranked", len(kept))
	return nil
}
