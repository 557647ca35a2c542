package worker

import (
	"context"
	"log/slog"
	"time"

	"bepro/internal/ai"
	"bepro/internal/model"
)

// RatingStore reads unrated posts and persists their factor.
type RatingStore interface {
	UnratedPosts(ctx context.Context, limit int) ([]model.Post, error)
	SetSensationalism(ctx context.Context, postID string, factor float64) error
}

// RatingMarks remembers recent rating attempts.
type RatingMarks interface {
	IsRated(ctx context.Context, postID string) (bool, error)
	MarkRated(ctx context.Context, postID string, d time.Duration) error
}

// SensationalismRater asks the model to rate unrated posts in batches.
// A post whose rating fails is left alone for RetryAfter.
type SensationalismRater struct {
	Store      RatingStore
	Marks      RatingMarks
	Rater      ai.Rater
	Interval   time.Duration
	Batch      int
	RetryAfter time.Duration
}

func (w *SensationalismRater) Start(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = 15 * time.Minute
	}
	w.RunOnce(ctx)

	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce rates one batch and returns how many posts were rated.
func (w *SensationalismRater) RunOnce(ctx context.Context) int {
	batch := w.Batch
	if batch <= 0 {
		batch = 20
	}
	retry := w.RetryAfter
	if retry <= 0 {
		retry = 6 * time.Hour
	}
	// over-fetch so recently failed posts do not starve the batch
	posts, err := w.Store.UnratedPosts(ctx, batch*3)
	if err != nil {
		slog.Error("rater: load unrated posts failed", "error", err)
		return 0
	}
	rated := 0
	for _, p := range posts {
		if rated >= batch || ctx.Err() != nil {
			break
		}
		if w.Marks != nil {
			if seen, err := w.Marks.IsRated(ctx, p.ID); err != nil {
				slog.Warn("rater: mark check failed", "id", p.ID, "error", err)
			} else if seen {
				continue
			}
		}
		factor, err := w.Rater.RateSensationalism(ctx, p.Content)
		if w.Marks != nil {
			if merr := w.Marks.MarkRated(ctx, p.ID, retry); merr != nil {
				slog.Warn("rater: mark failed", "id", p.ID, "error", merr)
			}
		}
		if err != nil {
			slog.Error("rater: rate post failed", "id", p.ID, "error", err)
			continue
		}
		if err := w.Store.SetSensationalism(ctx, p.ID, factor); err != nil {
			slog.Error("rater: save factor failed", "id", p.ID, "error", err)
			continue
		}
		rated++
	}
	if rated > 0 {
		slog.Info("rater: rated posts", "count", rated)
	}
	return rated
}
