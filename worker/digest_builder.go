package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bepro/internal/digest"
	"bepro/internal/feed"
	"bepro/internal/model"
)

// Profiles lists the users who get a digest.
type Profiles interface {
	ListProfiles(ctx context.Context, limit int) ([]model.UserProfile, error)
}

// Ranker produces a user's personalized feed.
type Ranker interface {
	Feed(ctx context.Context, userID string, mode feed.Mode, query string, limit int) ([]model.ScoredPost, error)
}

// DigestBuilder writes each user's top posts to
// <OutputDir>/<username>/digest-YYYYMMDD.md.
type DigestBuilder struct {
	Profiles  Profiles
	Feed      Ranker
	OutputDir string
	TopN      int
	Title     string // supports {.CurrentDate} and {.Username}
	Preface   string
	Now       func() time.Time
}

func (w *DigestBuilder) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// RunOnce builds a digest for every profile. Per-user failures are logged
// and joined into the returned error.
func (w *DigestBuilder) RunOnce(ctx context.Context) error {
	profiles, err := w.Profiles.ListProfiles(ctx, 0)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	var errs []error
	written := 0
	for _, p := range profiles {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := w.Build(ctx, p); err != nil {
			slog.Error("digest: build failed", "user", p.Username, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Username, err))
			continue
		}
		written++
	}
	slog.Info("digest: run finished", "profiles", len(profiles), "written", written)
	return errors.Join(errs...)
}

// Build renders and writes one user's digest, returning the file path.
func (w *DigestBuilder) Build(ctx context.Context, p model.UserProfile) (string, error) {
	topN := w.TopN
	if topN <= 0 {
		topN = 10
	}
	posts, err := w.Feed.Feed(ctx, p.ID, feed.Recommended, "", topN)
	if err != nil {
		return "", err
	}
	now := w.now().UTC()
	name := w.filename(now)
	data := digest.Data{
		Title:    w.title(now, p.Username),
		Slug:     strings.TrimSuffix(name, ".md"),
		Datetime: now.Format("2006-01-02 15:04"),
		Username: p.Username,
		Preface:  digest.ExpandVars(w.Preface, now, p.Username),
		Items:    make([]digest.Item, 0, len(posts)),
	}
	for _, sp := range posts {
		data.Items = append(data.Items, digest.ItemFrom(sp))
	}
	md, err := digest.Render(data)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}

	dir := filepath.Join(w.OutputDir, safeDirName(p))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", err
	}
	slog.Info("digest: written", "user", p.Username, "path", path, "items", len(posts))
	return path, nil
}

func (w *DigestBuilder) filename(now time.Time) string {
	return fmt.Sprintf("digest-%s.md", now.Format("20060102"))
}

func (w *DigestBuilder) title(now time.Time, username string) string {
	t := strings.TrimSpace(w.Title)
	if t == "" {
		return fmt.Sprintf("Top posts for %s %s", username, now.Format("2006-01-02"))
	}
	return digest.ExpandVars(t, now, username)
}

// safeDirName keeps usernames from escaping OutputDir.
func safeDirName(p model.UserProfile) string {
	name := strings.TrimSpace(p.Username)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return p.ID
	}
	return name
}
