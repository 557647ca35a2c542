package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"bepro/internal/feed"
	"bepro/internal/markdown"
	"bepro/internal/model"
	"bepro/internal/recommend"
	"bepro/internal/storage"
)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "bepro.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTrendingRefresher(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	for _, p := range []model.Post{
		{ID: "quiet"},
		{ID: "warm", Likes: 2},
		{ID: "hot", Likes: 10, Comments: 3},
	} {
		require.NoError(t, store.UpsertPost(ctx, p))
	}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	board := storage.NewRedisStore(rdb)

	w := &TrendingRefresher{Posts: store, Board: board, Limit: 100, TopN: 10}
	require.NoError(t, w.RunOnce(ctx))

	top, err := board.TopTrending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 2, "posts without engagement are left out")
	assert.Equal(t, "hot", top[0].ID)
	assert.InDelta(t, recommend.Engagement(model.Post{Likes: 10, Comments: 3}), top[0].Score, 1e-9)
}

type fakeRatingStore struct {
	mu     sync.Mutex
	posts  []model.Post
	factor map[string]float64
}

func (f *fakeRatingStore) UnratedPosts(_ context.Context, limit int) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Post
	for _, p := range f.posts {
		if _, ok := f.factor[p.ID]; !ok {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRatingStore) SetSensationalism(_ context.Context, id string, v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.factor[id] = v
	return nil
}

type fakeMarks map[string]bool

func (m fakeMarks) IsRated(_ context.Context, id string) (bool, error) { return m[id], nil }
func (m fakeMarks) MarkRated(_ context.Context, id string, _ time.Duration) error {
	m[id] = true
	return nil
}

type fakeRater struct {
	calls int
}

func (r *fakeRater) RateSensationalism(_ context.Context, content string) (float64, error) {
	r.calls++
	if content == "broken" {
		return 0, errors.New("model unavailable")
	}
	return 0.6, nil
}

func TestSensationalismRater(t *testing.T) {
	store := &fakeRatingStore{
		posts: []model.Post{
			{ID: "a", Content: "ok"},
			{ID: "b", Content: "broken"},
			{ID: "c", Content: "ok"},
			{ID: "d", Content: "ok"},
		},
		factor: map[string]float64{},
	}
	marks := fakeMarks{}
	rater := &fakeRater{}
	w := &SensationalismRater{Store: store, Marks: marks, Rater: rater, Batch: 2}

	assert.Equal(t, 2, w.RunOnce(context.Background()))
	assert.Equal(t, 0.6, store.factor["a"])
	assert.Equal(t, 0.6, store.factor["c"])
	assert.True(t, marks["b"], "failed attempts are marked too")

	assert.Equal(t, 1, w.RunOnce(context.Background()))
	assert.Contains(t, store.factor, "d")
	assert.NotContains(t, store.factor, "b")
	assert.Equal(t, 4, rater.calls, "b is not retried while marked")
}

func TestDigestBuilder(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.UpsertProfile(ctx, model.UserProfile{ID: "u1", Username: "ana", Tags: []string{"go"}}))
	require.NoError(t, store.UpsertProfile(ctx, model.UserProfile{ID: "u2", Username: "../evil"}))
	require.NoError(t, store.UpsertPost(ctx, model.Post{ID: "p1", AuthorName: "bo", Content: "Go tip\nUse errgroup.", Tags: []string{"go"}}))

	now := time.Date(2025, 4, 9, 7, 0, 0, 0, time.UTC)
	out := t.TempDir()
	b := &DigestBuilder{
		Profiles:  store,
		Feed:      &feed.Service{Store: store, Scorer: &recommend.Scorer{Now: func() time.Time { return now }, Jitter: func() float64 { return 0 }}},
		OutputDir: out,
		TopN:      5,
		Title:     "Daily picks for {.Username}",
		Now:       func() time.Time { return now },
	}
	require.NoError(t, b.RunOnce(ctx))

	path := filepath.Join(out, "ana", "digest-20250409.md")
	doc, err := markdown.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Daily picks for ana", doc.Frontmatter["title"])
	assert.Equal(t, "digest-20250409", doc.Frontmatter["slug"])
	assert.Contains(t, doc.Body, "## 1. Go tip")

	_, err = os.Stat(filepath.Join(out, "u2", "digest-20250409.md"))
	assert.NoError(t, err, "unsafe usernames fall back to the id")
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(time.UTC, 0)
	assert.Error(t, s.AddJob("bad", "every now and then", func(context.Context) error { return nil }))
	require.NoError(t, s.AddJob("digest", "0 7 * * *", func(context.Context) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return !s.Next().IsZero() }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 7, s.Next().Hour())
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type stubWorker struct{ err error }

func (w stubWorker) Start(ctx context.Context) error {
	if w.err != nil {
		return w.err
	}
	<-ctx.Done()
	return nil
}

func TestManagerReportsWorkerError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	boom := errors.New("boom")
	err := NewManager(stubWorker{}, stubWorker{err: boom}).Start(ctx)
	assert.ErrorIs(t, err, boom)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	assert.NoError(t, NewManager(stubWorker{}).Start(ctx2))
}

func TestManagerStopsOnWorkerFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	listenErr := errors.New("listen tcp :8080: bind: address already in use")
	done := make(chan error, 1)
	go func() {
		done <- NewManager(stubWorker{err: listenErr}, stubWorker{}).Start(context.Background())
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, listenErr)
	case <-time.After(2 * time.Second):
		t.Fatal("manager kept running after a worker failed")
	}
}
