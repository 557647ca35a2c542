package feed

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bepro/internal/model"
	"bepro/internal/recommend"
	"bepro/internal/storage"
)

var refNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeWriter struct {
	text string
	err  error
	tags []string
	goal string
}

func (f *fakeWriter) WriteMissions(_ context.Context, tags []string, goal, _ string, _ int) (string, error) {
	f.tags, f.goal = tags, goal
	return f.text, f.err
}

type fixture struct {
	svc   *Service
	store *storage.Store
}

func newFixture(t *testing.T, withCache bool) fixture {
	t.Helper()
	ctx := context.Background()
	store, err := storage.Open(filepath.Join(t.TempDir(), "bepro.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := &Service{
		Store:   store,
		Scorer:  &recommend.Scorer{Now: func() time.Time { return refNow }, Jitter: func() float64 { return 0 }},
		Options: Options{CandidateLimit: 100, HistoryLimit: 50, CacheTTL: time.Minute, MissionCount: 3},
	}
	if withCache {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		svc.Cache = storage.NewRedisStore(rdb)
	}

	for _, p := range []model.UserProfile{
		{ID: "me", Username: "me", Tags: []string{"go"}},
		{ID: "ana", Username: "ana", Tags: []string{"go", "sql"}},
		{ID: "bo", Username: "bo", Tags: []string{"cooking"}},
	} {
		require.NoError(t, store.UpsertProfile(ctx, p))
	}
	for _, p := range []model.Post{
		{ID: "go-post", AuthorID: "ana", AuthorName: "ana", Content: "Generics tips", Tags: []string{"go"}, CreatedAt: refNow.Add(-time.Hour), Sensationalism: 0.1},
		{ID: "viral", AuthorID: "bo", AuthorName: "bo", Content: "Best pasta ever", Tags: []string{"cooking"}, CreatedAt: refNow.Add(-30 * time.Hour), Likes: 40, Sensationalism: 0.2},
		{ID: "hype", AuthorID: "bo", AuthorName: "bo", Content: "This will SHOCK you", CreatedAt: refNow.Add(-2 * time.Hour), Sensationalism: 0.95},
	} {
		require.NoError(t, store.UpsertPost(ctx, p))
	}
	return fixture{svc: svc, store: store}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Recommended, m)

	m, err = ParseMode("LOWCRINGE")
	require.NoError(t, err)
	assert.Equal(t, LowCringe, m)

	_, err = ParseMode("chronological")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestFeedModes(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	got, err := f.svc.Feed(ctx, "me", Recommended, "", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "go-post", got[0].Post.ID, "tag match wins")

	got, err = f.svc.Feed(ctx, "me", Trending, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "viral", got[0].Post.ID)

	got, err = f.svc.Feed(ctx, "me", Recent, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"go-post", "hype", "viral"}, model.PostIDs(got))

	got, err = f.svc.Feed(ctx, "me", LowCringe, "", 0)
	require.NoError(t, err)
	assert.NotContains(t, model.PostIDs(got), "hype")

	got, err = f.svc.Feed(ctx, "me", Recommended, "", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = f.svc.Feed(ctx, "me", Mode("sideways"), "", 0)
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = f.svc.Feed(ctx, "ghost", Recommended, "", 0)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFeedQuery(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	got, err := f.svc.Feed(ctx, "me", Recommended, "PASTA", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"viral"}, model.PostIDs(got))

	got, err = f.svc.Feed(ctx, "me", Recent, "go", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"go-post"}, model.PostIDs(got), "tags match too")

	got, err = f.svc.Feed(ctx, "me", Recommended, "", 0)
	require.NoError(t, err)
	assert.Len(t, got, 3, "a filtered feed is never cached")
}

func TestFeedCacheAndInvalidation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first, err := f.svc.Feed(ctx, "me", Recent, "", 0)
	require.NoError(t, err)

	require.NoError(t, f.store.UpsertPost(ctx, model.Post{ID: "fresh", AuthorID: "ana", CreatedAt: refNow}))
	cached, err := f.svc.Feed(ctx, "me", Recent, "", 0)
	require.NoError(t, err)
	assert.Equal(t, model.PostIDs(first), model.PostIDs(cached))
	assert.Equal(t, first[0].Score, cached[0].Score)

	in, err := f.svc.Interact(ctx, "me", "go-post", "Like", true)
	require.NoError(t, err)
	assert.True(t, in.Like)

	after, err := f.svc.Feed(ctx, "me", Recent, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "fresh", after[0].Post.ID)

	_, err = f.svc.Interact(ctx, "me", "go-post", "share", true)
	assert.ErrorIs(t, err, ErrUnknownInteraction)
	_, err = f.svc.Interact(ctx, "me", "missing", "like", true)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInteractionsShapeRanking(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	before, err := f.svc.Feed(ctx, "me", Recommended, "", 0)
	require.NoError(t, err)
	_, err = f.svc.Interact(ctx, "me", "viral", "dislike", true)
	require.NoError(t, err)
	after, err := f.svc.Feed(ctx, "me", Recommended, "", 0)
	require.NoError(t, err)

	score := func(list []model.ScoredPost, id string) float64 {
		for _, sp := range list {
			if sp.Post.ID == id {
				return sp.Score
			}
		}
		t.Fatalf("post %s missing", id)
		return 0
	}
	assert.Less(t, score(after, "viral"), score(before, "viral"))

	require.NoError(t, f.svc.View(ctx, "me", "go-post"))
	p, err := f.store.GetPost(ctx, "go-post")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Views)
}

func TestSuggestions(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.store.UpsertProfile(ctx, model.UserProfile{ID: "cy", Username: "cy"}))
	require.NoError(t, f.store.Follow(ctx, "me", "bo"))
	require.NoError(t, f.store.Follow(ctx, "bo", "cy"))

	got, err := f.svc.Suggestions(ctx, "me", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ana", got[0].Profile.ID)
	assert.Equal(t, "cy", got[1].Profile.ID)
	assert.Equal(t, 1, got[1].Mutual)

	_, err = f.svc.Suggestions(ctx, "ghost", 0)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGenerateMissions(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.GenerateMissions(ctx, "me", "learn sql")
	assert.ErrorIs(t, err, ErrMissionsDisabled)

	w := &fakeWriter{text: "[MISSION][TITLE]Write a migration[/TITLE][DIFFICULTY]easy[/DIFFICULTY][/MISSION]"}
	f.svc.Writer = w
	got, err := f.svc.GenerateMissions(ctx, "me", "learn sql")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Write a migration", got[0].Title)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, []string{"go"}, w.tags)
	assert.Equal(t, "learn sql", w.goal)

	stored, err := f.svc.Missions(ctx, "me")
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	w.text = "sorry, I can't help with that"
	_, err = f.svc.GenerateMissions(ctx, "me", "")
	assert.ErrorIs(t, err, ErrNoMissions)

	w.err = errors.New("rate limited")
	_, err = f.svc.GenerateMissions(ctx, "me", "")
	assert.Error(t, err)
}

func TestFeedConcurrentMisses(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	const n = 8
	results := make([][]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.svc.Feed(ctx, "me", Recommended, "", 2)
			if assert.NoError(t, err) {
				results[i] = model.PostIDs(got)
			}
		}()
	}
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	assert.Len(t, results[0], 2)
}

// gatedStore holds the first ListPosts call until release is closed.
type gatedStore struct {
	*storage.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore(s *storage.Store) *gatedStore {
	return &gatedStore{Store: s, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) ListPosts(ctx context.Context, limit int) ([]model.Post, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.Store.ListPosts(ctx, limit)
}

func TestFeedSharedPassSurvivesCallerCancel(t *testing.T) {
	f := newFixture(t, true)
	gate := newGatedStore(f.store)
	f.svc.Store = gate

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := f.svc.Feed(ctxA, "me", Recommended, "", 0)
		errA <- err
	}()
	<-gate.entered

	type result struct {
		ids []string
		err error
	}
	resB := make(chan result, 1)
	go func() {
		got, err := f.svc.Feed(context.Background(), "me", Recommended, "", 0)
		resB <- result{model.PostIDs(got), err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(gate.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Len(t, b.ids, 3)
}

func TestFeedInteractionDuringRankingIsNotCached(t *testing.T) {
	f := newFixture(t, true)
	gate := newGatedStore(f.store)
	f.svc.Store = gate
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Feed(ctx, "me", Recommended, "", 0)
		done <- err
	}()
	<-gate.entered

	_, err := f.svc.Interact(ctx, "me", "hype", "dislike", true)
	require.NoError(t, err)
	close(gate.release)
	require.NoError(t, <-done)

	_, ok, err := f.svc.Cache.CachedFeed(ctx, "me", string(Recommended))
	require.NoError(t, err)
	assert.False(t, ok, "a ranking started before the interaction must not be cached")

	got, err := f.svc.Feed(ctx, "me", Recommended, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "hype", got[len(got)-1].Post.ID)
	_, ok, err = f.svc.Cache.CachedFeed(ctx, "me", string(Recommended))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFeedCategoryModesAreCapped(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	for i := range 15 {
		require.NoError(t, f.store.UpsertPost(ctx, model.Post{
			ID:        fmt.Sprintf("extra-%02d", i),
			AuthorID:  "ana",
			Content:   "filler",
			CreatedAt: refNow.Add(-time.Duration(i+3) * time.Hour),
			Likes:     i,
		}))
	}

	for _, m := range []Mode{Trending, Recent, LowCringe} {
		got, err := f.svc.Feed(ctx, "me", m, "", 0)
		require.NoError(t, err)
		assert.Len(t, got, categorySize, m)
	}
	got, err := f.svc.Feed(ctx, "me", Recommended, "", 0)
	require.NoError(t, err)
	assert.Len(t, got, 18, "the recommended view is not capped")
}
