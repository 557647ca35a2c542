// Package feed assembles personalized feeds, suggestions and missions for a
// user from the relational store, the Redis cache and the scorer.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"bepro/internal/ai"
	"bepro/internal/mission"
	"bepro/internal/model"
	"bepro/internal/recommend"
	"bepro/internal/stats"
	"bepro/internal/storage"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Mode names a feed view.
type Mode string

const (
	Recommended Mode = "recommended"
	Trending    Mode = "trending"
	Recent      Mode = "recent"
	LowCringe   Mode = "lowCringe"
)

// Modes lists every valid feed mode.
var Modes = []Mode{Recommended, Trending, Recent, LowCringe}

const (
	// categorySize caps the trending, recent and lowCringe views.
	categorySize = 10
	// flightTimeout bounds a shared ranking pass, which outlives the
	// caller that started it.
	flightTimeout = 30 * time.Second
)

var (
	ErrUnknownMode        = errors.New("unknown feed mode")
	ErrUnknownInteraction = errors.New("unknown interaction kind")
	ErrMissionsDisabled   = errors.New("mission generation is not configured")
	ErrNoMissions         = errors.New("no missions in generated text")
)

// ParseMode accepts the mode names case-insensitively; empty means recommended.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Recommended, nil
	}
	for _, m := range Modes {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Store is the subset of the relational store the service reads and writes.
type Store interface {
	GetProfile(ctx context.Context, id string) (model.UserProfile, error)
	ListProfiles(ctx context.Context, limit int) ([]model.UserProfile, error)
	ListPosts(ctx context.Context, limit int) ([]model.Post, error)
	UserInteractions(ctx context.Context, userID string) (model.Interactions, error)
	History(ctx context.Context, userID string, limit int) ([]model.InteractionEvent, error)
	SetInteraction(ctx context.Context, userID, postID string, kind model.EventType, on bool) (model.Interaction, error)
	RecordView(ctx context.Context, userID, postID string) error
	Following(ctx context.Context, userID string) (map[string]struct{}, error)
	FollowGraph(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error)
	SaveMissions(ctx context.Context, userID string, missions []model.Mission) ([]model.Mission, error)
	Missions(ctx context.Context, userID string) ([]model.Mission, error)
	Counts(ctx context.Context) (stats.Counts, error)
}

// Cache stores ranked feeds between requests.
type Cache interface {
	CacheFeed(ctx context.Context, userID, mode string, feed []storage.Ranked, ttl time.Duration) error
	CachedFeed(ctx context.Context, userID, mode string) ([]storage.Ranked, bool, error)
	InvalidateFeeds(ctx context.Context, userID string) error
}

// Options tunes the service.
type Options struct {
	CandidateLimit int
	HistoryLimit   int
	CacheTTL       time.Duration
	Language       string
	MissionCount   int
}

// Service is safe for concurrent use. Cache and Writer are optional.
type Service struct {
	Store   Store
	Cache   Cache
	Scorer  *recommend.Scorer
	Writer  ai.MissionWriter
	Options Options

	flights singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

// generation changes every time userID interacts, so a ranking pass can tell
// whether its result went stale while it ran.
func (s *Service) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

func (s *Service) bump(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations == nil {
		s.generations = map[string]uint64{}
	}
	s.generations[userID]++
}

func (s *Service) scorer() *recommend.Scorer {
	if s.Scorer == nil {
		return recommend.New()
	}
	return s.Scorer
}

// snapshot is everything one ranking pass needs.
type snapshot struct {
	posts   []model.Post
	profile model.UserProfile
	in      model.Interactions
	history []model.InteractionEvent
}

func (s *Service) load(ctx context.Context, userID string) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		posts, err := s.Store.ListPosts(gctx, s.Options.CandidateLimit)
		if err != nil {
			return fmt.Errorf("load posts: %w", err)
		}
		snap.posts = posts
		return nil
	})
	g.Go(func() error {
		p, err := s.Store.GetProfile(gctx, userID)
		if err != nil {
			return err
		}
		snap.profile = p
		return nil
	})
	g.Go(func() error {
		in, err := s.Store.UserInteractions(gctx, userID)
		if err != nil {
			return fmt.Errorf("load interactions: %w", err)
		}
		snap.in = in
		return nil
	})
	g.Go(func() error {
		h, err := s.Store.History(gctx, userID, s.Options.HistoryLimit)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		snap.history = h
		return nil
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

// Feed ranks the candidate posts for userID in the given mode. A non-empty
// query keeps posts whose content, author name or tags contain it. limit <= 0
// returns the mode's full list.
func (s *Service) Feed(ctx context.Context, userID string, mode Mode, query string, limit int) ([]model.ScoredPost, error) {
	if !slices.Contains(Modes, mode) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	query = strings.TrimSpace(query)
	useCache := s.Cache != nil && query == ""

	if !useCache {
		ranked, err := s.compute(ctx, userID, mode, query)
		if err != nil {
			return nil, err
		}
		return head(ranked, limit), nil
	}

	if out, ok := s.fromCache(ctx, userID, mode); ok {
		return head(out, limit), nil
	}
	// concurrent misses for the same feed share one ranking pass; it is
	// detached from the caller so one disconnect does not fail the others
	ch := s.flights.DoChan(userID+"/"+string(mode), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		return s.computeAndCache(fctx, userID, mode)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return head(res.Val.([]model.ScoredPost), limit), nil
	}
}

// computeAndCache ranks and caches the feed unless the user interacted while
// it was ranking.
func (s *Service) computeAndCache(ctx context.Context, userID string, mode Mode) ([]model.ScoredPost, error) {
	gen := s.generation(userID)
	ranked, err := s.compute(ctx, userID, mode, "")
	if err != nil {
		return nil, err
	}
	if s.generation(userID) != gen {
		return ranked, nil
	}
	if err := s.Cache.CacheFeed(ctx, userID, string(mode), storage.RankedFrom(ranked), s.Options.CacheTTL); err != nil {
		slog.Warn("feed: cache write failed", "user", userID, "mode", mode, "error", err)
		return ranked, nil
	}
	// an interaction may have landed between the check and the write
	if s.generation(userID) != gen {
		s.invalidate(ctx, userID)
	}
	return ranked, nil
}

func (s *Service) compute(ctx context.Context, userID string, mode Mode, query string) ([]model.ScoredPost, error) {
	snap, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	tolerance := recommend.EstimateTolerance(snap.in, snap.posts)
	return s.rank(mode, filter(snap.posts, query), snap, tolerance), nil
}

func (s *Service) rank(mode Mode, posts []model.Post, snap snapshot, tolerance float64) []model.ScoredPost {
	switch mode {
	case Recommended:
		return s.scorer().RankPersonalized(posts, snap.profile, snap.in, snap.history, tolerance)
	case Trending:
		return head(recommend.Trending(posts), categorySize)
	case Recent:
		return head(s.scorer().Recent(posts), categorySize)
	default:
		return head(recommend.LowSensationalism(posts), categorySize)
	}
}

// fromCache rehydrates a cached ranking from the current candidate set.
// Posts that are no longer candidates are dropped.
func (s *Service) fromCache(ctx context.Context, userID string, mode Mode) ([]model.ScoredPost, bool) {
	cached, ok, err := s.Cache.CachedFeed(ctx, userID, string(mode))
	if err != nil {
		slog.Warn("feed: cache read failed", "user", userID, "mode", mode, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	posts, err := s.Store.ListPosts(ctx, s.Options.CandidateLimit)
	if err != nil {
		slog.Warn("feed: load posts for cached feed failed", "user", userID, "error", err)
		return nil, false
	}
	byID := make(map[string]model.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	out := make([]model.ScoredPost, 0, len(cached))
	for _, r := range cached {
		if p, ok := byID[r.ID]; ok {
			out = append(out, model.ScoredPost{Post: p, Score: r.Score})
		}
	}
	return out, true
}

func filter(posts []model.Post, query string) []model.Post {
	if query == "" {
		return posts
	}
	q := strings.ToLower(query)
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if matches(p, q) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p model.Post, q string) bool {
	if strings.Contains(strings.ToLower(p.Content), q) || strings.Contains(strings.ToLower(p.AuthorName), q) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func head(posts []model.ScoredPost, n int) []model.ScoredPost {
	if n > 0 && len(posts) > n {
		return posts[:n]
	}
	return posts
}

// Suggestions returns people userID may know.
func (s *Service) Suggestions(ctx context.Context, userID string, limit int) ([]model.Suggestion, error) {
	viewer, err := s.Store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.Store.ListProfiles(ctx, 0)
	if err != nil {
		return nil, err
	}
	following, err := s.Store.Following(ctx, userID)
	if err != nil {
		return nil, err
	}
	graph, err := s.Store.FollowGraph(ctx, slices.Collect(maps.Keys(following)))
	if err != nil {
		return nil, err
	}
	return recommend.SuggestUsers(viewer, candidates, following, graph, limit), nil
}

// Interact toggles a like, dislike or bookmark and drops the user's cached feeds.
func (s *Service) Interact(ctx context.Context, userID, postID, kind string, on bool) (model.Interaction, error) {
	k, ok := model.ParseToggle(strings.ToLower(strings.TrimSpace(kind)))
	if !ok {
		return model.Interaction{}, fmt.Errorf("%w: %q", ErrUnknownInteraction, kind)
	}
	in, err := s.Store.SetInteraction(ctx, userID, postID, k, on)
	if err != nil {
		return model.Interaction{}, err
	}
	s.bump(userID)
	s.invalidate(ctx, userID)
	return in, nil
}

// View records that userID opened postID.
func (s *Service) View(ctx context.Context, userID, postID string) error {
	return s.Store.RecordView(ctx, userID, postID)
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.InvalidateFeeds(ctx, userID); err != nil {
		slog.Warn("feed: invalidate failed", "user", userID, "error", err)
	}
}

// GenerateMissions asks the writer for missions matching the user's tags and
// goal, then stores whatever could be parsed.
func (s *Service) GenerateMissions(ctx context.Context, userID, goal string) ([]model.Mission, error) {
	if s.Writer == nil {
		return nil, ErrMissionsDisabled
	}
	profile, err := s.Store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	text, err := s.Writer.WriteMissions(ctx, profile.Tags, goal, s.Options.Language, s.Options.MissionCount)
	if err != nil {
		return nil, fmt.Errorf("write missions: %w", err)
	}
	parsed := mission.Parse(text)
	if len(parsed) == 0 {
		slog.Warn("feed: no missions parsed", "user", userID, "chars", len(text))
		return nil, ErrNoMissions
	}
	return s.Store.SaveMissions(ctx, userID, parsed)
}

// Missions lists the stored missions of userID.
func (s *Service) Missions(ctx context.Context, userID string) ([]model.Mission, error) {
	if _, err := s.Store.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	return s.Store.Missions(ctx, userID)
}

// Counts loads the admin statistics snapshot.
func (s *Service) Counts(ctx context.Context) (stats.Counts, error) {
	return s.Store.Counts(ctx)
}
