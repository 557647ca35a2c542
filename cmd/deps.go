package cmd

import (
	"context"
	"errors"
	"fmt"

	"bepro/internal/ai"
	"bepro/internal/config"
	"bepro/internal/feed"
	"bepro/internal/model"
	"bepro/internal/recommend"
	"bepro/internal/redisclient"
	"bepro/internal/storage"

	"github.com/redis/go-redis/v9"
)

// app bundles the long-lived dependencies a command needs.
type app struct {
	cfg   config.Config
	dur   config.Durations
	store *storage.Store
	rdb   *redis.Client
	cache *storage.RedisStore
	ai    *ai.OpenAIClient
	feed  *feed.Service
}

// newApp opens the sqlite store and, when withRedis is set, the Redis cache.
func newApp(withRedis bool) (*app, error) {
	cfg := GetConfig()
	dur, err := cfg.ParseDurations()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, dur: dur, store: store}
	if withRedis {
		a.rdb = redisclient.New(cfg.Redis)
		a.cache = storage.NewRedisStore(a.rdb)
	}
	if cfg.OpenAI.APIKey != "" {
		a.ai = ai.NewOpenAI(ai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			Model:      cfg.OpenAI.Model,
			BaseURL:    cfg.OpenAI.BaseURL,
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
	}

	a.feed = &feed.Service{
		Store:  store,
		Scorer: recommend.New(),
		Options: feed.Options{
			CandidateLimit: cfg.Ranking.CandidateLimit,
			HistoryLimit:   cfg.Ranking.HistoryLimit,
			CacheTTL:       dur.FeedCacheTTL,
			Language:       cfg.Missions.Language,
			MissionCount:   cfg.Missions.Count,
		},
	}
	// nil pointers must not become non-nil interfaces
	if a.cache != nil {
		a.feed.Cache = a.cache
	}
	if a.ai != nil {
		a.feed.Writer = a.ai
	}
	return a, nil
}

func (a *app) Close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	a.store.Close()
}

// resolveUser accepts a profile id or a username.
func (a *app) resolveUser(ctx context.Context, ref string) (model.UserProfile, error) {
	p, err := a.store.GetProfile(ctx, ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.UserProfile{}, err
	}
	p, err = a.store.GetProfileByUsername(ctx, ref)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("unknown user %q: %w", ref, err)
	}
	return p, nil
}
