package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bepro/internal/model"

	"github.com/redis/go-redis/v9"
)

const trendingKey = "bepro:trending"

// Ranked is a post ID with the score it was ranked by.
type Ranked struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// RankedFrom keeps the IDs and scores of a ranked feed.
func RankedFrom(posts []model.ScoredPost) []Ranked {
	out := make([]Ranked, 0, len(posts))
	for _, p := range posts {
		out = append(out, Ranked{ID: p.Post.ID, Score: p.Score})
	}
	return out
}

// RedisStore caches ranked feeds and the trending leaderboard.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func feedKey(userID, mode string) string {
	return fmt.Sprintf("bepro:feed:%s:%s", userID, mode)
}

// feedIndexKey is the set of modes cached for a user.
func feedIndexKey(userID string) string {
	return fmt.Sprintf("bepro:feed:%s:modes", userID)
}

func ratedKey(postID string) string {
	return fmt.Sprintf("bepro:rated:%s", postID)
}

// CacheFeed stores a ranked feed for a user and mode.
func (s *RedisStore) CacheFeed(ctx context.Context, userID, mode string, feed []Ranked, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if feed == nil {
		feed = []Ranked{}
	}
	b, err := json.Marshal(feed)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, feedKey(userID, mode), b, ttl)
		p.SAdd(ctx, feedIndexKey(userID), mode)
		p.Expire(ctx, feedIndexKey(userID), ttl)
		return nil
	})
	return err
}

// CachedFeed returns the cached ranking, with ok=false on a miss.
func (s *RedisStore) CachedFeed(ctx context.Context, userID, mode string) ([]Ranked, bool, error) {
	b, err := s.rdb.Get(ctx, feedKey(userID, mode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var feed []Ranked
	if err := json.Unmarshal(b, &feed); err != nil {
		return nil, false, fmt.Errorf("decode cached feed: %w", err)
	}
	return feed, true, nil
}

// InvalidateFeeds drops every cached mode for the user.
func (s *RedisStore) InvalidateFeeds(ctx context.Context, userID string) error {
	modes, err := s.rdb.SMembers(ctx, feedIndexKey(userID)).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(modes)+1)
	for _, m := range modes {
		keys = append(keys, feedKey(userID, m))
	}
	keys = append(keys, feedIndexKey(userID))
	return s.rdb.Del(ctx, keys...).Err()
}

// SetTrending replaces the trending leaderboard.
func (s *RedisStore) SetTrending(ctx context.Context, posts []model.ScoredPost) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, trendingKey)
		if len(posts) == 0 {
			return nil
		}
		zs := make([]redis.Z, 0, len(posts))
		for _, sp := range posts {
			zs = append(zs, redis.Z{Score: sp.Score, Member: sp.Post.ID})
		}
		p.ZAdd(ctx, trendingKey, zs...)
		return nil
	})
	return err
}

// TopTrending returns the n highest-scoring post IDs. n <= 0 returns all.
func (s *RedisStore) TopTrending(ctx context.Context, n int) ([]Ranked, error) {
	stop := int64(n - 1)
	if n <= 0 {
		stop = -1
	}
	zs, err := s.rdb.ZRevRangeWithScores(ctx, trendingKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Ranked, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, Ranked{ID: id, Score: z.Score})
	}
	return out, nil
}

// MarkRated records a rating attempt for the given duration.
func (s *RedisStore) MarkRated(ctx context.Context, postID string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, ratedKey(postID), "1", d).Err()
}

// IsRated reports whether a rating attempt is still recorded.
func (s *RedisStore) IsRated(ctx context.Context, postID string) (bool, error) {
	_, err := s.rdb.Get(ctx, ratedKey(postID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
