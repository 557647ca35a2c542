// Package stats holds the admin statistics snapshot and the cache in front of it.
package stats

import (
	"context"
	"sync"
	"time"
)

// TagCount is how many posts carry a tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Counts is a point-in-time summary of the store.
type Counts struct {
	Profiles int        `json:"profiles"`
	Posts    int        `json:"posts"`
	Unrated  int        `json:"unrated"`
	Events   int        `json:"events"`
	Follows  int        `json:"follows"`
	Missions int        `json:"missions"`
	TopTags  []TagCount `json:"top_tags"`
	LoadedAt time.Time  `json:"loaded_at"`
}

// Cache memoizes Load for TTL. The zero TTL reloads on every call.
// It is safe for concurrent use; concurrent callers during a reload wait for it.
type Cache struct {
	TTL  time.Duration
	Load func(ctx context.Context) (Counts, error)
	Now  func() time.Time

	mu        sync.Mutex
	value     Counts
	loaded    bool
	expiresAt time.Time
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Get returns the cached counts, reloading them once expired. A failed
// reload returns the previous value, if any, together with the error.
func (c *Cache) Get(ctx context.Context) (Counts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.loaded && now.Before(c.expiresAt) {
		return c.value, nil
	}
	v, err := c.Load(ctx)
	if err != nil {
		return c.value, err
	}
	if v.LoadedAt.IsZero() {
		v.LoadedAt = now
	}
	c.value = v
	c.loaded = true
	c.expiresAt = now.Add(c.TTL)
	return v, nil
}

// Invalidate forces the next Get to reload.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}
