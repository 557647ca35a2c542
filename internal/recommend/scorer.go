// Package recommend ranks posts for a viewing user and suggests people to
// follow. Everything here is a pure function of its inputs apart from the
// jitter term, which is injectable.
package recommend

import (
	"math"
	"math/rand/v2"
	"time"

	"bepro/internal/model"
)

const (
	affinityWeight   = 30.0
	engagementWeight = 0.25
	recencyWeight    = 20.0
	recencyHours     = 48.0
	penaltyWeight    = 10.0
	jitterSpread     = 2.0

	likeBonus      = 2.0
	bookmarkBonus  = 3.0
	dislikePenalty = 5.0
	authorScale    = 1.5
)

// Scorer computes per-post relevance scores. The zero value is ready to use
// and falls back to the wall clock and math/rand/v2.
type Scorer struct {
	// Now returns the reference time for recency decay.
	Now func() time.Time
	// Jitter returns a uniform value in [0,1). It is scaled to [0,2) and
	// added to every score so repeated rankings don't go stale.
	Jitter func() float64
}

// New returns a Scorer using the wall clock and a random jitter source.
func New() *Scorer {
	return &Scorer{Now: time.Now, Jitter: rand.Float64}
}

func (s *Scorer) now() time.Time {
	if s == nil || s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Scorer) jitter() float64 {
	if s == nil || s.Jitter == nil {
		return rand.Float64()
	}
	return s.Jitter()
}

// Score returns the relevance of post for the viewing user described by
// profile, their current interactions and their history. tolerance is the
// user's appetite for sensational content in [0,1]. The result is never
// negative.
func (s *Scorer) Score(post model.Post, profile model.UserProfile, in model.Interactions, history []model.InteractionEvent, tolerance float64) float64 {
	score := TagAffinity(post.Tags, profile.Tags) * affinityWeight
	score += Engagement(post) * engagementWeight
	score += s.Recency(post.CreatedAt)
	score += InteractionAffinity(post, in, history)
	score -= SensationalismPenalty(post.Sensationalism, tolerance)
	score += s.jitter() * jitterSpread
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	return score
}

// Engagement is the unscaled engagement sub-term. Dislikes do not count.
func Engagement(p model.Post) float64 {
	return float64(p.Likes)*3 + float64(p.Comments)*5 + float64(p.Bookmarks)*4 + float64(p.Views)*0.1
}

// Recency decays exponentially with post age. A zero time means the age is
// unknown and contributes nothing; future timestamps count as "now".
func (s *Scorer) Recency(createdAt time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	hours := s.now().Sub(createdAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-hours/recencyHours) * recencyWeight
}

// InteractionAffinity combines the viewer's direct interaction with the post
// (unscaled) and their history with the post's author (scaled by 1.5).
// history is expected to hold the viewer's events only.
func InteractionAffinity(post model.Post, in model.Interactions, history []model.InteractionEvent) float64 {
	total := 0.0
	if it, ok := in[post.ID]; ok {
		if it.Like {
			total += likeBonus
		}
		if it.Bookmark {
			total += bookmarkBonus
		}
		if it.Dislike {
			total -= dislikePenalty
		}
	}
	if post.AuthorID == "" {
		return total
	}
	var positive, negative int
	for _, ev := range history {
		if ev.PostAuthorID != post.AuthorID {
			continue
		}
		switch ev.Type {
		case model.EventLike, model.EventBookmark:
			positive++
		case model.EventDislike:
			negative++
		}
	}
	return total + (float64(positive)*0.5-float64(negative))*authorScale
}

// SensationalismPenalty is subtracted from the score. Both inputs are clamped
// to [0,1].
func SensationalismPenalty(factor, tolerance float64) float64 {
	return clamp01(factor) * (1 - clamp01(tolerance)) * penaltyWeight
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
