package recommend

import (
	"cmp"
	"slices"

	"bepro/internal/model"
)

const (
	forYouSize   = 20
	categorySize = 10

	// LowSensationalismCutoff is the exclusive upper bound on a post's
	// factor for the low-sensationalism view.
	LowSensationalismCutoff = 0.3

	defaultTolerance = 0.5
	toleranceBuffer  = 0.2
)

// Categories are the named views over one candidate set. In every list,
// Score carries the key the list is ordered by.
type Categories struct {
	ForYou            []model.ScoredPost `json:"for_you"`
	Trending          []model.ScoredPost `json:"trending"`
	Recent            []model.ScoredPost `json:"recent"`
	LowSensationalism []model.ScoredPost `json:"low_sensationalism"`
}

// RankPersonalized scores every post and sorts by descending score.
// The result is not truncated.
func (s *Scorer) RankPersonalized(posts []model.Post, profile model.UserProfile, in model.Interactions, history []model.InteractionEvent, tolerance float64) []model.ScoredPost {
	out := make([]model.ScoredPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, model.ScoredPost{Post: p, Score: s.Score(p, profile, in, history, tolerance)})
	}
	sortByScore(out)
	return out
}

// RankByCategory builds the for-you, trending, recent and low-sensationalism
// views.
func (s *Scorer) RankByCategory(posts []model.Post, profile model.UserProfile, in model.Interactions, history []model.InteractionEvent, tolerance float64) Categories {
	return Categories{
		ForYou:            head(s.RankPersonalized(posts, profile, in, history, tolerance), forYouSize),
		Trending:          head(Trending(posts), categorySize),
		Recent:            head(s.Recent(posts), categorySize),
		LowSensationalism: head(LowSensationalism(posts), categorySize),
	}
}

// Trending orders posts by unscaled engagement.
func Trending(posts []model.Post) []model.ScoredPost {
	out := make([]model.ScoredPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, model.ScoredPost{Post: p, Score: Engagement(p)})
	}
	sortByScore(out)
	return out
}

// Recent orders posts newest first. Posts without a timestamp sort last.
// Score is the recency term.
func (s *Scorer) Recent(posts []model.Post) []model.ScoredPost {
	out := make([]model.ScoredPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, model.ScoredPost{Post: p, Score: s.Recency(p.CreatedAt)})
	}
	slices.SortStableFunc(out, func(a, b model.ScoredPost) int {
		return b.Post.CreatedAt.Compare(a.Post.CreatedAt)
	})
	return out
}

// LowSensationalism keeps posts under the cutoff, ordered by engagement.
func LowSensationalism(posts []model.Post) []model.ScoredPost {
	kept := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if p.Sensationalism < LowSensationalismCutoff {
			kept = append(kept, p)
		}
	}
	return Trending(kept)
}

// EstimateTolerance averages the sensationalism of the posts the user
// currently likes (0.5 with no likes), adds a 0.2 buffer and clamps to [0,1].
func EstimateTolerance(in model.Interactions, posts []model.Post) float64 {
	sum, n := 0.0, 0
	for _, p := range posts {
		if in[p.ID].Like {
			sum += clamp01(p.Sensationalism)
			n++
		}
	}
	avg := defaultTolerance
	if n > 0 {
		avg = sum / float64(n)
	}
	return clamp01(avg + toleranceBuffer)
}

func sortByScore(posts []model.ScoredPost) {
	slices.SortStableFunc(posts, func(a, b model.ScoredPost) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

func head(posts []model.ScoredPost, n int) []model.ScoredPost {
	if len(posts) > n {
		return posts[:n]
	}
	return posts
}
