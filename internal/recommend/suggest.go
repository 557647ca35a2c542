package recommend

import (
	"cmp"
	"slices"

	"bepro/internal/model"
)

const (
	similarityWeight = 10.0
	mutualWeight     = 2.0
)

// SuggestUsers ranks candidates the viewer might want to follow by shared
// interest tags and by how many of the viewer's followees already follow them.
// following is the viewer's followee set; followsOf maps a user to the set of
// users they follow. A non-positive limit returns every match.
func SuggestUsers(viewer model.UserProfile, candidates []model.UserProfile, following map[string]struct{}, followsOf map[string]map[string]struct{}, limit int) []model.Suggestion {
	out := make([]model.Suggestion, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == "" || c.ID == viewer.ID {
			continue
		}
		if _, ok := following[c.ID]; ok {
			continue
		}
		mutual := 0
		for f := range following {
			if _, ok := followsOf[f][c.ID]; ok {
				mutual++
			}
		}
		sim := TagAffinity(viewer.Tags, c.Tags)
		score := sim*similarityWeight + float64(mutual)*mutualWeight
		if score <= 0 {
			continue
		}
		out = append(out, model.Suggestion{Profile: c, Similarity: sim, Mutual: mutual, Score: score})
	}
	slices.SortStableFunc(out, func(a, b model.Suggestion) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Profile.Username, b.Profile.Username)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
