package model

import "time"

// Post is a single feed entry. Fields that may be absent upstream resolve to
// their zero value: nil tags, zero counters, zero CreatedAt (treated as
// maximal age) and a zero sensationalism factor.
type Post struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"author_id"`
	AuthorName     string    `json:"author_name"`
	Content        string    `json:"content"`
	Tags           []string  `json:"tags"`
	CreatedAt      time.Time `json:"created_at"`
	Likes          int       `json:"likes"`
	Dislikes       int       `json:"dislikes"`
	Comments       int       `json:"comments"`
	Bookmarks      int       `json:"bookmarks"`
	Views          int       `json:"views"`
	Sensationalism float64   `json:"sensationalism"`
}

// ScoredPost decorates a post with a ranking score.
type ScoredPost struct {
	Post  Post    `json:"post"`
	Score float64 `json:"score"`
}

// PostIDs returns the IDs of ranked posts in order.
func PostIDs(posts []ScoredPost) []string {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.Post.ID)
	}
	return ids
}
