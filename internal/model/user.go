package model

import "time"

// MaxProfileTags is how many interest tags a profile may carry.
const MaxProfileTags = 6

// UserProfile is the part of a user the ranking code cares about.
type UserProfile struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Tags     []string `json:"tags"`
}

// Suggestion is a "people you may know" candidate.
type Suggestion struct {
	Profile    UserProfile `json:"profile"`
	Similarity float64     `json:"similarity"`
	Mutual     int         `json:"mutual"`
	Score      float64     `json:"score"`
}

// Mission is a mentoring task extracted from generated text.
type Mission struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Difficulty  string    `json:"difficulty"`
	XP          int       `json:"xp"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
}
