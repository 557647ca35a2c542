package model

import "time"

// Interaction is the viewing user's current state toward one post.
// Like and Dislike are exclusive by convention.
type Interaction struct {
	Like     bool `json:"like"`
	Dislike  bool `json:"dislike"`
	Bookmark bool `json:"bookmark"`
}

// Interactions maps post ID to the viewing user's interaction.
type Interactions map[string]Interaction

// EventType enumerates interaction log entries.
type EventType string

const (
	EventLike     EventType = "like"
	EventDislike  EventType = "dislike"
	EventBookmark EventType = "bookmark"
	EventView     EventType = "view"
	EventComment  EventType = "comment"
)

// ParseToggle reports whether s names a toggleable interaction kind.
func ParseToggle(s string) (EventType, bool) {
	switch EventType(s) {
	case EventLike, EventDislike, EventBookmark:
		return EventType(s), true
	}
	return "", false
}

// InteractionEvent records one user's interaction with one post.
// PostAuthorID is denormalized so author affinity needs no post lookup.
type InteractionEvent struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	PostID       string    `json:"post_id"`
	PostAuthorID string    `json:"post_author_id"`
	Type         EventType `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
}
