package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bepro/internal/model"
	"bepro/internal/stats"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a profile or post does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const topTagLimit = 10

// Store is the relational store for profiles, posts, interactions, follows and missions.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the sqlite database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY inside transactions.
	db.SetMaxOpenConns(1)

	s := newStore(db)
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func newStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		tags TEXT
	);

	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		author_id TEXT,
		author_name TEXT,
		content TEXT,
		tags TEXT,
		created_at TEXT,
		likes INTEGER,
		dislikes INTEGER,
		comments INTEGER,
		bookmarks INTEGER,
		views INTEGER,
		sensationalism REAL
	);

	CREATE TABLE IF NOT EXISTS interactions (
		user_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		liked INTEGER NOT NULL DEFAULT 0,
		disliked INTEGER NOT NULL DEFAULT 0,
		bookmarked INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, post_id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS follows (
		follower_id TEXT NOT NULL,
		followee_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (follower_id, followee_id)
	);

	CREATE TABLE IF NOT EXISTS missions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		difficulty TEXT,
		xp INTEGER,
		tags TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
	CREATE INDEX IF NOT EXISTS idx_events_user ON events(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_missions_user ON missions(user_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	return string(b), nil
}

// decodeTags treats NULL and malformed JSON as no tags.
func decodeTags(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(ns.String), &tags); err != nil {
		return nil
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// UpsertProfile inserts or replaces a profile. Tags beyond MaxProfileTags are dropped.
func (s *Store) UpsertProfile(ctx context.Context, p model.UserProfile) error {
	if p.ID == "" {
		return errors.New("profile id required")
	}
	tags := p.Tags
	if len(tags) > model.MaxProfileTags {
		tags = tags[:model.MaxProfileTags]
	}
	tagsJSON, err := encodeTags(tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, username, tags) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			tags = excluded.tags
	`, p.ID, p.Username, tagsJSON)
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.ID, err)
	}
	return nil
}

// GetProfile returns ErrNotFound for an unknown id.
func (s *Store) GetProfile(ctx context.Context, id string) (model.UserProfile, error) {
	var (
		p    model.UserProfile
		tags sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, username, tags FROM profiles WHERE id = ?`, id).
		Scan(&p.ID, &p.Username, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserProfile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("get profile %s: %w", id, err)
	}
	p.Tags = decodeTags(tags)
	return p, nil
}

// GetProfileByUsername looks a profile up by its username.
func (s *Store) GetProfileByUsername(ctx context.Context, username string) (model.UserProfile, error) {
	var (
		p    model.UserProfile
		tags sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, username, tags FROM profiles WHERE username = ? LIMIT 1`, username).
		Scan(&p.ID, &p.Username, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserProfile{}, fmt.Errorf("profile @%s: %w", username, ErrNotFound)
	}
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("get profile @%s: %w", username, err)
	}
	p.Tags = decodeTags(tags)
	return p, nil
}

// ListProfiles returns profiles ordered by username. limit <= 0 means all.
func (s *Store) ListProfiles(ctx context.Context, limit int) ([]model.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, username, tags FROM profiles ORDER BY username, id LIMIT ?`, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []model.UserProfile
	for rows.Next() {
		var (
			p    model.UserProfile
			tags sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Username, &tags); err != nil {
			return nil, err
		}
		p.Tags = decodeTags(tags)
		out = append(out, p)
	}
	return out, rows.Err()
}

const postColumns = `id, author_id, author_name, content, tags, created_at,
	likes, dislikes, comments, bookmarks, views, sensationalism`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPost resolves every NULL column to its zero value.
func scanPost(r rowScanner) (model.Post, error) {
	var (
		p                                          model.Post
		authorID, authorName, content, tags, ctime sql.NullString
		likes, dislikes, comments, bookmarks, view sql.NullInt64
		factor                                     sql.NullFloat64
	)
	if err := r.Scan(&p.ID, &authorID, &authorName, &content, &tags, &ctime,
		&likes, &dislikes, &comments, &bookmarks, &view, &factor); err != nil {
		return model.Post{}, err
	}
	p.AuthorID = authorID.String
	p.AuthorName = authorName.String
	p.Content = content.String
	p.Tags = decodeTags(tags)
	p.CreatedAt = parseTime(ctime)
	p.Likes = int(likes.Int64)
	p.Dislikes = int(dislikes.Int64)
	p.Comments = int(comments.Int64)
	p.Bookmarks = int(bookmarks.Int64)
	p.Views = int(view.Int64)
	p.Sensationalism = factor.Float64
	return p, nil
}

func scanPosts(rows *sql.Rows) ([]model.Post, error) {
	var out []model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertPost inserts or replaces a post. A zero sensationalism factor is
// stored as unrated so the rater picks the post up.
func (s *Store) UpsertPost(ctx context.Context, p model.Post) error {
	if p.ID == "" {
		return errors.New("post id required")
	}
	tagsJSON, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}
	var factor sql.NullFloat64
	if p.Sensationalism > 0 {
		factor = sql.NullFloat64{Float64: p.Sensationalism, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			author_id = excluded.author_id,
			author_name = excluded.author_name,
			content = excluded.content,
			tags = excluded.tags,
			created_at = excluded.created_at,
			likes = excluded.likes,
			dislikes = excluded.dislikes,
			comments = excluded.comments,
			bookmarks = excluded.bookmarks,
			views = excluded.views,
			sensationalism = COALESCE(excluded.sensationalism, posts.sensationalism)
	`, p.ID, p.AuthorID, p.AuthorName, p.Content, tagsJSON, formatTime(p.CreatedAt),
		p.Likes, p.Dislikes, p.Comments, p.Bookmarks, p.Views, factor)
	if err != nil {
		return fmt.Errorf("upsert post %s: %w", p.ID, err)
	}
	return nil
}

// GetPost returns ErrNotFound for an unknown id.
func (s *Store) GetPost(ctx context.Context, id string) (model.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Post{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Post{}, fmt.Errorf("get post %s: %w", id, err)
	}
	return p, nil
}

// ListPosts returns posts newest first; undated posts come last.
func (s *Store) ListPosts(ctx context.Context, limit int) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		ORDER BY created_at IS NULL, created_at DESC, id
		LIMIT ?
	`, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// SetSensationalism stores a rated factor, clamped to [0,1].
func (s *Store) SetSensationalism(ctx context.Context, postID string, factor float64) error {
	if factor < 0 || math.IsNaN(factor) {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET sensationalism = ? WHERE id = ?`, factor, postID)
	if err != nil {
		return fmt.Errorf("set sensationalism %s: %w", postID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}
	return nil
}

// UnratedPosts returns posts with no sensationalism factor, newest first.
func (s *Store) UnratedPosts(ctx context.Context, limit int) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE sensationalism IS NULL
		ORDER BY created_at IS NULL, created_at DESC, id
		LIMIT ?
	`, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("unrated posts: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SetInteraction toggles a like, dislike or bookmark. Liking clears a dislike
// and vice versa. Post counters move in the same transaction and an event is
// logged whenever a flag turns on.
func (s *Store) SetInteraction(ctx context.Context, userID, postID string, kind model.EventType, on bool) (model.Interaction, error) {
	if _, ok := model.ParseToggle(string(kind)); !ok {
		return model.Interaction{}, fmt.Errorf("unsupported interaction %q", kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Interaction{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Interaction{}, fmt.Errorf("post %s: %w", postID, ErrNotFound)
		}
		return model.Interaction{}, err
	}

	var old model.Interaction
	err = tx.QueryRowContext(ctx, `
		SELECT liked, disliked, bookmarked FROM interactions WHERE user_id = ? AND post_id = ?
	`, userID, postID).Scan(&old.Like, &old.Dislike, &old.Bookmark)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return model.Interaction{}, fmt.Errorf("load interaction: %w", err)
	}

	cur := old
	switch kind {
	case model.EventLike:
		cur.Like = on
		if on {
			cur.Dislike = false
		}
	case model.EventDislike:
		cur.Dislike = on
		if on {
			cur.Like = false
		}
	case model.EventBookmark:
		cur.Bookmark = on
	}
	if cur == old {
		return cur, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO interactions (user_id, post_id, liked, disliked, bookmarked)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, post_id) DO UPDATE SET
			liked = excluded.liked,
			disliked = excluded.disliked,
			bookmarked = excluded.bookmarked
	`, userID, postID, b2i(cur.Like), b2i(cur.Dislike), b2i(cur.Bookmark)); err != nil {
		return model.Interaction{}, fmt.Errorf("save interaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE posts SET
			likes = MAX(0, COALESCE(likes, 0) + ?),
			dislikes = MAX(0, COALESCE(dislikes, 0) + ?),
			bookmarks = MAX(0, COALESCE(bookmarks, 0) + ?)
		WHERE id = ?
	`, b2i(cur.Like)-b2i(old.Like), b2i(cur.Dislike)-b2i(old.Dislike), b2i(cur.Bookmark)-b2i(old.Bookmark), postID); err != nil {
		return model.Interaction{}, fmt.Errorf("update counters: %w", err)
	}

	if on {
		if err := s.appendEvent(ctx, tx, userID, postID, kind); err != nil {
			return model.Interaction{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Interaction{}, fmt.Errorf("commit: %w", err)
	}
	return cur, nil
}

func (s *Store) appendEvent(ctx context.Context, tx *sql.Tx, userID, postID string, kind model.EventType) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO events (id, user_id, post_id, type, created_at) VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), userID, postID, string(kind), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("append %s event: %w", kind, err)
	}
	return nil
}

// RecordView bumps the view counter and logs a view event.
func (s *Store) RecordView(ctx context.Context, userID, postID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE posts SET views = COALESCE(views, 0) + 1 WHERE id = ?`, postID)
	if err != nil {
		return fmt.Errorf("bump views: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}
	if err := s.appendEvent(ctx, tx, userID, postID, model.EventView); err != nil {
		return err
	}
	return tx.Commit()
}

// UserInteractions returns the user's current state per post. Rows with every
// flag cleared are omitted.
func (s *Store) UserInteractions(ctx context.Context, userID string) (model.Interactions, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, liked, disliked, bookmarked FROM interactions
		WHERE user_id = ? AND (liked = 1 OR disliked = 1 OR bookmarked = 1)
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("user interactions: %w", err)
	}
	defer rows.Close()

	out := model.Interactions{}
	for rows.Next() {
		var (
			id string
			in model.Interaction
		)
		if err := rows.Scan(&id, &in.Like, &in.Dislike, &in.Bookmark); err != nil {
			return nil, err
		}
		out[id] = in
	}
	return out, rows.Err()
}

// History returns the user's newest events first, each joined to its post's author.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]model.InteractionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.user_id, e.post_id, p.author_id, e.type, e.created_at
		FROM events e
		LEFT JOIN posts p ON p.id = e.post_id
		WHERE e.user_id = ?
		ORDER BY e.created_at DESC, e.id
		LIMIT ?
	`, userID, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []model.InteractionEvent
	for rows.Next() {
		var (
			ev     model.InteractionEvent
			author sql.NullString
			kind   string
			ctime  sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.PostID, &author, &kind, &ctime); err != nil {
			return nil, err
		}
		ev.PostAuthorID = author.String
		ev.Type = model.EventType(kind)
		ev.CreatedAt = parseTime(ctime)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Follow records follower -> followee. Following yourself is rejected.
func (s *Store) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return errors.New("cannot follow yourself")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(follower_id, followee_id) DO NOTHING
	`, followerID, followeeID, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("follow: %w", err)
	}
	return nil
}

func (s *Store) Unfollow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("unfollow: %w", err)
	}
	return nil
}

// Following returns the set of profile IDs userID follows.
func (s *Store) Following(ctx context.Context, userID string) (map[string]struct{}, error) {
	g, err := s.FollowGraph(ctx, []string{userID})
	if err != nil {
		return nil, err
	}
	if f := g[userID]; f != nil {
		return f, nil
	}
	return map[string]struct{}{}, nil
}

// FollowGraph maps each of userIDs to the set it follows. Users who follow
// nobody are absent.
func (s *Store) FollowGraph(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error) {
	out := map[string]map[string]struct{}{}
	if len(userIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}
	q := `SELECT follower_id, followee_id FROM follows WHERE follower_id IN (?` +
		strings.Repeat(", ?", len(userIDs)-1) + `)`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("follow graph: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, err
		}
		if out[from] == nil {
			out[from] = map[string]struct{}{}
		}
		out[from][to] = struct{}{}
	}
	return out, rows.Err()
}

// SaveMissions stores missions for userID, assigning IDs and timestamps.
// The stored copies are returned.
func (s *Store) SaveMissions(ctx context.Context, userID string, missions []model.Mission) ([]model.Mission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	out := make([]model.Mission, 0, len(missions))
	for i, m := range missions {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		m.UserID = userID
		if m.CreatedAt.IsZero() {
			// keep generation order stable under the created_at sort
			m.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
		tagsJSON, err := encodeTags(m.Tags)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO missions (id, user_id, title, description, difficulty, xp, tags, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.UserID, m.Title, m.Description, m.Difficulty, m.XP, tagsJSON, formatTime(m.CreatedAt)); err != nil {
			return nil, fmt.Errorf("save mission %q: %w", m.Title, err)
		}
		out = append(out, m)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// Missions returns the user's missions in creation order.
func (s *Store) Missions(ctx context.Context, userID string) ([]model.Mission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, description, difficulty, xp, tags, created_at
		FROM missions WHERE user_id = ?
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("missions: %w", err)
	}
	defer rows.Close()

	var out []model.Mission
	for rows.Next() {
		var (
			m                model.Mission
			desc, diff, tags sql.NullString
			ctime            sql.NullString
			xp               sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Title, &desc, &diff, &xp, &tags, &ctime); err != nil {
			return nil, err
		}
		m.Description = desc.String
		m.Difficulty = diff.String
		m.XP = int(xp.Int64)
		m.Tags = decodeTags(tags)
		m.CreatedAt = parseTime(ctime)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Counts summarizes table sizes and the most used post tags.
func (s *Store) Counts(ctx context.Context) (stats.Counts, error) {
	var c stats.Counts
	for _, q := range []struct {
		sql string
		dst *int
	}{
		{`SELECT COUNT(*) FROM profiles`, &c.Profiles},
		{`SELECT COUNT(*) FROM posts`, &c.Posts},
		{`SELECT COUNT(*) FROM posts WHERE sensationalism IS NULL`, &c.Unrated},
		{`SELECT COUNT(*) FROM events`, &c.Events},
		{`SELECT COUNT(*) FROM follows`, &c.Follows},
		{`SELECT COUNT(*) FROM missions`, &c.Missions},
	} {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return stats.Counts{}, fmt.Errorf("count: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT lower(trim(j.value)) AS tag, COUNT(*) AS n
		FROM posts, json_each(CASE WHEN json_valid(posts.tags) THEN posts.tags ELSE '[]' END) j
		WHERE trim(j.value) <> ''
		GROUP BY tag
		ORDER BY n DESC, tag
		LIMIT ?
	`, topTagLimit)
	if err != nil {
		return stats.Counts{}, fmt.Errorf("top tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tc stats.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return stats.Counts{}, err
		}
		c.TopTags = append(c.TopTags, tc)
	}
	return c, rows.Err()
}
