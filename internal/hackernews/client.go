// Package hackernews seeds the post table from the public Hacker News API.
package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bepro/internal/model"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/sync/errgroup"
)

const DefaultBaseAPI = "https://hacker-news.firebaseio.com/v0"

// Client is a minimal Hacker News API client.
// Docs: https://github.com/HackerNews/API
type Client struct {
	baseAPI string
	client  *http.Client
}

// NewClient creates a client. An empty baseAPI means DefaultBaseAPI.
func NewClient(baseAPI string) *Client {
	if strings.TrimSpace(baseAPI) == "" {
		baseAPI = DefaultBaseAPI
	}
	return &Client{
		baseAPI: strings.TrimRight(baseAPI, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type hnItem struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Time        int64  `json:"time"`
	Kids        []int  `json:"kids"`
	Descendants int    `json:"descendants"`
	Score       int    `json:"score"`
	Dead        bool   `json:"dead"`
	Deleted     bool   `json:"deleted"`
}

// Stories resolves a story list (topstories, newstories, beststories,
// askstories, showstories) into posts, keeping the list order.
// Items that fail to load are skipped.
func (c *Client) Stories(ctx context.Context, list string, limit int) ([]model.Post, error) {
	ids, err := c.fetchIDs(ctx, list)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	slog.Info("hackernews: fetching items", "list", list, "count", len(ids))

	found := make([]*model.Post, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, id := range ids {
		g.Go(func() error {
			ictx, cancel := context.WithTimeout(gctx, 8*time.Second)
			defer cancel()
			it, err := c.item(ictx, id)
			if err != nil {
				slog.Debug("hackernews: skip item", "id", id, "error", err)
				return nil
			}
			if it.Dead || it.Deleted || it.Title == "" {
				return nil
			}
			p := toPost(it)
			found[i] = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	posts := make([]model.Post, 0, len(found))
	for _, p := range found {
		if p != nil {
			posts = append(posts, *p)
		}
	}
	return posts, nil
}

func (c *Client) item(ctx context.Context, id int) (hnItem, error) {
	var it hnItem
	err := c.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", c.baseAPI, id), &it)
	return it, err
}

func (c *Client) fetchIDs(ctx context.Context, list string) ([]int, error) {
	var ids []int
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%s.json", c.baseAPI, url.PathEscape(list)), &ids); err != nil {
		return nil, fmt.Errorf("hackernews: %s: %w", list, err)
	}
	return ids, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// toPost maps an item to a post. The title becomes the headline line of the
// content, points become likes and the story kind (ask, show, job, story)
// becomes the only tag.
func toPost(h hnItem) model.Post {
	content := strings.TrimSpace(h.Title)
	body := textToMarkdown(h.Text)
	if u := strings.TrimSpace(h.URL); u != "" {
		body = strings.TrimSpace(body + "\n" + u)
	}
	if body != "" {
		content += "\n" + body
	}
	p := model.Post{
		ID:         "hn-" + strconv.Itoa(h.ID),
		AuthorName: h.By,
		Content:    content,
		Tags:       []string{kind(h)},
		Likes:      max(h.Score, 0),
		Comments:   max(h.Descendants, len(h.Kids)),
	}
	if h.By != "" {
		p.AuthorID = "hn:" + h.By
	}
	if h.Time > 0 {
		p.CreatedAt = time.Unix(h.Time, 0).UTC()
	}
	return p
}

func kind(h hnItem) string {
	typ := strings.ToLower(strings.TrimSpace(h.Type))
	if typ != "story" {
		return typ
	}
	t := strings.ToLower(strings.TrimSpace(h.Title))
	switch {
	case strings.HasPrefix(t, "ask hn:"):
		return "ask"
	case strings.HasPrefix(t, "show hn:"):
		return "show"
	}
	return "story"
}

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// textToMarkdown converts the HTML subset HN uses for item text. Tags are
// stripped if conversion fails.
func textToMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return strings.TrimSpace(html.UnescapeString(htmlTagRe.ReplaceAllString(s, " ")))
	}
	return strings.TrimSpace(md)
}
