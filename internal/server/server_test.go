package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bepro/internal/feed"
	"bepro/internal/model"
	"bepro/internal/recommend"
	"bepro/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store, err := storage.Open(filepath.Join(t.TempDir(), "bepro.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.UpsertProfile(ctx, model.UserProfile{ID: "u1", Username: "ana", Tags: []string{"go"}}))
	require.NoError(t, store.UpsertProfile(ctx, model.UserProfile{ID: "u2", Username: "bo", Tags: []string{"go"}}))
	require.NoError(t, store.UpsertPost(ctx, model.Post{ID: "p1", AuthorID: "u2", Content: "hello gophers", Tags: []string{"go"}, CreatedAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, store.UpsertPost(ctx, model.Post{ID: "p2", AuthorID: "u2", Content: "sql joins", CreatedAt: time.Now().Add(-2 * time.Hour)}))

	svc := &feed.Service{
		Store:   store,
		Scorer:  &recommend.Scorer{Jitter: func() float64 { return 0 }},
		Options: feed.Options{CandidateLimit: 100, HistoryLimit: 100},
	}
	return New(Config{Addr: ":0"}, svc, nil), store
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestFeedEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/users/u1/feed?mode=recent&limit=1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Mode  string             `json:"mode"`
		Posts []model.ScoredPost `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "recent", resp.Mode)
	require.Len(t, resp.Posts, 1)
	assert.Equal(t, "p1", resp.Posts[0].Post.ID)

	w = do(t, s, http.MethodGet, "/users/u1/feed?q=sql", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "recommended", resp.Mode)
	assert.Equal(t, []string{"p2"}, model.PostIDs(resp.Posts))

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/users/u1/feed?mode=random", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/users/u1/feed?limit=abc", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/users/ghost/feed", "").Code)

	metrics := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), `bepro_feed_requests_total{mode="recent"} 1`)
	assert.Contains(t, metrics.Body.String(), "bepro_http_requests_total")
}

func TestInteractionEndpoints(t *testing.T) {
	s, store := newTestServer(t)

	w := do(t, s, http.MethodPut, "/users/u1/interactions/p1", `{"kind":"like","on":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var in model.Interaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &in))
	assert.True(t, in.Like)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.interactions.WithLabelValues("like", "true")))

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPut, "/users/u1/interactions/p1", `{"kind":"share","on":true}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPut, "/users/u1/interactions/p1", `{"kind":"like"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPut, "/users/u1/interactions/nope", `{"kind":"like","on":true}`).Code)

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/users/u1/views/p1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/users/u1/views/nope", "").Code)

	p, err := store.GetPost(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Likes)
	assert.Equal(t, 1, p.Views)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.interactions.WithLabelValues("like", "true")), "rejected toggles are not counted")
}

func TestSuggestionsMissionsAndStats(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/users/u1/suggestions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"bo"`)

	w = do(t, s, http.MethodPost, "/users/u1/missions", `{"goal":"ship"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "error")

	w = do(t, s, http.MethodGet, "/users/u1/missions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/users/ghost/missions", "").Code)

	w = do(t, s, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var counts struct {
		Profiles int `json:"profiles"`
		Posts    int `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	assert.Equal(t, 2, counts.Profiles)
	assert.Equal(t, 2, counts.Posts)
}
