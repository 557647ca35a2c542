package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFactor(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0.35", 0.35},
		{"Rating: 0.8", 0.8},
		{".5", 0.5},
		{"1", 1},
		{"0", 0},
		{"7/10", 0.7},
		{"7", 0.7},
		{"85%", 0.85},
		{"42/100", 0.42},
		{"250", 1},
	}
	for _, tt := range tests {
		got, err := ParseFactor(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}

	_, err := ParseFactor("I cannot rate this.")
	assert.ErrorIs(t, err, ErrNoRating)
}

// fakeCompletions answers every chat completion with reply and records the last request.
func fakeCompletions(t *testing.T, reply string, last *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if last != nil {
			_ = json.NewDecoder(r.Body).Decode(last)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"model":   "test",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": reply}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRateSensationalism(t *testing.T) {
	srv := fakeCompletions(t, " 0.9 ", nil)
	c := NewOpenAI(Config{APIKey: "k", Model: "test", BaseURL: srv.URL + "/v1"})

	got, err := c.RateSensationalism(context.Background(), "YOU WON'T BELIEVE this one weird Go trick")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, got, 1e-9)

	got, err = c.RateSensationalism(context.Background(), "   ")
	require.NoError(t, err)
	assert.Zero(t, got, "empty content is not sent")
}

func TestWriteMissions(t *testing.T) {
	var req map[string]any
	srv := fakeCompletions(t, "[MISSION][TITLE]Ship it[/TITLE][/MISSION]", &req)
	c := NewOpenAI(Config{APIKey: "k", Model: "test", BaseURL: srv.URL + "/v1"})

	out, err := c.WriteMissions(context.Background(), []string{"go", "sql"}, "learn databases", "Spanish", 2)
	require.NoError(t, err)
	assert.Contains(t, out, "[TITLE]Ship it[/TITLE]")

	msgs, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	sys := msgs[0].(map[string]any)["content"].(string)
	user := msgs[1].(map[string]any)["content"].(string)
	assert.Contains(t, sys, "Spanish")
	assert.Contains(t, sys, "exactly 2")
	assert.Contains(t, user, "go, sql")
	assert.Contains(t, user, "learn databases")
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": "0.2"}}},
		})
	}))
	t.Cleanup(srv.Close)

	c := NewOpenAI(Config{APIKey: "k", Model: "test", BaseURL: srv.URL + "/v1", RetryDelay: time.Millisecond})
	got, err := c.RateSensationalism(context.Background(), "calm post")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, got, 1e-9)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNoRetryOnClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)

	c := NewOpenAI(Config{APIKey: "k", Model: "test", BaseURL: srv.URL + "/v1", RetryDelay: time.Millisecond})
	_, err := c.RateSensationalism(context.Background(), "post")
	require.Error(t, err)
	assert.False(t, retryable(err))
	assert.Equal(t, int32(1), calls.Load())
}
