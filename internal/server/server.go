// Package server exposes the feed service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bepro/internal/feed"
	"bepro/internal/stats"
	"bepro/internal/storage"

	"github.com/gin-gonic/gin"
)

const maxLimit = 100

// Config represents server configuration.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wires the HTTP routes to a feed.Service. It is a worker: Start
// blocks until the context is cancelled.
type Server struct {
	cfg     Config
	feed    *feed.Service
	stats   *stats.Cache
	metrics *Metrics
	router  *gin.Engine
}

// New builds the router. A nil stats cache gets a one-minute cache over the feed store.
func New(cfg Config, f *feed.Service, st *stats.Cache) *Server {
	if st == nil {
		st = &stats.Cache{TTL: time.Minute, Load: f.Counts}
	}
	s := &Server{cfg: cfg, feed: f, stats: st, metrics: NewMetrics()}

	r := gin.New()
	r.Use(requestLogger())
	r.Use(gin.Recovery())
	r.Use(s.metrics.Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "bepro"})
	})
	r.GET("/metrics", s.metrics.Handler())
	r.GET("/stats", s.getStats)

	u := r.Group("/users/:id")
	u.GET("/feed", s.getFeed)
	u.GET("/suggestions", s.getSuggestions)
	u.PUT("/interactions/:post", s.putInteraction)
	u.POST("/views/:post", s.postView)
	u.POST("/missions", s.postMissions)
	u.GET("/missions", s.getMissions)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("server: listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	slog.Info("server: stopped")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "server: request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// fail maps service errors onto HTTP statuses.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, feed.ErrUnknownMode), errors.Is(err, feed.ErrUnknownInteraction):
		status = http.StatusBadRequest
	case errors.Is(err, feed.ErrMissionsDisabled):
		status = http.StatusServiceUnavailable
	case errors.Is(err, feed.ErrNoMissions):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		slog.Error("server: handler failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// limitParam reads ?limit=, defaulting to def and capping at maxLimit.
func limitParam(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		badRequest(c, "limit must be a positive integer")
		return 0, false
	}
	return min(n, maxLimit), true
}

func (s *Server) getFeed(c *gin.Context) {
	mode, err := feed.ParseMode(c.Query("mode"))
	if err != nil {
		fail(c, err)
		return
	}
	limit, ok := limitParam(c, 20)
	if !ok {
		return
	}
	posts, err := s.feed.Feed(c.Request.Context(), c.Param("id"), mode, c.Query("q"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	s.metrics.feedRequests.WithLabelValues(string(mode)).Inc()
	c.JSON(http.StatusOK, gin.H{"mode": mode, "posts": posts})
}

func (s *Server) getSuggestions(c *gin.Context) {
	limit, ok := limitParam(c, 10)
	if !ok {
		return
	}
	out, err := s.feed.Suggestions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": out})
}

type interactionRequest struct {
	Kind string `json:"kind" binding:"required"`
	On   *bool  `json:"on" binding:"required"`
}

func (s *Server) putInteraction(c *gin.Context) {
	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	in, err := s.feed.Interact(c.Request.Context(), c.Param("id"), c.Param("post"), req.Kind, *req.On)
	if err != nil {
		fail(c, err)
		return
	}
	s.metrics.interactions.WithLabelValues(strings.ToLower(strings.TrimSpace(req.Kind)), strconv.FormatBool(*req.On)).Inc()
	c.JSON(http.StatusOK, in)
}

func (s *Server) postView(c *gin.Context) {
	if err := s.feed.View(c.Request.Context(), c.Param("id"), c.Param("post")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type missionsRequest struct {
	Goal string `json:"goal"`
}

func (s *Server) postMissions(c *gin.Context) {
	var req missionsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	out, err := s.feed.GenerateMissions(c.Request.Context(), c.Param("id"), req.Goal)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"missions": out})
}

func (s *Server) getMissions(c *gin.Context) {
	out, err := s.feed.Missions(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"missions": out})
}

func (s *Server) getStats(c *gin.Context) {
	counts, err := s.stats.Get(c.Request.Context())
	if err != nil && counts.LoadedAt.IsZero() {
		fail(c, err)
		return
	}
	if err != nil {
		slog.Warn("server: serving stale stats", "error", err)
	}
	c.JSON(http.StatusOK, counts)
}
