// Package server exposes chat, preview and ingestion over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/matheuskafuri/newsintel/internal/chat"
	"github.com/matheuskafuri/newsintel/internal/ingest"
	"github.com/matheuskafuri/newsintel/internal/logging"
	"github.com/matheuskafuri/newsintel/internal/preview"
	"github.com/matheuskafuri/newsintel/internal/store"
)

type Answerer interface {
	Answer(ctx context.Context, question string, scope store.Scope) (string, error)
}

type Previewer interface {
	Fetch(ctx context.Context, scope store.Scope) ([]preview.ArticlePreview, error)
}

type Ingester interface {
	Run(ctx context.Context, pageSize, maxResults int) (ingest.Stats, error)
}

type Options struct {
	// Token, when set, is required on every /api route.
	Token      string
	PageSize   int
	MaxResults int
}

type Server struct {
	chat    Answerer
	preview Previewer
	ingest  Ingester
	opts    Options
	logger  *zap.Logger
}

// New builds a server. ing may be nil, in which case /api/ingest answers 503.
func New(c Answerer, p Previewer, ing Ingester, opts Options, logger *zap.Logger) *Server {
	return &Server{chat: c, preview: p, ingest: ing, opts: opts, logger: logging.OrNop(logger)}
}

func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api := r.Group("/api", s.requireToken())
	api.POST("/chat", s.handleChat)
	api.GET("/preview", s.handlePreview)
	api.POST("/ingest", s.handleIngest)
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.Token == "" {
			c.Next()
			return
		}
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token != s.opts.Token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

type scopeRequest struct {
	Limit      int      `json:"limit"`
	ClusterIDs []string `json:"clusterIds"`
	ArticleIDs []string `json:"articleIds"`
	Sources    []string `json:"sources"`
	FromDate   string   `json:"fromDate"`
	ToDate     string   `json:"toDate"`
}

type chatRequest struct {
	Message       string       `json:"message"`
	Scope         scopeRequest `json:"scope"`
	IncludeBodies bool         `json:"includeBodies"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	scope, err := buildScope(req.Scope)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	scope.IncludeBodies = req.IncludeBodies

	reply, err := s.chat.Answer(c.Request.Context(), req.Message, scope)
	switch {
	case errors.Is(err, chat.ErrEmptyQuestion):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		s.logger.Error("chat failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"reply": reply})
	}
}

func (s *Server) handlePreview(c *gin.Context) {
	req := scopeRequest{
		ClusterIDs: c.QueryArray("clusterId"),
		ArticleIDs: c.QueryArray("articleId"),
		Sources:    c.QueryArray("source"),
		FromDate:   c.Query("fromDate"),
		ToDate:     c.Query("toDate"),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		req.Limit = n
	}
	scope, err := buildScope(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	articles, err := s.preview.Fetch(c.Request.Context(), scope)
	if err != nil {
		s.logger.Error("preview failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	if articles == nil {
		articles = []preview.ArticlePreview{}
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

func (s *Server) handleIngest(c *gin.Context) {
	if s.ingest == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingestion is not configured"})
		return
	}
	stats, err := s.ingest.Run(c.Request.Context(), s.opts.PageSize, s.opts.MaxResults)
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "stats": stats})
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": stats.Stored, "stats": stats})
}

func buildScope(req scopeRequest) (store.Scope, error) {
	scope := store.Scope{
		Limit:      req.Limit,
		ClusterIDs: req.ClusterIDs,
		ArticleIDs: req.ArticleIDs,
		Sources:    req.Sources,
	}
	var err error
	if scope.FromDate, err = parseDate(req.FromDate, false); err != nil {
		return store.Scope{}, fmt.Errorf("fromDate: %w", err)
	}
	if scope.ToDate, err = parseDate(req.ToDate, true); err != nil {
		return store.Scope{}, fmt.Errorf("toDate: %w", err)
	}
	return scope, nil
}

// parseDate accepts RFC 3339 or a bare date. A bare end date covers the whole day.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want RFC 3339 or YYYY-MM-DD)", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
