// Package httpapi exposes feedback generation and evidence retrieval over
// HTTP using gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driving"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// ErrMissingFeedbackService is returned when the feedback service is not provided.
var ErrMissingFeedbackService = errors.New("httpapi: feedback service is required")

// Ports aggregates the driving ports served over HTTP.
type Ports struct {
	// Feedback generates grounded feedback.
	Feedback driving.FeedbackService

	// Retrieval backs POST /api/v1/retrieve. Optional.
	Retrieval driving.RetrievalService

	// Ranker orders retrieved evidence. Optional.
	Ranker driving.CitationRanker
}

// Server serves the HTTP API.
type Server struct {
	ports  *Ports
	engine *gin.Engine
}

// NewServer builds the router. Retrieval routes are only registered when a
// retrieval service is provided.
func NewServer(ports *Ports) (*Server, error) {
	if ports == nil || ports.Feedback == nil {
		return nil, ErrMissingFeedbackService
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{ports: ports, engine: engine}

	engine.GET("/healthz", s.handleHealth)
	api := engine.Group("/api/v1")
	{
		api.POST("/feedback", s.handleFeedback)
		if ports.Retrieval != nil {
			api.POST("/retrieve", s.handleRetrieve)
		}
	}
	return s, nil
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// requestLogger logs one debug line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
