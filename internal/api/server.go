// Package api serves the analysis pipeline over REST.
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"kpiscout/adapters/export"
	"kpiscout/app"
	domainInsight "kpiscout/domain/insight"
	"kpiscout/internal/errors"
)

// Config holds HTTP-layer limits
type Config struct {
	MaxConcurrentAnalyses int
	MaxUploadBytes        int64
	AllowOrigins          []string
}

// Server owns the gin engine for /api
type Server struct {
	runs      *app.RunService
	exporter  *export.Exporter
	hub       *EventHub
	analyses  *semaphore.Weighted
	maxUpload int64
	engine    *gin.Engine
	logger    *zap.Logger
}

// NewServer wires handlers onto a fresh gin engine. hub may be nil.
func NewServer(config Config, runs *app.RunService, exporter *export.Exporter, hub *EventHub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxConcurrentAnalyses < 1 {
		config.MaxConcurrentAnalyses = 1
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 50 << 20
	}
	if hub == nil {
		hub = NewEventHub(logger.Named("events"))
	}
	if exporter == nil {
		exporter = export.NewExporter(logger.Named("export"))
	}

	s := &Server{
		runs:      runs,
		exporter:  exporter,
		hub:       hub,
		analyses:  semaphore.NewWeighted(int64(config.MaxConcurrentAnalyses)),
		maxUpload: config.MaxUploadBytes,
		engine:    gin.New(),
		logger:    logger,
	}

	s.engine.Use(gin.Recovery())
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsConfig.MaxAge = 12 * time.Hour
	if len(config.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	s.engine.Use(cors.New(corsConfig))

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")
	{
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/analyze/records", s.handleAnalyzeRecords)
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
		api.DELETE("/runs/:id", s.handleDeleteRun)
		api.GET("/runs/:id/export", s.handleExportRun)
		api.GET("/events", s.hub.HandleSSE)
	}
}

// Handler exposes the engine for mounting under another router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Hub returns the run event hub
func (s *Server) Hub() *EventHub {
	return s.hub
}

// analyzeWithSlot runs fn once a concurrency slot is free, then publishes
// the outcome
func (s *Server) analyzeWithSlot(ctx context.Context, dataset string, fn func(context.Context) (*domainInsight.Results, error)) (*domainInsight.Results, error) {
	if err := s.analyses.Acquire(ctx, 1); err != nil {
		return nil, errors.WithCode(errors.CodeInternalError, err)
	}
	defer s.analyses.Release(1)

	results, err := fn(ctx)
	if err != nil {
		s.hub.Publish(FailedEvent("api", dataset, err))
		return nil, err
	}
	s.hub.Publish(CompletedEvent("api", results))
	return results, nil
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return stderrors.As(err, &tooLarge)
}

func respondError(c *gin.Context, err error) {
	if isTooLarge(err) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large", "code": "PAYLOAD_TOO_LARGE"})
		return
	}
	c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error(), "code": errors.GetCode(err)})
}
