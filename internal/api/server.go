// Package api serves the dashboard over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/settings"
)

// Backend is the subset of the service manager the API needs.
type Backend interface {
	Metrics(ctx context.Context, phase models.Phase) (*models.Response, error)
	Zones(ctx context.Context) ([]services.AccountZones, error)
	CheckThresholds(ctx context.Context, test bool) (*models.ThresholdReport, error)
	PreWarm(ctx context.Context) (*models.Response, error)
	Settings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, s *models.Settings) error
	Ready(ctx context.Context) error
}

// Server holds the HTTP handlers.
type Server struct {
	backend Backend
}

// NewServer creates a server for backend.
func NewServer(backend Backend) *Server {
	return &Server{backend: backend}
}

// NewEngine returns a gin engine with every route registered.
func NewEngine(backend Backend) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	NewServer(backend).SetupRoutes(r)
	return r
}

// SetupRoutes registers the API on r.
func (s *Server) SetupRoutes(r gin.IRouter) {
	r.GET("/healthz", s.health)
	r.GET("/readyz", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/metrics", s.getMetrics)
	api.GET("/zones", s.getZones)
	api.POST("/thresholds/check", s.checkThresholds)
	api.POST("/prewarm", s.preWarm)
	api.GET("/config", s.getConfig)
	api.PUT("/config", s.putConfig)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.backend.Ready(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) getMetrics(c *gin.Context) {
	phase, err := models.ParsePhase(c.Query("phase"))
	if err != nil {
		badRequest(c, "invalid_phase", err)
		return
	}

	resp, err := s.backend.Metrics(c.Request.Context(), phase)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (s *Server) getZones(c *gin.Context) {
	zones, err := s.backend.Zones(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, zones)
}

func (s *Server) checkThresholds(c *gin.Context) {
	report, err := s.backend.CheckThresholds(c.Request.Context(), c.Query("test") == "true")
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, report)
}

func (s *Server) preWarm(c *gin.Context) {
	resp, err := s.backend.PreWarm(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"zoneCount": resp.ZoneCount, "generatedAt": resp.GeneratedAt})
}

func (s *Server) getConfig(c *gin.Context) {
	current, err := s.backend.Settings(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, current)
}

func (s *Server) putConfig(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c, "invalid_body", err)
		return
	}

	next, err := settings.Parse(raw)
	if err != nil {
		badRequest(c, "invalid_body", err)
		return
	}
	if err := settings.Validate(next); err != nil {
		badRequest(c, "invalid_config", err)
		return
	}

	if err := s.backend.SaveSettings(c.Request.Context(), next); err != nil {
		fail(c, err)
		return
	}
	ok(c, next)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
