package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dotsetgreg/factkeeper/pkg/facts"
	"github.com/dotsetgreg/factkeeper/pkg/logger"
	"github.com/dotsetgreg/factkeeper/pkg/store"
)

const serviceName = "WhatsApp Business Platform"

// FactQuerier is the read-only view of the fact store served over HTTP.
type FactQuerier interface {
	Profile(ctx context.Context, subjectKey string) store.Profile
	List(ctx context.Context, subjectKey, query string, limit int) []facts.Fact
	Search(ctx context.Context, query string, limit int) []facts.Fact
}

// RouteRegistrar mounts extra routes, e.g. the WhatsApp webhook.
type RouteRegistrar interface {
	RegisterRoutes(r gin.IRoutes)
}

// ReadinessFunc reports component status for /ready. A nil error means ready.
type ReadinessFunc func(ctx context.Context) (map[string]interface{}, error)

type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	facts      FactQuerier
	ready      ReadinessFunc
	started    atomic.Bool
	now        func() time.Time
}

func NewServer(host string, port int, factStore FactQuerier, ready ReadinessFunc, extra ...RouteRegistrar) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		engine: engine,
		facts:  factStore,
		ready:  ready,
		now:    time.Now,
	}
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.registerRoutes(extra)
	return s
}

func (s *Server) registerRoutes(extra []RouteRegistrar) {
	s.engine.GET("/health", s.health)
	s.engine.GET("/ready", s.readiness)

	api := s.engine.Group("/api")
	{
		api.GET("/user/:id/profile", s.userProfile)
		api.GET("/user/:id/data", s.userData)
		api.GET("/search", s.search)
	}

	for _, r := range extra {
		if r != nil {
			r.RegisterRoutes(s.engine)
		}
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start blocks serving HTTP until Stop is called; it then returns
// http.ErrServerClosed.
func (s *Server) Start() error {
	s.started.Store(true)
	logger.InfoCF("api", "HTTP server listening", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
		"service":   serviceName,
	})
}

func (s *Server) readiness(c *gin.Context) {
	if s.ready == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	checks, err := s.ready(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
			"checks": checks,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}

func (s *Server) userProfile(c *gin.Context) {
	c.JSON(http.StatusOK, s.facts.Profile(c.Request.Context(), c.Param("id")))
}

func (s *Server) userData(c *gin.Context) {
	limit := queryLimit(c, 10)
	data := s.facts.List(c.Request.Context(), c.Param("id"), c.Query("query"), limit)
	c.JSON(http.StatusOK, nonNil(data))
}

func (s *Server) search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter is required"})
		return
	}
	c.JSON(http.StatusOK, nonNil(s.facts.Search(c.Request.Context(), query, queryLimit(c, 5))))
}

// queryLimit parses ?limit=, falling back to def for missing or
// non-positive values.
func queryLimit(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

func nonNil(list []facts.Fact) []facts.Fact {
	if list == nil {
		return []facts.Fact{}
	}
	return list
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.DebugCF("api", "Request served", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}
