// Package web exposes the study core as a JSON API.
package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/conorfennell/knolstudy/internal/logger"
	"github.com/conorfennell/knolstudy/internal/stats"
	"github.com/conorfennell/knolstudy/internal/study"
	"github.com/conorfennell/knolstudy/internal/sync"
)

// Pinger reports whether storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the server routes to. Sync may be nil, which disables the
// source management routes.
type Deps struct {
	Study  *study.Service
	Stats  *stats.Aggregator
	Sync   *sync.Syncer
	DB     Pinger
	Logger *logger.Logger
	// CORSOrigins enables CORS for these browser origins when non-empty.
	CORSOrigins []string
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	router *gin.Engine
	study  *study.Service
	stats  *stats.Aggregator
	sync   *sync.Syncer
	db     Pinger
	log    *logger.Logger
	cors   []string
}

// NewServer creates and configures a new server.
func NewServer(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		router: gin.New(),
		study:  d.Study,
		stats:  d.Stats,
		sync:   d.Sync,
		db:     d.DB,
		log:    log.With("component", "web"),
		cors:   d.CORSOrigins,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(gin.Recovery(), requestLogger(s.log))
	if len(s.cors) > 0 {
		s.router.Use(corsMiddleware(s.cors))
	}
	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api", requireUser())
	{
		rs := api.Group("/review-sessions")
		rs.POST("", s.handleStartReview)
		rs.GET("/:id", s.handleGetReview)
		rs.POST("/:id/reviews", s.handleSubmitReview)
		rs.GET("/:id/reviews", s.handleReviewHistory)
		rs.PATCH("/:id", s.handlePatchReview)

		ds := api.Group("/daily-learning-sessions")
		ds.POST("", s.handleStartDaily)
		ds.GET("/:id", s.handleGetDaily)
		ds.POST("/:id/review", s.handleSubmitDaily)
		ds.GET("/:id/review", s.handleDailyHistory)
		ds.PATCH("/:id", s.handlePatchDaily)

		api.GET("/daily-stats", s.handleDailyStats)

		ls := api.Group("/learning-lessons")
		ls.GET("", s.handleListLessons)
		ls.POST("", s.handleCreateLesson)
		ls.GET("/:id", s.handleGetLesson)
		ls.PUT("/:id", s.handleUpdateLesson)
		ls.DELETE("/:id", s.handleDeleteLesson)

		if s.sync != nil {
			api.GET("/sources", s.handleListSources)
			api.POST("/sources", s.handleAddSource)
			api.DELETE("/sources/:id", s.handleDeleteSource)
			api.POST("/sync", s.handleSync)
		}
	}
}

// GET /healthz
func (s *Server) handleHealth(c *gin.Context) {
	if s.db != nil {
		if err := s.db.Ping(c.Request.Context()); err != nil {
			s.log.Error("health check failed", "error", err)
			respondError(c, http.StatusServiceUnavailable, "unavailable", err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
