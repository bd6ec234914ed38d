// Package server is the HTTP dashboard: a JSON API over the result store
// plus an HTML report.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/lotscout/internal/store"
	"github.com/law-makers/lotscout/internal/utils/output"
	"github.com/law-makers/lotscout/pkg/models"
)

// MaxRefreshLimit caps ?limit= on refresh requests
const MaxRefreshLimit = 1000

// Refresher is the part of the store the dashboard drives
type Refresher interface {
	Refresh(ctx context.Context, limit int) ([]*models.VehicleRecord, error)
	Snapshot() store.Snapshot
}

// Options configure the dashboard
type Options struct {
	// DefaultLimit applies when a refresh request has no ?limit=
	DefaultLimit int
	Title        string
	// AllowOrigins for CORS; empty allows any origin
	AllowOrigins []string
}

// Server wires the routes onto a gin engine
type Server struct {
	store  Refresher
	opts   Options
	engine *gin.Engine
	start  time.Time
}

// New builds the router
func New(st Refresher, opts Options) *Server {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = MaxRefreshLimit
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())

	corsCfg := cors.DefaultConfig()
	if len(opts.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.AllowOrigins
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	r.Use(cors.New(corsCfg))

	s := &Server{store: st, opts: opts, engine: r, start: time.Now()}

	r.GET("/", s.report)
	api := r.Group("/api")
	{
		api.POST("/refresh", s.refresh)
		api.GET("/data", s.data)
		api.GET("/health", s.health)
	}
	return s
}

// Handler returns the router as an http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Dashboard listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("Dashboard shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) refresh(c *gin.Context) {
	limit := s.opts.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > MaxRefreshLimit {
		limit = MaxRefreshLimit
	}

	// a client hanging up must not truncate the run
	records, err := s.store.Refresh(context.WithoutCancel(c.Request.Context()), limit)
	switch {
	case errors.Is(err, store.ErrRefreshInProgress):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	case err != nil:
		snap := s.store.Snapshot()
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   err.Error(),
			"data":    snap.Records,
			"count":   len(snap.Records),
		})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "data": records, "count": len(records)})
	}
}

func (s *Server) data(c *gin.Context) {
	snap := s.store.Snapshot()
	body := gin.H{
		"success":    true,
		"data":       snap.Records,
		"count":      len(snap.Records),
		"updated_at": nil,
		"last_error": nil,
		"running":    snap.Running,
	}
	if !snap.UpdatedAt.IsZero() {
		body["updated_at"] = snap.UpdatedAt
	}
	if snap.LastError != "" {
		body["last_error"] = snap.LastError
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	})
}

func (s *Server) report(c *gin.Context) {
	snap := s.store.Snapshot()
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	err := output.RenderHTML(c.Writer, output.Report{
		Title:     s.opts.Title,
		UpdatedAt: snap.UpdatedAt,
		LastError: snap.LastError,
		Records:   snap.Records,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to render report")
	}
}
