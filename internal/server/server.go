package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/hovel-sh/hovel/internal/config"
	"github.com/hovel-sh/hovel/internal/engine"
	"github.com/hovel-sh/hovel/internal/metrics"
)

// shutdownGrace bounds how long in-flight requests may run once a
// shutdown signal arrives.
const shutdownGrace = 10 * time.Second

// Server is the HTTP control plane.
type Server struct {
	cfg     *config.Config
	engine  *engine.Engine
	version string
	router  *gin.Engine
	log     zerolog.Logger
}

// New creates a Server with its routes registered.
func New(cfg *config.Config, eng *engine.Engine, version string, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:     cfg,
		engine:  eng,
		version: version,
		router:  gin.New(),
		log:     log,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(requestID())
	s.router.Use(cors())
	s.router.Use(requestLogger(log))

	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := s.router.Group("/api")
	api.GET("/status", s.handleAPIStatus)
	api.POST("/branch", s.handleCreateBranch)
	api.GET("/branches", s.handleListBranches)
	api.GET("/branch/:name", s.handleGetBranch)
	api.DELETE("/branch/:name", s.handleDeleteBranch)
	api.POST("/branch/:name/start", s.handleStartBranch)
	api.POST("/branch/:name/stop", s.handleStopBranch)
	api.POST("/branch/:name/restart", s.handleRestartBranch)
	api.GET("/branch/:name/status", s.handleBranchStatus)
	api.GET("/branch/:name/logs", s.handleBranchLogs)
	api.POST("/branch/:name/gemini-session", s.handleGeminiSession)

	return s
}

// Router exposes the gin engine, mainly for handler tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until the context is cancelled, then shuts down
// gracefully: in-flight requests get a grace period, and background
// builds are drained before Run returns.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.ListenPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.cfg.ListenPort).Msg("control api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("forced shutdown after grace period")
	}

	// Builds are not cancellable mid-flight; wait for them so their
	// state transitions get persisted.
	s.engine.Wait()
	return nil
}
