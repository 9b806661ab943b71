// Package api exposes the document pipeline over HTTP.
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/gmsas95/docrefine/internal/config"
	"github.com/gmsas95/docrefine/internal/metrics"
)

// Server handles the HTTP API
type Server struct {
	app       *fiber.App
	config    config.Config
	processor Processor
	history   History
	prober    Prober
	metrics   *metrics.Metrics
	logger    *zap.Logger
	version   string
}

// Deps are the collaborators of a Server. Metrics may be nil.
type Deps struct {
	Processor Processor
	History   History
	Prober    Prober
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Version   string
}

// New creates a new API server
func New(cfg config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Server{
		config:    cfg,
		processor: deps.Processor,
		history:   deps.History,
		prober:    deps.Prober,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		version:   deps.Version,
	}

	s.app = fiber.New(fiber.Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(s.requestLogger())

	s.app.Get("/api/health", s.handleHealth)
	if s.metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
		s.app.Get("/api/stats", s.handleStats)
	}

	api := s.app.Group("/api")

	api.Get("/probe", s.handleProbe)
	api.Post("/process", s.handleProcess)
	api.Get("/runs", s.handleListRuns)
	api.Get("/runs/:id", s.handleGetRun)
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info("API listening", zap.String("addr", s.config.ServerAddr()))
	return s.app.Listen(s.config.ServerAddr())
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
