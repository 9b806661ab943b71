// Package app wires configuration, storage, OCR, the model client and the
// pipeline into one runnable application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/docrefine/internal/api"
	"github.com/gmsas95/docrefine/internal/config"
	"github.com/gmsas95/docrefine/internal/metrics"
	"github.com/gmsas95/docrefine/internal/ocr"
	"github.com/gmsas95/docrefine/internal/output"
	"github.com/gmsas95/docrefine/internal/pipeline"
	"github.com/gmsas95/docrefine/internal/refine"
	"github.com/gmsas95/docrefine/internal/store"
)

type App struct {
	Config   *config.Config
	Store    *store.Store
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Refiner  *refine.Client
	Pipeline *pipeline.Pipeline
	Writer   *output.Writer
	Version  string
}

// Option customizes New
type Option func(*options)

type options struct {
	engine ocr.Engine
	store  *store.Store
}

// WithEngine replaces the Tesseract engine
func WithEngine(e ocr.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithStore uses an already opened store instead of opening one from config
func WithStore(st *store.Store) Option {
	return func(o *options) { o.store = st }
}

func New(cfg *config.Config, logger *zap.Logger, version string, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	st := o.store
	if st == nil {
		var err error
		st, err = store.New(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
	}

	engine := o.engine
	if engine == nil {
		engine = ocr.NewTesseractEngine(cfg.OCR.Languages, logger)
	}

	m := metrics.New()
	client := refine.NewClient(cfg.Service, cfg.Refine, m, logger)

	p := pipeline.New(*cfg, pipeline.Deps{
		Loader:  ocr.NewLoader(cfg.OCR, logger),
		Engine:  engine,
		Refiner: client,
		Cache:   st,
		Metrics: m,
		Logger:  logger,
	})

	return &App{
		Config:   cfg,
		Store:    st,
		Metrics:  m,
		Logger:   logger,
		Refiner:  client,
		Pipeline: p,
		Writer:   output.NewWriter(logger, m),
		Version:  version,
	}, nil
}

// Close releases the store
func (app *App) Close() error {
	return app.Store.Close()
}

// ProcessDocument runs the pipeline on path, saves the record and stores the
// run in history. An empty outputPath uses the configured naming pattern.
// History and metrics textfile failures are logged, not returned.
func (app *App) ProcessDocument(ctx context.Context, path string, tasks []string, outputPath string) (*store.Run, *pipeline.Record, error) {
	out, err := app.Pipeline.Run(ctx, path, tasks)
	if err != nil {
		app.writeTextfile()
		return nil, nil, err
	}

	if outputPath == "" {
		outputPath = app.Config.OutputPath(path)
	}
	saved, err := app.Writer.Save(out.Record, outputPath)
	if err != nil {
		app.writeTextfile()
		return nil, out.Record, err
	}

	run := &store.Run{
		SourcePath: path,
		OutputPath: saved,
		Confidence: out.Record.OCR.Confidence,
		SoftErrors: out.SoftErrors,
		Pages:      out.Pages,
		DurationMs: out.Duration.Milliseconds(),
		CacheHit:   out.CacheHit,
	}
	run.SetTaskList(out.Tasks)

	if err := app.Store.CreateRun(ctx, run); err != nil {
		app.Logger.Warn("Failed to record run", zap.String("document", path), zap.Error(err))
	}

	app.Logger.Info("Result saved",
		zap.String("document", path),
		zap.String("output", saved),
		zap.Int("soft_errors", out.SoftErrors),
		zap.Duration("duration", out.Duration),
	)

	app.writeTextfile()
	return run, out.Record, nil
}

// ProbeService checks the model service and logs a warning when it is
// unreachable or the configured model is missing. It never fails.
func (app *App) ProbeService(ctx context.Context) {
	if !app.Config.Service.Probe {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	models, err := app.Refiner.Probe(ctx)
	if err != nil {
		app.Logger.Warn("Model service not reachable, refinement will return errors",
			zap.String("url", app.Config.Service.BaseURL),
			zap.Error(err),
		)
		return
	}
	if !app.Refiner.HasModel(models) {
		app.Logger.Warn("Configured model not found on the service",
			zap.String("model", app.Refiner.Model()),
			zap.Strings("available", models),
		)
		return
	}
	app.Logger.Debug("Model service reachable", zap.String("model", app.Refiner.Model()))
}

// RunServer serves the HTTP API until SIGINT or SIGTERM
func (app *App) RunServer() error {
	server := api.New(*app.Config, api.Deps{
		Processor: app,
		History:   app.Store,
		Prober:    app.Refiner,
		Metrics:   app.Metrics,
		Logger:    app.Logger,
		Version:   app.Version,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	app.Logger.Info("Server started",
		zap.String("address", app.Config.ServerAddr()),
		zap.String("input_dir", app.Config.Server.InputDir),
		zap.String("url", fmt.Sprintf("http://%s", app.Config.ServerAddr())),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	app.Logger.Info("Shutting down...")
	return server.Shutdown()
}

func (app *App) writeTextfile() {
	path := app.Config.Metrics.Textfile
	if path == "" {
		return
	}
	if err := app.Metrics.WriteTextfile(path); err != nil {
		app.Logger.Warn("Failed to write metrics textfile", zap.String("path", path), zap.Error(err))
	}
}
