// Package pipeline runs OCR over a document and refines the text once per
// requested task.
package pipeline

import (
	"context"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/gmsas95/docrefine/internal/config"
	"github.com/gmsas95/docrefine/internal/metrics"
	"github.com/gmsas95/docrefine/internal/ocr"
	"github.com/gmsas95/docrefine/internal/refine"
	"github.com/gmsas95/docrefine/internal/store"
	"github.com/gmsas95/docrefine/internal/task"
)

// Loader loads a document for the OCR engine
type Loader interface {
	Load(ctx context.Context, path string) (*ocr.Document, error)
}

// Refiner corrects OCR text for one task
type Refiner interface {
	Refine(ctx context.Context, ocrText, imagePath string, t task.Task) (string, error)
}

// OCRCache stores OCR results by content key
type OCRCache interface {
	GetOCR(key string) (*ocr.Result, bool, error)
	PutOCR(key string, result *ocr.Result) error
}

// Deps are the collaborators of a Pipeline. Cache and Metrics may be nil.
type Deps struct {
	Loader  Loader
	Engine  ocr.Engine
	Refiner Refiner
	Cache   OCRCache
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Pipeline orchestrates one document at a time. Concurrent callers are
// serialized.
type Pipeline struct {
	deps         Deps
	defaultTasks []string
	previewChars int
	languages    []string
	useCache     bool

	mu sync.Mutex
}

// Outcome is a finished run with the bookkeeping callers log or persist
type Outcome struct {
	Record     *Record
	Source     string
	Tasks      []string
	Pages      int
	SoftErrors int
	CacheHit   bool
	Duration   time.Duration
}

func New(cfg config.Config, deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{
		deps:         deps,
		defaultTasks: cfg.Pipeline.Tasks,
		previewChars: cfg.Pipeline.PreviewChars,
		languages:    cfg.OCR.Languages,
		useCache:     cfg.OCR.Cache && deps.Cache != nil,
	}
}

// DefaultTasks returns the task list used when a run names none
func (p *Pipeline) DefaultTasks() []string {
	return append([]string(nil), p.defaultTasks...)
}

// Process runs the pipeline and returns the assembled record
func (p *Pipeline) Process(ctx context.Context, path string, tasks []string) (*Record, error) {
	out, err := p.Run(ctx, path, tasks)
	if err != nil {
		return nil, err
	}
	return out.Record, nil
}

// Run extracts text from path once and refines it for every task in order.
// Soft errors from the model service are stored as the task's value and do
// not stop the loop; loading, OCR and unreadable-image errors abort the run.
func (p *Pipeline) Run(ctx context.Context, path string, tasks []string) (*Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(tasks) == 0 {
		tasks = p.DefaultTasks()
	}

	logger := p.deps.Logger.With(zap.String("document", path))
	start := time.Now()

	result, pages, hit, err := p.extract(ctx, path, logger)
	if err != nil {
		p.recordDocument(false)
		return nil, err
	}

	logger.Info("OCR completed",
		zap.Int("pages", pages),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("cache_hit", hit),
	)
	logger.Info("OCR preview", zap.String("text", Preview(result.RawText, p.previewChars)))

	record := NewRecord(result)
	out := &Outcome{
		Record:   record,
		Source:   path,
		Tasks:    tasks,
		Pages:    pages,
		CacheHit: hit,
	}

	for _, name := range tasks {
		if err := ctx.Err(); err != nil {
			p.recordDocument(false)
			return nil, err
		}

		t, known := task.Parse(name)
		if !known {
			logger.Warn("Unknown task, using clean", zap.String("task", name))
		}

		logger.Info("Refining", zap.String("task", name))
		text, err := p.deps.Refiner.Refine(ctx, result.RawText, path, t)
		if err != nil {
			p.recordDocument(false)
			return nil, err
		}

		if refine.IsSoftError(text) {
			out.SoftErrors++
			logger.Warn("Task failed", zap.String("task", name), zap.String("error", text))
		} else {
			logger.Info("Task result",
				zap.String("task", name),
				zap.String("preview", Preview(text, p.previewChars)),
			)
		}

		record.Set(name, text)
	}

	if err := ctx.Err(); err != nil {
		p.recordDocument(false)
		return nil, err
	}

	out.Duration = time.Since(start)
	p.recordDocument(true)
	logger.Info("Document processed",
		zap.Int("tasks", record.Len()),
		zap.Int("soft_errors", out.SoftErrors),
		zap.Duration("elapsed", out.Duration),
	)

	return out, nil
}

// extract returns the OCR result for path, from the cache when possible.
func (p *Pipeline) extract(ctx context.Context, path string, logger *zap.Logger) (*ocr.Result, int, bool, error) {
	var cacheKey string
	if p.useCache {
		if content, err := os.ReadFile(path); err == nil {
			cacheKey = store.CacheKey(content, p.languages)
			cached, hit, err := p.deps.Cache.GetOCR(cacheKey)
			if err != nil {
				logger.Warn("OCR cache lookup failed", zap.Error(err))
			}
			p.recordCacheLookup(hit)
			if hit {
				return cached, ocr.PageCount(cached.StructuredData), true, nil
			}
		}
	}

	logger.Info("Loading document")
	doc, err := p.deps.Loader.Load(ctx, path)
	if err != nil {
		return nil, 0, false, err
	}
	logger.Info("Document loaded", zap.String("kind", string(doc.Kind)), zap.Int("pages", len(doc.Pages)))

	logger.Info("Running OCR", zap.String("engine", p.deps.Engine.Name()))
	ocrStart := time.Now()
	result, err := ocr.Extract(ctx, p.deps.Engine, doc)
	if err != nil {
		return nil, 0, false, err
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordOCR(len(doc.Pages), result.Confidence, time.Since(ocrStart))
	}

	if cacheKey != "" {
		if err := p.deps.Cache.PutOCR(cacheKey, result); err != nil {
			logger.Warn("OCR cache write failed", zap.Error(err))
		}
	}

	return result, len(doc.Pages), false, nil
}

func (p *Pipeline) recordDocument(success bool) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordDocument(success)
	}
}

func (p *Pipeline) recordCacheLookup(hit bool) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordCacheLookup(hit)
	}
}

// Preview shortens text to at most n characters, marking the cut with "...".
func Preview(text string, n int) string {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}
