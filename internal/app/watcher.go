package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultSettle is how long a file must stay quiet before it is processed
const DefaultSettle = 2 * time.Second

var watchedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// ProcessFunc handles one settled document
type ProcessFunc func(ctx context.Context, path string) error

// Watcher processes documents dropped into a directory. A file is handed
// to the process function once no write event has touched it for the settle
// period. Files are processed one at a time.
type Watcher struct {
	dir     string
	settle  time.Duration
	process ProcessFunc
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	queue   chan string
}

func NewWatcher(dir string, settle time.Duration, process ProcessFunc, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Watcher{
		dir:     dir,
		settle:  settle,
		process: process,
		logger:  logger,
		pending: make(map[string]*time.Timer),
		queue:   make(chan string, 64),
	}
}

// Watchable reports whether path is a visible file with an extension the
// loader accepts. JSON and YAML results fail the extension check, so writing
// output into the watched directory does not retrigger a run.
func Watchable(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return watchedExtensions[strings.ToLower(filepath.Ext(base))]
}

// Run blocks until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("Watching directory", zap.String("dir", w.dir), zap.Duration("settle", w.settle))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.drain(ctx)
	}()
	defer wg.Wait()
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !Watchable(event.Name) {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

// schedule (re)starts the settle timer for path
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case w.queue <- path:
		default:
			w.logger.Warn("Watch queue full, dropping document", zap.String("document", path))
		}
	})
}

func (w *Watcher) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.queue:
			if err := w.process(ctx, path); err != nil {
				w.logger.Error("Failed to process document", zap.String("document", path), zap.Error(err))
			}
		}
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// Watch processes every document that lands in dir until ctx is cancelled
func (app *App) Watch(ctx context.Context, dir string, tasks []string) error {
	w := NewWatcher(dir, DefaultSettle, func(ctx context.Context, path string) error {
		_, _, err := app.ProcessDocument(ctx, path, tasks, "")
		return err
	}, app.Logger)
	return w.Run(ctx)
}
