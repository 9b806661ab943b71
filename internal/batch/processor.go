// Package batch runs many documents through the pipeline and reports the
// outcome of each.
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/docrefine/internal/pipeline"
	"github.com/gmsas95/docrefine/internal/store"
)

// DocumentProcessor processes one document end to end
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, path string, tasks []string, outputPath string) (*store.Run, *pipeline.Record, error)
}

type Processor struct {
	docs   DocumentProcessor
	config Config
	logger *zap.Logger
}

type Config struct {
	MaxConcurrency int
	Timeout        time.Duration
	SkipInvalid    bool
}

// InputItem is one document to process. Tasks override the run's task list.
type InputItem struct {
	ID    string   `json:"id"`
	Path  string   `json:"path"`
	Tasks []string `json:"tasks,omitempty"`
}

type OutputItem struct {
	ID         string        `json:"id"`
	Path       string        `json:"path"`
	OutputPath string        `json:"output_path,omitempty"`
	SoftErrors int           `json:"soft_errors"`
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

type Result struct {
	Total     int
	Success   int
	Failed    int
	Duration  time.Duration
	Items     []OutputItem
	StartTime time.Time
	EndTime   time.Time
}

// DefaultConfig processes one document at a time with no per-document
// deadline.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 1,
		SkipInvalid:    true,
	}
}

func NewProcessor(docs DocumentProcessor, cfg Config, logger *zap.Logger) *Processor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		docs:   docs,
		config: cfg,
		logger: logger,
	}
}

// ProcessFile reads the documents listed in inputPath and processes them.
// When reportPath is set the result is written there as JSON or text.
func (p *Processor) ProcessFile(ctx context.Context, inputPath, reportPath string, tasks []string) (*Result, error) {
	items, err := p.LoadInputFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load input file: %w", err)
	}

	result := p.Process(ctx, items, tasks)

	if reportPath != "" {
		if err := SaveReport(reportPath, result); err != nil {
			return result, fmt.Errorf("failed to save report: %w", err)
		}
	}
	return result, nil
}

// Process runs every item and collects the outcomes in input order. A
// failing document never stops the others.
func (p *Processor) Process(ctx context.Context, items []InputItem, tasks []string) *Result {
	result := &Result{
		Total:     len(items),
		StartTime: time.Now(),
		Items:     make([]OutputItem, len(items)),
	}

	indexes := make(chan int, len(items))
	for i := range items {
		indexes <- i
	}
	close(indexes)

	var wg sync.WaitGroup
	for i := 0; i < p.config.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				result.Items[idx] = p.processItem(ctx, items[idx], tasks)
			}
		}()
	}
	wg.Wait()

	for _, item := range result.Items {
		if item.Success {
			result.Success++
		} else {
			result.Failed++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	p.logger.Info("Batch finished",
		zap.Int("total", result.Total),
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	)
	return result
}

func (p *Processor) processItem(ctx context.Context, item InputItem, tasks []string) OutputItem {
	output := OutputItem{
		ID:        item.ID,
		Path:      item.Path,
		Timestamp: time.Now(),
	}

	if err := ctx.Err(); err != nil {
		output.Error = err.Error()
		return output
	}

	if len(item.Tasks) > 0 {
		tasks = item.Tasks
	}

	processCtx := ctx
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		processCtx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	run, _, err := p.docs.ProcessDocument(processCtx, item.Path, tasks, "")
	output.Duration = time.Since(start)

	if err != nil {
		p.logger.Error("Document failed", zap.String("id", item.ID), zap.String("document", item.Path), zap.Error(err))
		output.Error = err.Error()
		return output
	}

	output.OutputPath = run.OutputPath
	output.SoftErrors = run.SoftErrors
	output.Success = true
	return output
}

// LoadInputFile reads a document list. Files ending in .json or .jsonl hold
// one InputItem object per entry; anything else is one path per line with
// blank lines and # comments ignored. Relative paths resolve against the
// list file's directory.
func (p *Processor) LoadInputFile(path string) ([]InputItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var items []InputItem
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" || ext == ".jsonl" {
		items, err = p.loadJSON(file)
	} else {
		items, err = loadText(file)
	}
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i := range items {
		if !filepath.IsAbs(items[i].Path) {
			items[i].Path = filepath.Join(base, items[i].Path)
		}
	}
	return items, nil
}

func (p *Processor) loadJSON(r io.Reader) ([]InputItem, error) {
	var items []InputItem
	decoder := json.NewDecoder(r)

	for decoder.More() {
		var item InputItem
		if err := decoder.Decode(&item); err != nil {
			if p.config.SkipInvalid {
				p.logger.Warn("Skipping invalid entry", zap.Error(err))
				// a syntax error leaves the decoder unusable
				if _, ok := err.(*json.SyntaxError); ok {
					break
				}
				continue
			}
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}
		if item.Path == "" {
			if p.config.SkipInvalid {
				continue
			}
			return nil, fmt.Errorf("entry %d has no path", len(items)+1)
		}
		if item.ID == "" {
			item.ID = fmt.Sprintf("item-%d", len(items)+1)
		}
		items = append(items, item)
	}

	return items, nil
}

func loadText(r io.Reader) ([]InputItem, error) {
	var items []InputItem
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		items = append(items, InputItem{
			ID:   fmt.Sprintf("line-%d", lineNum),
			Path: line,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return items, nil
}

// ItemsFromPaths wraps plain paths as input items
func ItemsFromPaths(paths []string) []InputItem {
	items := make([]InputItem, len(paths))
	for i, path := range paths {
		items[i] = InputItem{ID: fmt.Sprintf("arg-%d", i+1), Path: path}
	}
	return items
}

// SaveReport writes result as JSON when path ends in .json, as text otherwise
func SaveReport(path string, result *Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		encoder := json.NewEncoder(file)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	for _, item := range result.Items {
		fmt.Fprintf(file, "=== %s ===\n", item.ID)
		fmt.Fprintf(file, "Document: %s\n", item.Path)
		if item.Success {
			fmt.Fprintf(file, "Output: %s\n", item.OutputPath)
			fmt.Fprintf(file, "Soft errors: %d\n", item.SoftErrors)
		} else {
			fmt.Fprintf(file, "Error: %s\n", item.Error)
		}
		fmt.Fprintf(file, "Time: %v\n\n", item.Duration)
	}

	return nil
}

func (r *Result) Summary() string {
	var sb strings.Builder
	sb.WriteString("=== Batch Summary ===\n")
	sb.WriteString(fmt.Sprintf("Total:     %d\n", r.Total))
	sb.WriteString(fmt.Sprintf("Success:   %d\n", r.Success))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", r.Failed))
	sb.WriteString(fmt.Sprintf("Duration:  %v\n", r.Duration))
	return sb.String()
}
