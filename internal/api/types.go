package api

import (
	"context"
	"time"

	"github.com/gmsas95/docrefine/internal/pipeline"
	"github.com/gmsas95/docrefine/internal/store"
)

// Processor runs one document through the pipeline, saves the record and
// records the run.
type Processor interface {
	ProcessDocument(ctx context.Context, path string, tasks []string, outputPath string) (*store.Run, *pipeline.Record, error)
}

// History reads past runs
type History interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, id string) (*store.Run, error)
}

// Prober checks the model service
type Prober interface {
	Probe(ctx context.Context) ([]string, error)
	Model() string
}

// ProcessRequest is the body of POST /api/process
type ProcessRequest struct {
	Path   string   `json:"path"`
	Tasks  []string `json:"tasks,omitempty"`
	Output string   `json:"output,omitempty"`
}

// ProcessResponse is returned after a successful run
type ProcessResponse struct {
	RunID      string           `json:"run_id"`
	OutputPath string           `json:"output_path"`
	SoftErrors int              `json:"soft_errors"`
	DurationMs int64            `json:"duration_ms"`
	Record     *pipeline.Record `json:"record"`
}

// ProbeResponse reports model service reachability
type ProbeResponse struct {
	Reachable  bool     `json:"reachable"`
	Model      string   `json:"model"`
	ModelFound bool     `json:"model_found"`
	Models     []string `json:"models,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp int64  `json:"timestamp"`
}

func newHealth(version string) healthResponse {
	return healthResponse{
		Status:    "healthy",
		Version:   version,
		Timestamp: time.Now().Unix(),
	}
}
