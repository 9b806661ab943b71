package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmsas95/docrefine/internal/config"
	apperrors "github.com/gmsas95/docrefine/internal/errors"
	"github.com/gmsas95/docrefine/internal/metrics"
	"github.com/gmsas95/docrefine/internal/ocr"
	"github.com/gmsas95/docrefine/internal/pipeline"
	"github.com/gmsas95/docrefine/internal/store"
)

type fakeProcessor struct {
	calls  int
	path   string
	tasks  []string
	output string
	err    error
}

func (f *fakeProcessor) ProcessDocument(_ context.Context, path string, tasks []string, outputPath string) (*store.Run, *pipeline.Record, error) {
	f.calls++
	f.path, f.tasks, f.output = path, tasks, outputPath
	if f.err != nil {
		return nil, nil, f.err
	}

	record := pipeline.NewRecord(&ocr.Result{RawText: "hola", StructuredData: map[string]any{}, Confidence: 0.9})
	record.Set("clean", "Hola")
	return &store.Run{ID: "run-1", OutputPath: "out/resultado_doc.json", SoftErrors: 0, DurationMs: 12}, record, nil
}

type fakeHistory struct {
	runs []store.Run
}

func (f *fakeHistory) ListRuns(_ context.Context, limit int) ([]store.Run, error) {
	if limit > 0 && limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeHistory) GetRun(_ context.Context, id string) (*store.Run, error) {
	for i := range f.runs {
		if f.runs[i].ID == id {
			return &f.runs[i], nil
		}
	}
	return nil, apperrors.WrapAs(apperrors.ErrNotFound, fmt.Errorf("run %s", id))
}

type fakeProber struct {
	models []string
	err    error
}

func (f *fakeProber) Probe(context.Context) ([]string, error) { return f.models, f.err }
func (f *fakeProber) Model() string                           { return "qwen2.5vl:latest" }

type fixture struct {
	server    *Server
	processor *fakeProcessor
	metrics   *metrics.Metrics
	inputDir  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Default(t.TempDir())
	cfg.Server.InputDir = t.TempDir()
	cfg.Output.Dir = t.TempDir()

	f := &fixture{
		processor: &fakeProcessor{},
		metrics:   metrics.New(),
		inputDir:  cfg.Server.InputDir,
	}
	f.server = New(cfg, Deps{
		Processor: f.processor,
		History: &fakeHistory{runs: []store.Run{
			{ID: "run-2", SourcePath: "b.png"},
			{ID: "run-1", SourcePath: "a.png"},
		}},
		Prober:  &fakeProber{models: []string{"llava:7b", "qwen2.5vl:latest"}},
		Metrics: f.metrics,
		Version: "test",
	})
	return f
}

func (f *fixture) do(t *testing.T, method, target string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health healthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)
}

func TestProcess(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.inputDir, "doc.png"), []byte("png"), 0644))

	resp, body := f.do(t, http.MethodPost, "/api/process", ProcessRequest{
		Path:  "doc.png",
		Tasks: []string{"clean"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	assert.Equal(t, 1, f.processor.calls)
	assert.Equal(t, "doc.png", filepath.Base(f.processor.path))
	assert.True(t, filepath.IsAbs(f.processor.path))
	assert.Equal(t, []string{"clean"}, f.processor.tasks)
	assert.Empty(t, f.processor.output)

	var out struct {
		RunID  string         `json:"run_id"`
		Record map[string]any `json:"record"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, "Hola", out.Record["ai_clean"])
	assert.Contains(t, out.Record, "ocr_raw")
}

func TestProcess_OutputOverrideStaysInOutputDir(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.inputDir, "doc.png"), []byte("png"), 0644))

	resp, _ := f.do(t, http.MethodPost, "/api/process", ProcessRequest{Path: "doc.png", Output: "custom.yaml"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "custom.yaml", filepath.Base(f.processor.output))

	resp, body := f.do(t, http.MethodPost, "/api/process", ProcessRequest{Path: "doc.png", Output: "../escape.json"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(body), "SEC_001")
}

func TestProcess_RejectsTraversal(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/process", ProcessRequest{Path: "../../etc/passwd"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "SEC_001", errResp.Code)
	assert.Equal(t, 0, f.processor.calls)
	assert.Equal(t, int64(1), f.metrics.Snapshot().PathRejections)
}

func TestProcess_MissingFile(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/process", ProcessRequest{Path: "nope.png"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProcess_BadRequest(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/process", ProcessRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "GEN_002")
}

func TestProcess_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unreadable document", apperrors.WrapAs(apperrors.ErrDocumentUnreadable, fmt.Errorf("boom")), http.StatusUnprocessableEntity},
		{"unsupported document", apperrors.WrapAs(apperrors.ErrDocumentUnsupported, fmt.Errorf("boom")), http.StatusUnprocessableEntity},
		{"names exhausted", apperrors.WrapAs(apperrors.ErrOutputExhausted, fmt.Errorf("boom")), http.StatusConflict},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, os.WriteFile(filepath.Join(f.inputDir, "doc.png"), []byte("png"), 0644))
			f.processor.err = tt.err

			resp, _ := f.do(t, http.MethodPost, "/api/process", ProcessRequest{Path: "doc.png"})
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRuns(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/runs?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []store.Run
	require.NoError(t, json.Unmarshal(body, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].ID)

	resp, _ = f.do(t, http.MethodGet, "/api/runs/run-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/runs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProbe(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/probe", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var probe ProbeResponse
	require.NoError(t, json.Unmarshal(body, &probe))
	assert.True(t, probe.Reachable)
	assert.True(t, probe.ModelFound)

	f.server.prober = &fakeProber{err: apperrors.WrapAs(apperrors.ErrServiceUnavailable, fmt.Errorf("connection refused"))}
	resp, body = f.do(t, http.MethodGet, "/api/probe", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &probe))
	assert.False(t, probe.Reachable)
	assert.NotEmpty(t, probe.Error)
}

func TestMetricsEndpoints(t *testing.T) {
	f := newFixture(t)
	f.metrics.RecordDocument(true)

	resp, body := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "docrefine_documents_total")

	resp, body = f.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, int64(1), snap.DocumentsOK)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, statusFor("SEC_001"))
	assert.Equal(t, http.StatusNotFound, statusFor("GEN_001"))
	assert.Equal(t, http.StatusBadGateway, statusFor("LLM_002"))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor("IMG_001"))
	assert.Equal(t, http.StatusInternalServerError, statusFor(""))
}
