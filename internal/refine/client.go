// Package refine talks to the vision model service that corrects OCR text.
package refine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gmsas95/docrefine/internal/config"
	apperrors "github.com/gmsas95/docrefine/internal/errors"
	"github.com/gmsas95/docrefine/internal/metrics"
	"github.com/gmsas95/docrefine/internal/prompts"
	"github.com/gmsas95/docrefine/internal/sanitize"
	"github.com/gmsas95/docrefine/internal/task"
)

// Soft error prefixes. A refinement that fails at the service returns one of
// these as its text instead of an error.
const (
	statusErrorPrefix  = "model service error: "
	unreachablePrefix  = "model service unreachable: "
	breakerOpenMessage = "model service unavailable: circuit breaker open"
)

// Client provides refinement calls against an Ollama-compatible service
type Client struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int

	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[string]
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// GenerateRequest is the body of POST /api/generate
type GenerateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Images  []string `json:"images"`
	Options Options  `json:"options"`
}

// Options holds decoding parameters
type Options struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// GenerateResponse is the non-streaming reply of /api/generate
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}

// decodeError is a 200 reply whose body is not a generate response
type decodeError struct {
	err error
}

func (e *decodeError) Error() string {
	return "invalid response: " + e.err.Error()
}

func (e *decodeError) Unwrap() error {
	return e.err
}

// NewClient creates a refinement client. m may be nil.
func NewClient(svc config.ServiceConfig, rc config.RefineConfig, m *metrics.Metrics, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:     strings.TrimRight(svc.BaseURL, "/"),
		model:       svc.Model,
		temperature: rc.Temperature,
		maxTokens:   rc.MaxTokens,
		client: &http.Client{
			Timeout: time.Duration(rc.Timeout) * time.Second,
		},
		metrics: m,
		logger:  logger,
	}

	if rc.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rc.RequestsPerSecond), 1)
	}

	if rc.Breaker.Enabled {
		failures := uint32(rc.Breaker.Failures)
		if failures == 0 {
			failures = 3
		}
		c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:    "model-service",
			Timeout: time.Duration(rc.Breaker.Cooldown) * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}

	return c
}

// Refine asks the model to correct ocrText against the image at imagePath and
// returns the sanitized answer. Service failures come back as descriptive
// text with a nil error; only an unreadable image is returned as an error.
func (c *Client) Refine(ctx context.Context, ocrText, imagePath string, t task.Task) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", apperrors.WrapAs(apperrors.ErrImageUnreadable, fmt.Errorf("read %s: %w", imagePath, err))
	}

	req := GenerateRequest{
		Model:  c.model,
		Prompt: prompts.Build(t, ocrText),
		Stream: false,
		Images: []string{base64.StdEncoding.EncodeToString(data)},
		Options: Options{
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	start := time.Now()
	text, err := c.execute(ctx, body)
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.record(t, metrics.OutcomeFailed, elapsed)
			return "", ctxErr
		}
		soft, outcome := softError(err)
		c.record(t, outcome, elapsed)
		c.logger.Warn("Refinement failed",
			zap.String("task", t.String()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return soft, nil
	}

	c.record(t, metrics.OutcomeOK, elapsed)
	c.logger.Debug("Refinement completed",
		zap.String("task", t.String()),
		zap.Duration("elapsed", elapsed),
		zap.Int("chars", len(text)),
	)

	return sanitize.Sanitize(text, t), nil
}

func (c *Client) execute(ctx context.Context, body []byte) (string, error) {
	if c.breaker == nil {
		return c.generate(ctx, body)
	}
	return c.breaker.Execute(func() (string, error) {
		return c.generate(ctx, body)
	})
}

func (c *Client) generate(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", &statusError{code: resp.StatusCode}
	}

	var result GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &decodeError{err: err}
	}

	return result.Response, nil
}

func softError(err error) (string, string) {
	var se *statusError
	var de *decodeError
	switch {
	case stderrors.As(err, &se):
		return statusErrorPrefix + se.Error(), metrics.OutcomeSoftError
	case stderrors.As(err, &de):
		return statusErrorPrefix + de.Error(), metrics.OutcomeSoftError
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return breakerOpenMessage, metrics.OutcomeBreakerOpen
	default:
		return unreachablePrefix + err.Error(), metrics.OutcomeSoftError
	}
}

func (c *Client) record(t task.Task, outcome string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordRefine(t.String(), outcome, d)
	}
}

// IsSoftError reports whether text is a failure message produced by Refine
// rather than model output.
func IsSoftError(text string) bool {
	return strings.HasPrefix(text, statusErrorPrefix) ||
		strings.HasPrefix(text, unreachablePrefix) ||
		text == breakerOpenMessage
}

// Probe checks that the service answers GET /api/tags and returns the names
// of the installed models.
func (c *Client) Probe(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.WrapAs(apperrors.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.WrapAs(apperrors.ErrServiceUnavailable, &statusError{code: resp.StatusCode})
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, apperrors.WrapAs(apperrors.ErrServiceUnavailable, fmt.Errorf("failed to decode tags: %w", err))
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// HasModel reports whether the configured model appears in names
func (c *Client) HasModel(names []string) bool {
	for _, n := range names {
		if n == c.model {
			return true
		}
	}
	return false
}

// Model returns the configured model identifier
func (c *Client) Model() string {
	return c.model
}
