package ocr

import (
	"context"
	"sync/atomic"
)

// MockEngine returns a fixed analysis for every page. Tests inject it
// through app.WithEngine or pipeline.Deps.
type MockEngine struct {
	Words []Word
	Err   error

	calls atomic.Int32
}

// NewMockEngine creates a mock engine whose pages each hold one line made of
// words.
func NewMockEngine(words ...Word) *MockEngine {
	return &MockEngine{Words: words}
}

func (m *MockEngine) Name() string { return "mock" }

// Recognize returns one block per page with the configured words
func (m *MockEngine) Recognize(ctx context.Context, doc *Document) (*Analysis, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}

	a := &Analysis{}
	for _, p := range doc.Pages {
		words := make([]Word, len(m.Words))
		copy(words, m.Words)
		a.Pages = append(a.Pages, Page{
			Index:      p.Index,
			Dimensions: [2]int{p.Height, p.Width},
			Blocks:     []Block{{Lines: []Line{{Words: words}}}},
		})
	}
	return a, nil
}

// Calls returns how many times Recognize ran
func (m *MockEngine) Calls() int {
	return int(m.calls.Load())
}
