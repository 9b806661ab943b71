package ocr

import (
	"context"
	"fmt"

	apperrors "github.com/gmsas95/docrefine/internal/errors"
)

// Extract runs engine over doc once and returns the rendered text, the
// exported structure and its aggregate confidence.
func Extract(ctx context.Context, engine Engine, doc *Document) (*Result, error) {
	analysis, err := engine.Recognize(ctx, doc)
	if err != nil {
		return nil, apperrors.WrapAs(apperrors.ErrOCRFailed, fmt.Errorf("%s: %w", engine.Name(), err))
	}
	return FromAnalysis(analysis), nil
}

// FromAnalysis builds a Result from a recognition tree
func FromAnalysis(a *Analysis) *Result {
	data := a.Export()
	return &Result{
		RawText:        a.Render(),
		StructuredData: data,
		Confidence:     Confidence(data),
	}
}
