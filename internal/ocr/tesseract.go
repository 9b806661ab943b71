package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// TesseractEngine recognizes pages with Tesseract through gosseract. A fresh
// client is used per page.
type TesseractEngine struct {
	languages     []string
	clientFactory func() *gosseract.Client
	logger        *zap.Logger
}

// NewTesseractEngine creates an engine for the given Tesseract language codes
func NewTesseractEngine(languages []string, logger *zap.Logger) *TesseractEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TesseractEngine{
		languages:     languages,
		clientFactory: gosseract.NewClient,
		logger:        logger,
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize runs Tesseract over every page of doc in order.
func (e *TesseractEngine) Recognize(ctx context.Context, doc *Document) (*Analysis, error) {
	analysis := &Analysis{Pages: make([]Page, 0, len(doc.Pages))}
	for _, p := range doc.Pages {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page, err := e.recognizePage(p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", p.Index+1, err)
		}
		analysis.Pages = append(analysis.Pages, page)
	}
	return analysis, nil
}

func (e *TesseractEngine) recognizePage(p PageImage) (Page, error) {
	c := e.clientFactory()
	defer c.Close()

	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return Page{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(p.Data); err != nil {
		return Page{}, fmt.Errorf("set image: %w", err)
	}

	boxes, err := c.GetBoundingBoxesVerbose()
	if err != nil {
		return Page{}, fmt.Errorf("recognize words: %w", err)
	}

	e.logger.Debug("Page recognized",
		zap.Int("page", p.Index+1),
		zap.Int("words", len(boxes)),
	)

	return buildPage(p, boxes), nil
}

type lineKey struct {
	par  int
	line int
}

// buildPage groups word boxes by block, then by paragraph and line, keeping
// Tesseract's reading order.
func buildPage(p PageImage, boxes []gosseract.BoundingBox) Page {
	page := Page{Index: p.Index, Dimensions: [2]int{p.Height, p.Width}}

	blockIdx := make(map[int]int)
	lineIdx := make(map[int]map[lineKey]int)

	for _, b := range boxes {
		if b.Word == "" {
			continue
		}

		bi, ok := blockIdx[b.BlockNum]
		if !ok {
			bi = len(page.Blocks)
			blockIdx[b.BlockNum] = bi
			lineIdx[b.BlockNum] = make(map[lineKey]int)
			page.Blocks = append(page.Blocks, Block{})
		}
		block := &page.Blocks[bi]

		key := lineKey{par: b.ParNum, line: b.LineNum}
		li, ok := lineIdx[b.BlockNum][key]
		if !ok {
			li = len(block.Lines)
			lineIdx[b.BlockNum][key] = li
			block.Lines = append(block.Lines, Line{})
		}
		line := &block.Lines[li]

		geom := relativeBox(b.Box, p.Width, p.Height)
		line.Words = append(line.Words, Word{
			Value:      b.Word,
			Confidence: b.Confidence / 100.0,
			Geometry:   geom,
		})
		line.Geometry = line.Geometry.Union(geom)
		block.Geometry = block.Geometry.Union(geom)
	}

	return page
}

func relativeBox(r image.Rectangle, width, height int) Box {
	if width <= 0 || height <= 0 {
		return Box{}
	}
	w, h := float64(width), float64(height)
	return Box{
		float64(r.Min.X) / w, float64(r.Min.Y) / h,
		float64(r.Max.X) / w, float64(r.Max.Y) / h,
	}
}
