// Package ocr loads documents, runs the OCR engine and scores its output.
package ocr

import (
	"context"
	"strings"
)

// Kind distinguishes single images from multi-page PDFs.
type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
)

// Document is a loaded source file ready for recognition. Every page is held
// as encoded image bytes.
type Document struct {
	Path  string
	Kind  Kind
	Pages []PageImage
}

// PageImage holds one rasterized page
type PageImage struct {
	Index  int
	Data   []byte
	Format string
	Width  int
	Height int
}

// Engine recognizes text in a loaded document.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, doc *Document) (*Analysis, error)
}

// Analysis is the typed recognition tree produced by an Engine.
type Analysis struct {
	Pages []Page
}

// Page holds the blocks found on one page. Dimensions are (height, width)
// in pixels.
type Page struct {
	Index      int
	Dimensions [2]int
	Blocks     []Block
}

// Block is a paragraph-level region
type Block struct {
	Geometry Box
	Lines    []Line
}

// Line is a run of words on one baseline
type Line struct {
	Geometry Box
	Words    []Word
}

// Word carries the recognized token and its confidence in [0,1].
type Word struct {
	Value      string
	Confidence float64
	Geometry   Box
}

// Box is a bounding box relative to page size: (xmin, ymin, xmax, ymax).
type Box [4]float64

// Result is the OCR output stored in every result record.
type Result struct {
	RawText        string         `json:"raw_text"`
	StructuredData map[string]any `json:"structured_data"`
	Confidence     float64        `json:"confidence"`
}

const (
	wordSep  = " "
	lineSep  = "\n"
	blockSep = "\n\n"
	pageSep  = "\n\n\n\n"
)

// Render returns the plain-text form of the analysis.
func (a *Analysis) Render() string {
	pages := make([]string, 0, len(a.Pages))
	for _, p := range a.Pages {
		pages = append(pages, p.Render())
	}
	return strings.Join(pages, pageSep)
}

func (p Page) Render() string {
	blocks := make([]string, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		lines := make([]string, 0, len(b.Lines))
		for _, l := range b.Lines {
			words := make([]string, 0, len(l.Words))
			for _, w := range l.Words {
				words = append(words, w.Value)
			}
			lines = append(lines, strings.Join(words, wordSep))
		}
		blocks = append(blocks, strings.Join(lines, lineSep))
	}
	return strings.Join(blocks, blockSep)
}

// WordCount returns the number of words across all pages
func (a *Analysis) WordCount() int {
	n := 0
	for _, p := range a.Pages {
		for _, b := range p.Blocks {
			for _, l := range b.Lines {
				n += len(l.Words)
			}
		}
	}
	return n
}

// Export converts the analysis into the nested, JSON-shaped mapping stored as
// structured data. Numbers are float64 and lists are []any so the exported
// form and a decoded JSON copy look the same to Confidence.
func (a *Analysis) Export() map[string]any {
	pages := make([]any, 0, len(a.Pages))
	for _, p := range a.Pages {
		blocks := make([]any, 0, len(p.Blocks))
		for _, b := range p.Blocks {
			lines := make([]any, 0, len(b.Lines))
			for _, l := range b.Lines {
				words := make([]any, 0, len(l.Words))
				for _, w := range l.Words {
					words = append(words, map[string]any{
						"value":      w.Value,
						"confidence": w.Confidence,
						"geometry":   w.Geometry.export(),
					})
				}
				lines = append(lines, map[string]any{
					"geometry": l.Geometry.export(),
					"words":    words,
				})
			}
			blocks = append(blocks, map[string]any{
				"geometry": b.Geometry.export(),
				"lines":    lines,
			})
		}
		pages = append(pages, map[string]any{
			"page_idx":   float64(p.Index),
			"dimensions": []any{float64(p.Dimensions[0]), float64(p.Dimensions[1])},
			"blocks":     blocks,
		})
	}
	return map[string]any{"pages": pages}
}

func (b Box) export() []any {
	return []any{
		[]any{b[0], b[1]},
		[]any{b[2], b[3]},
	}
}

// Union returns the smallest box covering b and o. A zero box is treated as
// empty.
func (b Box) Union(o Box) Box {
	if b == (Box{}) {
		return o
	}
	if o == (Box{}) {
		return b
	}
	return Box{
		min(b[0], o[0]), min(b[1], o[1]),
		max(b[2], o[2]), max(b[3], o[3]),
	}
}
