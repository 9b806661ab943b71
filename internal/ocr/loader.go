package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gmsas95/docrefine/internal/config"
	apperrors "github.com/gmsas95/docrefine/internal/errors"
)

// Loader turns a file path into a Document. Files ending in .pdf (any case)
// are rasterized page by page; everything else is read as a single image.
type Loader struct {
	dpi      int
	pdftoppm string
	logger   *zap.Logger

	pageCount  func(rs io.ReadSeeker) (int, error)
	renderPage func(ctx context.Context, pdfPath string, page int) ([]byte, error)
}

// NewLoader creates a loader from OCR settings
func NewLoader(cfg config.OCRConfig, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{
		dpi:      cfg.PDFDPI,
		pdftoppm: cfg.PdftoppmPath,
		logger:   logger,
	}
	if l.dpi <= 0 {
		l.dpi = 300
	}
	if l.pdftoppm == "" {
		l.pdftoppm = "pdftoppm"
	}
	l.pageCount = func(rs io.ReadSeeker) (int, error) {
		return api.PageCount(rs, nil)
	}
	l.renderPage = l.pdftoppmPage
	return l
}

// IsPDF reports whether path is dispatched to the PDF loader
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Load reads and decodes the document at path.
func (l *Loader) Load(ctx context.Context, path string) (*Document, error) {
	if IsPDF(path) {
		return l.loadPDF(ctx, path)
	}
	return l.loadImage(path)
}

func (l *Loader) loadImage(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.WrapAs(apperrors.ErrDocumentUnreadable, fmt.Errorf("read %s: %w", path, err))
	}

	page, err := decodePage(0, data)
	if err != nil {
		return nil, err
	}

	return &Document{
		Path:  path,
		Kind:  KindImage,
		Pages: []PageImage{page},
	}, nil
}

func (l *Loader) loadPDF(ctx context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.WrapAs(apperrors.ErrDocumentUnreadable, fmt.Errorf("open %s: %w", path, err))
	}
	count, err := l.pageCount(f)
	f.Close()
	if err != nil {
		return nil, apperrors.WrapAs(apperrors.ErrDocumentUnreadable, fmt.Errorf("count pages of %s: %w", path, err))
	}
	if count == 0 {
		return nil, apperrors.WrapAs(apperrors.ErrDocumentUnreadable, fmt.Errorf("%s has no pages", path))
	}

	l.logger.Debug("Rasterizing PDF",
		zap.String("path", path),
		zap.Int("pages", count),
		zap.Int("dpi", l.dpi),
	)

	doc := &Document{Path: path, Kind: KindPDF, Pages: make([]PageImage, 0, count)}
	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := l.renderPage(ctx, path, i)
		if err != nil {
			return nil, apperrors.WrapAs(apperrors.ErrDocumentUnreadable, fmt.Errorf("render page %d: %w", i, err))
		}
		page, err := decodePage(i-1, data)
		if err != nil {
			return nil, err
		}
		doc.Pages = append(doc.Pages, page)
	}

	return doc, nil
}

// pdftoppmPage renders one page to PNG with poppler's pdftoppm.
func (l *Loader) pdftoppmPage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "docrefine-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	pageStr := strconv.Itoa(page)

	cmd := exec.CommandContext(ctx, l.pdftoppm,
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(l.dpi),
		"-singlefile",
		pdfPath,
		prefix,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	data, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	return data, nil
}

func decodePage(index int, data []byte) (PageImage, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return PageImage{}, apperrors.WrapAs(apperrors.ErrDocumentUnsupported, fmt.Errorf("decode image: %w", err))
	}
	return PageImage{
		Index:  index,
		Data:   data,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}
