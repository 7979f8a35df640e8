// Package split turns an uploaded document into an ordered sequence of
// page images. PDFs are rasterized page by page at a fixed resolution;
// raster images pass through as a single page.
package split

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/http"

	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	fitz "github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/quillstack-labs/pagelift/internal/core/domain"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
)

// RasterDPI is the fixed resolution PDF pages are rasterized at. It is a
// constant so skew-angle magnitudes stay comparable across runs.
const RasterDPI = 150

var pdfMagic = []byte("%PDF-")

// Ensure Splitter implements the interface.
var _ driven.PageSplitter = (*Splitter)(nil)

// Config bounds the splitter against decompression bombs.
type Config struct {
	// MaxPDFPages caps the page count of a PDF. Zero means no cap.
	MaxPDFPages int

	// MaxImageDimension caps width and height of any page image in pixels.
	// Zero means no cap.
	MaxImageDimension int
}

// Splitter implements driven.PageSplitter over pdfcpu (validation, page
// count) and MuPDF (rasterization), with stdlib decoders for raster input.
type Splitter struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a page splitter.
func New(cfg Config, logger *zap.Logger) *Splitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Splitter{cfg: cfg, logger: logger}
}

// Split produces one image per page, in document order. It is a pure
// transformation and never touches storage.
func (s *Splitter) Split(ctx context.Context, data []byte, mimeHint string) ([]image.Image, error) {
	if len(data) == 0 {
		return nil, domain.ErrEmptyInput
	}

	if bytes.HasPrefix(data, pdfMagic) || mimeHint == "application/pdf" {
		return s.splitPDF(ctx, data)
	}
	return s.splitImage(data)
}

func (s *Splitter) splitPDF(ctx context.Context, data []byte) ([]image.Image, error) {
	// pdfcpu validates structure and gives a page count before the more
	// expensive rasterization starts.
	count, err := api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptInput, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: PDF has no pages", domain.ErrCorruptInput)
	}
	if s.cfg.MaxPDFPages > 0 && count > s.cfg.MaxPDFPages {
		return nil, fmt.Errorf("%w: %d pages (limit %d)", domain.ErrTooManyPages, count, s.cfg.MaxPDFPages)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptInput, err)
	}
	defer doc.Close()

	pages := make([]image.Image, 0, count)
	for n := 0; n < doc.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(n, RasterDPI)
		if err != nil {
			return nil, fmt.Errorf("%w: rasterize page %d: %v", domain.ErrCorruptInput, n+1, err)
		}
		if err := s.checkDimensions(img); err != nil {
			return nil, err
		}
		pages = append(pages, img)
	}

	s.logger.Debug("PDF rasterized",
		zap.Int("pages", len(pages)),
		zap.Int("dpi", RasterDPI))
	return pages, nil
}

func (s *Splitter) splitImage(data []byte) ([]image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Content that at least sniffs as a supported image is corrupt;
		// anything else is an unsupported format.
		switch http.DetectContentType(data) {
		case "image/png", "image/jpeg":
			return nil, fmt.Errorf("%w: %v", domain.ErrCorruptInput, err)
		default:
			return nil, fmt.Errorf("%w: not a PDF or raster image", domain.ErrUnsupportedFormat)
		}
	}
	if err := s.checkDimensions(img); err != nil {
		return nil, err
	}

	s.logger.Debug("raster image accepted", zap.String("format", format))
	return []image.Image{img}, nil
}

func (s *Splitter) checkDimensions(img image.Image) error {
	if s.cfg.MaxImageDimension <= 0 {
		return nil
	}
	b := img.Bounds()
	if b.Dx() > s.cfg.MaxImageDimension || b.Dy() > s.cfg.MaxImageDimension {
		return fmt.Errorf("%w: %dx%d (limit %d)",
			domain.ErrImageTooLarge, b.Dx(), b.Dy(), s.cfg.MaxImageDimension)
	}
	return nil
}
