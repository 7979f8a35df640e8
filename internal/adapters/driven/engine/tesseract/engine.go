//go:build cgo

// Package tesseract provides a local extraction engine backed by the
// Tesseract OCR library. It requires CGO and the libtesseract/libleptonica
// system packages; pure-Go builds get a stub that fails at construction.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/quillstack-labs/pagelift/internal/core/domain"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.Engine = (*Engine)(nil)

// Config holds configuration for the engine.
type Config struct {
	// Languages selects the trained data to load, e.g. ["eng", "deu"].
	// Empty means Tesseract's default (eng).
	Languages []string
}

// Engine runs OCR in-process. The underlying client is not safe for
// concurrent use, so each page gets a fresh one; the orchestrator already
// constructs one Engine per run.
type Engine struct {
	languages []string
}

// New creates a Tesseract engine and verifies the native library is usable.
func New(cfg Config) (*Engine, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if len(cfg.Languages) > 0 {
		if err := client.SetLanguage(cfg.Languages...); err != nil {
			return nil, fmt.Errorf("tesseract: set language: %w", err)
		}
	}
	return &Engine{languages: cfg.Languages}, nil
}

// Infer extracts text from a single PNG page image. Tesseract failures
// are deterministic for a given image, so they map to the non-retryable
// rejection error.
func (e *Engine) Infer(ctx context.Context, pageImage []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(e.languages) > 0 {
		if err := client.SetLanguage(e.languages...); err != nil {
			return "", fmt.Errorf("%w: set language: %v", domain.ErrInferenceRejected, err)
		}
	}
	if err := client.SetImageFromBytes(pageImage); err != nil {
		return "", fmt.Errorf("%w: load image: %v", domain.ErrInferenceRejected, err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInferenceRejected, err)
	}
	return text, nil
}
