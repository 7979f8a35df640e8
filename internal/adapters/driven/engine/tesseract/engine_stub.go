//go:build !cgo

// Package tesseract provides a local extraction engine backed by the
// Tesseract OCR library. This is a stub for builds without CGO.
package tesseract

import (
	"context"
	"fmt"

	"github.com/quillstack-labs/pagelift/internal/core/domain"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.Engine = (*Engine)(nil)

// Config holds configuration for the engine.
type Config struct {
	// Languages selects the trained data to load, e.g. ["eng", "deu"].
	Languages []string
}

// Engine is unavailable without CGO.
type Engine struct{}

// New fails so the registry never offers an engine that cannot run.
func New(_ Config) (*Engine, error) {
	return nil, fmt.Errorf("%w: tesseract engine requires a CGO build", domain.ErrNotImplemented)
}

// Infer is unreachable; New never returns an Engine.
func (e *Engine) Infer(_ context.Context, _ []byte) (string, error) {
	return "", domain.ErrNotImplemented
}
