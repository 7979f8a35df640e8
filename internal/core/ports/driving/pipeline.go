package driving

import (
	"context"

	"github.com/quillstack-labs/pagelift/internal/core/domain"
)

// PipelineRequest carries one upload into the pipeline.
type PipelineRequest struct {
	// Data is the raw uploaded file.
	Data []byte

	// Filename is the client-declared name; it is sanitized before use.
	Filename string

	// EngineID selects the extraction engine. Empty selects the configured
	// default engine.
	EngineID string

	// MIMEHint is the client-declared content type, advisory only.
	MIMEHint string
}

// PipelineRunner drives one document through split, preprocessing,
// extraction and assembly. The caller always receives a structured
// PipelineResult (even for partial success) whenever split and engine
// resolution succeeded; earlier failures return a typed error instead.
type PipelineRunner interface {
	Run(ctx context.Context, req PipelineRequest) (*domain.PipelineResult, error)
}

// HealthChecker reports process health independently of the pipeline:
// probing it must never trigger page processing or inference.
type HealthChecker interface {
	// Live reports basic process liveness.
	Live(ctx context.Context) error

	// Ready reports whether dependencies (artifact storage) are usable.
	Ready(ctx context.Context) error
}
