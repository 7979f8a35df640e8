package driven

import "context"

// Engine is the pluggable text-extraction capability. Given one page image,
// it returns the extracted text, typically by delegating to a remote
// model-serving endpoint.
//
// Implementations must:
//   - apply a bounded per-request timeout,
//   - never retry internally (retry policy belongs to the orchestrator so
//     it stays uniform across engine variants),
//   - map failures onto the domain taxonomy: ErrInferenceTimeout,
//     ErrInferenceUnavailable (unreachable / server error) or
//     ErrInferenceRejected (backend refused the input).
//
// No other engine-specific behaviour may leak into the orchestrator.
type Engine interface {
	// Infer extracts text from a single PNG-encoded page image.
	Infer(ctx context.Context, pageImage []byte) (string, error)
}

// EngineFactory constructs an engine on demand. Construction is lazy: only
// the engine requested by a run is instantiated, never all registered ones.
// A factory error means the engine exists but is unusable in this build or
// environment, which is distinct from domain.ErrUnknownEngine.
type EngineFactory func() (Engine, error)
