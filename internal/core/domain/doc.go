// Package domain defines the core business entities for Pagelift.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: One pipeline run over an uploaded file
//   - Page: A rasterized unit of the input, indexed from 1
//   - PipelineResult: The terminal outcome returned to the caller
//   - StorageLayout: Deterministic artifact path derivation
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
