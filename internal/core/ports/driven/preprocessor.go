package driven

import (
	"context"
	"image"
)

// Preprocessor detects and corrects page skew. It is a stateless leaf
// stage, independently invokable per page and safe to run fully
// concurrently across pages.
//
// Correct returns the corrected image re-encoded in the pixel format used
// for inference input (PNG), plus the detected angle in degrees. When the
// detector cannot produce a confident estimate the page passes through
// unmodified with a nil angle: detection failure must never abort the
// pipeline. A nonzero angle rotates the image by its negative with the
// canvas expanded, never cropped, so no page content is lost.
type Preprocessor interface {
	Correct(ctx context.Context, page image.Image) (corrected []byte, angle *float64, err error)
}
