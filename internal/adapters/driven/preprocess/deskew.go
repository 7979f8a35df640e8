// Package preprocess straightens page images before they reach an
// extraction engine. Skew is estimated with a projection profile and
// corrected by rotating onto an expanded white canvas, so no content is
// clipped. An inconclusive estimate passes the page through unchanged.
package preprocess

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
)

// Angles below this are not worth a rotation pass.
const minCorrectableAngle = 0.1

// Ensure Deskewer implements the interface.
var _ driven.Preprocessor = (*Deskewer)(nil)

// Deskewer implements driven.Preprocessor.
type Deskewer struct {
	detector Detector
	logger   *zap.Logger
}

// NewDeskewer creates a preprocessor. A nil detector falls back to the
// built-in projection detector.
func NewDeskewer(detector Detector, logger *zap.Logger) *Deskewer {
	if detector == nil {
		detector = NewProjectionDetector()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deskewer{detector: detector, logger: logger}
}

// Correct estimates the page's skew and returns a straightened PNG. The
// reported angle is nil when detection was inconclusive and 0 when the
// page was already straight; detection failure never fails the page.
func (d *Deskewer) Correct(ctx context.Context, page image.Image) ([]byte, *float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	angle, ok, err := d.detector.Detect(page)
	if err != nil || !ok {
		if err != nil {
			d.logger.Warn("skew detection failed, passing page through", zap.Error(err))
		}
		out, encErr := encodePNG(page)
		return out, nil, encErr
	}

	if math.Abs(angle) < minCorrectableAngle {
		zero := 0.0
		out, encErr := encodePNG(page)
		return out, &zero, encErr
	}

	// Rotate by the negative of the detected skew. imaging expands the
	// canvas to fit the rotated bounds; white fill matches paper.
	corrected := imaging.Rotate(page, -angle, color.White)
	out, encErr := encodePNG(corrected)
	if encErr != nil {
		return nil, nil, encErr
	}

	d.logger.Debug("page deskewed", zap.Float64("angle_degrees", angle))
	return out, &angle, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode corrected page: %w", err)
	}
	return buf.Bytes(), nil
}
