package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// textPage paints evenly spaced horizontal text-like lines on white paper.
func textPage(w, h int) *image.NRGBA {
	img := imaging.New(w, h, color.White)
	for y := 40; y < h-40; y += 24 {
		for t := 0; t < 2; t++ {
			for x := 50; x < w-50; x++ {
				img.Set(x, y+t, color.Black)
			}
		}
	}
	return img
}

func TestDetectStraightPage(t *testing.T) {
	det := NewProjectionDetector()

	angle, ok, err := det.Detect(textPage(600, 400))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0, angle, 0.3)
}

func TestDetectKnownSkew(t *testing.T) {
	det := NewProjectionDetector()

	for _, skew := range []float64{-7, -3, 2, 5, 11} {
		rotated := imaging.Rotate(textPage(600, 400), skew, color.White)

		angle, ok, err := det.Detect(rotated)
		require.NoError(t, err)
		require.True(t, ok, "skew %v", skew)
		assert.InDelta(t, skew, angle, 0.6, "skew %v", skew)
	}
}

func TestDetectBlankPageInconclusive(t *testing.T) {
	det := NewProjectionDetector()

	_, ok, err := det.Detect(imaging.New(400, 300, color.White))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDetectTinyImageInconclusive(t *testing.T) {
	det := NewProjectionDetector()

	_, ok, err := det.Detect(imaging.New(3, 3, color.Black))
	require.NoError(t, err)
	assert.False(t, ok)
}
