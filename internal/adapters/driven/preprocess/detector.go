package preprocess

import (
	"image"
	"image/color"
	"math"
)

// Detector estimates a page's skew angle from its text orientation.
// The returned angle is the counter-clockwise rotation of the content in
// degrees; ok is false when no confident estimate could be made.
type Detector interface {
	Detect(img image.Image) (angle float64, ok bool, err error)
}

// ProjectionDetector estimates skew with a sheared projection profile:
// ink pixels are projected onto rows under a range of candidate shear
// angles, and the angle whose projection is sharpest (largest sum of
// squared row counts) wins. Text lines concentrate ink into few rows only
// when the shear matches the true skew.
type ProjectionDetector struct {
	// MaxAngle bounds the search range in degrees (default 15).
	MaxAngle float64

	// MinInkPixels is the minimum amount of ink required for a confident
	// estimate (default 100). Near-blank pages fall below it.
	MinInkPixels int
}

// Ensure ProjectionDetector implements the interface.
var _ Detector = (*ProjectionDetector)(nil)

// NewProjectionDetector creates a detector with default bounds.
func NewProjectionDetector() *ProjectionDetector {
	return &ProjectionDetector{MaxAngle: 15, MinInkPixels: 100}
}

// Detect estimates the skew angle. It never fails on decodable input; an
// inconclusive page simply reports ok=false.
func (d *ProjectionDetector) Detect(img image.Image) (float64, bool, error) {
	maxAngle := d.MaxAngle
	if maxAngle <= 0 {
		maxAngle = 15
	}
	minInk := d.MinInkPixels
	if minInk <= 0 {
		minInk = 100
	}

	ink, w, h := inkBitmap(img)
	if len(ink) < minInk {
		return 0, false, nil
	}

	// Coarse scan, then a fine pass around the winner.
	best, bestScore, total, samples := 0.0, 0.0, 0.0, 0
	for a := -maxAngle; a <= maxAngle+1e-9; a += 1.0 {
		score := shearScore(ink, w, h, a)
		total += score
		samples++
		if score > bestScore {
			bestScore, best = score, a
		}
	}
	for a := best - 0.9; a <= best+0.9+1e-9; a += 0.1 {
		if score := shearScore(ink, w, h, a); score > bestScore {
			bestScore, best = score, a
		}
	}

	// A real text skew produces a sharp peak well above the average over
	// the scanned range; noise and photographs do not.
	if samples == 0 || bestScore < 1.1*(total/float64(samples)) {
		return 0, false, nil
	}
	return best, true, nil
}

type inkPoint struct{ x, y int }

// inkBitmap extracts dark pixels from a downsampled grayscale view.
func inkBitmap(img image.Image) ([]inkPoint, int, int) {
	b := img.Bounds()
	stride := 1
	if m := max(b.Dx(), b.Dy()); m > 1000 {
		stride = m / 1000
	}

	w := b.Dx() / stride
	h := b.Dy() / stride
	if w == 0 || h == 0 {
		return nil, 0, 0
	}

	// Mean luminance sets the global ink threshold.
	var sum uint64
	var count uint64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum += uint64(luma(img, b.Min.X+x*stride, b.Min.Y+y*stride))
			count++
		}
	}
	if count == 0 {
		return nil, 0, 0
	}
	threshold := uint8(float64(sum/count) * 0.8)

	var ink []inkPoint
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if luma(img, b.Min.X+x*stride, b.Min.Y+y*stride) < threshold {
				ink = append(ink, inkPoint{x: x, y: y})
			}
		}
	}
	return ink, w, h
}

func luma(img image.Image, x, y int) uint8 {
	c := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
	return c.Y
}

// shearScore projects ink onto rows sheared by the candidate angle and
// returns the sum of squared row counts.
func shearScore(ink []inkPoint, w, h int, angleDeg float64) float64 {
	tan := math.Tan(angleDeg * math.Pi / 180)
	offset := int(math.Abs(tan)*float64(w)) + 1
	rows := make([]int, h+2*offset)

	for _, p := range ink {
		r := p.y + int(tan*float64(p.x)) + offset
		if r >= 0 && r < len(rows) {
			rows[r]++
		}
	}

	var score float64
	for _, n := range rows {
		score += float64(n) * float64(n)
	}
	return score
}
