package split

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillstack-labs/pagelift/internal/core/domain"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	return img
}

// buildPDF writes a minimal PDF with one empty page per width, each 100
// points tall. Cross-reference offsets are computed while writing, so the
// result is structurally valid for strict parsers.
func buildPDF(t *testing.T, widths []int) []byte {
	t.Helper()
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(widths))
	for i := range widths {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), len(widths)))
	for i, w := range widths {
		obj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d 100] /Resources << >> >>\nendobj\n",
			3+i, w))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xref)
	return buf.Bytes()
}

func TestSplitMultiPagePDF(t *testing.T) {
	// Page widths differ so document order is visible in the output.
	widths := []int{144, 216, 288}
	data := buildPDF(t, widths)

	s := New(Config{}, nil)
	pages, err := s.Split(context.Background(), data, "application/pdf")
	require.NoError(t, err)
	require.Len(t, pages, len(widths))

	// 72 points to the inch, rasterized at RasterDPI.
	for i, pt := range widths {
		want := pt * RasterDPI / 72
		assert.InDelta(t, want, pages[i].Bounds().Dx(), 2, "page %d width", i+1)
	}
}

func TestSplitPDFTooManyPages(t *testing.T) {
	data := buildPDF(t, []int{144, 144, 144})

	s := New(Config{MaxPDFPages: 2}, nil)
	_, err := s.Split(context.Background(), data, "application/pdf")
	assert.ErrorIs(t, err, domain.ErrTooManyPages)
}

func TestSplitSingleImageRoundTrip(t *testing.T) {
	s := New(Config{}, nil)
	data := encodePNG(t, testImage(320, 240))

	pages, err := s.Split(context.Background(), data, "image/png")
	require.NoError(t, err)
	require.Len(t, pages, 1)

	// Decoded pixel dimensions survive the round trip.
	b := pages[0].Bounds()
	assert.Equal(t, 320, b.Dx())
	assert.Equal(t, 240, b.Dy())
}

func TestSplitJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(64, 48), nil))

	s := New(Config{}, nil)
	pages, err := s.Split(context.Background(), buf.Bytes(), "image/jpeg")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 64, pages[0].Bounds().Dx())
}

func TestSplitEmptyInput(t *testing.T) {
	s := New(Config{}, nil)
	_, err := s.Split(context.Background(), nil, "")
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestSplitUnsupportedFormat(t *testing.T) {
	s := New(Config{}, nil)
	_, err := s.Split(context.Background(), []byte("plain text, not a document"), "text/plain")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestSplitCorruptImage(t *testing.T) {
	// A valid PNG signature followed by garbage sniffs as PNG but fails
	// to decode.
	data := append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, []byte("garbage")...)

	s := New(Config{}, nil)
	_, err := s.Split(context.Background(), data, "image/png")
	assert.ErrorIs(t, err, domain.ErrCorruptInput)
}

func TestSplitCorruptPDF(t *testing.T) {
	s := New(Config{}, nil)
	_, err := s.Split(context.Background(), []byte("%PDF-1.7 not really a pdf"), "application/pdf")
	assert.ErrorIs(t, err, domain.ErrCorruptInput)
}

func TestSplitImageTooLarge(t *testing.T) {
	s := New(Config{MaxImageDimension: 100}, nil)
	data := encodePNG(t, testImage(200, 50))

	_, err := s.Split(context.Background(), data, "image/png")
	assert.ErrorIs(t, err, domain.ErrImageTooLarge)
}

func TestSplitImageWithinLimit(t *testing.T) {
	s := New(Config{MaxImageDimension: 300}, nil)
	data := encodePNG(t, testImage(200, 50))

	pages, err := s.Split(context.Background(), data, "image/png")
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}
