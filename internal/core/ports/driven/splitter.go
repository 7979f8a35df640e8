package driven

import (
	"context"
	"image"
)

// PageSplitter turns an input document into an ordered sequence of page
// images. It is a pure transformation: it never touches storage.
//
// PDF input yields one image per page in document order, rasterized at a
// fixed, documented resolution so downstream skew-angle magnitudes are
// comparable across runs. A single raster image yields a one-element slice.
//
// Failure modes: domain.ErrUnsupportedFormat when the content is neither a
// decodable PDF nor a decodable raster image, domain.ErrCorruptInput when
// decoding the declared format fails, domain.ErrTooManyPages and
// domain.ErrImageTooLarge for bomb protection.
type PageSplitter interface {
	Split(ctx context.Context, data []byte, mimeHint string) ([]image.Image, error)
}
