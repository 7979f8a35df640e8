package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// Input errors. Never retried, surfaced to the caller immediately.

	// ErrEmptyInput indicates the uploaded file has no content.
	ErrEmptyInput = errors.New("empty input")

	// ErrPayloadTooLarge indicates the upload exceeds the configured size cap.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrUnsupportedFormat indicates the content is neither a decodable PDF
	// nor a decodable raster image.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrCorruptInput indicates decoding the declared format failed.
	ErrCorruptInput = errors.New("corrupt input")

	// ErrTooManyPages indicates a PDF exceeds the configured page cap.
	ErrTooManyPages = errors.New("too many pages")

	// ErrImageTooLarge indicates an image dimension exceeds the configured
	// limit (decompression bomb protection).
	ErrImageTooLarge = errors.New("image dimensions exceed limit")

	// Configuration errors. Surfaced before any page work begins.

	// ErrUnknownEngine indicates the requested engine id is not registered.
	// Distinct from an engine that exists but fails at construction or runtime.
	ErrUnknownEngine = errors.New("unknown engine")

	// ErrNotImplemented indicates functionality compiled out of this build
	// (e.g. a CGO-backed engine in a pure-Go binary).
	ErrNotImplemented = errors.New("not implemented")

	// Per-page inference errors.

	// ErrInferenceTimeout indicates the inference call exceeded its deadline.
	// Retry-eligible.
	ErrInferenceTimeout = errors.New("inference timeout")

	// ErrInferenceUnavailable indicates the inference backend is unreachable
	// or returned a server error. Retry-eligible.
	ErrInferenceUnavailable = errors.New("inference unavailable")

	// ErrInferenceRejected indicates the backend explicitly rejected the
	// input (e.g. malformed image). Never retried.
	ErrInferenceRejected = errors.New("inference rejected")

	// Storage errors.

	// ErrStorage indicates an artifact write or read failed.
	ErrStorage = errors.New("storage failure")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// IsRetryable reports whether a per-page inference failure may be retried.
// Only transient transport-level failures qualify; explicit rejections and
// preprocessing failures are terminal on first occurrence.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInferenceTimeout) || errors.Is(err, ErrInferenceUnavailable)
}

// IsInputError reports whether an error belongs to the input taxonomy:
// failures the caller can only fix by submitting different content.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrPayloadTooLarge) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrCorruptInput) ||
		errors.Is(err, ErrTooManyPages) ||
		errors.Is(err, ErrImageTooLarge)
}
