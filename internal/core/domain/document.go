package domain

import (
	"fmt"
	"image"
	"time"
)

// RunStatus tracks a document's progress through the pipeline.
type RunStatus string

const (
	// StatusReceived means the upload passed validation.
	StatusReceived RunStatus = "received"

	// StatusSplit means page images have been produced.
	StatusSplit RunStatus = "split"

	// StatusProcessing means per-page work is in flight.
	StatusProcessing RunStatus = "processing"

	// StatusAssembling means all pages reached a terminal outcome and the
	// result document is being built.
	StatusAssembling RunStatus = "assembling"

	// StatusSucceeded means every page produced text.
	StatusSucceeded RunStatus = "succeeded"

	// StatusPartiallySucceeded means at least one page succeeded and at
	// least one failed.
	StatusPartiallySucceeded RunStatus = "partially_succeeded"

	// StatusFailed means every page failed, or a pipeline-level step failed
	// before pages could be processed.
	StatusFailed RunStatus = "failed"
)

// Terminal reports whether the status is one of the three terminal states.
// There is no retry-from-terminal: a failed run must be resubmitted as a
// new Document.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusPartiallySucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// Document is one pipeline run over an uploaded file. It is request-scoped:
// created at entry, owned exclusively by a single run, discarded once the
// result has been returned and persisted.
type Document struct {
	// RunID uniquely identifies this pipeline invocation.
	RunID string

	// Filename is the sanitized original upload name.
	Filename string

	// EngineID is the extraction engine chosen for this run.
	EngineID string

	// SHA256 is the hex digest of the raw upload.
	SHA256 string

	// Pages holds the rasterized pages in document order.
	Pages []Page

	// Status is the document's position in the pipeline state machine.
	Status RunStatus

	// Elapsed is the total processing duration, set at assembly.
	Elapsed time.Duration
}

// Page is one rasterized unit of the input document.
// Its index is immutable once assigned; buffer and text mutation happens
// strictly within the stage that owns the page at that moment.
type Page struct {
	// Index is 1-based, stable and contiguous.
	Index int

	// Image is the raw rasterized page.
	Image image.Image

	// Skew is the detected rotation angle in degrees, nil until the
	// preprocessor has run (or when detection was inconclusive).
	Skew *float64

	// Corrected is the deskewed page encoded in the pixel format used for
	// inference input (PNG).
	Corrected []byte

	// Text is the extracted text, empty until inference completes.
	Text string

	// Err records this page's terminal failure, if any.
	Err error
}

// PageOutcome is the terminal per-page result carried in a PipelineResult.
type PageOutcome struct {
	// Index is the 1-based page number.
	Index int

	// Skew is the detected angle in degrees, nil when detection was
	// inconclusive or the page failed before preprocessing.
	Skew *float64

	// Text is the extracted text when the page succeeded.
	Text string

	// Err is the page's terminal failure, nil on success.
	Err error
}

// Failed reports whether the page reached a terminal failure.
func (o PageOutcome) Failed() bool { return o.Err != nil }

// PipelineResult is the structured terminal outcome of a run. The caller
// always receives one (even for partial success) whenever split and engine
// resolution succeeded.
type PipelineResult struct {
	RunID      string
	Filename   string
	EngineID   string
	Status     RunStatus
	Elapsed    time.Duration
	PageCount  int
	Pages      []PageOutcome
	Output     string
	OutputPath string
}

// RunRecord is the journal entry persisted for every completed run.
type RunRecord struct {
	ID          string
	Filename    string
	EngineID    string
	Status      RunStatus
	PagesTotal  int
	PagesFailed int
	Duration    time.Duration
	SHA256      string
	CreatedAt   time.Time
}

// PageMarker returns the literal marker line that introduces a page section
// in the assembled output document. The format is part of the external
// output contract and must not change.
func PageMarker(index int) string {
	return fmt.Sprintf("========== PAGE %d ==========", index)
}

// ErrorPlaceholder renders a failed page's section body so failed pages
// remain visible in the assembled output instead of being silently dropped.
func ErrorPlaceholder(err error) string {
	return fmt.Sprintf("[OCR FAILED: %v]", err)
}
