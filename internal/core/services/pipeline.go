package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quillstack-labs/pagelift/internal/core/domain"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driving"
)

// Ensure Pipeline implements the interface.
var _ driving.PipelineRunner = (*Pipeline)(nil)

// PipelineConfig holds the orchestrator's tunables. It is an explicit value
// passed at construction so multiple pipelines (e.g. in tests) can run with
// different settings concurrently.
type PipelineConfig struct {
	// DefaultEngine is used when a request names no engine.
	DefaultEngine string

	// MaxUploadBytes caps the raw input size. Zero means no cap.
	MaxUploadBytes int64

	// Workers bounds page-level concurrency. Unbounded fan-out against a
	// single model server is a resource-exhaustion risk, not a tuning knob.
	Workers int

	// RetryAttempts is the total number of inference attempts per page for
	// retry-eligible failures (minimum 1).
	RetryAttempts int

	// RetryBackoff is the initial backoff interval between attempts; it
	// grows exponentially and is capped internally.
	RetryBackoff time.Duration

	// DocumentTimeout bounds the whole per-page processing phase. Pages not
	// started when it expires are recorded as timed-out failures.
	DocumentTimeout time.Duration
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.DocumentTimeout <= 0 {
		c.DocumentTimeout = 5 * time.Minute
	}
	return c
}

// Pipeline orchestrates one document run: validate, persist raw, split,
// resolve engine, fan out per-page preprocess+store+infer, assemble in page
// order, persist output.
type Pipeline struct {
	splitter driven.PageSplitter
	prep     driven.Preprocessor
	store    driven.ArtifactStore
	registry *EngineRegistry
	journal  driven.RunJournal
	cfg      PipelineConfig
	logger   *zap.Logger
}

// NewPipeline creates a pipeline orchestrator. The journal may be nil, in
// which case runs are not recorded.
func NewPipeline(
	splitter driven.PageSplitter,
	prep driven.Preprocessor,
	store driven.ArtifactStore,
	registry *EngineRegistry,
	journal driven.RunJournal,
	cfg PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		splitter: splitter,
		prep:     prep,
		store:    store,
		registry: registry,
		journal:  journal,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Run drives a single document through the pipeline.
//
// State machine: Received -> Split -> Processing -> Assembling -> terminal.
// Terminal states are exactly Succeeded, PartiallySucceeded and Failed;
// a failed run must be resubmitted as a new document.
func (p *Pipeline) Run(ctx context.Context, req driving.PipelineRequest) (*domain.PipelineResult, error) {
	started := time.Now()

	doc := domain.Document{
		RunID:    uuid.NewString(),
		EngineID: req.EngineID,
		Status:   domain.StatusReceived,
	}
	if doc.EngineID == "" {
		doc.EngineID = p.cfg.DefaultEngine
	}

	log := p.logger.With(
		zap.String("run_id", doc.RunID),
		zap.String("engine", doc.EngineID),
	)

	// Input validation happens before any stage is touched.
	if len(req.Data) == 0 {
		return nil, p.fail(ctx, &doc, started, domain.ErrEmptyInput)
	}
	if p.cfg.MaxUploadBytes > 0 && int64(len(req.Data)) > p.cfg.MaxUploadBytes {
		return nil, p.fail(ctx, &doc, started,
			fmt.Errorf("%w: %d bytes (limit %d)", domain.ErrPayloadTooLarge, len(req.Data), p.cfg.MaxUploadBytes))
	}

	filename, err := domain.CleanFilename(req.Filename)
	if err != nil {
		return nil, p.fail(ctx, &doc, started, err)
	}
	doc.Filename = filename

	// Resolve the engine factory up front: an unknown engine must fail the
	// run before any artifact is written or any page is split.
	factory, err := p.registry.Resolve(doc.EngineID)
	if err != nil {
		return nil, p.fail(ctx, &doc, started, err)
	}

	sum := sha256.Sum256(req.Data)
	doc.SHA256 = hex.EncodeToString(sum[:])
	layout := domain.NewStorageLayout(doc.EngineID, doc.Filename)

	// Persist the raw upload. Failure here is fatal: no page processing is
	// attempted without the raw artifact on disk.
	if err := p.store.Save(ctx, layout.RawPath(), req.Data); err != nil {
		return nil, p.fail(ctx, &doc, started, fmt.Errorf("save raw upload: %w", err))
	}
	log.Info("file accepted",
		zap.String("filename", doc.Filename),
		zap.Int("bytes", len(req.Data)),
		zap.String("sha256", doc.SHA256))

	// Split into page images. With no pages there is no meaningful partial
	// result, so split failures fail the whole run.
	images, err := p.splitter.Split(ctx, req.Data, req.MIMEHint)
	if err != nil {
		return nil, p.fail(ctx, &doc, started, err)
	}
	doc.Status = domain.StatusSplit
	doc.Pages = make([]domain.Page, len(images))
	for i, img := range images {
		doc.Pages[i] = domain.Page{Index: i + 1, Image: img}
	}
	log.Info("pages detected", zap.Int("pages", len(images)))

	// Construct the requested engine (lazily; only this one). A factory
	// error means the engine exists but is unusable - still fatal before
	// page work, but a different error kind than an unknown id.
	engine, err := factory()
	if err != nil {
		return nil, p.fail(ctx, &doc, started, fmt.Errorf("construct engine %q: %w", doc.EngineID, err))
	}

	doc.Status = domain.StatusProcessing
	outcomes := p.processPages(ctx, &doc, layout, engine, log)

	doc.Status = domain.StatusAssembling
	doc.Elapsed = time.Since(started)

	result := p.assemble(&doc, outcomes)

	// Persist the assembled document. Failure on the final save is fatal to
	// the run even when pages succeeded.
	if err := p.store.Save(ctx, layout.OutputPath(), []byte(result.Output)); err != nil {
		return nil, p.fail(ctx, &doc, started, fmt.Errorf("save output: %w", err))
	}
	result.OutputPath = layout.OutputPath()

	doc.Status = result.Status
	p.record(ctx, &doc, result)

	log.Info("run complete",
		zap.String("status", string(result.Status)),
		zap.Int("pages", result.PageCount),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

// processPages runs preprocess -> store -> infer for every page over a
// bounded worker pool. Each page reaches exactly one terminal outcome; one
// page's failure never cancels siblings still in flight. The document-level
// deadline marks pages that never started as timed-out failures.
func (p *Pipeline) processPages(
	ctx context.Context,
	doc *domain.Document,
	layout domain.StorageLayout,
	engine driven.Engine,
	log *zap.Logger,
) []domain.PageOutcome {
	runCtx, cancel := context.WithTimeout(ctx, p.cfg.DocumentTimeout)
	defer cancel()

	outcomes := make([]domain.PageOutcome, len(doc.Pages))

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Workers)

	for i := range doc.Pages {
		page := &doc.Pages[i]
		out := &outcomes[i]
		out.Index = page.Index

		g.Go(func() error {
			// Page tasks record failures in their own outcome slot and
			// always return nil: an error return would let errgroup treat
			// one page's fault as the group's.
			if err := runCtx.Err(); err != nil {
				out.Err = fmt.Errorf("document deadline reached before page %d started: %w",
					page.Index, domain.ErrInferenceTimeout)
				return nil
			}
			p.processOnePage(runCtx, page, out, layout, engine, log)
			return nil
		})
	}
	// Page tasks never return errors; Wait only synchronises.
	_ = g.Wait()

	return outcomes
}

// processOnePage takes a single page to its terminal outcome.
func (p *Pipeline) processOnePage(
	ctx context.Context,
	page *domain.Page,
	out *domain.PageOutcome,
	layout domain.StorageLayout,
	engine driven.Engine,
	log *zap.Logger,
) {
	corrected, angle, err := p.prep.Correct(ctx, page.Image)
	if err != nil {
		// Preprocessing failure is permanent for this page; siblings
		// are unaffected.
		out.Err = fmt.Errorf("preprocess page %d: %w", page.Index, err)
		log.Warn("page preprocessing failed", zap.Int("page", page.Index), zap.Error(err))
		return
	}
	page.Corrected = corrected
	page.Skew = angle
	out.Skew = angle

	if err := p.store.Save(ctx, layout.PreprocessedPath(page.Index), corrected); err != nil {
		// A preprocessed-save failure fails this page only; the raw and
		// output tiers are unaffected.
		out.Err = fmt.Errorf("save preprocessed page %d: %w", page.Index, err)
		log.Warn("page artifact save failed", zap.Int("page", page.Index), zap.Error(err))
		return
	}

	text, err := p.inferWithRetry(ctx, engine, corrected)
	if err != nil {
		out.Err = fmt.Errorf("infer page %d: %w", page.Index, err)
		log.Warn("page inference failed", zap.Int("page", page.Index), zap.Error(err))
		return
	}
	page.Text = text
	out.Text = text
}

// inferWithRetry calls the engine, retrying only transient failures
// (timeout, unavailable) a bounded number of times with exponential
// backoff. Rejections are permanent on first occurrence.
func (p *Pipeline) inferWithRetry(ctx context.Context, engine driven.Engine, pageImage []byte) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.RetryBackoff
	bo.MaxInterval = 5 * time.Second
	bo.RandomizationFactor = 0

	var text string
	err := backoff.Retry(func() error {
		var err error
		text, err = engine.Infer(ctx, pageImage)
		if err != nil && !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.cfg.RetryAttempts-1)), ctx))
	if err != nil {
		return "", err
	}
	return text, nil
}

// assemble builds the final result: page texts concatenated in index order,
// each section introduced by its page marker, failed pages rendered with an
// explicit placeholder so page count and ordering are preserved.
func (p *Pipeline) assemble(doc *domain.Document, outcomes []domain.PageOutcome) *domain.PipelineResult {
	var succeeded, failed int
	sections := make([]string, 0, len(outcomes))
	for _, out := range outcomes {
		body := out.Text
		if out.Failed() {
			failed++
			body = domain.ErrorPlaceholder(out.Err)
		} else {
			succeeded++
		}
		sections = append(sections, domain.PageMarker(out.Index)+"\n"+body)
	}

	status := domain.StatusFailed
	switch {
	case failed == 0 && succeeded > 0:
		status = domain.StatusSucceeded
	case failed > 0 && succeeded > 0:
		status = domain.StatusPartiallySucceeded
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# OCR Results for %s\n\n", doc.Filename)
	fmt.Fprintf(&b, "**Engine:** %s\n", doc.EngineID)
	fmt.Fprintf(&b, "**Processing Time:** %.2fs\n", doc.Elapsed.Seconds())
	fmt.Fprintf(&b, "**Pages:** %d\n", len(outcomes))
	fmt.Fprintf(&b, "**SHA-256:** `%s`\n", doc.SHA256)
	fmt.Fprintf(&b, "**Run ID:** `%s`\n", doc.RunID)
	b.WriteString("\n## Extracted Text\n\n")
	b.WriteString(strings.Join(sections, "\n\n"))

	return &domain.PipelineResult{
		RunID:     doc.RunID,
		Filename:  doc.Filename,
		EngineID:  doc.EngineID,
		Status:    status,
		Elapsed:   doc.Elapsed,
		PageCount: len(outcomes),
		Pages:     outcomes,
		Output:    b.String(),
	}
}

// fail finalises a run that died before producing a structured result.
func (p *Pipeline) fail(ctx context.Context, doc *domain.Document, started time.Time, err error) error {
	doc.Status = domain.StatusFailed
	doc.Elapsed = time.Since(started)
	p.record(ctx, doc, nil)
	p.logger.Warn("run failed",
		zap.String("run_id", doc.RunID),
		zap.String("engine", doc.EngineID),
		zap.Error(err))
	return err
}

// record writes the run to the journal, best effort.
func (p *Pipeline) record(ctx context.Context, doc *domain.Document, result *domain.PipelineResult) {
	if p.journal == nil {
		return
	}

	rec := domain.RunRecord{
		ID:         doc.RunID,
		Filename:   doc.Filename,
		EngineID:   doc.EngineID,
		Status:     doc.Status,
		PagesTotal: len(doc.Pages),
		Duration:   doc.Elapsed,
		SHA256:     doc.SHA256,
		CreatedAt:  time.Now().UTC(),
	}
	if result != nil {
		rec.Status = result.Status
		rec.PagesTotal = result.PageCount
		for _, out := range result.Pages {
			if out.Failed() {
				rec.PagesFailed++
			}
		}
	}

	if err := p.journal.Record(ctx, rec); err != nil {
		p.logger.Warn("journal record failed", zap.String("run_id", doc.RunID), zap.Error(err))
	}
}
