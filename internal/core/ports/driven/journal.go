package driven

import (
	"context"

	"github.com/quillstack-labs/pagelift/internal/core/domain"
)

// RunJournal records completed pipeline runs for operational history.
// The journal is write-once per run: there is no update path because runs
// have no retry-from-terminal.
type RunJournal interface {
	// Record persists a run record.
	Record(ctx context.Context, rec domain.RunRecord) error

	// Recent returns the most recent records, newest first, up to limit.
	Recent(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// Get returns a single record by run ID, or domain.ErrNotFound.
	Get(ctx context.Context, runID string) (*domain.RunRecord, error)

	// Close releases the underlying store.
	Close() error
}
