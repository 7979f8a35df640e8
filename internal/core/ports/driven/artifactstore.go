package driven

import (
	"context"
	"time"
)

// ArtifactStore persists pipeline byproducts: the raw upload, preprocessed
// page images and the final assembled output. Entries outlive the request
// until externally cleaned up.
//
// Paths are slash-separated and relative to the store root (see
// domain.StorageLayout). Implementations must create intermediate
// directories on demand. Each individual write is all-or-nothing: no
// partially written file may remain on any failure path. Writes across the
// raw/preprocessed/output tiers need not be atomic as a group.
//
// Write failures are reported as domain.ErrStorage.
type ArtifactStore interface {
	// Save writes data at the given relative path, replacing any previous
	// content at that exact path.
	Save(ctx context.Context, relPath string, data []byte) error

	// Exists reports whether an artifact is present at the relative path.
	Exists(ctx context.Context, relPath string) (bool, error)

	// Ping verifies the store is usable (root reachable and writable).
	// Used by readiness checks; must be cheap and leave nothing behind.
	Ping(ctx context.Context) error

	// Sweep deletes artifacts older than the given age and returns how many
	// were removed. Used by the retention sweeper.
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
}
