package services

import (
	"context"
	"fmt"

	"github.com/quillstack-labs/pagelift/internal/core/domain"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driving"
)

// Ensure Health implements the interface.
var _ driving.HealthChecker = (*Health)(nil)

// Health reports process health without invoking the pipeline: probing it
// never splits pages or calls an inference backend.
type Health struct {
	store driven.ArtifactStore
}

// NewHealth creates a health checker backed by the artifact store.
func NewHealth(store driven.ArtifactStore) *Health {
	return &Health{store: store}
}

// Live reports basic process liveness.
func (h *Health) Live(_ context.Context) error {
	return nil
}

// Ready verifies the artifact store is reachable and writable.
func (h *Health) Ready(ctx context.Context) error {
	if h.store == nil {
		return fmt.Errorf("%w: artifact store not configured", domain.ErrStorage)
	}
	if err := h.store.Ping(ctx); err != nil {
		return fmt.Errorf("artifact store not ready: %w", err)
	}
	return nil
}
