package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/quillstack-labs/pagelift/internal/core/domain"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
)

// EngineRegistry maps engine identifiers to factories. Registration happens
// once at process start; during request processing the registry is
// read-only. Lookups are case-sensitive exact matches.
//
// Resolution returns the factory, not a constructed engine: only the engine
// a run actually requests is ever instantiated. Adding a new extraction
// backend means registering a factory here - the orchestrator never changes.
type EngineRegistry struct {
	mu        sync.RWMutex
	factories map[string]driven.EngineFactory
}

// NewEngineRegistry creates an empty registry.
func NewEngineRegistry() *EngineRegistry {
	return &EngineRegistry{
		factories: make(map[string]driven.EngineFactory),
	}
}

// Register adds an engine factory under the given id.
func (r *EngineRegistry) Register(id string, factory driven.EngineFactory) error {
	if id == "" {
		return fmt.Errorf("register engine: empty id")
	}
	if factory == nil {
		return fmt.Errorf("register engine %q: nil factory", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("register engine %q: already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// Resolve returns the factory for an engine id.
// An absent id yields domain.ErrUnknownEngine, which is distinct from an
// engine that exists but fails at construction or runtime.
func (r *EngineRegistry) Resolve(id string) (driven.EngineFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", domain.ErrUnknownEngine, id, r.idsLocked())
	}
	return factory, nil
}

// IDs returns all registered engine ids, sorted.
func (r *EngineRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idsLocked()
}

func (r *EngineRegistry) idsLocked() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
