package ingest

import (
	"sync"

	"github.com/termhub/termsync/errors"
	"github.com/termhub/termsync/store"
)

// Registry is the process-wide single-slot gate over import runs: at most one
// run is active at a time, and a concurrent start fails fast instead of
// queuing.
type Registry struct {
	mu      sync.Mutex
	active  bool
	current *store.Import
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Begin reserves the run slot. Returns ErrImportInProgress when a run already
// holds it.
func (r *Registry) Begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return errors.WithStack(errors.ErrImportInProgress)
	}
	r.active = true
	return nil
}

// Install attaches the persisted run to the reserved slot.
func (r *Registry) Install(imp *store.Import) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = imp
}

// Current returns the run holding the slot, or nil.
func (r *Registry) Current() *store.Import {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Active reports whether a run holds the slot.
func (r *Registry) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// End releases the slot.
func (r *Registry) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	r.current = nil
}
