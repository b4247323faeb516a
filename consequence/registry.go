package consequence

import (
	"context"
	"sync"

	"github.com/warp/consequence-ledger/generic"
)

// Registry owns one started Engine per profile so every request for the
// same profile shares the same in-flight guard and working set.
type Registry struct {
	store generic.Store
	opts  []Option

	mu      sync.Mutex
	engines map[generic.ProfileID]*Engine
}

func NewRegistry(store generic.Store, opts ...Option) *Registry {
	return &Registry{
		store:   store,
		opts:    opts,
		engines: make(map[generic.ProfileID]*Engine),
	}
}

// Engine returns the profile's engine, starting it on first use. An existing
// engine picks up the given configuration.
func (r *Registry) Engine(ctx context.Context, profile Profile) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[profile.ID]; ok {
		e.UpdateProfile(profile)
		return e, nil
	}

	e := NewEngine(r.store, profile, r.opts...)
	if err := e.Start(ctx); err != nil {
		return nil, err
	}
	r.engines[profile.ID] = e
	return e, nil
}

// Lookup returns a running engine without creating one.
func (r *Registry) Lookup(profileID generic.ProfileID) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[profileID]
	return e, ok
}

// Drop closes and forgets the profile's engine.
func (r *Registry) Drop(profileID generic.ProfileID) {
	r.mu.Lock()
	e, ok := r.engines[profileID]
	delete(r.engines, profileID)
	r.mu.Unlock()
	if ok {
		e.Close()
	}
}

// Close stops every engine.
func (r *Registry) Close() {
	r.mu.Lock()
	engines := r.engines
	r.engines = make(map[generic.ProfileID]*Engine)
	r.mu.Unlock()
	for _, e := range engines {
		e.Close()
	}
}
