package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/terra-clan/assessment-search/internal/search"
)

// Factory builds the controller for a new session
type Factory func(id string, opts ...search.Option) *search.Controller

// Store persists controller snapshots between restarts
type Store interface {
	// Load returns nil, nil when nothing is stored for id
	Load(ctx context.Context, id string) (*search.State, error)
	Save(ctx context.Context, id string, state search.State) error
	Delete(ctx context.Context, id string) error
}

type entry struct {
	controller *search.Controller
	lastSeen   time.Time
}

// Registry holds one search controller per browser session
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	factory  Factory
	store    Store
}

// NewRegistry creates a registry. store may be nil.
func NewRegistry(factory Factory, store Store) *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		factory:  factory,
		store:    store,
	}
}

// Get returns the controller for id, creating it (and restoring a stored
// snapshot) on first use
func (r *Registry) Get(ctx context.Context, id string) *search.Controller {
	r.mu.Lock()
	if e, ok := r.sessions[id]; ok {
		e.lastSeen = time.Now()
		r.mu.Unlock()
		return e.controller
	}
	r.mu.Unlock()

	var opts []search.Option
	if r.store != nil {
		opts = append(opts, search.WithOnFinish(r.saver(id)))
	}
	controller := r.factory(id, opts...)

	if r.store != nil {
		snapshot, err := r.store.Load(ctx, id)
		if err != nil {
			slog.Warn("failed to load session snapshot", "error", err, "session_id", id)
		} else if snapshot != nil {
			controller.Restore(*snapshot)
			slog.Debug("session restored", "session_id", id)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another request may have created it meanwhile
	if e, ok := r.sessions[id]; ok {
		e.lastSeen = time.Now()
		return e.controller
	}

	r.sessions[id] = &entry{controller: controller, lastSeen: time.Now()}
	return controller
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Remove drops a session from memory and from the store
func (r *Registry) Remove(ctx context.Context, id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Delete(ctx, id); err != nil {
			slog.Warn("failed to delete session snapshot", "error", err, "session_id", id)
		}
	}
}

// EvictIdle drops sessions not seen for maxIdle. Sessions with a search in
// flight are kept. Stored snapshots are left to expire on their own TTL.
func (r *Registry) EvictIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, e := range r.sessions {
		if e.lastSeen.After(cutoff) {
			continue
		}
		if e.controller.State().Loading {
			continue
		}
		delete(r.sessions, id)
		evicted++
	}

	return evicted
}

func (r *Registry) saver(id string) func(search.State) {
	return func(state search.State) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := r.store.Save(ctx, id, state); err != nil {
			slog.Error("failed to save session snapshot", "error", err, "session_id", id)
		}
	}
}
