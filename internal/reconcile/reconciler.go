// Package reconcile implements the identity reconciler: the in-memory
// index that maps provisional local ids to server canonical ids so the
// rest of the client can address a record by either one.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/woodshedapp/woodshed/internal/logger"
	"github.com/woodshedapp/woodshed/models"
)

// ErrConflict is returned when a local id that already resolved to one
// canonical id is resolved again with a different one. The original
// binding is kept and the mapping is flagged.
var ErrConflict = errors.New("conflicting canonical id for local id")

// SessionSource lists persisted sessions for a startup rebuild. The store's
// session repository satisfies it.
type SessionSource interface {
	ListSessions(ctx context.Context) ([]models.Session, error)
}

// QueueSource lists pending queue entries for a startup rebuild. The
// store's queue repository satisfies it.
type QueueSource interface {
	ListEntries(ctx context.Context) ([]models.SyncQueueEntry, error)
}

// ResolveCallback fires when a local id gains its canonical id.
type ResolveCallback func(mapping models.IdentityMapping)

// Reconciler is the mutex-guarded double index. Lookups accept either id;
// a local id resolves at most once.
type Reconciler struct {
	logger *logger.Logger

	mu          sync.Mutex
	byLocal     map[string]*models.IdentityMapping
	byCanonical map[string]*models.IdentityMapping
	callbacks   map[string][]ResolveCallback
}

// New returns an empty Reconciler.
func New(log *logger.Logger) *Reconciler {
	return &Reconciler{
		logger:      log,
		byLocal:     make(map[string]*models.IdentityMapping),
		byCanonical: make(map[string]*models.IdentityMapping),
		callbacks:   make(map[string][]ResolveCallback),
	}
}

// Register records a provisional local id with no canonical binding yet.
// Registering an already known id is a no-op.
func (r *Reconciler) Register(localID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byLocal[localID]; ok {
		return
	}
	r.byLocal[localID] = &models.IdentityMapping{LocalID: localID}
}

// Resolve binds localID to canonicalID. The binding is permanent: resolving
// again with the same canonical id is an idempotent no-op, resolving with a
// different one keeps the original binding, flags the mapping and returns
// ErrConflict. An unregistered local id is registered implicitly.
func (r *Reconciler) Resolve(localID, canonicalID string) error {
	if canonicalID == "" {
		return fmt.Errorf("%w: empty canonical id for %q", ErrConflict, localID)
	}

	r.mu.Lock()

	mapping, ok := r.byLocal[localID]
	if !ok {
		mapping = &models.IdentityMapping{LocalID: localID}
		r.byLocal[localID] = mapping
	}

	if mapping.CanonicalID != "" && mapping.CanonicalID != canonicalID {
		mapping.Conflict = true
		kept := mapping.CanonicalID
		r.mu.Unlock()

		r.logger.Warn().
			Str("func", "Reconciler.Resolve").
			Str("local_id", localID).
			Str("kept_canonical_id", kept).
			Str("rejected_canonical_id", canonicalID).
			Msg("conflicting canonical id, keeping original binding")
		return fmt.Errorf("%w: %q already bound to %q", ErrConflict, localID, kept)
	}

	alreadyResolved := mapping.CanonicalID == canonicalID
	mapping.CanonicalID = canonicalID
	r.byCanonical[canonicalID] = mapping

	var fire []ResolveCallback
	var fired models.IdentityMapping
	if !alreadyResolved {
		fire = r.callbacks[localID]
		delete(r.callbacks, localID)
		fired = *mapping
	}
	r.mu.Unlock()

	for _, fn := range fire {
		fn(fired)
	}
	return nil
}

// Lookup finds a mapping by either its local or canonical id.
func (r *Reconciler) Lookup(id string) (models.IdentityMapping, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mapping, ok := r.byLocal[id]; ok {
		return *mapping, true
	}
	if mapping, ok := r.byCanonical[id]; ok {
		return *mapping, true
	}
	return models.IdentityMapping{}, false
}

// OnResolve registers fn to fire once localID resolves. If it already has,
// fn fires immediately on the caller's goroutine.
func (r *Reconciler) OnResolve(localID string, fn ResolveCallback) {
	r.mu.Lock()

	if mapping, ok := r.byLocal[localID]; ok && mapping.Resolved() {
		resolved := *mapping
		r.mu.Unlock()
		fn(resolved)
		return
	}

	r.callbacks[localID] = append(r.callbacks[localID], fn)
	r.mu.Unlock()
}

// Rebuild repopulates the index from the durable store: every persisted
// session is registered, synced sessions resolve immediately, and local ids
// still sitting in the queue stay registered-only so a drain can resolve
// them. Called once at startup before any sync activity.
func (r *Reconciler) Rebuild(ctx context.Context, sessions SessionSource, queue QueueSource) error {
	stored, err := sessions.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("reconciler rebuild: %w", err)
	}

	entries, err := queue.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("reconciler rebuild: %w", err)
	}

	resolved := 0
	for _, session := range stored {
		r.Register(session.LocalID)
		if session.CanonicalID != "" {
			if err := r.Resolve(session.LocalID, session.CanonicalID); err != nil {
				return fmt.Errorf("reconciler rebuild: %w", err)
			}
			resolved++
		}
	}
	for _, entry := range entries {
		r.Register(entry.LocalID)
	}

	r.logger.Info().
		Str("func", "Reconciler.Rebuild").
		Int("sessions", len(stored)).
		Int("resolved", resolved).
		Int("queued", len(entries)).
		Msg("identity index rebuilt from store")
	return nil
}
