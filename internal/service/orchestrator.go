// Package service implements the sync orchestrator: the record-first write
// path, the durable queue drain and the background sync job. It owns all
// retry and scheduling policy; the store, the adapter and the monitor stay
// policy-free.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/woodshedapp/woodshed/internal/adapter"
	"github.com/woodshedapp/woodshed/internal/bus"
	"github.com/woodshedapp/woodshed/internal/linker"
	"github.com/woodshedapp/woodshed/internal/logger"
	"github.com/woodshedapp/woodshed/internal/reconcile"
	"github.com/woodshedapp/woodshed/internal/store"
	"github.com/woodshedapp/woodshed/models"
)

const (
	drainBackoffBase = 2 * time.Second
	drainBackoffCap  = 5 * time.Minute
)

// Connectivity is the slice of the network monitor the orchestrator needs.
type Connectivity interface {
	Online() bool
}

// Orchestrator coordinates local persistence, the offline queue and the
// server adapter. Creation is record-first: the local write never waits on
// the network.
type Orchestrator struct {
	sessions   store.SessionRepository
	queue      store.QueueRepository
	server     adapter.ServerAdapter
	reconciler *reconcile.Reconciler
	linker     *linker.Linker
	monitor    Connectivity
	logger     *logger.Logger

	loggedOut atomic.Bool

	idMu   sync.Mutex
	lastID int64

	drainMu     sync.Mutex
	draining    bool
	backoff     retry.Backoff
	nextDrainAt time.Time
}

// NewOrchestrator wires the orchestrator and subscribes it to session
// lifecycle events: a logout abandons any drain between items, a new token
// pair re-enables draining.
func NewOrchestrator(
	storages *store.ClientStorages,
	server adapter.ServerAdapter,
	reconciler *reconcile.Reconciler,
	lnk *linker.Linker,
	monitor Connectivity,
	events *bus.Bus,
	log *logger.Logger,
) *Orchestrator {
	o := &Orchestrator{
		sessions:   storages.Sessions,
		queue:      storages.Queue,
		server:     server,
		reconciler: reconciler,
		linker:     lnk,
		monitor:    monitor,
		logger:     log,
	}

	events.Subscribe(func(e bus.Event) {
		switch e.(type) {
		case bus.LoggedOut:
			o.loggedOut.Store(true)
		case bus.TokenUpdated:
			o.loggedOut.Store(false)
		}
	})

	return o
}

// CreateSession implements SessionService. The provisional local id is
// minted from the current unix-ms, strictly monotonic within the process so
// two sessions created in the same millisecond never collide.
func (o *Orchestrator) CreateSession(ctx context.Context, draft models.SessionDraft) (models.Session, error) {
	if draft.StartedAt.IsZero() && draft.Notes == "" && draft.Tags == "" {
		return models.Session{}, ErrEmptyDraft
	}

	log := o.logger.With().Str("func", "Orchestrator.CreateSession").Logger()

	now := time.Now()
	localID := o.mintLocalID(now)
	session := models.Session{
		LocalID:   localID,
		SyncState: models.SyncStateLocal,
		StartedAt: draft.StartedAt,
		EndedAt:   draft.EndedAt,
		Tags:      draft.Tags,
		Rating:    draft.Rating,
		Notes:     draft.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	req := createRequest(session)

	if o.monitor.Online() {
		resp, err := o.server.CreateSession(ctx, req)
		if err == nil {
			session.CanonicalID = resp.CanonicalID
			session.SyncState = models.SyncStateSynced
			if err = o.sessions.SaveSession(ctx, session); err != nil {
				return models.Session{}, err
			}

			o.reconciler.Register(localID)
			if err = o.reconciler.Resolve(localID, resp.CanonicalID); err != nil {
				log.Warn().Err(err).Str("local_id", localID).Msg("identity resolution rejected")
			}

			log.Info().Str("local_id", localID).Str("canonical_id", resp.CanonicalID).
				Msg("session created online")
			return session, nil
		}

		log.Warn().Err(err).Str("local_id", localID).
			Msg("direct create failed, falling back to offline queue")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return models.Session{}, fmt.Errorf("marshal create payload: %w", err)
	}
	if err = o.sessions.SaveSessionWithQueue(ctx, session, payload); err != nil {
		return models.Session{}, err
	}
	o.reconciler.Register(localID)

	log.Info().Str("local_id", localID).Msg("session queued for sync")
	return session, nil
}

// ListSessions implements SessionService.
func (o *Orchestrator) ListSessions(ctx context.Context) ([]models.Session, error) {
	return o.sessions.ListSessions(ctx)
}

// UploadArtifact implements SessionService. The artifact is uploaded under
// whatever identity the owning session has right now; if that identity is
// still provisional, the linker re-parents the artifact once the session
// resolves.
func (o *Orchestrator) UploadArtifact(ctx context.Context, sessionID, ext string, content io.Reader) (models.Artifact, error) {
	mapping, ok := o.reconciler.Lookup(sessionID)
	if !ok {
		return models.Artifact{}, fmt.Errorf("%w: %q", ErrUnknownSession, sessionID)
	}

	owner := mapping.LocalID
	if mapping.Resolved() {
		owner = mapping.CanonicalID
	}
	ref := fmt.Sprintf("%s_%d.%s", owner, time.Now().UnixMilli(), ext)

	if err := o.server.UploadArtifact(ctx, owner, ref, content); err != nil {
		return models.Artifact{}, err
	}

	return o.linker.Attach(ref)
}

// DrainQueue implements SessionService. FIFO over the live queue; a failed
// entry is skipped, not blocking on. Failures arm a capped exponential
// backoff that gates subsequent drain cycles; a fully clean drain resets
// it. Entries leave the queue only on confirmed server acceptance.
func (o *Orchestrator) DrainQueue(ctx context.Context) error {
	log := o.logger.With().Str("func", "Orchestrator.DrainQueue").Logger()

	o.drainMu.Lock()
	if o.draining {
		o.drainMu.Unlock()
		log.Debug().Msg("drain already in progress, suppressed")
		return nil
	}
	if !o.nextDrainAt.IsZero() && time.Now().Before(o.nextDrainAt) {
		next := o.nextDrainAt
		o.drainMu.Unlock()
		log.Debug().Time("next_drain_at", next).Msg("drain backoff active, skipped")
		return nil
	}
	o.draining = true
	o.drainMu.Unlock()

	defer func() {
		o.drainMu.Lock()
		o.draining = false
		o.drainMu.Unlock()
	}()

	entries, err := o.queue.ListEntries(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		o.resetBackoff()
		return nil
	}

	failed := 0
	abandoned := false
	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return err
		}
		if o.loggedOut.Load() {
			abandoned = true
			log.Info().Int("remaining", len(entries)-failed).Msg("drain abandoned, logged out")
			break
		}

		if err = o.drainEntry(ctx, entry); err != nil {
			failed++
			log.Warn().Err(err).
				Str("local_id", entry.LocalID).
				Int64("attempts", entry.Attempts+1).
				Msg("queue entry failed, continuing with next")
		}
	}

	if failed == 0 && !abandoned {
		o.resetBackoff()
		log.Info().Int("drained", len(entries)).Msg("queue drained clean")
		return nil
	}

	o.armBackoff()
	return nil
}

func (o *Orchestrator) drainEntry(ctx context.Context, entry models.SyncQueueEntry) error {
	var req models.CreateSessionRequest
	if err := json.Unmarshal(entry.Payload, &req); err != nil {
		// poisoned payload: keep the entry for inspection, count the attempt
		_ = o.queue.BumpAttempt(ctx, entry.LocalID, time.Now())
		return fmt.Errorf("unmarshal queue payload: %w", err)
	}

	if err := o.sessions.UpdateSyncState(ctx, entry.LocalID, models.SyncStateSyncing); err != nil {
		return err
	}

	resp, err := o.server.CreateSession(ctx, req)
	if err != nil {
		if bumpErr := o.queue.BumpAttempt(ctx, entry.LocalID, time.Now()); bumpErr != nil {
			o.logger.Error().Err(bumpErr).Str("local_id", entry.LocalID).
				Str("func", "Orchestrator.drainEntry").
				Msg("failed to record attempt")
		}
		_ = o.sessions.UpdateSyncState(ctx, entry.LocalID, models.SyncStateFailed)
		return err
	}

	if err = o.reconciler.Resolve(entry.LocalID, resp.CanonicalID); err != nil &&
		!errors.Is(err, reconcile.ErrConflict) {
		return err
	}

	// removal strictly after confirmed acceptance, same transaction as the
	// canonical id write
	return o.sessions.MarkSyncedAndDequeue(ctx, entry.LocalID, resp.CanonicalID)
}

func (o *Orchestrator) resetBackoff() {
	o.drainMu.Lock()
	o.backoff = nil
	o.nextDrainAt = time.Time{}
	o.drainMu.Unlock()
}

func (o *Orchestrator) armBackoff() {
	o.drainMu.Lock()
	if o.backoff == nil {
		o.backoff = retry.WithCappedDuration(drainBackoffCap, retry.NewExponential(drainBackoffBase))
	}
	delay, _ := o.backoff.Next()
	o.nextDrainAt = time.Now().Add(delay)
	o.drainMu.Unlock()

	o.logger.Debug().
		Str("func", "Orchestrator.armBackoff").
		Dur("delay", delay).
		Msg("drain backoff armed")
}

// mintLocalID returns the current unix-ms as a string, bumped past the last
// minted value when two creations land in the same millisecond.
func (o *Orchestrator) mintLocalID(now time.Time) string {
	o.idMu.Lock()
	defer o.idMu.Unlock()

	id := now.UnixMilli()
	if id <= o.lastID {
		id = o.lastID + 1
	}
	o.lastID = id
	return strconv.FormatInt(id, 10)
}

func createRequest(session models.Session) models.CreateSessionRequest {
	return models.CreateSessionRequest{
		LocalID:   session.LocalID,
		StartedAt: session.StartedAt,
		EndedAt:   session.EndedAt,
		Tags:      session.Tags,
		Rating:    session.Rating,
		Notes:     session.Notes,
	}
}
