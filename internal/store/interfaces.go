package store

import (
	"context"
	"time"

	"github.com/woodshedapp/woodshed/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// SessionRepository is the local repository for practice sessions and the
// session-side of the sync queue. Writes that change a session's queue
// relevance happen in the same transaction as the queue write, so there is
// never a window where a record exists unqueued or a queue entry points at
// a missing record.
type SessionRepository interface {
	// SaveSession upserts a session by local id.
	SaveSession(ctx context.Context, session models.Session) error

	// SaveSessionWithQueue upserts a session and its queue entry (holding
	// the serialized create payload) in one transaction.
	SaveSessionWithQueue(ctx context.Context, session models.Session, payload []byte) error

	// GetSession loads a session by local id.
	// Returns ErrSessionNotFound if no row matches.
	GetSession(ctx context.Context, localID string) (models.Session, error)

	// ListSessions returns all sessions ordered by creation time.
	ListSessions(ctx context.Context) ([]models.Session, error)

	// UpdateSyncState sets the sync state of a session.
	UpdateSyncState(ctx context.Context, localID string, state models.SyncState) error

	// MarkSyncedAndDequeue records server acceptance: sets the canonical id
	// and the synced state and removes the live queue entry, all in one
	// transaction. Setting the same canonical id twice is a no-op; the
	// canonical id is never overwritten with a different value here.
	MarkSyncedAndDequeue(ctx context.Context, localID, canonicalID string) error
}

// QueueRepository is the local repository for pending sync queue entries.
type QueueRepository interface {
	// ListEntries returns live queue entries in FIFO order by original
	// creation time.
	ListEntries(ctx context.Context) ([]models.SyncQueueEntry, error)

	// BumpAttempt increments the attempt counter and stamps the last
	// attempt time for the given entry.
	BumpAttempt(ctx context.Context, localID string, at time.Time) error

	// RemoveEntry deletes the queue entry for the given local id.
	// Returns ErrQueueEntryNotFound if no live entry exists.
	RemoveEntry(ctx context.Context, localID string) error
}
