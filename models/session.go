package models

import "time"

// SyncState describes where a locally known practice session stands in
// relation to the server.
type SyncState string

const (
	// SyncStateLocal marks a session that exists only on this device.
	SyncStateLocal SyncState = "local"

	// SyncStateSyncing marks a session whose upload is currently in flight.
	SyncStateSyncing SyncState = "syncing"

	// SyncStateSynced marks a session the server has accepted. A synced
	// session never regresses to local.
	SyncStateSynced SyncState = "synced"

	// SyncStateFailed marks a session whose last upload attempt failed.
	// The session stays queued and is retried on the next drain.
	SyncStateFailed SyncState = "sync_failed"
)

// Session is a single timed practice session together with its
// synchronization metadata.
//
// LocalID is minted on the device from the creation timestamp, is never
// reused and never changes. CanonicalID is assigned by the server, at most
// once; it is empty until then and never reverts to empty.
type Session struct {
	LocalID     string    `json:"local_id"`
	CanonicalID string    `json:"canonical_id,omitempty"`
	SyncState   SyncState `json:"sync_state"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Tags      string    `json:"tags"`
	Rating    int64     `json:"rating"`
	Notes     string    `json:"notes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionDraft is the user-supplied part of a session, before any
// synchronization metadata exists.
type SessionDraft struct {
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Tags      string    `json:"tags"`
	Rating    int64     `json:"rating"`
	Notes     string    `json:"notes"`
}

// Synced reports whether the server has accepted this session.
func (s *Session) Synced() bool {
	return s.SyncState == SyncStateSynced && s.CanonicalID != ""
}

// ID returns the canonical id when one exists, otherwise the local id.
// Callers that address a session by "whichever id it currently has"
// should use this instead of picking a field themselves.
func (s *Session) ID() string {
	if s.CanonicalID != "" {
		return s.CanonicalID
	}
	return s.LocalID
}
