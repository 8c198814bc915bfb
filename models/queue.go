package models

import "time"

// SyncQueueEntry is one pending offline-created or offline-updated session
// awaiting delivery to the server. At most one live entry exists per
// LocalID; the entry is removed only after confirmed server acceptance.
type SyncQueueEntry struct {
	LocalID       string     `json:"local_id"`
	Payload       []byte     `json:"payload"`
	Attempts      int64      `json:"attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
