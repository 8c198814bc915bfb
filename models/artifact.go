package models

import "time"

// Artifact is the record of an uploaded binary (typically a recorded
// practice clip). OwnerID holds whatever session identifier was known to
// the uploader at upload time: a provisional local id if the session had
// not synced yet, otherwise the canonical id. Once the owner is resolved
// to a canonical id the artifact is never re-parented again.
type Artifact struct {
	Ref       string    `json:"ref"`
	OwnerID   string    `json:"owner_id"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
}
