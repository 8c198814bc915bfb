package models

// IdentityMapping associates a locally-minted provisional session id with
// the canonical id the server eventually assigns for the same record.
//
// CanonicalID stays empty until the server accepts the record. Conflict is
// set when the server later reports a different canonical id for a local
// id that already resolved; the original canonical id stays authoritative
// and the record is flagged for manual reconciliation.
type IdentityMapping struct {
	LocalID     string `json:"local_id"`
	CanonicalID string `json:"canonical_id,omitempty"`
	Conflict    bool   `json:"conflict,omitempty"`
}

// Resolved reports whether a canonical id has been assigned.
func (m IdentityMapping) Resolved() bool {
	return m.CanonicalID != ""
}
