package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoCanonicalID is returned by NormalizeCreateSessionResponse when no
// recognised identifier field is present in the server response.
var ErrNoCanonicalID = errors.New("create session response carries no canonical id")

// CreateSessionRequest is the outbound payload for the session-create
// endpoint. LocalID is always included so the server can deduplicate a
// replayed create (idempotency after a crash between server acceptance and
// local confirmation).
type CreateSessionRequest struct {
	LocalID   string    `json:"localId"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Tags      string    `json:"tags"`
	Rating    int64     `json:"rating"`
	Notes     string    `json:"notes"`
}

// CreateSessionResponse is the canonical internal shape of a successful
// session create. Nothing past the adapter boundary ever sees the raw
// server shape.
type CreateSessionResponse struct {
	CanonicalID string `json:"canonicalId"`
}

// RefreshRequest is the outbound payload for the token refresh endpoint.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse is the canonical internal shape of a refresh result.
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginRequest is the outbound payload for login and register.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Known spellings of the canonical session identifier across server
// versions. Older deployments answered with snake_case, newer ones with
// camelCase, and one intermediate build returned a bare "id".
var canonicalIDAliases = []string{"canonicalId", "canonical_id", "sessionId", "session_id", "id", "Id", "ID"}

var tokenAliases = map[string][]string{
	"access":  {"accessToken", "access_token", "token"},
	"refresh": {"refreshToken", "refresh_token"},
}

// NormalizeCreateSessionResponse is the single conversion point between
// every external response shape and the internal one. The server has
// historically returned the assigned identifier under more than one key
// and casing; all of that branching lives here and nowhere else.
func NormalizeCreateSessionResponse(body []byte) (CreateSessionResponse, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return CreateSessionResponse{}, fmt.Errorf("decode create session response: %w", err)
	}

	id := firstString(raw, canonicalIDAliases)
	if id == "" {
		return CreateSessionResponse{}, ErrNoCanonicalID
	}

	return CreateSessionResponse{CanonicalID: id}, nil
}

// NormalizeRefreshResponse maps every known refresh-response shape to the
// internal RefreshResponse.
func NormalizeRefreshResponse(body []byte) (RefreshResponse, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return RefreshResponse{}, fmt.Errorf("decode refresh response: %w", err)
	}

	resp := RefreshResponse{
		AccessToken:  firstString(raw, tokenAliases["access"]),
		RefreshToken: firstString(raw, tokenAliases["refresh"]),
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return RefreshResponse{}, errors.New("refresh response missing token pair")
	}

	return resp, nil
}

func firstString(raw map[string]json.RawMessage, keys []string) string {
	for _, key := range keys {
		msg, ok := raw[key]
		if !ok {
			continue
		}

		var s string
		if err := json.Unmarshal(msg, &s); err == nil && s != "" {
			return s
		}

		// Some server builds send numeric ids; stringify them.
		var n json.Number
		if err := json.Unmarshal(msg, &n); err == nil && n.String() != "" {
			return n.String()
		}
	}
	return ""
}
