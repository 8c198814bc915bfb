package bus

import "github.com/woodshedapp/woodshed/models"

// TokenUpdated is published after a successful token refresh or login.
// Carries the freshly stored pair.
type TokenUpdated struct {
	Pair models.TokenPair
}

// EventName implements Event.
func (TokenUpdated) EventName() string { return "token_updated" }

// LoggedOut is published when the credential manager gives up on the current
// session: the refresh token was rejected, the refresh timed out, or the
// user logged out explicitly. Credentials are already cleared by the time
// subscribers run.
type LoggedOut struct {
	Reason string
}

// EventName implements Event.
func (LoggedOut) EventName() string { return "logged_out" }
