package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPair is the access/refresh token pair issued by the server.
//
// The pair is always replaced atomically: an access token is never kept
// around once its paired refresh token is known to be invalid. Both values
// are opaque to every component except the credential manager.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Empty reports whether no credentials are held.
func (p TokenPair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// AccessExpiresAt inspects the access token's "exp" claim without verifying
// the signature (the client has no signing key; verification is the
// server's job). Returns the zero time when the token carries no usable
// expiry, in which case the caller should treat the token as live until
// the server says otherwise.
func (p TokenPair) AccessExpiresAt() time.Time {
	if p.AccessToken == "" {
		return time.Time{}
	}

	token, _, err := jwt.NewParser().ParseUnverified(p.AccessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
