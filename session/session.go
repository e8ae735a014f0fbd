package session

import (
	"context"

	apperrors "github.com/jrsteele09/go-reader-client/internal/errors"
)

// Keys under which the tokens are persisted by key-value backends.
const (
	AccessTokenKey  = "token"
	RefreshTokenKey = "refreshToken"
)

// Session holds the credentials of the signed in user.
// Either both tokens are set (authenticated) or neither is.
type Session struct {
	AccessToken  string `json:"token,omitempty"`        // Short-lived bearer credential
	RefreshToken string `json:"refreshToken,omitempty"` // Used only to mint a new access token
}

// IsAuthenticated reports whether both tokens are present.
func (s Session) IsAuthenticated() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// IsEmpty reports whether neither token is present.
func (s Session) IsEmpty() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// Validate rejects a session that holds only one of the two tokens.
func (s Session) Validate() error {
	if s.IsAuthenticated() || s.IsEmpty() {
		return nil
	}
	return apperrors.ErrIncompleteSession
}

// Store is the durable, process-wide home of the Session.
//
// Get never blocks on a failing backend: read errors are logged and reported as an empty
// session. Set replaces both tokens in one step, so a concurrent Get observes either the old
// pair or the new one. Clear is idempotent.
type Store interface {
	Get(ctx context.Context) Session
	Set(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}
