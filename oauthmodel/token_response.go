package oauthmodel

import "github.com/jrsteele09/go-reader-client/session"

// GrantType represents the OAuth 2.0 grant type sent to the token endpoint.
type GrantType string

const (
	// PasswordGrant exchanges a username and password for tokens.
	// Token request includes: username, password, grant_type=password (form encoded)
	PasswordGrant GrantType = "password"

	// RefreshTokenGrant names the refresh exchange. The backend takes it as JSON on its own
	// endpoint rather than as a grant on the token endpoint.
	RefreshTokenGrant GrantType = "refresh_token"
)

// BearerTokenType is the only token type the backend issues.
const BearerTokenType = "bearer"

// TokenResponse is returned by the login endpoint.
type TokenResponse struct {
	// AccessToken is sent as "Authorization: Bearer <access_token>". Short-lived.
	AccessToken string `json:"access_token"`

	// TokenType is always "bearer".
	TokenType string `json:"token_type,omitempty"`

	// RefreshToken is exchanged at the refresh endpoint for a new pair.
	RefreshToken string `json:"refresh_token"`
}

// Session converts the response into the persisted pair.
func (t TokenResponse) Session() session.Session {
	return session.Session{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
}

// RefreshRequest is the JSON body of the refresh endpoint.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse carries the rotated pair.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Session converts the response into the persisted pair.
func (r RefreshResponse) Session() session.Session {
	return session.Session{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}
