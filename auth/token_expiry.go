package auth

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// AccessTokenExpiry reads the exp claim of a JWT access token without verifying it. The client
// never holds the signing key; the server stays the authority on validity. ok is false when
// the token is not a JWT or carries no exp.
func AccessTokenExpiry(rawToken string) (expiry time.Time, ok bool) {
	if strings.TrimSpace(rawToken) == "" {
		return time.Time{}, false
	}

	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
