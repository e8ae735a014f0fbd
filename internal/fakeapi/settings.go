package fakeapi

import (
	"time"

	"github.com/jrsteele09/go-reader-client/internal/config"
)

// Settings is a fixed config.ServerConfig for tests and embedding. Zero durations and
// lengths fall back to the token manager's defaults.
type Settings struct {
	Port               string
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	RefreshTokenLength int
}

var _ config.ServerConfig = Settings{}

func (s Settings) GetPort() string                      { return s.Port }
func (s Settings) GetJWTSecret() string                 { return s.JWTSecret }
func (s Settings) GetAccessTokenExpiry() time.Duration  { return s.AccessTokenExpiry }
func (s Settings) GetRefreshTokenExpiry() time.Duration { return s.RefreshTokenExpiry }
func (s Settings) GetRefreshTokenLength() int           { return s.RefreshTokenLength }
