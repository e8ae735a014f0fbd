package config

import (
	"fmt"
	"time"
)

// ServerConfig configures the fake backend served by cmd/fakeapi.
type ServerConfig interface {
	GetPort() string
	GetJWTSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshTokenLength() int
}

type Server struct{}

var _ ServerConfig = Server{}

func (Server) GetPort() string {
	port := GetEnv("PORT", "8000")
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (Server) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "dev-secret-change-me")
}

func (Server) GetAccessTokenExpiry() time.Duration {
	return GetEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (Server) GetRefreshTokenExpiry() time.Duration {
	return GetEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour)
}

func (Server) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}
