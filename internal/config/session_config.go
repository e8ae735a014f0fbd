package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

type SessionBackend string

const (
	FileBackend   SessionBackend = "file"
	RedisBackend  SessionBackend = "redis"
	MemoryBackend SessionBackend = "memory"
)

type SessionConfig interface {
	GetSessionBackend() SessionBackend
	GetSessionFile() string
	GetSessionKey() string
	GetSessionTTL() time.Duration
	GetRedisURL() string
	GetRedisKeyPrefix() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionBackend() SessionBackend {
	switch b := SessionBackend(strings.ToLower(GetEnv("SESSION_BACKEND", string(FileBackend)))); b {
	case RedisBackend, MemoryBackend:
		return b
	default:
		return FileBackend
	}
}

func (Session) GetSessionFile() string {
	if path := GetEnv("SESSION_FILE", ""); path != "" {
		return path
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "session.json"
	}
	return filepath.Join(dir, "reader", "session.json")
}

// GetSessionKey returns the secret used to encrypt the session file. Empty stores it in plain JSON.
func (Session) GetSessionKey() string {
	return GetEnv("SESSION_KEY", "")
}

// GetSessionTTL is applied to redis keys. Zero keeps them until cleared.
func (Session) GetSessionTTL() time.Duration {
	return GetEnvAsDuration("SESSION_TTL", 0)
}

func (Session) GetRedisURL() string {
	return GetEnv("REDIS_URL", "redis://localhost:6379/0")
}

func (Session) GetRedisKeyPrefix() string {
	return GetEnv("REDIS_KEY_PREFIX", "reader:")
}
