package config

import (
	"strings"
	"time"
)

type APIConfig interface {
	GetAPIURL() string
	GetRequestTimeout() time.Duration
	GetRefreshTimeout() time.Duration
}

type API struct{}

var _ APIConfig = API{}

// GetAPIURL returns the backend base URL without a trailing slash.
func (API) GetAPIURL() string {
	return strings.TrimRight(GetEnv("API_URL", "http://localhost:8000"), "/")
}

func (API) GetRequestTimeout() time.Duration {
	return GetEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second)
}

// GetRefreshTimeout bounds a shared refresh call, independent of any single caller.
func (API) GetRefreshTimeout() time.Duration {
	return GetEnvAsDuration("REFRESH_TIMEOUT", 30*time.Second)
}
