package config

import (
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	ServerConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetMetricsAddr() string
}

type mainConfig struct {
	EnvVars
	API
	Session
	Server
}

var loadDotEnv sync.Once

// New loads a .env file from the working directory, if present, and returns a Config
// backed by environment variables. Variables already set in the environment win.
func New() Config {
	loadDotEnv.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Debug().Msg("No .env file found")
		}
	})
	return mainConfig{}
}

// NewFromFile loads the given env files before returning the Config.
func NewFromFile(filenames ...string) (Config, error) {
	if err := godotenv.Load(filenames...); err != nil {
		return nil, err
	}
	return mainConfig{}, nil
}
