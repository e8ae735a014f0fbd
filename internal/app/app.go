// Package app wires the session store, the authenticated transport and the services on top
// of it from configuration.
package app

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-reader-client/apiclient"
	"github.com/jrsteele09/go-reader-client/auth"
	"github.com/jrsteele09/go-reader-client/content"
	"github.com/jrsteele09/go-reader-client/internal/config"
	"github.com/jrsteele09/go-reader-client/internal/metrics"
	"github.com/jrsteele09/go-reader-client/refresh"
	"github.com/jrsteele09/go-reader-client/session"
	"github.com/jrsteele09/go-reader-client/session/redisstore"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

type App struct {
	Store       session.Store
	Logout      *session.LogoutSignal
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry
	Coordinator *refresh.Coordinator
	Auth        *auth.Service
	Content     *content.Service

	closers []func() error
}

type options struct {
	store         session.Store
	registry      *prometheus.Registry
	baseTransport http.RoundTripper
}

type Option func(*options)

// WithStore uses store instead of building one from the session configuration.
func WithStore(store session.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRegistry registers the metrics with registry instead of a new one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithBaseTransport sets the RoundTripper underneath both the auth and the content clients.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.baseTransport = rt
	}
}

func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("[app.New] config is required")
	}
	o := &options{baseTransport: http.DefaultTransport}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Logout: &session.LogoutSignal{}}

	a.Store = o.store
	if a.Store == nil {
		store, closer, err := NewStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.Store = store
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}

	a.Registry = o.registry
	if a.Registry == nil {
		a.Registry = prometheus.NewRegistry()
	}
	a.Metrics = metrics.New(a.Registry)

	// The auth endpoints bypass the authenticated transport so a rejected refresh cannot
	// trigger another refresh.
	authAPI := auth.NewAPI(cfg.GetAPIURL(), &http.Client{
		Transport: o.baseTransport,
		Timeout:   cfg.GetRequestTimeout(),
	})

	coordinator, err := refresh.NewCoordinator(a.Store, authAPI, a.Logout,
		refresh.WithMetrics(a.Metrics),
		refresh.WithTimeout(cfg.GetRefreshTimeout()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[app.New] coordinator")
	}
	a.Coordinator = coordinator

	transport, err := apiclient.NewTransport(a.Store, coordinator,
		apiclient.WithBase(o.baseTransport),
		apiclient.WithMetrics(a.Metrics),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[app.New] transport")
	}

	// Client.Timeout covers the first attempt, the refresh wait and the retry together.
	client, err := apiclient.NewClient(cfg.GetAPIURL(), &http.Client{
		Transport: transport,
		Timeout:   cfg.GetRequestTimeout(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "[app.New] api client")
	}

	if a.Auth, err = auth.NewService(authAPI, a.Store, coordinator); err != nil {
		return nil, errors.Wrap(err, "[app.New] auth service")
	}
	if a.Content, err = content.NewService(client); err != nil {
		return nil, errors.Wrap(err, "[app.New] content service")
	}
	return a, nil
}

// NewStore builds the session store named by the configuration. The returned closer, if
// any, releases the backend's connections.
func NewStore(ctx context.Context, cfg config.SessionConfig) (session.Store, func() error, error) {
	switch cfg.GetSessionBackend() {
	case config.MemoryBackend:
		log.Warn().Msg("Using in-memory session store; the session will not survive a restart")
		return session.NewInMemoryStore(), nil, nil

	case config.RedisBackend:
		store, err := redisstore.NewFromURL(ctx, cfg.GetRedisURL(),
			redisstore.WithKeyPrefix(cfg.GetRedisKeyPrefix()),
			redisstore.WithTTL(cfg.GetSessionTTL()),
		)
		if err != nil {
			return nil, nil, errors.Wrap(err, "[app.NewStore] redis")
		}
		return store, store.Close, nil

	default:
		var fileOptions []session.FileStoreOption
		if key := cfg.GetSessionKey(); key != "" {
			fileOptions = append(fileOptions, session.WithSecret(key))
		}
		store, err := session.NewFileStore(cfg.GetSessionFile(), fileOptions...)
		if err != nil {
			return nil, nil, errors.Wrap(err, "[app.NewStore] file")
		}
		return store, nil, nil
	}
}

// Close releases the session backend.
func (a *App) Close() error {
	var firstErr error
	for _, closer := range a.closers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
