package refresh

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-reader-client/internal/errors"
	"github.com/jrsteele09/go-reader-client/internal/metrics"
	"github.com/jrsteele09/go-reader-client/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// singleflight key; there is only ever one session to refresh.
const refreshKey = "session"

const defaultTimeout = 30 * time.Second

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (session.Session, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (session.Session, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (session.Session, error) {
	return f(ctx, refreshToken)
}

// Coordinator owns the refresh-in-progress slot. Concurrent callers share one refresh and its
// outcome; when a refresh is impossible or fails the session is torn down exactly once.
//
// Every teardown bumps a generation counter. A refresh only writes its result while the
// generation it started under is current and the store still holds the session it refreshed,
// so a logout that lands mid-refresh stays a logout.
type Coordinator struct {
	store     session.Store
	refresher Refresher
	logout    *session.LogoutSignal
	metrics   *metrics.Metrics
	timeout   time.Duration
	group     singleflight.Group

	mu         sync.Mutex // guards generation and every store write made by the coordinator
	generation uint64
}

type Option func(*Coordinator)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithTimeout bounds the shared refresh call. It is not tied to any single caller.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func NewCoordinator(store session.Store, refresher Refresher, logout *session.LogoutSignal, options ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("[NewCoordinator] store is required")
	}
	if refresher == nil {
		return nil, errors.New("[NewCoordinator] refresher is required")
	}
	if logout == nil {
		logout = &session.LogoutSignal{}
	}
	c := &Coordinator{
		store:     store,
		refresher: refresher,
		logout:    logout,
		timeout:   defaultTimeout,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Refresh returns a session newer than staleAccessToken, the token a request was rejected with.
//
// If another caller already rotated the stored session, that session is returned without a
// network call. Otherwise a refresh is started, or joined if one is in flight. Cancelling ctx
// only stops this caller's wait.
//
// A failed refresh returns an error matching ErrRefreshFailed; the session it started from has ended by then.
func (c *Coordinator) Refresh(ctx context.Context, staleAccessToken string) (session.Session, error) {
	shared := context.WithoutCancel(ctx)
	// Only the caller whose function runs leads; res.Shared is also set for the leader.
	led := false
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		led = true
		return c.refresh(shared, staleAccessToken)
	})

	select {
	case <-ctx.Done():
		return session.Session{}, ctx.Err()
	case res := <-ch:
		if res.Shared && !led {
			c.metrics.Coalesced()
		}
		if res.Err != nil {
			return session.Session{}, res.Err
		}
		return res.Val.(session.Session), nil
	}
}

func (c *Coordinator) refresh(ctx context.Context, staleAccessToken string) (session.Session, error) {
	c.mu.Lock()
	gen := c.generation
	current := c.store.Get(ctx)
	c.mu.Unlock()

	if current.IsAuthenticated() && current.AccessToken != staleAccessToken {
		log.Debug().Msg("Session already rotated, skipping refresh")
		return current, nil
	}

	if current.RefreshToken == "" {
		return session.Session{}, c.fail(ctx, gen, current, session.ReasonNoRefreshToken, apperrors.ErrNoRefreshToken)
	}

	c.metrics.RefreshStarted()
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	next, err := c.refresher.Refresh(callCtx, current.RefreshToken)
	if err == nil && !next.IsAuthenticated() {
		err = apperrors.Wrapf(apperrors.ErrInvalidToken, "refresh response is missing a token")
	}
	if err != nil {
		log.Err(err).Msg("Session refresh failed")
		c.metrics.RefreshFailed()
		return session.Session{}, c.fail(ctx, gen, current, session.ReasonRefreshFailed, err)
	}

	c.mu.Lock()
	if !c.holdsLocked(ctx, gen, current) {
		c.mu.Unlock()
		log.Info().Msg("Session ended during refresh, discarding refreshed tokens")
		return session.Session{}, apperrors.Join(apperrors.ErrRefreshFailed, apperrors.ErrNoSession)
	}
	err = c.store.Set(ctx, next)
	c.mu.Unlock()
	if err != nil {
		// The old refresh token is spent, so a session we cannot persist is unrecoverable.
		log.Err(err).Msg("Failed to persist refreshed session")
		c.metrics.RefreshFailed()
		return session.Session{}, c.fail(ctx, gen, current, session.ReasonRefreshFailed, err)
	}

	log.Info().Msg("Session refreshed")
	return next, nil
}

// holdsLocked reports whether the session a refresh started from is still the live one.
func (c *Coordinator) holdsLocked(ctx context.Context, gen uint64, current session.Session) bool {
	return c.generation == gen && c.store.Get(ctx) == current
}

// fail tears down the session a refresh started from and returns the refresh error. When the
// session already ended, or was replaced by a new login, nothing is cleared or signalled.
// The logout signal only fires when the torn down session still held a credential, so callers
// arriving after an earlier teardown stay quiet.
func (c *Coordinator) fail(ctx context.Context, gen uint64, current session.Session, reason session.LogoutReason, cause error) error {
	failure := apperrors.Join(apperrors.ErrRefreshFailed, cause)

	c.mu.Lock()
	if !c.holdsLocked(ctx, gen, current) {
		c.mu.Unlock()
		log.Debug().Msg("Session ended during refresh, skipping teardown")
		return failure
	}
	c.generation++
	_ = session.Teardown(ctx, c.store, nil, reason)
	c.mu.Unlock()

	if !current.IsEmpty() {
		c.metrics.LoggedOut(string(reason))
		c.logout.Emit(reason)
	}
	return failure
}

// EndSession clears the stored session and emits the logout signal with reason. A refresh in
// flight when the session ends discards its result.
func (c *Coordinator) EndSession(ctx context.Context, reason session.LogoutReason) error {
	c.mu.Lock()
	c.generation++
	err := session.Teardown(ctx, c.store, nil, reason)
	c.mu.Unlock()

	c.metrics.LoggedOut(string(reason))
	c.logout.Emit(reason)
	return err
}

// Logout returns the signal fired when the coordinator ends a session.
func (c *Coordinator) Logout() *session.LogoutSignal {
	return c.logout
}
