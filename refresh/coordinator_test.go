package refresh_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-reader-client/internal/errors"
	"github.com/jrsteele09/go-reader-client/internal/metrics"
	"github.com/jrsteele09/go-reader-client/refresh"
	"github.com/jrsteele09/go-reader-client/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var (
	firstPair  = session.Session{AccessToken: "AT1", RefreshToken: "RT1"}
	secondPair = session.Session{AccessToken: "AT2", RefreshToken: "RT2"}
)

// gatedRefresher blocks every call until release is closed and counts the calls it served.
type gatedRefresher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	result  session.Session
	err     error
	seen    []string
	mu      sync.Mutex
}

func newGatedRefresher(result session.Session, err error) *gatedRefresher {
	return &gatedRefresher{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
		result:  result,
		err:     err,
	}
}

func (g *gatedRefresher) Refresh(ctx context.Context, refreshToken string) (session.Session, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.seen = append(g.seen, refreshToken)
	g.mu.Unlock()
	g.started <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return session.Session{}, ctx.Err()
	}
	return g.result, g.err
}

type testFixture struct {
	store       *session.InMemoryStore
	logout      *session.LogoutSignal
	logouts     atomic.Int32
	metrics     *metrics.Metrics
	coordinator *refresh.Coordinator
}

func setupTestFixture(t *testing.T, refresher refresh.Refresher, initial session.Session) *testFixture {
	t.Helper()
	f := &testFixture{
		store:   session.NewInMemoryStore(initial),
		logout:  &session.LogoutSignal{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.logout.Subscribe(func(session.LogoutReason) { f.logouts.Add(1) })

	c, err := refresh.NewCoordinator(f.store, refresher, f.logout, refresh.WithMetrics(f.metrics), refresh.WithTimeout(5*time.Second))
	require.NoError(t, err)
	f.coordinator = c
	return f
}

// refreshConcurrently starts n callers, waits until the first refresh call is in flight and
// every caller has had a chance to join, then releases the refresher.
func refreshConcurrently(t *testing.T, f *testFixture, g *gatedRefresher, n int) ([]session.Session, []error) {
	t.Helper()
	results := make([]session.Session, n)
	errs := make([]error, n)

	var ready, done sync.WaitGroup
	ready.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			ready.Done()
			results[i], errs[i] = f.coordinator.Refresh(context.Background(), "AT1")
		}(i)
	}
	ready.Wait()
	<-g.started
	time.Sleep(20 * time.Millisecond)
	close(g.release)
	done.Wait()
	return results, errs
}

func TestNewCoordinatorRequiresDependencies(t *testing.T) {
	_, err := refresh.NewCoordinator(nil, newGatedRefresher(secondPair, nil), nil)
	require.Error(t, err)
	_, err = refresh.NewCoordinator(session.NewInMemoryStore(), nil, nil)
	require.Error(t, err)
}

func TestConcurrentFailuresShareOneRefresh(t *testing.T) {
	const n = 8
	g := newGatedRefresher(secondPair, nil)
	f := setupTestFixture(t, g, firstPair)

	results, errs := refreshConcurrently(t, f, g, n)

	require.Equal(t, int32(1), g.calls.Load())
	require.Equal(t, []string{"RT1"}, g.seen)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, secondPair, results[i])
	}
	require.Equal(t, secondPair, f.store.Get(context.Background()))
	require.Zero(t, f.logouts.Load())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RefreshAttempts))
	require.Equal(t, float64(n-1), testutil.ToFloat64(f.metrics.RefreshCoalesced))
}

func TestConcurrentFailuresShareOneTeardown(t *testing.T) {
	const n = 8
	g := newGatedRefresher(session.Session{}, errors.New("refresh token expired"))
	f := setupTestFixture(t, g, firstPair)

	_, errs := refreshConcurrently(t, f, g, n)

	require.Equal(t, int32(1), g.calls.Load())
	for i := 0; i < n; i++ {
		require.ErrorIs(t, errs[i], apperrors.ErrRefreshFailed)
	}
	require.True(t, f.store.Get(context.Background()).IsEmpty())
	require.Equal(t, int32(1), f.logouts.Load())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RefreshFailures))
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Logouts.WithLabelValues(string(session.ReasonRefreshFailed))))
}

func TestLateCallerAfterSuccessReusesRotatedSession(t *testing.T) {
	g := newGatedRefresher(secondPair, nil)
	close(g.release)
	f := setupTestFixture(t, g, firstPair)

	got, err := f.coordinator.Refresh(context.Background(), "AT1")
	require.NoError(t, err)
	require.Equal(t, secondPair, got)

	// A request that was also rejected with AT1 arrives after the slot settled.
	got, err = f.coordinator.Refresh(context.Background(), "AT1")
	require.NoError(t, err)
	require.Equal(t, secondPair, got)
	require.Equal(t, int32(1), g.calls.Load())
}

func TestLateCallerAfterFailureDoesNotSignalAgain(t *testing.T) {
	g := newGatedRefresher(session.Session{}, errors.New("invalid refresh token"))
	close(g.release)
	f := setupTestFixture(t, g, firstPair)

	_, err := f.coordinator.Refresh(context.Background(), "AT1")
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)

	_, err = f.coordinator.Refresh(context.Background(), "AT1")
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	require.ErrorIs(t, err, apperrors.ErrNoRefreshToken)

	require.Equal(t, int32(1), g.calls.Load())
	require.Equal(t, int32(1), f.logouts.Load())
}

func TestNoRefreshTokenFailsWithoutNetworkCall(t *testing.T) {
	g := newGatedRefresher(secondPair, nil)
	f := setupTestFixture(t, g, session.Session{})

	_, err := f.coordinator.Refresh(context.Background(), "")
	require.ErrorIs(t, err, apperrors.ErrNoRefreshToken)
	require.Zero(t, g.calls.Load())
	require.Zero(t, f.logouts.Load())
}

func TestIncompleteRefreshResponseEndsSession(t *testing.T) {
	g := newGatedRefresher(session.Session{AccessToken: "AT2"}, nil)
	close(g.release)
	f := setupTestFixture(t, g, firstPair)

	_, err := f.coordinator.Refresh(context.Background(), "AT1")
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	require.True(t, f.store.Get(context.Background()).IsEmpty())
	require.Equal(t, int32(1), f.logouts.Load())
}

func TestCancelledCallerDoesNotCancelSharedRefresh(t *testing.T) {
	g := newGatedRefresher(secondPair, nil)
	f := setupTestFixture(t, g, firstPair)

	ctx, cancel := context.WithCancel(context.Background())
	abandoned := make(chan error, 1)
	go func() {
		_, err := f.coordinator.Refresh(ctx, "AT1")
		abandoned <- err
	}()
	<-g.started

	type outcome struct {
		s   session.Session
		err error
	}
	waiter := make(chan outcome, 1)
	go func() {
		s, err := f.coordinator.Refresh(context.Background(), "AT1")
		waiter <- outcome{s, err}
	}()

	cancel()
	require.ErrorIs(t, <-abandoned, context.Canceled)

	close(g.release)
	got := <-waiter
	require.NoError(t, got.err)
	require.Equal(t, secondPair, got.s)
	require.Equal(t, secondPair, f.store.Get(context.Background()))
	require.Equal(t, int32(1), g.calls.Load())
}

func TestSingleCallerIsNotCountedAsCoalesced(t *testing.T) {
	g := newGatedRefresher(secondPair, nil)
	close(g.release)
	f := setupTestFixture(t, g, firstPair)

	_, err := f.coordinator.Refresh(context.Background(), "AT1")
	require.NoError(t, err)
	require.Zero(t, testutil.ToFloat64(f.metrics.RefreshCoalesced))
}

// startRefresh runs one Refresh in the background and returns once the refresher was called.
func startRefresh(f *testFixture, g *gatedRefresher) <-chan error {
	done := make(chan error, 1)
	go func() {
		_, err := f.coordinator.Refresh(context.Background(), "AT1")
		done <- err
	}()
	<-g.started
	return done
}

func TestEndSessionDuringRefreshIsNotUndone(t *testing.T) {
	ctx := context.Background()
	g := newGatedRefresher(secondPair, nil)
	f := setupTestFixture(t, g, firstPair)

	done := startRefresh(f, g)
	require.NoError(t, f.coordinator.EndSession(ctx, session.ReasonUserLogout))
	close(g.release)

	err := <-done
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	require.ErrorIs(t, err, apperrors.ErrNoSession)
	require.True(t, f.store.Get(ctx).IsEmpty())
	require.Equal(t, int32(1), f.logouts.Load())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Logouts.WithLabelValues(string(session.ReasonUserLogout))))
}

func TestStoreTeardownDuringRefreshIsNotUndone(t *testing.T) {
	ctx := context.Background()
	g := newGatedRefresher(secondPair, nil)
	f := setupTestFixture(t, g, firstPair)

	done := startRefresh(f, g)
	require.NoError(t, session.Teardown(ctx, f.store, f.logout, session.ReasonUserLogout))
	close(g.release)

	require.ErrorIs(t, <-done, apperrors.ErrRefreshFailed)
	require.True(t, f.store.Get(ctx).IsEmpty())
	require.Equal(t, int32(1), f.logouts.Load())
}

func TestLoginDuringRefreshKeepsNewSession(t *testing.T) {
	ctx := context.Background()
	g := newGatedRefresher(session.Session{}, errors.New("refresh token expired"))
	f := setupTestFixture(t, g, firstPair)
	fresh := session.Session{AccessToken: "AT9", RefreshToken: "RT9"}

	done := startRefresh(f, g)
	require.NoError(t, f.coordinator.EndSession(ctx, session.ReasonUserLogout))
	require.NoError(t, f.store.Set(ctx, fresh))
	close(g.release)

	require.ErrorIs(t, <-done, apperrors.ErrRefreshFailed)
	require.Equal(t, fresh, f.store.Get(ctx))
	require.Equal(t, int32(1), f.logouts.Load())
}

func TestRefreshTimeoutEndsSession(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, refresh.RefresherFunc(func(context.Context, string) (session.Session, error) {
		return session.Session{}, context.DeadlineExceeded
	}), firstPair)

	_, err := f.coordinator.Refresh(ctx, "AT1")
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, f.store.Get(ctx).IsEmpty())
	require.Equal(t, int32(1), f.logouts.Load())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RefreshFailures))
}

func TestSlowRefresherIsCutOffByTimeout(t *testing.T) {
	ctx := context.Background()
	g := newGatedRefresher(secondPair, nil)
	store := session.NewInMemoryStore(firstPair)
	logout := &session.LogoutSignal{}
	var logouts atomic.Int32
	logout.Subscribe(func(session.LogoutReason) { logouts.Add(1) })
	c, err := refresh.NewCoordinator(store, g, logout, refresh.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Refresh(ctx, "AT1")
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, store.Get(ctx).IsEmpty())
	require.Equal(t, int32(1), logouts.Load())
}
