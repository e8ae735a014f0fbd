package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	apperrors "github.com/jrsteele09/go-reader-client/internal/errors"
	"github.com/jrsteele09/go-reader-client/session"
	"github.com/stretchr/testify/require"
)

var (
	firstPair  = session.Session{AccessToken: "AT1", RefreshToken: "RT1"}
	secondPair = session.Session{AccessToken: "AT2", RefreshToken: "RT2"}
)

// storeFactories lets every behavioural test run against each local backend.
func storeFactories(t *testing.T) map[string]func() session.Store {
	t.Helper()
	return map[string]func() session.Store{
		"memory": func() session.Store { return session.NewInMemoryStore() },
		"file": func() session.Store {
			fs, err := session.NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json"))
			require.NoError(t, err)
			return fs
		},
		"encrypted file": func() session.Store {
			fs, err := session.NewFileStore(filepath.Join(t.TempDir(), "session.bin"), session.WithSecret("device-secret"))
			require.NoError(t, err)
			return fs
		},
	}
}

func TestSessionValidate(t *testing.T) {
	require.NoError(t, session.Session{}.Validate())
	require.NoError(t, firstPair.Validate())
	require.ErrorIs(t, session.Session{AccessToken: "AT"}.Validate(), apperrors.ErrIncompleteSession)
	require.ErrorIs(t, session.Session{RefreshToken: "RT"}.Validate(), apperrors.ErrIncompleteSession)

	require.True(t, firstPair.IsAuthenticated())
	require.True(t, session.Session{}.IsEmpty())
	require.False(t, session.Session{AccessToken: "AT"}.IsAuthenticated())
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			require.True(t, store.Get(ctx).IsEmpty())

			require.NoError(t, store.Set(ctx, firstPair))
			require.Equal(t, firstPair, store.Get(ctx))

			require.NoError(t, store.Set(ctx, secondPair))
			require.Equal(t, secondPair, store.Get(ctx))
		})
	}
}

func TestStoreClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			require.NoError(t, store.Set(ctx, firstPair))

			require.NoError(t, store.Clear(ctx))
			once := store.Get(ctx)
			require.NoError(t, store.Clear(ctx))
			require.Equal(t, once, store.Get(ctx))
			require.True(t, once.IsEmpty())
		})
	}
}

func TestStoreRejectsHalfSession(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			require.NoError(t, store.Set(ctx, firstPair))
			require.ErrorIs(t, store.Set(ctx, session.Session{AccessToken: "AT9"}), apperrors.ErrIncompleteSession)
			require.Equal(t, firstPair, store.Get(ctx))
		})
	}
}

func TestStoreConcurrentReadsNeverMixPairs(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			require.NoError(t, store.Set(ctx, firstPair))

			var wg sync.WaitGroup
			wg.Add(2)
			var setErr error
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					pair := firstPair
					if i%2 == 0 {
						pair = secondPair
					}
					if err := store.Set(ctx, pair); err != nil {
						setErr = err
					}
				}
			}()
			mixed := 0
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					got := store.Get(ctx)
					if got != firstPair && got != secondPair {
						mixed++
					}
				}
			}()
			wg.Wait()
			require.NoError(t, setErr)
			require.Zero(t, mixed)
		})
	}
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	first, err := session.NewFileStore(path, session.WithSecret("k"))
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, firstPair))

	second, err := session.NewFileStore(path, session.WithSecret("k"))
	require.NoError(t, err)
	require.Equal(t, firstPair, second.Get(ctx))
}

func TestFileStoreUnreadableFileIsAbsent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o600))
	fs, err := session.NewFileStore(corrupt)
	require.NoError(t, err)
	require.True(t, fs.Get(ctx).IsEmpty())

	encrypted := filepath.Join(dir, "enc.bin")
	writer, err := session.NewFileStore(encrypted, session.WithSecret("right"))
	require.NoError(t, err)
	require.NoError(t, writer.Set(ctx, firstPair))

	wrongKey, err := session.NewFileStore(encrypted, session.WithSecret("wrong"))
	require.NoError(t, err)
	require.True(t, wrongKey.Get(ctx).IsEmpty())

	noKey, err := session.NewFileStore(encrypted)
	require.NoError(t, err)
	require.True(t, noKey.Get(ctx).IsEmpty())

	raw, err := os.ReadFile(encrypted)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "AT1")
}

func TestLogoutSignal(t *testing.T) {
	var signal session.LogoutSignal
	var got []session.LogoutReason
	unsubscribe := signal.Subscribe(func(r session.LogoutReason) { got = append(got, r) })

	signal.Emit(session.ReasonUserLogout)
	unsubscribe()
	signal.Emit(session.ReasonRefreshFailed)

	require.Equal(t, []session.LogoutReason{session.ReasonUserLogout}, got)
}

type failingClearStore struct{ session.Store }

func (failingClearStore) Clear(context.Context) error { return errors.New("disk full") }

func TestTeardownSignalsEvenWhenClearFails(t *testing.T) {
	ctx := context.Background()
	var signal session.LogoutSignal
	fired := 0
	signal.Subscribe(func(session.LogoutReason) { fired++ })

	err := session.Teardown(ctx, failingClearStore{session.NewInMemoryStore(firstPair)}, &signal, session.ReasonRefreshFailed)
	require.Error(t, err)
	require.Equal(t, 1, fired)

	store := session.NewInMemoryStore(firstPair)
	require.NoError(t, session.Teardown(ctx, store, &signal, session.ReasonUserLogout))
	require.True(t, store.Get(ctx).IsEmpty())
	require.Equal(t, 2, fired)
}
