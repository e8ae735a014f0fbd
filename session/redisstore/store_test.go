package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-reader-client/session"
	"github.com/jrsteele09/go-reader-client/session/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T, options ...redisstore.Option) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := redisstore.New(client, options...)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRoundTripUsesKnownKeys(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t, redisstore.WithKeyPrefix("reader:"))

	require.True(t, store.Get(ctx).IsEmpty())
	require.NoError(t, store.Set(ctx, session.Session{AccessToken: "AT1", RefreshToken: "RT1"}))
	require.Equal(t, session.Session{AccessToken: "AT1", RefreshToken: "RT1"}, store.Get(ctx))

	got, err := mr.Get("reader:token")
	require.NoError(t, err)
	require.Equal(t, "AT1", got)
	got, err = mr.Get("reader:refreshToken")
	require.NoError(t, err)
	require.Equal(t, "RT1", got)
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)

	require.NoError(t, store.Set(ctx, session.Session{AccessToken: "AT1", RefreshToken: "RT1"}))
	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	require.True(t, store.Get(ctx).IsEmpty())
	require.False(t, mr.Exists("token"))
}

func TestHalfSessionInRedisReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)

	require.NoError(t, mr.Set("token", "AT1"))
	require.True(t, store.Get(ctx).IsEmpty())
}

func TestTTLAppliesToBothKeys(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t, redisstore.WithTTL(time.Minute))

	require.NoError(t, store.Set(ctx, session.Session{AccessToken: "AT1", RefreshToken: "RT1"}))
	require.Equal(t, time.Minute, mr.TTL("token"))
	require.Equal(t, time.Minute, mr.TTL("refreshToken"))

	mr.FastForward(2 * time.Minute)
	require.True(t, store.Get(ctx).IsEmpty())
}

func TestUnavailableRedisReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)
	require.NoError(t, store.Set(ctx, session.Session{AccessToken: "AT1", RefreshToken: "RT1"}))

	mr.Close()
	require.True(t, store.Get(ctx).IsEmpty())
	require.Error(t, store.Set(ctx, session.Session{AccessToken: "AT2", RefreshToken: "RT2"}))
}

func TestNewFromURL(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := redisstore.NewFromURL(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = redisstore.NewFromURL(context.Background(), "not a url")
	require.Error(t, err)
}
