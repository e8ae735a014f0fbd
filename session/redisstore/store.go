package redisstore

import (
	"context"
	"time"

	"github.com/jrsteele09/go-reader-client/session"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Store keeps the two tokens as plain redis strings under "<prefix>token" and
// "<prefix>refreshToken". Reads use MGET and writes use MULTI/EXEC, so both keys always move
// together.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ session.Store = (*Store)(nil)

type Option func(*Store)

// WithKeyPrefix namespaces the keys, e.g. per user profile.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL expires both keys together. Zero keeps them until cleared.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

func New(client redis.UniversalClient, options ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// NewFromURL parses a redis:// URL and checks the connection.
func NewFromURL(ctx context.Context, url string, options ...Option) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "redisstore.NewFromURL redis.ParseURL")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "redisstore.NewFromURL Ping")
	}
	return New(client, options...), nil
}

func (s *Store) accessKey() string  { return s.prefix + session.AccessTokenKey }
func (s *Store) refreshKey() string { return s.prefix + session.RefreshTokenKey }

func (s *Store) Get(ctx context.Context) session.Session {
	values, err := s.client.MGet(ctx, s.accessKey(), s.refreshKey()).Result()
	if err != nil {
		log.Err(err).Msg("Failed to read session from redis")
		return session.Session{}
	}

	result := session.Session{
		AccessToken:  stringValue(values, 0),
		RefreshToken: stringValue(values, 1),
	}
	if err := result.Validate(); err != nil {
		log.Warn().Msg("Ignoring incomplete session in redis")
		return session.Session{}
	}
	return result
}

func (s *Store) Set(ctx context.Context, sess session.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if sess.IsEmpty() {
		return s.Clear(ctx)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.accessKey(), sess.AccessToken, s.ttl)
		pipe.Set(ctx, s.refreshKey(), sess.RefreshToken, s.ttl)
		return nil
	})
	return errors.Wrap(err, "redisstore.Set")
}

func (s *Store) Clear(ctx context.Context) error {
	return errors.Wrap(s.client.Del(ctx, s.accessKey(), s.refreshKey()).Err(), "redisstore.Clear")
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func stringValue(values []interface{}, i int) string {
	if i >= len(values) {
		return ""
	}
	str, _ := values[i].(string)
	return str
}
