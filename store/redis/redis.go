// Package redis provides a credential store backed by Redis, for clients
// that share one session across processes (multiple workers of the same
// kiosk/agent deployment).
package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/echotrace/echotrace-go/store"
)

const defaultKey = "echotrace:credentials"

var (
	ErrClientNotInitialized = errors.New("redis: client not initialized")
)

const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
)

// Store is a store.Store backed by a Redis hash. Both tokens live in one
// hash written by a single HSET, so replacement is atomic on the server.
type Store struct {
	client *redis.Client
	key    string
}

// Option configures the store.
type Option func(*Store)

// WithKey overrides the hash key the credentials are stored under.
func WithKey(key string) Option {
	return func(s *Store) {
		s.key = key
	}
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts *redis.Options, storeOpts ...Option) (*Store, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewWithClient(client, storeOpts...), nil
}

// NewWithClient wraps an existing client. The caller keeps ownership of the
// client's lifecycle.
func NewWithClient(client *redis.Client, storeOpts ...Option) *Store {
	s := &Store{
		client: client,
		key:    defaultKey,
	}
	for _, opt := range storeOpts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load returns the stored pair, or an empty pair when the key is absent.
func (s *Store) Load(ctx context.Context) (store.Credentials, error) {
	if s.client == nil {
		return store.Credentials{}, ErrClientNotInitialized
	}

	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return store.Credentials{}, err
	}
	return store.Credentials{
		AccessToken:  fields[fieldAccessToken],
		RefreshToken: fields[fieldRefreshToken],
	}, nil
}

// Save replaces both tokens with a single HSET.
func (s *Store) Save(ctx context.Context, creds store.Credentials) error {
	if s.client == nil {
		return ErrClientNotInitialized
	}
	return s.client.HSet(ctx, s.key,
		fieldAccessToken, creds.AccessToken,
		fieldRefreshToken, creds.RefreshToken,
	).Err()
}

// Clear deletes the hash.
func (s *Store) Clear(ctx context.Context) error {
	if s.client == nil {
		return ErrClientNotInitialized
	}
	return s.client.Del(ctx, s.key).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
