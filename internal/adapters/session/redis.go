package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/okian/courtside/internal/domain/wizard"
)

const defaultKeyPrefix = "courtside:session:"

// RedisOption applies a configuration option to the RedisStore.
type RedisOption func(*RedisStore)

// WithTTL expires idle sessions. Zero keeps them until deleted.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisStore) {
		if ttl >= 0 {
			r.ttl = ttl
		}
	}
}

// WithKeyPrefix namespaces session keys.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisStore) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// RedisStore keeps CBOR-encoded sessions in Redis so any replica can serve
// the next step of a flow.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	enc    cbor.EncMode
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) (*RedisStore, error) {
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor enc mode: %w", err)
	}
	r := &RedisStore{client: client, prefix: defaultKeyPrefix, enc: enc}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *RedisStore) key(id string) string { return r.prefix + id }

// Save encodes s and writes it under its id.
func (r *RedisStore) Save(ctx context.Context, s *wizard.Session) error {
	b, err := r.enc.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	if err := r.client.Set(ctx, r.key(s.ID), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: save session %s: %w", ErrUnavailable, s.ID, err)
	}
	return nil
}

// Load reads and decodes a session.
func (r *RedisStore) Load(ctx context.Context, id string) (*wizard.Session, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load session %s: %w", ErrUnavailable, id, err)
	}
	s, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return s, nil
}

// Delete removes a session.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: delete session %s: %w", ErrUnavailable, id, err)
	}
	return nil
}

// Ping checks Redis is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Encode returns the CBOR form stored in Redis.
func (r *RedisStore) Encode(s *wizard.Session) ([]byte, error) { return r.enc.Marshal(s) }

// Decode parses a session previously produced by Encode.
func Decode(b []byte) (*wizard.Session, error) {
	var s wizard.Session
	if err := cbor.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
