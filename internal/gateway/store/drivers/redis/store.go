package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/promogate/internal/gateway/store"
)

// DefaultPrefix namespaces every key the driver writes.
const DefaultPrefix = "promogate"

const codesKey = "processed-codes"

// Store keeps credentials in redis so several gateway processes can share one
// session.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	owned  bool
}

var _ store.Driver = (*Store)(nil)

// NewStore connects to addr. The returned store closes the client on Close.
func NewStore(addr, prefix string) *Store {
	s := NewStoreFromClient(redis.NewClient(&redis.Options{Addr: addr}), prefix)
	s.owned = true
	return s
}

// NewStoreFromClient wraps an existing client; Close leaves it open.
func NewStoreFromClient(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		redis:  client,
		prefix: prefix,
	}
}

func (s *Store) key(name string) string {
	return s.prefix + ":" + name
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.redis.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys inside MULTI/EXEC.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, s.key(key))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (s *Store) HasCode(ctx context.Context, fingerprint string) (bool, error) {
	ok, err := s.redis.SIsMember(ctx, s.key(codesKey), fingerprint).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

func (s *Store) AddCode(ctx context.Context, fingerprint string) error {
	if err := s.redis.SAdd(ctx, s.key(codesKey), fingerprint).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

func (s *Store) ClearCodes(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key(codesKey)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.redis.Close()
}
