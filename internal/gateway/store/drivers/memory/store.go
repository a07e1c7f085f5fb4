package memory

import (
	"bytes"
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aussiebroadwan/promogate/internal/gateway/store"
)

// DefaultCodeCapacity bounds how many processed code fingerprints are kept.
const DefaultCodeCapacity = 256

// Store keeps values in process memory. It is the driver used by tests and by
// short-lived processes that do not need credentials to survive a restart.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
	codes  *lru.Cache[string, struct{}]
	closed bool
}

var _ store.Driver = (*Store)(nil)

func NewStore(codeCapacity int) (*Store, error) {
	if codeCapacity <= 0 {
		codeCapacity = DefaultCodeCapacity
	}

	codes, err := lru.New[string, struct{}](codeCapacity)
	if err != nil {
		return nil, err
	}

	return &Store{
		values: make(map[string][]byte),
		codes:  codes,
	}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	v, ok := s.values[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}

	s.values[key] = bytes.Clone(value)
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}

	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *Store) HasCode(ctx context.Context, fingerprint string) (bool, error) {
	if s.isClosed() {
		return false, store.ErrClosed
	}
	return s.codes.Contains(fingerprint), nil
}

func (s *Store) AddCode(ctx context.Context, fingerprint string) error {
	if s.isClosed() {
		return store.ErrClosed
	}
	s.codes.Add(fingerprint, struct{}{})
	return nil
}

func (s *Store) ClearCodes(ctx context.Context) error {
	if s.isClosed() {
		return store.ErrClosed
	}
	s.codes.Purge()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.isClosed() {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.values = nil
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
