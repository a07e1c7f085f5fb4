package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/promogate/internal/gateway/domain"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrClosed   = errors.New("store: closed")
)

// Persisted keys.
const (
	KeyTokenBundle = "token-bundle"
	KeyIdentity    = "identity"
	KeyRole        = "role"
)

// CredentialKeys are the keys removed together by Clear.
var CredentialKeys = []string{KeyTokenBundle, KeyIdentity, KeyRole}

// CredentialStore owns the signed-in session's persisted state. Reads never
// fail: a missing, unreadable or malformed value is reported as absent.
type CredentialStore interface {
	Load(ctx context.Context) *domain.TokenBundle
	Save(ctx context.Context, bundle domain.TokenBundle) error

	// Clear removes the bundle, identity and role in one step.
	Clear(ctx context.Context) error

	LoadIdentity(ctx context.Context) *domain.Identity
	SaveIdentity(ctx context.Context, identity domain.Identity) error

	LoadRole(ctx context.Context) domain.Role
	SaveRole(ctx context.Context, role domain.Role) error

	// IsCodeProcessed reports whether an authorization code was already
	// exchanged.
	IsCodeProcessed(ctx context.Context, code string) bool
	MarkCodeProcessed(ctx context.Context, code string) error
	ClearProcessedCodes(ctx context.Context) error

	Close() error
}

// Driver is the raw storage a CredentialStore is built on. Concrete drivers
// (memory, sqlite, redis) implement this; values arrive already encoded.
type Driver interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes every key atomically. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	HasCode(ctx context.Context, fingerprint string) (bool, error)
	AddCode(ctx context.Context, fingerprint string) error
	ClearCodes(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}
