package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/promogate/internal/gateway/domain"
	"github.com/aussiebroadwan/promogate/pkg/cryptox"
	"github.com/aussiebroadwan/promogate/pkg/slogx"
)

// Credentials is the CredentialStore over a Driver. Values are JSON encoded
// and, when a sealer is configured, encrypted before they reach the driver.
type Credentials struct {
	driver Driver
	sealer *cryptox.Sealer
	logger *slog.Logger
}

var _ CredentialStore = (*Credentials)(nil)

type Option func(*Credentials)

// WithSealer encrypts every stored value with s.
func WithSealer(s *cryptox.Sealer) Option {
	return func(c *Credentials) { c.sealer = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Credentials) { c.logger = l }
}

func New(driver Driver, opts ...Option) *Credentials {
	c := &Credentials{driver: driver}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Driver exposes the underlying driver, mostly for health checks.
func (c *Credentials) Driver() Driver { return c.driver }

func (c *Credentials) Close() error { return c.driver.Close() }

func (c *Credentials) Load(ctx context.Context) *domain.TokenBundle {
	var bundle domain.TokenBundle
	if !c.read(ctx, KeyTokenBundle, &bundle) {
		return nil
	}
	return &bundle
}

func (c *Credentials) Save(ctx context.Context, bundle domain.TokenBundle) error {
	return c.write(ctx, KeyTokenBundle, bundle)
}

func (c *Credentials) Clear(ctx context.Context) error {
	if err := c.driver.Delete(ctx, CredentialKeys...); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

func (c *Credentials) LoadIdentity(ctx context.Context) *domain.Identity {
	var identity domain.Identity
	if !c.read(ctx, KeyIdentity, &identity) {
		return nil
	}
	return &identity
}

func (c *Credentials) SaveIdentity(ctx context.Context, identity domain.Identity) error {
	return c.write(ctx, KeyIdentity, identity)
}

func (c *Credentials) LoadRole(ctx context.Context) domain.Role {
	var role domain.Role
	if !c.read(ctx, KeyRole, &role) {
		return nil
	}
	return role
}

func (c *Credentials) SaveRole(ctx context.Context, role domain.Role) error {
	return c.write(ctx, KeyRole, role)
}

func (c *Credentials) IsCodeProcessed(ctx context.Context, code string) bool {
	if code == "" {
		return false
	}

	ok, err := c.driver.HasCode(ctx, cryptox.Fingerprint(code))
	if err != nil {
		slogx.FromContext(ctx, c.logger).WarnContext(ctx, "store_read_failed",
			"key", "processed_codes",
			"error", err,
		)
		return false
	}
	return ok
}

func (c *Credentials) MarkCodeProcessed(ctx context.Context, code string) error {
	if code == "" {
		return nil
	}
	if err := c.driver.AddCode(ctx, cryptox.Fingerprint(code)); err != nil {
		return fmt.Errorf("failed to mark code processed: %w", err)
	}
	return nil
}

func (c *Credentials) ClearProcessedCodes(ctx context.Context) error {
	if err := c.driver.ClearCodes(ctx); err != nil {
		return fmt.Errorf("failed to clear processed codes: %w", err)
	}
	return nil
}

// read decodes key into v. Any failure other than absence is logged and
// treated as absence.
func (c *Credentials) read(ctx context.Context, key string, v any) bool {
	raw, err := c.driver.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false
	}

	logger := slogx.FromContext(ctx, c.logger)
	if err != nil {
		logger.WarnContext(ctx, "store_read_failed", "key", key, "error", err)
		return false
	}

	if c.sealer != nil {
		raw, err = c.sealer.Open(raw)
		if err != nil {
			logger.WarnContext(ctx, "store_value_unreadable", "key", key, "error", err)
			return false
		}
	}

	if err := json.Unmarshal(raw, v); err != nil {
		logger.WarnContext(ctx, "store_value_malformed", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Credentials) write(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	if c.sealer != nil {
		raw, err = c.sealer.Seal(raw)
		if err != nil {
			return fmt.Errorf("failed to seal %s: %w", key, err)
		}
	}

	if err := c.driver.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}
