package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aussiebroadwan/promogate/internal/gateway/store"
)

// DefaultCodeCapacity bounds how many processed code fingerprints are kept.
const DefaultCodeCapacity = 256

type Store struct {
	db           *sql.DB
	dsn          string
	codeCapacity int
}

var _ store.Driver = (*Store)(nil)

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// A single writer keeps sqlite from returning SQLITE_BUSY under
	// concurrent saves.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:           db,
		dsn:          dsn,
		codeCapacity: DefaultCodeCapacity,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SetCodeCapacity changes how many processed codes are retained. Values below
// one are ignored.
func (s *Store) SetCodeCapacity(n int) {
	if n > 0 {
		s.codeCapacity = n
	}
}

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	return err
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, key := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
}

func (s *Store) HasCode(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_codes WHERE fingerprint = ?`, fingerprint,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddCode records fingerprint and prunes the oldest entries beyond the
// capacity.
func (s *Store) AddCode(ctx context.Context, fingerprint string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO processed_codes (fingerprint, created_at) VALUES (?, ?)`,
			fingerprint, time.Now().UTC(),
		); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			DELETE FROM processed_codes WHERE id NOT IN (
				SELECT id FROM processed_codes ORDER BY id DESC LIMIT ?
			)`, s.codeCapacity)
		return err
	})
}

func (s *Store) ClearCodes(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM processed_codes`)
	return err
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
