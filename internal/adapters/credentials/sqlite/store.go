// Package sqlite stores named credentials in a SQLite database and exposes
// them as credential sources.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/authpipe/internal/core/ports"
)

var (
	// ErrNotFound is returned when no credential is stored under a name.
	ErrNotFound = errors.New("credential not found")
	// ErrExpired is returned when the stored credential is past its expiry.
	ErrExpired = errors.New("credential expired")
)

// Credential is one stored token.
type Credential struct {
	Name      string
	Token     string
	ExpiresAt time.Time // zero means no expiry
	UpdatedAt time.Time
}

// Store is a SQLite-backed credential store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (and if needed creates) the database at dsn.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS credentials (
		name TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		expires_at INTEGER,
		updated_at INTEGER NOT NULL
	)`)
	return err
}

// Put inserts or replaces the credential stored under name.
func (s *Store) Put(ctx context.Context, name, token string, expiresAt time.Time) error {
	var expires sql.NullInt64
	if !expiresAt.IsZero() {
		expires = sql.NullInt64{Int64: expiresAt.UnixMilli(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (name, token, expires_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		name, token, expires, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store credential %q: %w", name, err)
	}
	return nil
}

// Get returns the credential stored under name. Expired credentials are
// returned together with ErrExpired.
func (s *Store) Get(ctx context.Context, name string) (*Credential, error) {
	var (
		cred      = Credential{Name: name}
		expiresAt sql.NullInt64
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT token, expires_at, updated_at FROM credentials WHERE name = ?`, name,
	).Scan(&cred.Token, &expiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential %q: %w", name, err)
	}

	cred.UpdatedAt = time.UnixMilli(updatedAt)
	if expiresAt.Valid {
		cred.ExpiresAt = time.UnixMilli(expiresAt.Int64)
		if !s.now().Before(cred.ExpiresAt) {
			return &cred, fmt.Errorf("%w: %s", ErrExpired, name)
		}
	}
	return &cred, nil
}

// Delete removes the credential stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete credential %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// Source returns a credential source reading name on every call. Combine it
// with the cache adapter to avoid a query per request.
func (s *Store) Source(name string) ports.CredentialSource {
	return ports.CredentialSourceFunc(func(ctx context.Context) (string, error) {
		cred, err := s.Get(ctx, name)
		if err != nil {
			return "", err
		}
		return cred.Token, nil
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
