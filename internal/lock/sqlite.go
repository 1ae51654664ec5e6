// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/ports"
	"github.com/ManuGH/qod/internal/persistence/sqlite"
	"github.com/google/uuid"
)

const leasesSchema = `
CREATE TABLE IF NOT EXISTS leases (
	key TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	expires_at_ms INTEGER NOT NULL
);
`

// SqliteLocker stores leases in a SQLite table so instances sharing the same
// database file coordinate through it.
type SqliteLocker struct {
	DB  *sql.DB
	now func() time.Time
}

// NewSqliteLocker opens the lease database at dbPath.
func NewSqliteLocker(dbPath string) (*SqliteLocker, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultOptions())
	if err != nil {
		return nil, err
	}
	l, err := NewSqliteLockerFromDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// NewSqliteLockerFromDB uses an already opened database.
func NewSqliteLockerFromDB(db *sql.DB) (*SqliteLocker, error) {
	if _, err := db.Exec(leasesSchema); err != nil {
		return nil, fmt.Errorf("lease table: %w", err)
	}
	return &SqliteLocker{DB: db, now: time.Now}, nil
}

func (l *SqliteLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (ports.LockToken, bool, error) {
	if ttl <= 0 {
		return ports.LockToken{}, false, ErrInvalidTTL
	}
	now := l.now()
	owner := uuid.NewString()
	exp := now.Add(ttl)

	// The upsert only takes over a lease whose expiry has passed.
	res, err := l.DB.ExecContext(ctx, `
	INSERT INTO leases (key, owner, expires_at_ms) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		owner = excluded.owner,
		expires_at_ms = excluded.expires_at_ms
	WHERE leases.expires_at_ms <= ?`,
		name, owner, exp.UnixMilli(), now.UnixMilli())
	if err != nil {
		return ports.LockToken{}, false, fmt.Errorf("sqlite lock %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ports.LockToken{}, false, err
	}
	if n == 0 {
		return ports.LockToken{}, false, nil
	}
	return ports.LockToken{Name: name, Owner: owner, ExpiresAt: exp}, true, nil
}

func (l *SqliteLocker) Release(ctx context.Context, tok ports.LockToken) error {
	_, err := l.DB.ExecContext(ctx, `DELETE FROM leases WHERE key = ? AND owner = ?`, tok.Name, tok.Owner)
	if err != nil {
		return fmt.Errorf("sqlite unlock %s: %w", tok.Name, err)
	}
	return nil
}

func (l *SqliteLocker) Close() error {
	return l.DB.Close()
}

var _ ports.Locker = (*SqliteLocker)(nil)
