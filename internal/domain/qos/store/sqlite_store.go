// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/model"
	"github.com/ManuGH/qod/internal/domain/qos/ports"
	"github.com/ManuGH/qod/internal/persistence/sqlite"
)

const sqliteSchemaVersion = 1

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS qos_sessions (
	session_id TEXT PRIMARY KEY,
	subscription_id TEXT,
	client_id TEXT NOT NULL,
	device_address TEXT NOT NULL,
	qos_status TEXT NOT NULL,
	scheduled_for_deletion INTEGER NOT NULL DEFAULT 0,
	expires_at_ms INTEGER NOT NULL,
	updated_at_ms INTEGER NOT NULL,
	record_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_qos_sessions_subscription ON qos_sessions(subscription_id);
CREATE INDEX IF NOT EXISTS idx_qos_sessions_client ON qos_sessions(client_id);
CREATE INDEX IF NOT EXISTS idx_qos_sessions_device ON qos_sessions(device_address);
CREATE INDEX IF NOT EXISTS idx_qos_sessions_expires ON qos_sessions(expires_at_ms);
`

// SqliteStore implements SessionStore using SQLite. The full record is kept
// as JSON; lookup keys are denormalised into indexed columns.
type SqliteStore struct {
	DB *sql.DB

	// writeMu serialises read-modify-write cycles issued by this process.
	writeMu sync.Mutex
}

// NewSqliteStore opens (and migrates) the session database at dbPath.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultOptions())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(db, sqliteSchemaVersion, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session store: migration failed: %w", err)
	}
	return &SqliteStore{DB: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, ex execer, rec *model.QosSession) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", rec.SessionID, err)
	}
	var sub sql.NullString
	if rec.SubscriptionID != "" {
		sub = sql.NullString{String: rec.SubscriptionID, Valid: true}
	}
	_, err = ex.ExecContext(ctx, `
	INSERT INTO qos_sessions (
		session_id, subscription_id, client_id, device_address, qos_status,
		scheduled_for_deletion, expires_at_ms, updated_at_ms, record_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		subscription_id = excluded.subscription_id,
		client_id = excluded.client_id,
		device_address = excluded.device_address,
		qos_status = excluded.qos_status,
		scheduled_for_deletion = excluded.scheduled_for_deletion,
		expires_at_ms = excluded.expires_at_ms,
		updated_at_ms = excluded.updated_at_ms,
		record_json = excluded.record_json`,
		rec.SessionID, sub, rec.ClientID, rec.DeviceAddress(), string(rec.QosStatus),
		boolToInt(rec.ScheduledForDeletion), rec.ExpiresAt.UnixMilli(), time.Now().UnixMilli(), string(buf),
	)
	return err
}

func (s *SqliteStore) Save(ctx context.Context, rec *model.QosSession) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return upsert(ctx, s.DB, rec)
}

func (s *SqliteStore) FindByID(ctx context.Context, id string) (*model.QosSession, error) {
	return s.queryOne(ctx, `SELECT record_json FROM qos_sessions WHERE session_id = ?`, id)
}

func (s *SqliteStore) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*model.QosSession, error) {
	if subscriptionID == "" {
		return nil, nil
	}
	return s.queryOne(ctx, `SELECT record_json FROM qos_sessions WHERE subscription_id = ? LIMIT 1`, subscriptionID)
}

func (s *SqliteStore) FindByClientID(ctx context.Context, clientID string) ([]*model.QosSession, error) {
	return s.queryMany(ctx, `SELECT record_json FROM qos_sessions WHERE client_id = ? ORDER BY session_id`, clientID)
}

func (s *SqliteStore) FindByDeviceAddress(ctx context.Context, address string) ([]*model.QosSession, error) {
	return s.queryMany(ctx, `SELECT record_json FROM qos_sessions WHERE device_address = ? ORDER BY session_id`, model.CanonicalAddress(address))
}

func (s *SqliteStore) FindAll(ctx context.Context) ([]*model.QosSession, error) {
	return s.queryMany(ctx, `SELECT record_json FROM qos_sessions ORDER BY expires_at_ms, session_id`)
}

func (s *SqliteStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	res, err := s.DB.ExecContext(ctx, `DELETE FROM qos_sessions WHERE session_id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SqliteStore) Update(ctx context.Context, id string, fn func(*model.QosSession) error) (*model.QosSession, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT record_json FROM qos_sessions WHERE session_id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	rec, err := decodeSession(raw)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	if err := upsert(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SqliteStore) queryOne(ctx context.Context, query string, args ...any) (*model.QosSession, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(raw)
}

func (s *SqliteStore) queryMany(ctx context.Context, query string, args ...any) ([]*model.QosSession, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.QosSession
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		rec, err := decodeSession(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func decodeSession(raw string) (*model.QosSession, error) {
	var rec model.QosSession
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.SessionStore = (*SqliteStore)(nil)
