package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/block-replay/block-replay/internal/record"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps sessions in a SQLite database with WAL journaling.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies the schema.
// Safe to call on an existing database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save implements Store. Saving an existing name replaces its records and
// snapshot but keeps its id.
func (s *SQLiteStore) Save(ctx context.Context, sess Session) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	logJSON, err := record.MarshalLog(sess.Records)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	id, err := sessionID(ctx, tx, sess.Name)
	switch {
	case errors.Is(err, ErrNotFound):
		id = uuid.NewString()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (id, name, snapshot, created_seq)
			VALUES (?, ?, ?, (SELECT COALESCE(MAX(created_seq), 0) + 1 FROM sessions))
		`, id, sess.Name, sess.Snapshot)
	case err == nil:
		_, err = tx.ExecContext(ctx, `UPDATE sessions SET snapshot = ? WHERE id = ?`, sess.Snapshot, id)
		if err == nil {
			_, err = tx.ExecContext(ctx, `DELETE FROM records WHERE session_id = ?`, id)
		}
	}
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	for i, r := range sess.Records {
		data, err := json.Marshal(r.Data)
		if err != nil {
			return fmt.Errorf("save session: record %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO records (session_id, seq, type, data, time_delta)
			VALUES (?, ?, ?, ?, ?)
		`, id, i, r.Type, string(data), r.TimeDelta); err != nil {
			return fmt.Errorf("save session: record %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO playback_cache (slot, log) VALUES (0, ?)
		ON CONFLICT(slot) DO UPDATE SET log = excluded.log
	`, string(logJSON)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return tx.Commit()
}

func sessionID(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM sessions WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, name string) (Session, error) {
	var id, snapshot string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, snapshot FROM sessions WHERE name = ?`, name).Scan(&id, &snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, data, time_delta FROM records
		WHERE session_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	defer rows.Close()

	records := []record.Record{}
	for rows.Next() {
		var r record.Record
		var data string
		if err := rows.Scan(&r.Type, &data, &r.TimeDelta); err != nil {
			return Session{}, fmt.Errorf("load session: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &r.Data); err != nil {
			return Session{}, fmt.Errorf("load session: record %d: %w", len(records), err)
		}
		if r.Data == nil {
			r.Data = map[string]any{}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	return Session{Name: name, Records: records, Snapshot: snapshot}, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sessions ORDER BY created_seq`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// LoadCache implements Store.
func (s *SQLiteStore) LoadCache(ctx context.Context) ([]record.Record, error) {
	var log string
	err := s.db.QueryRowContext(ctx, `SELECT log FROM playback_cache WHERE slot = 0`).Scan(&log)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("playback cache: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	return record.DecodeLog(strings.NewReader(log))
}

// ClearCache implements Store.
func (s *SQLiteStore) ClearCache(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM playback_cache`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}
