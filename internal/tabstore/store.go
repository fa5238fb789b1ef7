// Package tabstore keeps tab metadata, preview images, visit history and
// session snapshots in SQLite.
package tabstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabnap/core"
	"pkt.systems/tabnap/schema"

	_ "modernc.org/sqlite"
)

// SchemaVersion tracks the database schema version.
const SchemaVersion = 1

// Store is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
	log pslog.Logger
}

// SessionSnapshot is one saved set of windows.
type SessionSnapshot struct {
	SessionID string
	SavedAt   time.Time
	Windows   []schema.Window
}

// Open creates or opens the database at path and applies migrations.
func Open(path string, logger pslog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("tabstore: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tabstore: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("tabstore: %s: %w", pragma, err)
		}
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	s := &Store{db: db, now: time.Now, log: logger.With("store", path)}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func (s *Store) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("tabstore: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tab_info (
			url        TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			favicon    TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS previews (
			url        TEXT PRIMARY KEY,
			data_url   TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			url        TEXT PRIMARY KEY,
			visited_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_history (
			session_id TEXT PRIMARY KEY,
			saved_at   INTEGER NOT NULL,
			windows    TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("tabstore: migrate: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`,
		fmt.Sprintf("%d", SchemaVersion)); err != nil {
		return fmt.Errorf("tabstore: set schema version: %w", err)
	}
	return tx.Commit()
}

// TabInfo returns cached metadata for url.
func (s *Store) TabInfo(ctx context.Context, url string) (core.TabProperties, bool, error) {
	props := core.TabProperties{URL: url}
	err := s.db.QueryRowContext(ctx, `SELECT title, favicon FROM tab_info WHERE url = ?`, url).
		Scan(&props.Title, &props.Favicon)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TabProperties{}, false, nil
	}
	if err != nil {
		return core.TabProperties{}, false, fmt.Errorf("tabstore: tab info: %w", err)
	}
	return props, true, nil
}

// SaveTabInfo upserts metadata for props.URL.
func (s *Store) SaveTabInfo(ctx context.Context, props core.TabProperties) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tab_info (url, title, favicon, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET title = excluded.title, favicon = excluded.favicon, updated_at = excluded.updated_at
	`, props.URL, props.Title, props.Favicon, s.now().Unix())
	if err != nil {
		return fmt.Errorf("tabstore: save tab info: %w", err)
	}
	return nil
}

// Preview returns the stored preview image for url.
func (s *Store) Preview(ctx context.Context, url string) (string, bool, error) {
	var dataURL string
	err := s.db.QueryRowContext(ctx, `SELECT data_url FROM previews WHERE url = ?`, url).Scan(&dataURL)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("tabstore: preview: %w", err)
	}
	return dataURL, true, nil
}

// SavePreview upserts the preview image for url.
func (s *Store) SavePreview(ctx context.Context, url, dataURL string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO previews (url, data_url, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET data_url = excluded.data_url, updated_at = excluded.updated_at
	`, url, dataURL, s.now().Unix())
	if err != nil {
		return fmt.Errorf("tabstore: save preview: %w", err)
	}
	s.log.Trace("tabstore preview saved", "url", url, "bytes", len(dataURL))
	return nil
}

// PrunePreviews deletes previews not refreshed since before.
func (s *Store) PrunePreviews(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM previews WHERE updated_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("tabstore: prune previews: %w", err)
	}
	return res.RowsAffected()
}

// AddURL records a visit.
func (s *Store) AddURL(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (url, visited_at) VALUES (?, ?)
		ON CONFLICT(url) DO UPDATE SET visited_at = excluded.visited_at
	`, url, s.now().Unix())
	if err != nil {
		return fmt.Errorf("tabstore: add history: %w", err)
	}
	return nil
}

// DeleteURL forgets a visit.
func (s *Store) DeleteURL(ctx context.Context, url string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE url = ?`, url); err != nil {
		return fmt.Errorf("tabstore: delete history: %w", err)
	}
	return nil
}

// HasURL reports whether url is in the visit history.
func (s *Store) HasURL(ctx context.Context, url string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history WHERE url = ?`, url).Scan(&count); err != nil {
		return false, fmt.Errorf("tabstore: history lookup: %w", err)
	}
	return count > 0, nil
}

// SaveSession replaces the snapshot of sessionID.
func (s *Store) SaveSession(ctx context.Context, sessionID string, windows []schema.Window) error {
	data, err := json.Marshal(windows)
	if err != nil {
		return fmt.Errorf("tabstore: encode session: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_history (session_id, saved_at, windows) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET saved_at = excluded.saved_at, windows = excluded.windows
	`, sessionID, s.now().UnixNano(), string(data))
	if err != nil {
		return fmt.Errorf("tabstore: save session: %w", err)
	}
	return nil
}

// LatestSession returns the most recent snapshot not belonging to exclude.
func (s *Store) LatestSession(ctx context.Context, exclude string) (SessionSnapshot, bool, error) {
	var (
		snap  SessionSnapshot
		saved int64
		raw   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, saved_at, windows FROM session_history
		WHERE session_id != ? ORDER BY saved_at DESC LIMIT 1
	`, exclude).Scan(&snap.SessionID, &saved, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionSnapshot{}, false, nil
	}
	if err != nil {
		return SessionSnapshot{}, false, fmt.Errorf("tabstore: latest session: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &snap.Windows); err != nil {
		return SessionSnapshot{}, false, fmt.Errorf("tabstore: decode session: %w", err)
	}
	snap.SavedAt = time.Unix(0, saved)
	return snap, true, nil
}

// TrimSessions keeps the newest keep snapshots.
func (s *Store) TrimSessions(ctx context.Context, keep int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM session_history WHERE session_id NOT IN (
			SELECT session_id FROM session_history ORDER BY saved_at DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("tabstore: trim sessions: %w", err)
	}
	return nil
}
