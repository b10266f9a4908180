package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

// SQLite is a Backend stored in a single SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	zlog.Debug().Msgf("store: opened %s", path)
	return &SQLite{db: db}, nil
}

func openDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create db directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if path == ":memory:" {
		// Each connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "apply sqlite pragma %q", pragma)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}
	return db, nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "read %s", key)
	}
	return true, decode(key, []byte(raw), dst)
}

// Set implements Store.
func (s *SQLite) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv(key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(raw), now())
	if err != nil {
		return errors.Wrapf(err, "write %s", key)
	}
	return nil
}

// Remove implements Store.
func (s *SQLite) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return errors.Wrapf(err, "remove %s", key)
	}
	return nil
}

// RecordPlay implements PlayLog.
func (s *SQLite) RecordPlay(ctx context.Context, p Play) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO play_log(song_id, user_id, played_at) VALUES (?, ?, ?)",
		p.SongID, p.UserID, p.PlayedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrapf(err, "record play %s", p.SongID)
	}
	return nil
}

// RecentPlays implements PlayLog.
func (s *SQLite) RecentPlays(ctx context.Context, limit int) ([]Play, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT song_id, user_id, played_at FROM play_log ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, errors.Wrap(err, "query play log")
	}
	defer rows.Close()

	var plays []Play
	for rows.Next() {
		var p Play
		var playedAt string
		if err := rows.Scan(&p.SongID, &p.UserID, &playedAt); err != nil {
			return nil, errors.Wrap(err, "scan play log")
		}
		p.PlayedAt, _ = time.Parse(time.RFC3339Nano, playedAt)
		plays = append(plays, p)
	}
	return plays, errors.Wrap(rows.Err(), "iterate play log")
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
