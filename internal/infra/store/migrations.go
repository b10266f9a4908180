package store

import (
	"database/sql"
	"embed"
	"io/fs"
	"sort"

	"github.com/cockroachdb/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
	`); err != nil {
		return errors.Wrap(err, "create schema_migrations")
	}

	entries, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return errors.Wrap(err, "list migrations")
	}
	sort.Strings(entries)

	for _, name := range entries {
		applied, err := migrationApplied(db, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := applyMigration(db, name); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, name string) error {
	body, err := migrationsFS.ReadFile(name)
	if err != nil {
		return errors.Wrapf(err, "read migration %s", name)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "start migration tx %s", name)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(string(body)); err != nil {
		return errors.Wrapf(err, "execute migration %s", name)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations(name, applied_at) VALUES (?, ?)", name, now()); err != nil {
		return errors.Wrapf(err, "record migration %s", name)
	}
	return errors.Wrapf(tx.Commit(), "commit migration %s", name)
}

func migrationApplied(db *sql.DB, name string) (bool, error) {
	var count int
	if err := db.QueryRow("SELECT COUNT(1) FROM schema_migrations WHERE name = ?", name).Scan(&count); err != nil {
		return false, errors.Wrapf(err, "check migration %s", name)
	}
	return count > 0, nil
}
