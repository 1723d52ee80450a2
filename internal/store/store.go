// Package store persists host records, their properties and import history
// in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record or property does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps a SQLite database connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens or creates a SQLite database at the given path.
func Open(ctx context.Context, path string) (*Store, error) {
	conn, err := otelsql.Open("sqlite", path, otelsql.WithAttributes(attribute.String("db.system", "sqlite")))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Import workers share one connection so writes never contend for the
	// database lock.
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Conn returns the underlying database connection.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs database migrations up to the current schema version.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err := s.conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version < 1 {
		if err := s.migrateV1(ctx); err != nil {
			return err
		}
	}
	if version < 2 {
		if err := s.migrateV2(ctx); err != nil {
			return err
		}
	}

	return nil
}

// migrateV1 creates the record and property schema.
func (s *Store) migrateV1(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			barcode TEXT,
			release_date TEXT,
			cover_url TEXT,
			description TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_records_name ON records(name);
		CREATE INDEX IF NOT EXISTS idx_records_barcode ON records(barcode);

		CREATE TABLE IF NOT EXISTS record_names (
			record_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY(record_id, position),
			FOREIGN KEY(record_id) REFERENCES records(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS record_platforms (
			record_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			spec_id TEXT,
			name TEXT,
			PRIMARY KEY(record_id, position),
			FOREIGN KEY(record_id) REFERENCES records(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS record_regions (
			record_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			region TEXT NOT NULL,
			PRIMARY KEY(record_id, position),
			FOREIGN KEY(record_id) REFERENCES records(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS record_links (
			record_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT,
			url TEXT NOT NULL,
			PRIMARY KEY(record_id, position),
			FOREIGN KEY(record_id) REFERENCES records(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS properties (
			id TEXT PRIMARY KEY,
			slot TEXT NOT NULL,
			name TEXT NOT NULL,
			name_key TEXT NOT NULL,
			UNIQUE(slot, name_key)
		);

		CREATE TABLE IF NOT EXISTS record_properties (
			record_id TEXT NOT NULL,
			slot TEXT NOT NULL,
			position INTEGER NOT NULL,
			property_id TEXT NOT NULL,
			PRIMARY KEY(record_id, slot, position),
			FOREIGN KEY(record_id) REFERENCES records(id) ON DELETE CASCADE,
			FOREIGN KEY(property_id) REFERENCES properties(id)
		);

		CREATE INDEX IF NOT EXISTS idx_record_properties_property ON record_properties(property_id);

		INSERT INTO schema_version (version) VALUES (1);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute v1 migration: %w", err)
	}

	return nil
}

// migrateV2 adds import run history.
func (s *Store) migrateV2(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS import_runs (
			id INTEGER PRIMARY KEY,
			workflow TEXT NOT NULL,
			source TEXT NOT NULL,
			policy TEXT NOT NULL,
			dry_run INTEGER NOT NULL DEFAULT 0,
			succeeded INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL
		);

		INSERT INTO schema_version (version) VALUES (2);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute v2 migration: %w", err)
	}

	return nil
}
