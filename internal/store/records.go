package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ryanm101/gamemeta/internal/metadata"
	"github.com/ryanm101/gamemeta/internal/platform"
)

// AddRecord inserts a new record, assigning an id when it has none.
func (s *Store) AddRecord(ctx context.Context, rec *metadata.Record) error {
	if strings.TrimSpace(rec.Name) == "" {
		return fmt.Errorf("add record: name is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if len(rec.Names) == 0 {
		rec.Names = []string{rec.Name}
	}
	return s.SaveRecord(ctx, rec)
}

// SaveRecord inserts or fully replaces a record and its child rows.
func (s *Store) SaveRecord(ctx context.Context, rec *metadata.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("save record: id is required")
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (id, name, barcode, release_date, cover_url, description)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			barcode = excluded.barcode,
			release_date = excluded.release_date,
			cover_url = excluded.cover_url,
			description = excluded.description,
			updated_at = CURRENT_TIMESTAMP
	`, rec.ID, rec.Name, rec.Barcode, rec.ReleaseDate.String(), rec.CoverURL, rec.Description)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", rec.ID, err)
	}

	for _, table := range []string{"record_names", "record_platforms", "record_regions", "record_links", "record_properties"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE record_id = ?", rec.ID); err != nil { //nolint:gosec // Fixed table names
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for i, n := range rec.Names {
		if _, err := tx.ExecContext(ctx, "INSERT INTO record_names (record_id, position, name) VALUES (?, ?, ?)", rec.ID, i, n); err != nil {
			return fmt.Errorf("failed to save names: %w", err)
		}
	}
	for i, h := range rec.Platforms {
		if _, err := tx.ExecContext(ctx, "INSERT INTO record_platforms (record_id, position, spec_id, name) VALUES (?, ?, ?, ?)", rec.ID, i, h.SpecID(), h.Name()); err != nil {
			return fmt.Errorf("failed to save platforms: %w", err)
		}
	}
	for i, r := range rec.Regions {
		if _, err := tx.ExecContext(ctx, "INSERT INTO record_regions (record_id, position, region) VALUES (?, ?, ?)", rec.ID, i, r); err != nil {
			return fmt.Errorf("failed to save regions: %w", err)
		}
	}
	for i, l := range rec.Links {
		if _, err := tx.ExecContext(ctx, "INSERT INTO record_links (record_id, position, name, url) VALUES (?, ?, ?, ?)", rec.ID, i, l.Name, l.URL); err != nil {
			return fmt.Errorf("failed to save links: %w", err)
		}
	}
	for slot, ids := range rec.Properties {
		for i, id := range ids {
			if _, err := tx.ExecContext(ctx, "INSERT INTO record_properties (record_id, slot, position, property_id) VALUES (?, ?, ?, ?)", rec.ID, slot.String(), i, id); err != nil {
				return fmt.Errorf("failed to save %s: %w", slot, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record %s: %w", rec.ID, err)
	}
	return nil
}

// GetRecord loads one record.
func (s *Store) GetRecord(ctx context.Context, id string) (*metadata.Record, error) {
	row := s.conn.QueryRowContext(ctx, "SELECT id, name, barcode, release_date, cover_url, description FROM records WHERE id = ?", id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if err := s.loadChildren(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecords loads every record ordered by name.
func (s *Store) ListRecords(ctx context.Context) ([]*metadata.Record, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT id, name, barcode, release_date, cover_url, description FROM records ORDER BY name COLLATE NOCASE, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*metadata.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rec := range records {
		if err := s.loadChildren(ctx, rec); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// DeleteRecord removes a record and its child rows.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*metadata.Record, error) {
	var (
		rec                                         metadata.Record
		barcode, releaseDate, coverURL, description sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.Name, &barcode, &releaseDate, &coverURL, &description); err != nil {
		return nil, err
	}
	rec.Barcode = barcode.String
	rec.CoverURL = coverURL.String
	rec.Description = description.String
	if releaseDate.String != "" {
		if rd, err := metadata.ParseReleaseDate(releaseDate.String); err == nil {
			rec.ReleaseDate = rd
		}
	}
	return &rec, nil
}

func (s *Store) loadChildren(ctx context.Context, rec *metadata.Record) error {
	err := s.eachRow(ctx, "SELECT name FROM record_names WHERE record_id = ? ORDER BY position", rec.ID, func(sc scanner) error {
		var n string
		if err := sc.Scan(&n); err != nil {
			return err
		}
		rec.Names = append(rec.Names, n)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load names: %w", err)
	}

	err = s.eachRow(ctx, "SELECT spec_id, name FROM record_platforms WHERE record_id = ? ORDER BY position", rec.ID, func(sc scanner) error {
		var specID, name sql.NullString
		if err := sc.Scan(&specID, &name); err != nil {
			return err
		}
		if specID.String != "" {
			rec.Platforms = append(rec.Platforms, platform.Spec(specID.String))
		} else {
			rec.Platforms = append(rec.Platforms, platform.Named(name.String))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load platforms: %w", err)
	}

	err = s.eachRow(ctx, "SELECT region FROM record_regions WHERE record_id = ? ORDER BY position", rec.ID, func(sc scanner) error {
		var r string
		if err := sc.Scan(&r); err != nil {
			return err
		}
		rec.Regions = append(rec.Regions, r)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load regions: %w", err)
	}

	err = s.eachRow(ctx, "SELECT name, url FROM record_links WHERE record_id = ? ORDER BY position", rec.ID, func(sc scanner) error {
		var name sql.NullString
		var l metadata.Link
		if err := sc.Scan(&name, &l.URL); err != nil {
			return err
		}
		l.Name = name.String
		rec.Links = append(rec.Links, l)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load links: %w", err)
	}

	err = s.eachRow(ctx, "SELECT slot, property_id FROM record_properties WHERE record_id = ? ORDER BY slot, position", rec.ID, func(sc scanner) error {
		var slotName, id string
		if err := sc.Scan(&slotName, &id); err != nil {
			return err
		}
		slot, err := metadata.ParseSlot(slotName)
		if err != nil {
			return err
		}
		if rec.Properties == nil {
			rec.Properties = make(map[metadata.Slot]metadata.PropertySet)
		}
		rec.Properties[slot] = append(rec.Properties[slot], id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load properties: %w", err)
	}

	return nil
}

func (s *Store) eachRow(ctx context.Context, query, id string, fn func(scanner) error) error {
	rows, err := s.conn.QueryContext(ctx, query, id)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
