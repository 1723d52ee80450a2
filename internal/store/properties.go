package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ryanm101/gamemeta/internal/metadata"
)

// Property is a named entry of one slot, e.g. the genre "Action".
type Property struct {
	ID   string
	Slot metadata.Slot
	Name string
}

// ResolveIDs returns the property ids for names in slot, creating missing
// properties. Names are matched case-insensitively; the result follows the
// order of names with duplicates removed.
func (s *Store) ResolveIDs(ctx context.Context, slot metadata.Slot, names []string) (metadata.PropertySet, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make(metadata.PropertySet, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO properties (id, slot, name, name_key) VALUES (?, ?, ?, ?)
			ON CONFLICT(slot, name_key) DO NOTHING
		`, uuid.NewString(), slot.String(), name, key); err != nil {
			return nil, fmt.Errorf("failed to create %s %q: %w", slot, name, err)
		}

		var id string
		if err := tx.QueryRowContext(ctx, "SELECT id FROM properties WHERE slot = ? AND name_key = ?", slot.String(), key).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to look up %s %q: %w", slot, name, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit properties: %w", err)
	}
	return ids, nil
}

// LookupIDs returns the ids of the names in slot that already exist, keyed by
// lower-cased name. Nothing is created.
func (s *Store) LookupIDs(ctx context.Context, slot metadata.Slot, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, done := out[key]; done {
			continue
		}
		var id string
		err := s.conn.QueryRowContext(ctx, "SELECT id FROM properties WHERE slot = ? AND name_key = ?", slot.String(), key).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up %s %q: %w", slot, name, err)
		}
		out[key] = id
	}
	return out, nil
}

// PropertyNames maps property ids to their display names. Unknown ids are
// absent from the result.
func (s *Store) PropertyNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		var name string
		err := s.conn.QueryRowContext(ctx, "SELECT name FROM properties WHERE id = ?", id).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up property %s: %w", id, err)
		}
		out[id] = name
	}
	return out, nil
}

// ListProperties returns every property of slot ordered by name.
func (s *Store) ListProperties(ctx context.Context, slot metadata.Slot) ([]Property, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT id, name FROM properties WHERE slot = ? ORDER BY name_key", slot.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", slot, err)
	}
	defer func() { _ = rows.Close() }()

	var props []Property
	for rows.Next() {
		p := Property{Slot: slot}
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		props = append(props, p)
	}
	return props, rows.Err()
}
