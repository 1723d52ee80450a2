package store

import (
	"context"
	"fmt"
	"time"
)

// ImportRun is the stored summary of one bulk import.
type ImportRun struct {
	ID        int64
	Workflow  string
	Source    string
	Policy    string
	DryRun    bool
	Succeeded int
	Skipped   int
	Failed    int
	Duration  time.Duration
	StartedAt time.Time
}

// RecordImportRun appends a run to the import history.
func (s *Store) RecordImportRun(ctx context.Context, run ImportRun) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO import_runs (workflow, source, policy, dry_run, succeeded, skipped, failed, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Workflow, run.Source, run.Policy, run.DryRun, run.Succeeded, run.Skipped, run.Failed,
		run.Duration.Milliseconds(), run.StartedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to record import run: %w", err)
	}
	return res.LastInsertId()
}

// ListImportRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListImportRuns(ctx context.Context, limit int) ([]ImportRun, error) {
	query := "SELECT id, workflow, source, policy, dry_run, succeeded, skipped, failed, duration_ms, started_at FROM import_runs ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []ImportRun
	for rows.Next() {
		var (
			r          ImportRun
			durationMS int64
			startedAt  string
		)
		if err := rows.Scan(&r.ID, &r.Workflow, &r.Source, &r.Policy, &r.DryRun, &r.Succeeded, &r.Skipped, &r.Failed, &durationMS, &startedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import run: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
			r.StartedAt = t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
