package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrNotFound reports an unknown render ID.
var ErrNotFound = errors.New("render not found")

// ErrDuplicate reports a Create whose ID is already recorded.
var ErrDuplicate = errors.New("render id already exists")

const renderColumns = "id, title, status, stage, manifest_path, output_path, size_bytes, duration_seconds, scene_count, segment_count, skipped_json, error_message, created_at, updated_at, completed_at"

// Create inserts a pending render. ID must be unique.
func (s *Store) Create(ctx context.Context, r Render) (*Render, error) {
	if strings.TrimSpace(r.ID) == "" {
		return nil, errors.New("render id is required")
	}
	timestamp := formatTime(time.Now())
	_, err := s.execWithRetry(ctx,
		`INSERT INTO renders (id, title, status, manifest_path, scene_count, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.Title,
		StatusPending,
		nullableString(r.ManifestPath),
		r.SceneCount,
		timestamp,
		timestamp,
	)
	if isSQLiteUniqueViolation(err) {
		return nil, fmt.Errorf("insert render %s: %w", r.ID, ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert render: %w", err)
	}
	return s.Get(ctx, r.ID)
}

// UpdateStage marks the render as rendering and records the current stage.
func (s *Store) UpdateStage(ctx context.Context, id, stage string) error {
	return s.expectOne(s.execWithRetry(ctx,
		`UPDATE renders SET status = ?, stage = ?, updated_at = ? WHERE id = ?`,
		StatusRendering, nullableString(stage), formatTime(time.Now()), id,
	))
}

// Complete records a successful run.
func (s *Store) Complete(ctx context.Context, id string, outcome Outcome) error {
	skipped, err := encodeSkipped(outcome.Skipped)
	if err != nil {
		return err
	}
	now := formatTime(time.Now())
	return s.expectOne(s.execWithRetry(ctx,
		`UPDATE renders
         SET status = ?, stage = ?, output_path = ?, size_bytes = ?, duration_seconds = ?,
             segment_count = ?, skipped_json = ?, error_message = NULL, updated_at = ?, completed_at = ?
         WHERE id = ?`,
		StatusDone, "done", outcome.OutputPath, outcome.SizeBytes, outcome.DurationSeconds,
		outcome.SegmentCount, skipped, now, now, id,
	))
}

// Fail records a terminal failure. status must be failed, cancelled, or rejected.
func (s *Store) Fail(ctx context.Context, id string, status Status, stage, message string, skipped []SkippedScene) error {
	switch status {
	case StatusFailed, StatusCancelled, StatusRejected:
	default:
		return fmt.Errorf("status %q is not a failure status", status)
	}
	encoded, err := encodeSkipped(skipped)
	if err != nil {
		return err
	}
	now := formatTime(time.Now())
	return s.expectOne(s.execWithRetry(ctx,
		`UPDATE renders
         SET status = ?, stage = ?, error_message = ?, skipped_json = ?, updated_at = ?, completed_at = ?
         WHERE id = ?`,
		status, nullableString(stage), nullableString(message), encoded, now, now, id,
	))
}

// Get fetches a render by ID. It returns nil, nil when the ID is unknown.
func (s *Store) Get(ctx context.Context, id string) (*Render, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+renderColumns+` FROM renders WHERE id = ?`, id)
	r, err := scanRender(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get render: %w", err)
	}
	return r, nil
}

// List returns the most recent renders first. limit <= 0 returns all rows.
// Passing statuses restricts the result.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Render, error) {
	query := `SELECT ` + renderColumns + ` FROM renders`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryRenders(ctx, query, args...)
}

// Delete removes the row. It reports whether a row existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM renders WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete render: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Expired returns finished renders completed before cutoff.
func (s *Store) Expired(ctx context.Context, cutoff time.Time) ([]*Render, error) {
	return s.queryRenders(ctx,
		`SELECT `+renderColumns+` FROM renders
         WHERE status = ? AND completed_at IS NOT NULL AND completed_at < ?
         ORDER BY completed_at`,
		StatusDone, formatTime(cutoff),
	)
}

// Prune deletes the output files and rows of renders completed before cutoff.
// A row is kept when its file cannot be removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (PruneResult, error) {
	expired, err := s.Expired(ctx, cutoff)
	if err != nil {
		return PruneResult{}, err
	}
	result := PruneResult{}
	for _, r := range expired {
		if r.OutputPath != "" {
			if err := os.Remove(r.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				result.Errors = append(result.Errors, fmt.Errorf("remove %s: %w", r.OutputPath, err))
				continue
			}
		}
		if _, err := s.Delete(ctx, r.ID); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Removed = append(result.Removed, r.ID)
	}
	return result, nil
}

// ResetInterrupted fails renders left pending or rendering by a process that
// exited mid-run. It returns the number of rows updated.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE renders SET status = ?, error_message = ?, updated_at = ?, completed_at = ?
         WHERE status IN (?, ?)`,
		StatusFailed, "interrupted before completion", now, now, StatusPending, StatusRendering,
	)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted renders: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of renders grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM renders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("render stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func (s *Store) queryRenders(ctx context.Context, query string, args ...any) ([]*Render, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query renders: %w", err)
	}
	defer rows.Close()

	var renders []*Render
	for rows.Next() {
		r, err := scanRender(rows)
		if err != nil {
			return nil, fmt.Errorf("scan render: %w", err)
		}
		renders = append(renders, r)
	}
	return renders, rows.Err()
}

func (s *Store) expectOne(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("update render: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
