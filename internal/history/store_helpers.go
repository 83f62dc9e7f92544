package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func scanRender(scanner interface{ Scan(dest ...any) error }) (*Render, error) {
	var (
		r            Render
		statusStr    string
		stage        sql.NullString
		manifestPath sql.NullString
		outputPath   sql.NullString
		skippedJSON  sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&r.ID,
		&r.Title,
		&statusStr,
		&stage,
		&manifestPath,
		&outputPath,
		&r.SizeBytes,
		&r.DurationSeconds,
		&r.SceneCount,
		&r.SegmentCount,
		&skippedJSON,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	r.Status = Status(statusStr)
	r.Stage = stage.String
	r.ManifestPath = manifestPath.String
	r.OutputPath = outputPath.String
	r.ErrorMessage = errorMessage.String
	if skippedJSON.Valid && strings.TrimSpace(skippedJSON.String) != "" {
		if err := json.Unmarshal([]byte(skippedJSON.String), &r.Skipped); err != nil {
			return nil, fmt.Errorf("decode skipped scenes: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		r.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		r.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			r.CompletedAt = &completed
		}
	}
	return &r, nil
}

func encodeSkipped(skipped []SkippedScene) (any, error) {
	if len(skipped) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(skipped)
	if err != nil {
		return nil, fmt.Errorf("encode skipped scenes: %w", err)
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
