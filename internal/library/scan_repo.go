package library

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// ScanMetadataRepository stores watcher bookkeeping as key/value pairs
type ScanMetadataRepository struct {
	db *DB
}

// NewScanMetadataRepository creates a new scan metadata repository
func NewScanMetadataRepository(db *DB) *ScanMetadataRepository {
	return &ScanMetadataRepository{db: db}
}

// GetLastScanTime retrieves the last completed scan time for a given key
func (r *ScanMetadataRepository) GetLastScanTime(ctx context.Context, key string) (time.Time, error) {
	value, err := r.GetValue(ctx, "last_"+key)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last scan time: %w", err)
	}
	if value == "" {
		return time.Time{}, nil // Never scanned
	}

	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		// Treat corrupt timestamps as never scanned
		slog.Warn("Failed to parse scan timestamp, treating as never scanned",
			"key", key,
			"value", value,
			"error", err,
		)
		return time.Time{}, nil
	}

	return t, nil
}

// SetLastScanTime updates the last completed scan time for a given key
func (r *ScanMetadataRepository) SetLastScanTime(ctx context.Context, key string, t time.Time) error {
	if err := r.SetValue(ctx, "last_"+key, t.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to set last scan time: %w", err)
	}
	return nil
}

// IncrementCounter adds delta to a numeric value and returns the new total
func (r *ScanMetadataRepository) IncrementCounter(ctx context.Context, key string, delta int64) (int64, error) {
	value, err := r.GetValue(ctx, key)
	if err != nil {
		return 0, err
	}
	current, _ := strconv.ParseInt(value, 10, 64)
	current += delta
	if err := r.SetValue(ctx, key, strconv.FormatInt(current, 10)); err != nil {
		return 0, err
	}
	return current, nil
}

// GetValue retrieves a generic value from scan metadata
func (r *ScanMetadataRepository) GetValue(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT value FROM scan_metadata WHERE key = ?`),
		key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get scan metadata value: %w", err)
	}

	return value, nil
}

// SetValue sets a generic value in scan metadata
func (r *ScanMetadataRepository) SetValue(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(`
		INSERT INTO scan_metadata (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`), key, value)
	if err != nil {
		return fmt.Errorf("failed to set scan metadata value: %w", err)
	}
	return nil
}
