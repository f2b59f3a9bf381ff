package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/to-wer/media-renamer/internal/library"
)

// tables in FK-dependency order
var tables = []struct {
	name    string
	columns string
}{
	{"proposals", "id, scan_time, status, proposed_name, source_path, approved_at, target_path, message"},
	{"media_files", "id, proposal_id, original_path, file_name, parsed_title, media_type, title, year, season, episode, episode_title, resolution, codec"},
	{"scan_metadata", "key, value, updated_at"},
}

func main() {
	sqlitePath := flag.String("sqlite-path", "", "Path to SQLite database file")
	pgURL := flag.String("pg-url", "", "PostgreSQL connection URL")
	flag.Parse()

	if *sqlitePath == "" || *pgURL == "" {
		fmt.Fprintf(os.Stderr, "Usage: migrate-to-pg --sqlite-path /path/to/mediarenamer.db --pg-url postgres://...\n")
		os.Exit(1)
	}

	// Both sides are migrated so the target schema exists.
	src, err := library.Open(library.DialectSQLite, *sqlitePath)
	if err != nil {
		slog.Error("Failed to open SQLite", "error", err)
		os.Exit(1)
	}
	defer src.Close()
	slog.Info("Connected to SQLite", "path", *sqlitePath)

	dst, err := library.Open(library.DialectPostgres, *pgURL)
	if err != nil {
		slog.Error("Failed to open PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dst.Close()
	slog.Info("Connected to PostgreSQL")

	if err := migrate(context.Background(), src, dst); err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Migration completed successfully")
}

// migrate replaces the contents of dst with the rows of src in one transaction.
func migrate(ctx context.Context, src, dst *library.DB) error {
	tx, err := dst.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	// Clear target tables for idempotent re-runs (reverse FK order)
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+tables[i].name); err != nil {
			return fmt.Errorf("failed to clear %s: %w", tables[i].name, err)
		}
	}
	slog.Info("Cleared target tables")

	for _, table := range tables {
		count, err := migrateTable(ctx, src.DB, tx, dst.Dialect(), table.name, table.columns)
		if err != nil {
			return fmt.Errorf("failed to migrate table %s: %w", table.name, err)
		}
		slog.Info("Migrated table", "table", table.name, "rows", count)
	}

	// Verify row counts
	for _, table := range tables {
		var srcCount, dstCount int64

		if err := src.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table.name).Scan(&srcCount); err != nil {
			return fmt.Errorf("failed to count source rows for %s: %w", table.name, err)
		}
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table.name).Scan(&dstCount); err != nil {
			return fmt.Errorf("failed to count target rows for %s: %w", table.name, err)
		}

		if srcCount != dstCount {
			return fmt.Errorf("row count mismatch for %s: source=%d, target=%d", table.name, srcCount, dstCount)
		}
		slog.Info("Verified table", "table", table.name, "rows", srcCount)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func migrateTable(ctx context.Context, src *sql.DB, tx *sql.Tx, dialect library.Dialect, tableName, columns string) (int64, error) {
	rows, err := src.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", columns, tableName))
	if err != nil {
		return 0, fmt.Errorf("failed to query source: %w", err)
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("failed to get columns: %w", err)
	}

	placeholders := make([]string, len(colNames))
	for i := range colNames {
		placeholders[i] = placeholder(dialect, i+1)
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		tableName, columns, strings.Join(placeholders, ", "),
	)

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	var count int64
	for rows.Next() {
		values := make([]interface{}, len(colNames))
		valuePtrs := make([]interface{}, len(colNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return 0, fmt.Errorf("failed to scan row: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return 0, fmt.Errorf("failed to insert row: %w", err)
		}
		count++
	}

	return count, rows.Err()
}

func placeholder(dialect library.Dialect, n int) string {
	if dialect == library.DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
