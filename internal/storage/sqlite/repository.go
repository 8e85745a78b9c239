// Package sqlite stores group records in a local SQLite database through
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"groups-exporter/internal/observability"
	"groups-exporter/internal/storage"
	"groups-exporter/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS group_records (
	key             TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	members_raw     TEXT NOT NULL DEFAULT '',
	members_count   INTEGER NOT NULL DEFAULT 0,
	last_active_raw TEXT NOT NULL DEFAULT '',
	url             TEXT NOT NULL,
	first_seen_at   INTEGER NOT NULL,
	last_updated_at INTEGER NOT NULL,
	checksum        TEXT NOT NULL
)`

func init() {
	storage.Register("sqlite", func(opts storage.Options) (storage.Repository, error) {
		return NewRepository(opts.DSN, opts.CommandTimeout, opts.Logger)
	})
}

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	if logger == nil {
		logger = observability.NewNop()
	}
	if commandTimeout <= 0 {
		commandTimeout = 5 * time.Second
	}

	if path := filePath(dsn); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database is private to its connection and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	for _, stmt := range []string{
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
		schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}, nil
}

// filePath returns the file behind dsn, or "" for in-memory databases.
func filePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	return path
}

// UpsertGroup inserts a new row or rewrites one whose checksum changed.
func (r *Repository) UpsertGroup(ctx context.Context, row *storage.GroupRow) (isNew bool, isUpdated bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT checksum FROM group_records WHERE key = ?`, row.Key).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO group_records (key, name, members_raw, members_count, last_active_raw, url, first_seen_at, last_updated_at, checksum)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.Key, row.Name, row.MembersRaw, row.MembersCount, row.LastActiveRaw, row.URL,
			row.FirstSeenAt.UnixNano(), row.LastUpdatedAt.UnixNano(), row.CheckSum,
		)
		if err != nil {
			return false, false, fmt.Errorf("failed to insert group: %w", err)
		}
		isNew = true
	case err != nil:
		return false, false, fmt.Errorf("failed to query database: %w", err)
	case stored == row.CheckSum:
		err = tx.Rollback()
		return false, false, err
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE group_records SET
				name = ?, members_raw = ?, members_count = ?, last_active_raw = ?,
				url = ?, last_updated_at = ?, checksum = ?
			WHERE key = ?`,
			row.Name, row.MembersRaw, row.MembersCount, row.LastActiveRaw,
			row.URL, row.LastUpdatedAt.UnixNano(), row.CheckSum, row.Key,
		)
		if err != nil {
			return false, false, fmt.Errorf("failed to update group: %w", err)
		}
		isUpdated = true
	}

	if err = tx.Commit(); err != nil {
		return false, false, fmt.Errorf("failed to commit: %w", err)
	}
	return isNew, isUpdated, nil
}

// LoadGroups returns all rows in insertion order.
func (r *Repository) LoadGroups(ctx context.Context) ([]store.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT key, name, members_raw, members_count, last_active_raw, url, first_seen_at, last_updated_at
		FROM group_records ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("Failed to close rows", "error", err)
		}
	}()

	var out []store.Record
	for rows.Next() {
		var (
			rec                store.Record
			firstSeen, updated int64
		)
		if err := rows.Scan(&rec.Key, &rec.Name, &rec.MembersRaw, &rec.MembersCount, &rec.LastActiveRaw, &rec.URL, &firstSeen, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		rec.FirstSeenAt = time.Unix(0, firstSeen).UTC()
		rec.LastUpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read groups: %w", err)
	}
	return out, nil
}

func (r *Repository) CountGroups(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM group_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}
	return count, nil
}

func (r *Repository) ClearGroups(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM group_records`); err != nil {
		return fmt.Errorf("failed to clear groups: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
