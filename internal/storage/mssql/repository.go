package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"groups-exporter/internal/observability"
	"groups-exporter/internal/storage"
	"groups-exporter/internal/store"
)

const schema = `
IF OBJECT_ID(N'dbo.TblGroups', N'U') IS NULL
CREATE TABLE dbo.TblGroups (
	[UID]           INT IDENTITY(1,1) PRIMARY KEY,
	[GroupKey]      NVARCHAR(400) NOT NULL UNIQUE,
	[Name]          NVARCHAR(200) NOT NULL,
	[MembersRaw]    NVARCHAR(50)  NOT NULL,
	[MembersCount]  BIGINT        NOT NULL,
	[LastActiveRaw] NVARCHAR(100) NOT NULL,
	[URL]           NVARCHAR(800) NOT NULL,
	[FirstSeenAt]   DATETIME2     NOT NULL,
	[LastUpdatedAt] DATETIME2     NOT NULL,
	[CheckSum]      CHAR(64)      NOT NULL
)`

func init() {
	storage.Register("mssql", func(opts storage.Options) (storage.Repository, error) {
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

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}, nil
}

// UpsertGroup merges the row by key. Rows whose checksum matches are left
// untouched and report neither flag.
func (r *Repository) UpsertGroup(ctx context.Context, row *storage.GroupRow) (isNew bool, isUpdated bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := `
		MERGE INTO dbo.TblGroups AS target
		USING (SELECT @GroupKey AS GroupKey) AS source
		ON target.[GroupKey] = source.GroupKey
		WHEN MATCHED AND target.[CheckSum] <> @CheckSum THEN
			UPDATE SET
				[Name] = @Name,
				[MembersRaw] = @MembersRaw,
				[MembersCount] = @MembersCount,
				[LastActiveRaw] = @LastActiveRaw,
				[URL] = @URL,
				[LastUpdatedAt] = @LastUpdatedAt,
				[CheckSum] = @CheckSum
		WHEN NOT MATCHED THEN
			INSERT ([GroupKey], [Name], [MembersRaw], [MembersCount], [LastActiveRaw], [URL], [FirstSeenAt], [LastUpdatedAt], [CheckSum])
			VALUES (@GroupKey, @Name, @MembersRaw, @MembersCount, @LastActiveRaw, @URL, @FirstSeenAt, @LastUpdatedAt, @CheckSum)
		OUTPUT $action;
	`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return false, false, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err)
		}
	}()

	var action string
	err = stmt.QueryRowContext(ctx,
		sql.Named("GroupKey", row.Key),
		sql.Named("Name", row.Name),
		sql.Named("MembersRaw", row.MembersRaw),
		sql.Named("MembersCount", row.MembersCount),
		sql.Named("LastActiveRaw", row.LastActiveRaw),
		sql.Named("URL", row.URL),
		sql.Named("FirstSeenAt", row.FirstSeenAt.UTC()),
		sql.Named("LastUpdatedAt", row.LastUpdatedAt.UTC()),
		sql.Named("CheckSum", row.CheckSum),
	).Scan(&action)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to execute upsert: %w", err)
	}

	isNew, isUpdated = mergeAction(action)
	return isNew, isUpdated, nil
}

// mergeAction maps the MERGE $action output to (isNew, isUpdated).
func mergeAction(action string) (bool, bool) {
	switch action {
	case "INSERT":
		return true, false
	case "UPDATE":
		return false, true
	default:
		return false, false
	}
}

// LoadGroups returns all rows in insertion order.
func (r *Repository) LoadGroups(ctx context.Context) ([]store.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT [GroupKey], [Name], [MembersRaw], [MembersCount], [LastActiveRaw], [URL], [FirstSeenAt], [LastUpdatedAt]
		FROM dbo.TblGroups ORDER BY [UID]`)
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
		var rec store.Record
		if err := rows.Scan(&rec.Key, &rec.Name, &rec.MembersRaw, &rec.MembersCount, &rec.LastActiveRaw, &rec.URL, &rec.FirstSeenAt, &rec.LastUpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
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
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dbo.TblGroups`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}
	return count, nil
}

func (r *Repository) ClearGroups(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM dbo.TblGroups`); err != nil {
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
