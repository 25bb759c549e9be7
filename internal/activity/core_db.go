package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB defines the database operations used by activity structs.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CoreDB contains activities that maintain the bookkeeping database.
type CoreDB struct {
	db DB
}

// NewCoreDB creates a new CoreDB activity struct.
func NewCoreDB(db DB) *CoreDB {
	return &CoreDB{db: db}
}

// DeleteOldQueryAuditLogs deletes query audit entries older than the specified
// number of days and returns the count of deleted rows.
func (a *CoreDB) DeleteOldQueryAuditLogs(ctx context.Context, retentionDays int) (int64, error) {
	tag, err := a.db.Exec(ctx,
		"DELETE FROM query_audit_logs WHERE created_at < now() - make_interval(days => $1)", retentionDays)
	if err != nil {
		return 0, fmt.Errorf("delete old query audit logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountActiveCopies returns how many database copies are currently recorded.
func (a *CoreDB) CountActiveCopies(ctx context.Context) (int64, error) {
	var n int64
	if err := a.db.QueryRow(ctx, "SELECT count(*) FROM database_copies").Scan(&n); err != nil {
		return 0, fmt.Errorf("count active copies: %w", err)
	}
	return n, nil
}
