package core

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/sqlsandbox/internal/model"
)

const copyColumns = `copy_name, logical_database, requester_id, created_at, last_used_at, expires_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCopy(row scanner) (model.DatabaseCopy, error) {
	var c model.DatabaseCopy
	err := row.Scan(&c.CopyName, &c.LogicalDatabase, &c.RequesterID, &c.CreatedAt, &c.LastUsedAt, &c.ExpiresAt)
	return c, err
}

func (r *Repository) GetCopy(ctx context.Context, logicalDatabase string, requesterID int) (*model.DatabaseCopy, error) {
	c, err := scanCopy(r.db.QueryRow(ctx,
		`SELECT `+copyColumns+` FROM database_copies WHERE logical_database = $1 AND requester_id = $2`,
		logicalDatabase, requesterID,
	))
	if err != nil {
		return nil, fmt.Errorf("get copy of %s for %d: %w", logicalDatabase, requesterID, notFound(err))
	}
	return &c, nil
}

// InsertCopyIfAbsent relies on the (logical_database, requester_id) unique
// constraint; a conflicting insert affects no rows.
func (r *Repository) InsertCopyIfAbsent(ctx context.Context, c *model.DatabaseCopy) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO database_copies (`+copyColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (logical_database, requester_id) DO NOTHING`,
		c.CopyName, c.LogicalDatabase, c.RequesterID, c.CreatedAt, c.LastUsedAt, c.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert copy %s: %w", c.CopyName, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) TouchCopy(ctx context.Context, copyName string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE database_copies SET last_used_at = $2 WHERE copy_name = $1`, copyName, at)
	if err != nil {
		return fmt.Errorf("touch copy %s: %w", copyName, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("touch copy %s: %w", copyName, model.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteCopy(ctx context.Context, copyName string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM database_copies WHERE copy_name = $1`, copyName); err != nil {
		return fmt.Errorf("delete copy %s: %w", copyName, err)
	}
	return nil
}

func (r *Repository) ListCopies(ctx context.Context, logicalDatabase string) ([]model.DatabaseCopy, error) {
	return r.listCopies(ctx,
		`SELECT `+copyColumns+` FROM database_copies WHERE logical_database = $1 ORDER BY copy_name`,
		logicalDatabase)
}

// ListExpiredCopies returns copies whose expiry is strictly before now.
func (r *Repository) ListExpiredCopies(ctx context.Context, now time.Time) ([]model.DatabaseCopy, error) {
	return r.listCopies(ctx,
		`SELECT `+copyColumns+` FROM database_copies WHERE expires_at < $1 ORDER BY expires_at`,
		now)
}

func (r *Repository) listCopies(ctx context.Context, query string, arg any) ([]model.DatabaseCopy, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list copies: %w", err)
	}
	defer rows.Close()

	var copies []model.DatabaseCopy
	for rows.Next() {
		c, err := scanCopy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan copy: %w", err)
		}
		copies = append(copies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate copies: %w", err)
	}
	return copies, nil
}
