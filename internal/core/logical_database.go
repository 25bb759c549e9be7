package core

import (
	"context"
	"fmt"

	"github.com/edvin/sqlsandbox/internal/model"
)

func (r *Repository) GetLogicalDatabase(ctx context.Context, name string) (*model.LogicalDatabase, error) {
	var d model.LogicalDatabase
	err := r.db.QueryRow(ctx,
		`SELECT name, owner_id, created_at FROM logical_databases WHERE name = $1`, name,
	).Scan(&d.Name, &d.OwnerID, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get logical database %s: %w", name, notFound(err))
	}
	return &d, nil
}

func (r *Repository) CreateLogicalDatabase(ctx context.Context, d *model.LogicalDatabase) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO logical_databases (name, owner_id, created_at) VALUES ($1, $2, $3)`,
		d.Name, d.OwnerID, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert logical database: %w", err)
	}
	return nil
}

// DeleteLogicalDatabase removes the record. Copy records cascade.
func (r *Repository) DeleteLogicalDatabase(ctx context.Context, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM logical_databases WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete logical database %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete logical database %s: %w", name, model.ErrNotFound)
	}
	return nil
}

func (r *Repository) ListLogicalDatabases(ctx context.Context) ([]model.LogicalDatabase, error) {
	rows, err := r.db.Query(ctx, `SELECT name, owner_id, created_at FROM logical_databases ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list logical databases: %w", err)
	}
	defer rows.Close()

	var databases []model.LogicalDatabase
	for rows.Next() {
		var d model.LogicalDatabase
		if err := rows.Scan(&d.Name, &d.OwnerID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan logical database: %w", err)
		}
		databases = append(databases, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logical databases: %w", err)
	}
	return databases, nil
}

// CountWorksheetReferences counts worksheets that use the database. Any
// worksheet counts, whoever published it.
func (r *Repository) CountWorksheetReferences(ctx context.Context, name string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM worksheets WHERE database_name = $1`, name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count worksheets for %s: %w", name, err)
	}
	return n, nil
}

// AddWorksheet records a worksheet using the named database.
func (r *Repository) AddWorksheet(ctx context.Context, title, database string, ownerID int) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO worksheets (title, database_name, owner_id, created_at) VALUES ($1, $2, $3, now())`,
		title, database, ownerID,
	)
	if err != nil {
		return fmt.Errorf("insert worksheet %q: %w", title, err)
	}
	return nil
}
