package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/sqlsandbox/internal/sandbox"
)

// Driver opens dedicated, unpooled connections to databases on the sandbox
// server. Every connection reuses the credentials of the configured URL and
// only swaps the database name.
type Driver struct {
	base *pgx.ConnConfig
}

var _ sandbox.Driver = (*Driver)(nil)

func NewDriver(databaseURL string) (*Driver, error) {
	cfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse sandbox db config: %w", err)
	}
	// User statements run once; there is nothing to gain from preparing them.
	cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	return &Driver{base: cfg}, nil
}

func (d *Driver) Connect(ctx context.Context, database string) (sandbox.Conn, error) {
	cfg := d.base.Copy()
	cfg.Database = database
	c, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &conn{c: c}, nil
}

// querier is satisfied by both *pgx.Conn and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type conn struct {
	c *pgx.Conn
}

func (c *conn) Query(ctx context.Context, sql string) (*sandbox.RowSet, error) {
	return query(ctx, c.c, sql)
}

func (c *conn) Exec(ctx context.Context, sql string) (int64, error) {
	return exec(ctx, c.c, sql)
}

func (c *conn) Begin(ctx context.Context, opts sandbox.TxOptions) (sandbox.Tx, error) {
	txOpts := pgx.TxOptions{}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	t, err := c.c.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, err
	}
	return &tx{t: t}, nil
}

func (c *conn) Close(ctx context.Context) error {
	return c.c.Close(ctx)
}

type tx struct {
	t pgx.Tx
}

func (t *tx) Query(ctx context.Context, sql string) (*sandbox.RowSet, error) {
	return query(ctx, t.t, sql)
}

func (t *tx) Exec(ctx context.Context, sql string) (int64, error) {
	return exec(ctx, t.t, sql)
}

func (t *tx) Commit(ctx context.Context) error   { return t.t.Commit(ctx) }
func (t *tx) Rollback(ctx context.Context) error { return t.t.Rollback(ctx) }

func exec(ctx context.Context, q querier, sql string) (int64, error) {
	tag, err := q.Exec(ctx, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func query(ctx context.Context, q querier, sql string) (*sandbox.RowSet, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	rs := &sandbox.RowSet{Columns: make([]string, len(fields)), Rows: [][]any{}}
	for i, f := range fields {
		rs.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// normalizeValue converts driver values that would otherwise encode poorly
// as JSON.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x).String()
	case []byte:
		return string(x)
	default:
		return v
	}
}
