package sandboxtest

import (
	"context"
	"regexp"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/sqlsandbox/internal/sandbox"
)

var (
	createRe = regexp.MustCompile(`^CREATE DATABASE "([^"]+)"(?: TEMPLATE "([^"]+)")?$`)
	dropRe   = regexp.MustCompile(`^DROP DATABASE IF EXISTS "([^"]+)"`)
)

// Call is one statement seen by the FakeDriver.
type Call struct {
	Database string
	SQL      string
	InTx     bool
	ReadOnly bool
}

// FakeDriver is a sandbox.Driver that tracks physical databases created and
// dropped through it and records every statement. Statements other than
// database DDL go to ExecFunc and QueryFunc.
type FakeDriver struct {
	// ExecFunc handles Exec on non-maintenance statements. Nil returns 0 rows.
	ExecFunc func(ctx context.Context, database, sql string) (int64, error)
	// QueryFunc handles Query. Nil returns an empty row set.
	QueryFunc func(ctx context.Context, database, sql string) (*sandbox.RowSet, error)
	// CommitErr, when set, fails every Commit. The transaction is closed
	// afterwards, as with pgx.
	CommitErr error

	mu        sync.Mutex
	databases map[string]bool
	failDrop  map[string]error
	calls     []Call
	opened    int
	closed    int
	commits   int
	rollbacks int
}

// NewFakeDriver returns a driver whose server already holds databases.
func NewFakeDriver(databases ...string) *FakeDriver {
	d := &FakeDriver{databases: make(map[string]bool), failDrop: make(map[string]error)}
	for _, name := range databases {
		d.databases[name] = true
	}
	return d
}

// FailDrop makes DROP DATABASE of name fail with err.
func (d *FakeDriver) FailDrop(name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failDrop[name] = err
}

// Databases returns the physical databases currently present, sorted.
func (d *FakeDriver) Databases() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.databases))
	for name := range d.databases {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasDatabase reports whether name exists.
func (d *FakeDriver) HasDatabase(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.databases[name]
}

// Calls returns every recorded statement.
func (d *FakeDriver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// OpenConns returns the number of connections not yet closed.
func (d *FakeDriver) OpenConns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened - d.closed
}

// Opened returns how many connections were ever opened.
func (d *FakeDriver) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// TxCounts returns the number of commits and rollbacks.
func (d *FakeDriver) TxCounts() (commits, rollbacks int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commits, d.rollbacks
}

func (d *FakeDriver) Connect(ctx context.Context, database string) (sandbox.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.databases[database] {
		return nil, &pgconn.PgError{Code: "3D000", Message: `database "` + database + `" does not exist`}
	}
	d.opened++
	return &fakeConn{driver: d, database: database}, nil
}

// admin applies CREATE/DROP DATABASE to the tracked set. It reports whether
// sql was handled.
func (d *FakeDriver) admin(sql string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m := createRe.FindStringSubmatch(sql); m != nil {
		if d.databases[m[1]] {
			return true, &pgconn.PgError{Code: "42P04", Message: `database "` + m[1] + `" already exists`}
		}
		if m[2] != "" && !d.databases[m[2]] {
			return true, &pgconn.PgError{Code: "3D000", Message: `template database "` + m[2] + `" does not exist`}
		}
		d.databases[m[1]] = true
		return true, nil
	}
	if m := dropRe.FindStringSubmatch(sql); m != nil {
		if err := d.failDrop[m[1]]; err != nil {
			return true, err
		}
		delete(d.databases, m[1])
		return true, nil
	}
	return false, nil
}

func (d *FakeDriver) record(c Call) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
}

type fakeConn struct {
	driver   *FakeDriver
	database string
	closed   bool
}

func (c *fakeConn) Query(ctx context.Context, sql string) (*sandbox.RowSet, error) {
	return c.query(ctx, sql, false, false)
}

func (c *fakeConn) Exec(ctx context.Context, sql string) (int64, error) {
	return c.exec(ctx, sql, false)
}

func (c *fakeConn) query(ctx context.Context, sql string, inTx, readOnly bool) (*sandbox.RowSet, error) {
	c.driver.record(Call{Database: c.database, SQL: sql, InTx: inTx, ReadOnly: readOnly})
	if c.driver.QueryFunc != nil {
		return c.driver.QueryFunc(ctx, c.database, sql)
	}
	return &sandbox.RowSet{}, nil
}

func (c *fakeConn) exec(ctx context.Context, sql string, inTx bool) (int64, error) {
	c.driver.record(Call{Database: c.database, SQL: sql, InTx: inTx})
	if handled, err := c.driver.admin(sql); handled {
		return 0, err
	}
	if c.driver.ExecFunc != nil {
		return c.driver.ExecFunc(ctx, c.database, sql)
	}
	return 0, nil
}

func (c *fakeConn) Begin(ctx context.Context, opts sandbox.TxOptions) (sandbox.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &fakeTx{conn: c, readOnly: opts.ReadOnly}, nil
}

func (c *fakeConn) Close(context.Context) error {
	c.driver.mu.Lock()
	defer c.driver.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.driver.closed++
	}
	return nil
}

type fakeTx struct {
	conn     *fakeConn
	readOnly bool
	closed   bool
}

func (t *fakeTx) Query(ctx context.Context, sql string) (*sandbox.RowSet, error) {
	return t.conn.query(ctx, sql, true, t.readOnly)
}

func (t *fakeTx) Exec(ctx context.Context, sql string) (int64, error) {
	return t.conn.exec(ctx, sql, true)
}

func (t *fakeTx) Commit(context.Context) error {
	t.conn.driver.mu.Lock()
	defer t.conn.driver.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	if t.conn.driver.CommitErr != nil {
		return t.conn.driver.CommitErr
	}
	t.conn.driver.commits++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.conn.driver.mu.Lock()
	defer t.conn.driver.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.conn.driver.rollbacks++
	return nil
}
