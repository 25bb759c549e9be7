package sandbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/sqlsandbox/internal/model"
)

// Repository persists logical databases and their copies. Implementations
// must enforce uniqueness of (LogicalDatabase, RequesterID) on copy records
// and return model.ErrNotFound for missing records.
type Repository interface {
	GetLogicalDatabase(ctx context.Context, name string) (*model.LogicalDatabase, error)
	CreateLogicalDatabase(ctx context.Context, db *model.LogicalDatabase) error
	DeleteLogicalDatabase(ctx context.Context, name string) error
	ListLogicalDatabases(ctx context.Context) ([]model.LogicalDatabase, error)
	CountWorksheetReferences(ctx context.Context, name string) (int, error)

	GetCopy(ctx context.Context, logicalDatabase string, requesterID int) (*model.DatabaseCopy, error)
	// InsertCopyIfAbsent atomically inserts c unless a record for the same
	// pair exists, and reports whether it inserted.
	InsertCopyIfAbsent(ctx context.Context, c *model.DatabaseCopy) (bool, error)
	TouchCopy(ctx context.Context, copyName string, at time.Time) error
	DeleteCopy(ctx context.Context, copyName string) error
	ListCopies(ctx context.Context, logicalDatabase string) ([]model.DatabaseCopy, error)
	// ListExpiredCopies returns copies whose expiry is strictly before now.
	ListExpiredCopies(ctx context.Context, now time.Time) ([]model.DatabaseCopy, error)
}

// Driver opens connections to databases on the sandbox server by name.
type Driver interface {
	Connect(ctx context.Context, database string) (Conn, error)
}

// Querier runs a single SQL statement without parameters.
type Querier interface {
	Query(ctx context.Context, sql string) (*RowSet, error)
	Exec(ctx context.Context, sql string) (int64, error)
}

// Conn is a dedicated, non-pooled connection. Close must be safe to call
// after the connection's context has been cancelled.
type Conn interface {
	Querier
	Begin(ctx context.Context, opts TxOptions) (Tx, error)
	Close(ctx context.Context) error
}

// Tx is an open transaction on a Conn.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxOptions configures a transaction.
type TxOptions struct {
	ReadOnly bool
}

// RowSet is a fully materialised query result.
type RowSet struct {
	Columns []string
	Rows    [][]any
}

// Auditor receives one entry per executed or rejected statement. Record must
// not block.
type Auditor interface {
	Record(entry model.QueryAuditEntry)
}

// Options tunes a Sandbox.
type Options struct {
	// MaintenanceDatabase is connected to for CREATE/DROP DATABASE.
	MaintenanceDatabase string
	CopyTTL             time.Duration
	ReadTimeout         time.Duration
	ManipulationTimeout time.Duration
	ImportTimeout       time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MaintenanceDatabase: "postgres",
		CopyTTL:             4 * time.Hour,
		ReadTimeout:         10 * time.Second,
		ManipulationTimeout: 30 * time.Second,
		ImportTimeout:       5 * time.Minute,
		Clock:               time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaintenanceDatabase == "" {
		o.MaintenanceDatabase = d.MaintenanceDatabase
	}
	if o.CopyTTL <= 0 {
		o.CopyTTL = d.CopyTTL
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.ManipulationTimeout <= 0 {
		o.ManipulationTimeout = d.ManipulationTimeout
	}
	if o.ImportTimeout <= 0 {
		o.ImportTimeout = d.ImportTimeout
	}
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	return o
}

// Sandbox composes the access gate, validator, copy manager and execution
// engine into the operations used by the API and worker.
type Sandbox struct {
	repo    Repository
	gate    *Gate
	copies  *CopyManager
	engine  *Engine
	admin   *admin
	auditor Auditor
	opts    Options
	logger  zerolog.Logger
}

// New creates a Sandbox. auditor may be nil.
func New(repo Repository, driver Driver, logger zerolog.Logger, opts Options, auditor Auditor) *Sandbox {
	opts = opts.withDefaults()
	classifier := NewClassifier()
	adm := &admin{driver: driver, database: opts.MaintenanceDatabase, classifier: classifier}

	return &Sandbox{
		repo:    repo,
		gate:    NewGate(repo),
		copies:  newCopyManager(repo, adm, opts, logger),
		engine:  NewEngine(driver, classifier, logger),
		admin:   adm,
		auditor: auditor,
		opts:    opts,
		logger:  logger.With().Str("component", "sandbox").Logger(),
	}
}

// Classifier exposes the error classifier so callers can register
// additional SQLSTATE codes at startup.
func (s *Sandbox) Classifier() *Classifier {
	return s.engine.classifier
}

// CheckAccess reports whether callerID may use the logical database.
func (s *Sandbox) CheckAccess(ctx context.Context, logicalDatabase string, callerID int) (bool, error) {
	return s.gate.CheckAccess(ctx, logicalDatabase, callerID)
}

// EnsureCopy returns the physical copy of logicalDatabase for requesterID,
// provisioning one if none is active.
func (s *Sandbox) EnsureCopy(ctx context.Context, logicalDatabase string, requesterID int) (string, error) {
	return s.copies.EnsureCopy(ctx, logicalDatabase, requesterID)
}

// ResetCopy discards requesterID's copy of logicalDatabase, if any.
func (s *Sandbox) ResetCopy(ctx context.Context, logicalDatabase string, requesterID int) error {
	return s.copies.ResetCopy(ctx, logicalDatabase, requesterID)
}

// SweepExpiredCopies removes every copy whose lease has run out.
func (s *Sandbox) SweepExpiredCopies(ctx context.Context) (int, error) {
	return s.copies.SweepExpiredCopies(ctx)
}

// Execute runs a single statement against a physical database.
func (s *Sandbox) Execute(ctx context.Context, statement, physicalDatabase string) (*ExecutionResult, error) {
	return s.engine.Execute(ctx, statement, physicalDatabase)
}

// ExecuteScript runs statements in a single transaction.
func (s *Sandbox) ExecuteScript(ctx context.Context, statements []string, physicalDatabase string) error {
	return s.engine.ExecuteScript(ctx, statements, physicalDatabase)
}
