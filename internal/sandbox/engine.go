package sandbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// releaseTimeout bounds closing a connection after the caller's context has
// possibly already expired.
const releaseTimeout = 5 * time.Second

// ExecutionResult is the shaped outcome of a single statement.
type ExecutionResult struct {
	Kind         CommandKind   `json:"query_type"`
	Columns      []string      `json:"columns,omitempty"`
	Rows         [][]any       `json:"rows,omitempty"`
	RowCount     int           `json:"row_count"`
	AffectedRows int64         `json:"affected_rows"`
	Elapsed      time.Duration `json:"-"`
}

// Engine runs statements on dedicated connections obtained from a Driver.
// Connections are never reused across calls.
type Engine struct {
	driver     Driver
	classifier *Classifier
	logger     zerolog.Logger
}

// NewEngine creates a new Engine.
func NewEngine(driver Driver, classifier *Classifier, logger zerolog.Logger) *Engine {
	if classifier == nil {
		classifier = NewClassifier()
	}
	return &Engine{
		driver:     driver,
		classifier: classifier,
		logger:     logger.With().Str("component", "execution-engine").Logger(),
	}
}

// Execute runs one statement against database. The deadline, if any, comes
// from ctx. Row-returning kinds populate Columns and Rows; everything else
// only reports AffectedRows.
func (e *Engine) Execute(ctx context.Context, statement, database string) (*ExecutionResult, error) {
	return e.execute(ctx, statement, database, false)
}

// execute optionally wraps the statement in a READ ONLY transaction, which
// keeps data-modifying CTEs and EXPLAIN ANALYZE from writing to the source
// database.
func (e *Engine) execute(ctx context.Context, statement, database string, readOnly bool) (*ExecutionResult, error) {
	start := time.Now()
	kind := classify(statement)

	conn, err := e.driver.Connect(ctx, database)
	if err != nil {
		return nil, e.classifier.Classify(ctx, err)
	}
	defer e.release(conn, database)

	var q Querier = conn
	var tx Tx
	if readOnly {
		tx, err = conn.Begin(ctx, TxOptions{ReadOnly: true})
		if err != nil {
			return nil, e.classifier.Classify(ctx, err)
		}
		q = tx
	}

	result := &ExecutionResult{Kind: kind}
	if kind.ReturnsRows() {
		var rs *RowSet
		rs, err = q.Query(ctx, statement)
		if err == nil {
			result.Columns = rs.Columns
			result.Rows = rs.Rows
			result.RowCount = len(rs.Rows)
		}
	} else {
		result.AffectedRows, err = q.Exec(ctx, statement)
	}

	if tx != nil {
		if err != nil {
			e.rollback(tx)
		} else {
			err = tx.Commit(ctx)
		}
	}
	if err != nil {
		classified := e.classifier.Classify(ctx, err)
		e.logger.Debug().Err(err).Str("database", database).Str("kind", classified.Kind.String()).Msg("statement failed")
		return nil, classified
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// ExecuteScript runs all statements in one transaction. The first failure
// rolls the whole transaction back and is reported as KindStatementFailed
// with the 1-based index of the offending statement.
func (e *Engine) ExecuteScript(ctx context.Context, statements []string, database string) error {
	return e.executeScript(ctx, statements, database, 1)
}

func (e *Engine) executeScript(ctx context.Context, statements []string, database string, firstIndex int) error {
	conn, err := e.driver.Connect(ctx, database)
	if err != nil {
		return e.classifier.Classify(ctx, err)
	}
	defer e.release(conn, database)

	tx, err := conn.Begin(ctx, TxOptions{})
	if err != nil {
		return e.classifier.Classify(ctx, err)
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			e.rollback(tx)
			cause := e.classifier.Classify(ctx, err)
			return &Error{
				Kind:      KindStatementFailed,
				Message:   cause.Error(),
				Index:     firstIndex + i,
				Statement: preview(stmt),
				Err:       cause,
			}
		}
	}

	// A failed commit has already ended the transaction.
	if err := tx.Commit(ctx); err != nil {
		return e.classifier.Classify(ctx, err)
	}

	e.logger.Info().Str("database", database).Int("statements", len(statements)).Msg("script committed")
	return nil
}

func (e *Engine) rollback(tx Tx) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := tx.Rollback(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("rollback failed")
	}
}

// release closes the connection with a fresh context so it happens even
// when the caller's deadline has already fired.
func (e *Engine) release(conn Conn, database string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := conn.Close(ctx); err != nil {
		e.logger.Warn().Err(err).Str("database", database).Msg("close connection")
	}
}
