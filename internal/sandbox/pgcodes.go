package sandbox

import (
	"context"
	"errors"
	"maps"

	"github.com/jackc/pgx/v5/pgconn"
)

// defaultErrorCodes maps PostgreSQL SQLSTATE codes to sandbox kinds.
var defaultErrorCodes = map[string]Kind{
	"42P01": KindUndefinedTable,
	"42703": KindUndefinedColumn,
	"42601": KindSyntaxError,
	"23505": KindUniqueViolation,
	"23503": KindForeignKeyViolation,
	"23502": KindNotNullViolation,
	"42P04": KindUniqueViolation, // duplicate_database
	"57014": KindTimeout,         // query_canceled
}

// Classifier maps backend errors into the sandbox taxonomy. Codes may be
// registered at startup; a Classifier must not be modified while in use.
type Classifier struct {
	codes map[string]Kind
}

// NewClassifier returns a Classifier seeded with the default SQLSTATE table.
func NewClassifier() *Classifier {
	return &Classifier{codes: maps.Clone(defaultErrorCodes)}
}

// Register maps an additional SQLSTATE code, replacing any existing entry.
func (c *Classifier) Register(code string, kind Kind) {
	c.codes[code] = kind
}

// Classify converts err into an *Error. ctx is the context the failing call
// ran under; an expired deadline always classifies as KindTimeout.
func (c *Classifier) Classify(ctx context.Context, err error) *Error {
	if err == nil {
		return nil
	}
	var sbErr *Error
	if errors.As(err, &sbErr) {
		return sbErr
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) ||
		(ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return &Error{Kind: KindTimeout, Message: "statement exceeded its time limit", Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kind, ok := c.codes[pgErr.Code]
		if !ok {
			kind = KindUnclassifiedDatabaseError
		}
		return &Error{Kind: kind, Message: pgErr.Message, Err: err}
	}

	return &Error{Kind: KindUnclassifiedDatabaseError, Message: err.Error(), Err: err}
}
