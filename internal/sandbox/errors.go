package sandbox

import (
	"errors"
	"fmt"
)

// Kind is the category of a sandbox failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindEmptyScript
	KindMissingCreateStatement
	KindForbiddenCommand
	KindUnrecognizedCommand
	KindMultipleStatements
	KindInvalidName
	KindNotFound
	KindTimeout
	KindStatementFailed
	KindUndefinedTable
	KindUndefinedColumn
	KindSyntaxError
	KindUniqueViolation
	KindForeignKeyViolation
	KindNotNullViolation
	KindUnclassifiedDatabaseError
	KindProvisioningFailed
)

var kindNames = map[Kind]string{
	KindUnknown:                   "Unknown",
	KindEmptyScript:               "EmptyScript",
	KindMissingCreateStatement:    "MissingCreateStatement",
	KindForbiddenCommand:          "ForbiddenCommand",
	KindUnrecognizedCommand:       "UnrecognizedCommand",
	KindMultipleStatements:        "MultipleStatements",
	KindInvalidName:               "InvalidName",
	KindNotFound:                  "NotFound",
	KindTimeout:                   "Timeout",
	KindStatementFailed:           "StatementFailed",
	KindUndefinedTable:            "UndefinedTable",
	KindUndefinedColumn:           "UndefinedColumn",
	KindSyntaxError:               "SyntaxError",
	KindUniqueViolation:           "UniqueViolation",
	KindForeignKeyViolation:       "ForeignKeyViolation",
	KindNotNullViolation:          "NotNullViolation",
	KindUnclassifiedDatabaseError: "UnclassifiedDatabaseError",
	KindProvisioningFailed:        "ProvisioningFailed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Validation reports whether the kind is raised before anything touches a
// database.
func (k Kind) Validation() bool {
	switch k {
	case KindEmptyScript, KindMissingCreateStatement, KindForbiddenCommand,
		KindUnrecognizedCommand, KindMultipleStatements, KindInvalidName:
		return true
	}
	return false
}

// Sentinels for use with errors.Is. Matching is by Kind only.
var (
	ErrEmptyScript               = &Error{Kind: KindEmptyScript}
	ErrMissingCreateStatement    = &Error{Kind: KindMissingCreateStatement}
	ErrForbiddenCommand          = &Error{Kind: KindForbiddenCommand}
	ErrUnrecognizedCommand       = &Error{Kind: KindUnrecognizedCommand}
	ErrMultipleStatements        = &Error{Kind: KindMultipleStatements}
	ErrInvalidName               = &Error{Kind: KindInvalidName}
	ErrNotFound                  = &Error{Kind: KindNotFound}
	ErrTimeout                   = &Error{Kind: KindTimeout}
	ErrStatementFailed           = &Error{Kind: KindStatementFailed}
	ErrUndefinedTable            = &Error{Kind: KindUndefinedTable}
	ErrUndefinedColumn           = &Error{Kind: KindUndefinedColumn}
	ErrSyntaxError               = &Error{Kind: KindSyntaxError}
	ErrUniqueViolation           = &Error{Kind: KindUniqueViolation}
	ErrForeignKeyViolation       = &Error{Kind: KindForeignKeyViolation}
	ErrNotNullViolation          = &Error{Kind: KindNotNullViolation}
	ErrUnclassifiedDatabaseError = &Error{Kind: KindUnclassifiedDatabaseError}
	ErrProvisioningFailed        = &Error{Kind: KindProvisioningFailed}
)

// Error is a classified sandbox failure.
type Error struct {
	Kind    Kind
	Message string

	// Index is the 1-based position of the failing statement in a script.
	// Only set for KindStatementFailed.
	Index int
	// Statement is a truncated preview of the offending statement.
	Statement string

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Kind == KindStatementFailed {
		if msg == "" {
			return fmt.Sprintf("statement %d failed: %s", e.Index, e.Statement)
		}
		return fmt.Sprintf("statement %d failed (%s): %s", e.Index, e.Statement, msg)
	}
	if msg == "" {
		return e.Kind.String()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the outermost *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

const previewLen = 80

// preview trims a statement for inclusion in error messages.
func preview(stmt string) string {
	r := []rune(stmt)
	if len(r) <= previewLen {
		return stmt
	}
	return string(r[:previewLen-3]) + "..."
}
