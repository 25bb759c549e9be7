package handler

import (
	"errors"
	"net/http"

	mw "github.com/edvin/sqlsandbox/internal/api/middleware"
	"github.com/edvin/sqlsandbox/internal/api/response"
	"github.com/edvin/sqlsandbox/internal/sandbox"
)

// callerID returns the authenticated caller. Returns false and writes a 401
// if the request carries none.
func callerID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, ok := mw.CallerID(r.Context())
	if !ok {
		response.WriteError(w, http.StatusUnauthorized, "missing caller identity")
		return 0, false
	}
	return id, true
}

// statusForKind maps a sandbox failure category to an HTTP status.
func statusForKind(k sandbox.Kind) int {
	switch {
	case k.Validation():
		return http.StatusBadRequest
	case k == sandbox.KindNotFound:
		return http.StatusNotFound
	case k == sandbox.KindTimeout:
		return http.StatusRequestTimeout
	case k == sandbox.KindUniqueViolation, k == sandbox.KindForeignKeyViolation, k == sandbox.KindNotNullViolation:
		return http.StatusConflict
	case k == sandbox.KindStatementFailed, k == sandbox.KindUndefinedTable, k == sandbox.KindUndefinedColumn,
		k == sandbox.KindSyntaxError, k == sandbox.KindUnclassifiedDatabaseError:
		return http.StatusUnprocessableEntity
	case k == sandbox.KindProvisioningFailed:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeSandboxError writes err with the status of its kind. Errors that are
// not *sandbox.Error are reported as unclassified 500s.
func writeSandboxError(w http.ResponseWriter, err error) {
	var sbErr *sandbox.Error
	if !errors.As(err, &sbErr) {
		response.WriteErrorResponse(w, http.StatusInternalServerError, response.ErrorResponse{
			Error: err.Error(),
			Kind:  sandbox.KindUnclassifiedDatabaseError.String(),
		})
		return
	}
	response.WriteErrorResponse(w, statusForKind(sbErr.Kind), response.ErrorResponse{
		Error:     sbErr.Error(),
		Kind:      sbErr.Kind.String(),
		Index:     sbErr.Index,
		Statement: sbErr.Statement,
	})
}

func tableNames(tables []sandbox.TableSchema) []string {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}
	return names
}
