package handler

import (
	"fmt"
	"net/http"

	"github.com/edvin/sqlsandbox/internal/api/request"
	"github.com/edvin/sqlsandbox/internal/api/response"
	"github.com/edvin/sqlsandbox/internal/sandbox"
)

type SQL struct {
	sb *sandbox.Sandbox
}

func NewSQL(sb *sandbox.Sandbox) *SQL {
	return &SQL{sb: sb}
}

// QueryResult is the body of a successful read-only execution.
type QueryResult struct {
	*sandbox.ExecutionResult
	ExecutionTimeMs int64 `json:"execution_time_ms"`
}

// ManipulationResult is the body of a successful sandboxed execution.
type ManipulationResult struct {
	Success         bool                `json:"success"`
	Message         string              `json:"message"`
	Database        string              `json:"database"`
	CopyDatabase    string              `json:"copy_database"`
	QueryType       sandbox.CommandKind `json:"query_type"`
	AffectedRows    int64               `json:"affected_rows"`
	ExecutionTimeMs int64               `json:"execution_time_ms"`
	ResetPerformed  bool                `json:"reset_performed"`
	Columns         []string            `json:"columns,omitempty"`
	Rows            [][]any             `json:"rows,omitempty"`
}

// ValidationResult is the body of a validate call.
type ValidationResult struct {
	Valid     bool                `json:"valid"`
	QueryType sandbox.CommandKind `json:"query_type,omitempty"`
	Error     string              `json:"error,omitempty"`
	Kind      string              `json:"kind,omitempty"`
}

// Execute godoc
//
//	@Summary		Run a read-only statement
//	@Description	Runs a single SELECT, WITH, SHOW, DESCRIBE or EXPLAIN statement directly against the source database inside a read-only transaction.
//	@Tags			SQL
//	@Security		BearerAuth
//	@Param			body	body		request.ExecuteQuery	true	"Statement"
//	@Success		200		{object}	QueryResult
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		404		{object}	response.ErrorResponse
//	@Failure		408		{object}	response.ErrorResponse
//	@Failure		422		{object}	response.ErrorResponse
//	@Router			/sql/execute [post]
func (h *SQL) Execute(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var req request.ExecuteQuery
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.sb.RunQuery(r.Context(), req.Database, caller, req.Query)
	if err != nil {
		writeSandboxError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, QueryResult{
		ExecutionResult: res,
		ExecutionTimeMs: res.Elapsed.Milliseconds(),
	})
}

// Manipulate godoc
//
//	@Summary		Run a statement against a private copy
//	@Description	Runs a single statement against the caller's private copy of the database, creating the copy on first use. With reset_database the copy is discarded first.
//	@Tags			SQL
//	@Security		BearerAuth
//	@Param			body	body		request.Manipulate	true	"Statement"
//	@Success		200		{object}	ManipulationResult
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		404		{object}	response.ErrorResponse
//	@Failure		409		{object}	response.ErrorResponse
//	@Failure		422		{object}	response.ErrorResponse
//	@Failure		503		{object}	response.ErrorResponse
//	@Router			/sql/manipulate [post]
func (h *SQL) Manipulate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var req request.Manipulate
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.sb.RunManipulation(r.Context(), sandbox.ManipulationRequest{
		Database: req.Database,
		CallerID: caller,
		Query:    req.Query,
		Reset:    req.ResetDatabase,
	})
	if err != nil {
		writeSandboxError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, ManipulationResult{
		Success:         true,
		Message:         resultMessage(res.ExecutionResult),
		Database:        res.Database,
		CopyDatabase:    res.CopyDatabase,
		QueryType:       res.Kind,
		AffectedRows:    res.AffectedRows,
		ExecutionTimeMs: res.Elapsed.Milliseconds(),
		ResetPerformed:  res.ResetPerformed,
		Columns:         res.Columns,
		Rows:            res.Rows,
	})
}

// Split godoc
//
//	@Summary		Split a script into statements
//	@Tags			SQL
//	@Security		BearerAuth
//	@Param			body	body		request.SplitScript	true	"Script"
//	@Success		200		{object}	map[string][]string
//	@Failure		400		{object}	response.ErrorResponse
//	@Router			/sql/split [post]
func (h *SQL) Split(w http.ResponseWriter, r *http.Request) {
	var req request.SplitScript
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	stmts, err := sandbox.SplitStatements(req.Script)
	if err != nil {
		writeSandboxError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string][]string{"statements": stmts})
}

// Validate godoc
//
//	@Summary		Check a statement without running it
//	@Description	Classifies a statement under the read_only or manipulation policy. Rejected statements are reported with valid=false rather than an error status.
//	@Tags			SQL
//	@Security		BearerAuth
//	@Param			body	body		request.ValidateStatement	true	"Statement and mode"
//	@Success		200		{object}	ValidationResult
//	@Failure		400		{object}	response.ErrorResponse
//	@Router			/sql/validate [post]
func (h *SQL) Validate(w http.ResponseWriter, r *http.Request) {
	var req request.ValidateStatement
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	check := sandbox.ValidateReadOnly
	if req.Mode == sandbox.PolicyManipulation.String() {
		check = sandbox.ValidateManipulation
	}

	kind, err := check(req.Query)
	if err != nil {
		response.WriteJSON(w, http.StatusOK, ValidationResult{
			Valid: false,
			Error: err.Error(),
			Kind:  sandbox.KindOf(err).String(),
		})
		return
	}
	response.WriteJSON(w, http.StatusOK, ValidationResult{Valid: true, QueryType: kind})
}

func resultMessage(res *sandbox.ExecutionResult) string {
	if res.Kind.ReturnsRows() {
		return fmt.Sprintf("%d row(s) returned", res.RowCount)
	}
	return fmt.Sprintf("%s executed, %d row(s) affected", res.Kind, res.AffectedRows)
}
