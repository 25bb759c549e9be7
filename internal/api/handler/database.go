package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/sqlsandbox/internal/api/request"
	"github.com/edvin/sqlsandbox/internal/api/response"
	"github.com/edvin/sqlsandbox/internal/model"
	"github.com/edvin/sqlsandbox/internal/sandbox"
)

type Database struct {
	sb             *sandbox.Sandbox
	maxUploadBytes int64
}

func NewDatabase(sb *sandbox.Sandbox, maxUploadBytes int64) *Database {
	return &Database{sb: sb, maxUploadBytes: maxUploadBytes}
}

// CreatedDatabase is the body returned after a database is created.
type CreatedDatabase struct {
	Name   string   `json:"name"`
	Tables []string `json:"tables"`
}

// List godoc
//
//	@Summary		List databases
//	@Description	Returns the logical databases the caller owns or that a worksheet references.
//	@Tags			Databases
//	@Security		BearerAuth
//	@Success		200	{array}		model.LogicalDatabase
//	@Failure		500	{object}	response.ErrorResponse
//	@Router			/sql/databases [get]
func (h *Database) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	dbs, err := h.sb.ListDatabases(r.Context(), caller)
	if err != nil {
		writeSandboxError(w, err)
		return
	}
	if dbs == nil {
		dbs = []model.LogicalDatabase{}
	}
	response.WriteJSON(w, http.StatusOK, dbs)
}

// Create godoc
//
//	@Summary		Create a database
//	@Description	Creates a logical database owned by the caller and runs the script in it as one transaction. Returns the tables that exist afterwards.
//	@Tags			Databases
//	@Security		BearerAuth
//	@Param			body	body		request.CreateDatabase	true	"Name and script"
//	@Success		201		{object}	CreatedDatabase
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		409		{object}	response.ErrorResponse
//	@Failure		422		{object}	response.ErrorResponse
//	@Router			/sql/databases [post]
func (h *Database) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var req request.CreateDatabase
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.sb.CreateDatabase(r.Context(), req.Name, req.Script, caller); err != nil {
		writeSandboxError(w, err)
		return
	}
	h.writeCreated(w, r, strings.ToLower(req.Name), caller)
}

// Upload godoc
//
//	@Summary		Import a database script
//	@Description	Imports a SQL script whose first statement is CREATE DATABASE. The remaining statements run in the new database as one transaction.
//	@Tags			Databases
//	@Security		BearerAuth
//	@Accept			multipart/form-data
//	@Param			file	formData	file	true	"SQL script"
//	@Success		201		{object}	CreatedDatabase
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		409		{object}	response.ErrorResponse
//	@Failure		413		{object}	response.ErrorResponse
//	@Failure		422		{object}	response.ErrorResponse
//	@Router			/sql/upload [post]
func (h *Database) Upload(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	if r.ContentLength > h.maxUploadBytes {
		response.WriteError(w, http.StatusRequestEntityTooLarge, "script exceeds upload limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.WriteError(w, http.StatusRequestEntityTooLarge, "script exceeds upload limit")
			return
		}
		response.WriteError(w, http.StatusBadRequest, "missing multipart file field \"file\"")
		return
	}
	defer file.Close()

	script, err := io.ReadAll(file)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, "read script: "+err.Error())
		return
	}

	name, err := h.sb.ImportScript(r.Context(), string(script), caller)
	if err != nil {
		writeSandboxError(w, err)
		return
	}
	h.writeCreated(w, r, name, caller)
}

// writeCreated responds 201 with the tables of a freshly created database.
// A failing schema lookup is logged and reported as an empty table list since
// the database itself exists.
func (h *Database) writeCreated(w http.ResponseWriter, r *http.Request, name string, caller int) {
	tables, err := h.sb.DescribeSchema(r.Context(), name, caller)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("database", name).Msg("describe created database")
	}
	response.WriteJSON(w, http.StatusCreated, CreatedDatabase{Name: name, Tables: tableNames(tables)})
}

// Delete godoc
//
//	@Summary		Delete a database
//	@Description	Drops a logical database the caller owns together with every private copy of it.
//	@Tags			Databases
//	@Security		BearerAuth
//	@Param			name	path	string	true	"Database name"
//	@Success		204
//	@Failure		404	{object}	response.ErrorResponse
//	@Router			/sql/databases/{name} [delete]
func (h *Database) Delete(w http.ResponseWriter, r *http.Request) {
	name, err := request.RequireName(chi.URLParam(r, "name"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	if err := h.sb.DeleteDatabase(r.Context(), name, caller); err != nil {
		writeSandboxError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetCopy godoc
//
//	@Summary		Discard the caller's private copy
//	@Description	Drops the caller's copy of the database. The next manipulation starts from a fresh copy of the source.
//	@Tags			Databases
//	@Security		BearerAuth
//	@Param			name	path	string	true	"Database name"
//	@Success		204
//	@Failure		404	{object}	response.ErrorResponse
//	@Router			/sql/databases/{name}/copy [delete]
func (h *Database) ResetCopy(w http.ResponseWriter, r *http.Request) {
	name, err := request.RequireName(chi.URLParam(r, "name"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	allowed, err := h.sb.CheckAccess(r.Context(), name, caller)
	if err != nil {
		writeSandboxError(w, err)
		return
	}
	if !allowed {
		response.WriteErrorResponse(w, http.StatusNotFound, response.ErrorResponse{
			Error: "database " + name + " not found",
			Kind:  sandbox.KindNotFound.String(),
		})
		return
	}

	if err := h.sb.ResetCopy(r.Context(), name, caller); err != nil {
		writeSandboxError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Schema godoc
//
//	@Summary		Describe a database
//	@Description	Returns the tables and columns of the public schema of a source database.
//	@Tags			Databases
//	@Security		BearerAuth
//	@Param			name	path		string	true	"Database name"
//	@Success		200		{array}		sandbox.TableSchema
//	@Failure		404		{object}	response.ErrorResponse
//	@Router			/sql/databases/{name}/schema [get]
func (h *Database) Schema(w http.ResponseWriter, r *http.Request) {
	name, err := request.RequireName(chi.URLParam(r, "name"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	tables, err := h.sb.DescribeSchema(r.Context(), name, caller)
	if err != nil {
		writeSandboxError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, tables)
}
