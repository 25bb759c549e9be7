package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	mw "github.com/edvin/sqlsandbox/internal/api/middleware"
	"github.com/edvin/sqlsandbox/internal/sandbox"
	"github.com/edvin/sqlsandbox/internal/sandbox/sandboxtest"
)

const (
	ownerID    = 1
	strangerID = 3
)

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newUploadRequest creates a multipart request carrying script under field.
func newUploadRequest(field, script string) *http.Request {
	var buf bytes.Buffer
	mpw := multipart.NewWriter(&buf)
	part, _ := mpw.CreateFormFile(field, "script.sql")
	part.Write([]byte(script))
	mpw.Close()

	r := httptest.NewRequest(http.MethodPost, "/sql/upload", &buf)
	r.Header.Set("Content-Type", mpw.FormDataContentType())
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withCaller injects an authenticated caller id into the request context.
func withCaller(r *http.Request, id int) *http.Request {
	return r.WithContext(mw.WithCallerID(r.Context(), id))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

// newTestSandbox returns a sandbox over in-memory fakes holding a "shop"
// database owned by ownerID. Schema queries report a single "items" table.
func newTestSandbox() (*sandbox.Sandbox, *sandboxtest.MemoryRepository, *sandboxtest.FakeDriver) {
	owner := ownerID
	repo := sandboxtest.NewMemoryRepository()
	repo.AddDatabase("shop", &owner)

	driver := sandboxtest.NewFakeDriver("postgres", "shop")
	driver.QueryFunc = func(_ context.Context, _ string, sql string) (*sandbox.RowSet, error) {
		if strings.Contains(sql, "information_schema.columns") {
			return &sandbox.RowSet{
				Columns: []string{"table_name", "column_name", "data_type", "is_nullable"},
				Rows:    [][]any{{"items", "id", "integer", "NO"}},
			}, nil
		}
		return &sandbox.RowSet{Columns: []string{"id", "name"}, Rows: [][]any{{int64(1), "apple"}}}, nil
	}
	driver.ExecFunc = func(context.Context, string, string) (int64, error) { return 1, nil }

	opts := sandbox.DefaultOptions()
	opts.ReadTimeout = time.Second
	opts.ManipulationTimeout = time.Second
	return sandbox.New(repo, driver, zerolog.Nop(), opts, nil), repo, driver
}
