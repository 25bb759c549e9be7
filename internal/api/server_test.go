package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/edvin/sqlsandbox/internal/api/middleware"
	"github.com/edvin/sqlsandbox/internal/config"
	"github.com/edvin/sqlsandbox/internal/sandbox"
	"github.com/edvin/sqlsandbox/internal/sandbox/sandboxtest"
)

var testSecret = strings.Repeat("k", 32)

func newTestServer(checks map[string]ReadinessCheck) *Server {
	owner := 1
	repo := sandboxtest.NewMemoryRepository()
	repo.AddDatabase("shop", &owner)
	driver := sandboxtest.NewFakeDriver("postgres", "shop")
	sb := sandbox.New(repo, driver, zerolog.Nop(), sandbox.DefaultOptions(), nil)

	cfg := &config.Config{JWTSecret: testSecret, MaxUploadBytes: 1 << 20}
	return NewServer(zerolog.Nop(), sb, checks, cfg)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	s := newTestServer(map[string]ReadinessCheck{
		"core_db":        func(context.Context) error { return nil },
		"sandbox_server": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["core_db"])
	assert.Equal(t, "connection refused", body["sandbox_server"])
}

func TestAPIRequiresToken(t *testing.T) {
	s := newTestServer(nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sql/databases", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIListDatabases(t *testing.T) {
	s := newTestServer(nil)
	token, err := mw.IssueToken([]byte(testSecret), 1, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sql/databases", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "shop", body[0]["name"])
}

func TestAPIResetCopyRoute(t *testing.T) {
	s := newTestServer(nil)
	token, err := mw.IssueToken([]byte(testSecret), 1, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sql/databases/shop/copy", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
