package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/edvin/sqlsandbox/internal/api/response"
)

type contextKey string

const callerIDKey contextKey = "caller_id"

// Auth returns a middleware that validates an HS256 bearer token and stores
// the numeric "sub" claim as the caller id.
func Auth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			callerID, err := ParseToken(secret, raw)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCallerID(r.Context(), callerID)))
		})
	}
}

// ParseToken validates raw and returns its caller id.
func ParseToken(secret []byte, raw string) (int, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return 0, fmt.Errorf("read subject: %w", err)
	}
	id, err := strconv.Atoi(sub)
	if err != nil || id <= 0 {
		return 0, errors.New("subject is not a positive user id")
	}
	return id, nil
}

// IssueToken signs a token for callerID valid for ttl. Used by sandboxctl
// and tests.
func IssueToken(secret []byte, callerID int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(callerID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// WithCallerID returns a context carrying callerID.
func WithCallerID(ctx context.Context, callerID int) context.Context {
	return context.WithValue(ctx, callerIDKey, callerID)
}

// CallerID returns the authenticated caller, if any.
func CallerID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(callerIDKey).(int)
	return id, ok
}
