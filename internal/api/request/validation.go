package request

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/edvin/sqlsandbox/internal/sandbox"
)

var validate = validator.New()

func init() {
	validate.RegisterValidation("dbname", func(fl validator.FieldLevel) bool {
		return sandbox.ValidateDatabaseName(fl.Field().String()) == nil
	})
}

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func RequireName(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required database name")
	}
	return s, nil
}
