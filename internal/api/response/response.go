package response

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	// Kind is the sandbox failure category, when there is one.
	Kind string `json:"kind,omitempty"`
	// Index is the 1-based position of the failing script statement.
	Index     int    `json:"index,omitempty"`
	Statement string `json:"statement,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteErrorResponse writes a fully populated error body.
func WriteErrorResponse(w http.ResponseWriter, status int, body ErrorResponse) {
	WriteJSON(w, status, body)
}
