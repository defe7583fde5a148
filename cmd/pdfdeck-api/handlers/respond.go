// Package handlers provides HTTP handlers for the pdfdeck API.
package handlers

import (
	"encoding/json"
	"net/http"
)

// FieldError describes one invalid request field in a 422 response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeValidationError reports malformed request bodies with the structured
// field error list clients expect on 422.
func writeValidationError(w http.ResponseWriter, errs []FieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": errs})
}

// decodeBody decodes a JSON request body, reporting malformed payloads as a
// 422 validation failure. Returns false when the response has been written.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeValidationError(w, []FieldError{{Field: "body", Message: err.Error()}})
		return false
	}
	return true
}
