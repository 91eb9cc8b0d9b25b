package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kolosalai/agentruntime/internal/errs"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeError maps err through the taxonomy dispatch table and writes the
// §6C error envelope.
func writeError(w http.ResponseWriter, err error) {
	status, envelope := errs.StatusAndEnvelope(err)
	writeJSON(w, status, envelope)
}

// decodeJSON reads and decodes a JSON request body, rejecting unknown
// fields so malformed client payloads surface as a ValidationError rather
// than silently losing data.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &errs.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}
