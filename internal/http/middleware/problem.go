package middleware

import (
	"encoding/json"
	"net/http"
)

// writeProblem renders the shared error envelope for failures raised before
// a handler runs.
func writeProblem(w http.ResponseWriter, status int, kind, title, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"kind": kind, "title": title, "message": message},
	})
}
