package objtest

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// apiError is the JSON body of every error response.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	if err := writeJSON(w, status, apiError{Error: code, Message: message}); err != nil {
		slog.Error("objtest: encode error response", "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
