package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// jsonError is the error envelope every failing endpoint returns.
type jsonError struct {
	Error string `json:"error"`
}

// writeJSON encodes v with the given status. Encoding failures
// are only logged; by then the status line is already on the wire.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding %T response: %v", v, err)
	}
}

// writeError writes a jsonError with the given status and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, jsonError{Error: msg})
}

// handleContextError reports whether err is a cancellation or
// deadline error. When it returns true the handler must return
// without writing: once the deadline fires, http.TimeoutHandler
// has already answered the client with a 503, and writing to its
// buffered ResponseWriter from the handler goroutine races with
// that.
func handleContextError(_ http.ResponseWriter, err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
