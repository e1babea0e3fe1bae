package server

import (
	"net/http"
	"time"
)

// timeoutBody is the canned payload http.TimeoutHandler writes on
// a 503. Kept as a raw literal so the timeout path never depends
// on the JSON encoder.
const timeoutBody = `{"error":"request timed out"}`

// withTimeout bounds a handler by the configured write timeout.
// http.TimeoutHandler answers an overrun with 503 and timeoutBody
// but leaves Content-Type alone, so the response goes through
// timeoutWriter to get the JSON header stamped on.
func (s *Server) withTimeout(h http.HandlerFunc) http.Handler {
	inner := http.Handler(h)
	if d := s.handlerDelay; d > 0 {
		inner = http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(d)
				h(w, r)
			},
		)
	}
	bounded := http.TimeoutHandler(inner, s.cfg.WriteTimeout, timeoutBody)

	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			bounded.ServeHTTP(&timeoutWriter{ResponseWriter: w}, r)
		},
	)
}

// timeoutWriter stamps a JSON Content-Type onto a 503 whose
// header is still unset and passes everything else through
// unchanged. Repeated WriteHeader calls are dropped.
type timeoutWriter struct {
	http.ResponseWriter
	done bool
}

func (w *timeoutWriter) WriteHeader(code int) {
	if w.done {
		return
	}
	w.done = true
	if code == http.StatusServiceUnavailable &&
		w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *timeoutWriter) Write(b []byte) (int, error) {
	if !w.done {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
