package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Response writer remembering status and body size
type statusRecorder struct {
	http.ResponseWriter

	status int
	size   int
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	size, err := w.ResponseWriter.Write(p)
	w.size += size
	return size, err
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.status = statusCode
}

// Lets http.ResponseController reach the underlying writer
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// LoggerMiddleware writes access log entry per request, server errors at error level.
// Query string is not logged: it carries customer identities
func LoggerMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log := l.Info
			if rec.status >= http.StatusInternalServerError {
				log = l.Error
			}
			log(
				"got HTTP request",
				"method", r.Method,
				"uri", r.URL.Path,
				"duration", time.Since(start),
				"status", rec.status,
				"size", rec.size,
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}
