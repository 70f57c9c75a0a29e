package api

import (
	"bufio"
	"chat-service/errors"
	"encoding/json"
	goerrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type ErrorResponse struct {
	Message    string                      `json:"message"`
	StatusCode int                         `json:"status_code"`
	Failures   []errors.ParticipantFailure `json:"failures,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Message: message, Data: data})
}

// respondError turns an error of the taxonomy into its HTTP status. Internal
// failures are logged and never exposed.
func respondError(log *slog.Logger) func(w http.ResponseWriter, r *http.Request, err error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		status := errors.HTTPStatus(err)
		body := ErrorResponse{Message: err.Error(), StatusCode: status}
		if pErr, ok := errors.AsParticipantError(err); ok {
			body.Failures = pErr.Failures
		}
		if status == http.StatusInternalServerError {
			log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
			body.Message = "internal server error"
		}
		writeJSON(w, status, body)
	}
}

// requestLogger logs one line per request once it is served.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Debug("Request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"latency_ms", time.Since(start).Milliseconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, goerrors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}
