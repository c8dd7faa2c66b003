// Package httpserver contains the HTTP handlers and middleware of the
// career diagnosis API.
//
// Handlers decode and validate requests, call the usecase services and map
// domain errors onto a small JSON error envelope. Internal error detail is
// logged and never written to the client.
package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
)

type errorEnvelope struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// publicDetail returns the text a service attached after the sentinel, e.g.
// "answers required" from "op=x: invalid argument: answers required".
func publicDetail(err, sentinel error) string {
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return ""
}

func withDetail(base string, err, sentinel error) string {
	if d := publicDetail(err, sentinel); d != "" {
		return base + ": " + d
	}
	return base
}

func writeError(w http.ResponseWriter, r *http.Request, err error, details any) {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	msg := "internal error"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "INVALID_ARGUMENT"
		msg = withDetail("invalid request", err, domain.ErrInvalidArgument)
	case errors.Is(err, domain.ErrUnauthorized):
		status, code, msg = http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		status, code, msg = http.StatusNotFound, "NOT_FOUND", "not found"
	case errors.Is(err, domain.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
		msg = withDetail("conflict", err, domain.ErrConflict)
	case errors.Is(err, domain.ErrPayloadTooLarge):
		status, code, msg = http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "payload too large"
	case errors.Is(err, domain.ErrRateLimited):
		status, code, msg = http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, please try again later"
	case errors.Is(err, domain.ErrUpstreamParse):
		status, code, msg = http.StatusBadGateway, "UPSTREAM_PARSE", "could not process AI response"
	case errors.Is(err, domain.ErrUpstream):
		status, code, msg = http.StatusBadGateway, "UPSTREAM", "AI service unavailable, please try again"
	}

	lg := LoggerFrom(r)
	if status >= 500 {
		lg.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		lg.Debug("request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(w, status, errorEnvelope{Error: msg, Code: code, Details: details})
}

// NotFound answers unknown routes with the JSON envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, fmt.Errorf("op=http.route path=%s: %w", r.URL.Path, domain.ErrNotFound), nil)
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorEnvelope{Error: "method not allowed", Code: "METHOD_NOT_ALLOWED"})
}
