package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/MaherFSF/Yemenactr-sub008/internal/result"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// statusFor maps a result envelope onto an HTTP status.
func statusFor[T any](res result.Result[T]) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Reason {
	case "invalid_input":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

// writeResult writes the envelope with its mapped status, logging failures.
func writeResult[T any](w http.ResponseWriter, r *http.Request, op string, res result.Result[T]) {
	status := statusFor(res)
	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed",
			slog.String("path", r.URL.Path),
			slog.String("reason", res.Reason),
			slog.String("error", res.Error))
	}
	writeJSON(w, status, res)
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}
