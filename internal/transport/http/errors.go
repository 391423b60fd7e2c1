package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quiz-rankings-service/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:      code,
		Message:   message,
		RequestID: RequestIDFrom(r.Context()),
	}})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSubmission):
		writeError(w, r, http.StatusBadRequest, "invalid_submission", err.Error())
	case errors.Is(err, domain.ErrPuzzleMismatch):
		writeError(w, r, http.StatusUnprocessableEntity, "puzzle_mismatch", err.Error())
	case errors.Is(err, domain.ErrAttemptNotFound):
		writeError(w, r, http.StatusNotFound, "attempt_not_found", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", "request canceled")
	default:
		log.Error("request failed", "path", r.URL.Path, "request_id", RequestIDFrom(r.Context()), "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}
