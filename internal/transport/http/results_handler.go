package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quiz-rankings-service/internal/domain"
	"quiz-rankings-service/internal/ingest"
	"quiz-rankings-service/internal/ranking"
)

// ResultsService is the use case surface the HTTP layer needs.
type ResultsService interface {
	Submit(ctx context.Context, eventID string, sub domain.ResultSubmission) (domain.Standings, error)
	MarkPuzzle(ctx context.Context, eventID, team, catalog, answer string, solvedAt int64) (domain.Standings, error)
	Standings(ctx context.Context, eventID string) (domain.Standings, error)
	Attempts(ctx context.Context, eventID string) ([]domain.AttemptRecord, error)
	QuestionResults(ctx context.Context, eventID string) ([]domain.QuestionResultRecord, error)
	Clear(ctx context.Context, eventID string) error
	Subscribe(ctx context.Context, eventID string) (<-chan domain.Standings, func(), error)
}

const maxBodyBytes = 1 << 20

type ResultsHandler struct {
	service ResultsService
	agg     ranking.Aggregator
	log     *slog.Logger
}

func NewResultsHandler(service ResultsService, agg ranking.Aggregator, log *slog.Logger) *ResultsHandler {
	return &ResultsHandler{service: service, agg: agg, log: log}
}

func (h *ResultsHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.service.Attempts(r.Context(), chi.URLParam(r, "event"))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (h *ResultsHandler) ListQuestionResults(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.QuestionResults(r.Context(), chi.URLParam(r, "event"))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// PostResult stores a finished run, or marks a puzzle solved when the body
// carries puzzleTime. Both answer with the refreshed standings.
func (h *ResultsHandler) PostResult(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event")
	row, err := ingest.DecodeObject(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "body must be a JSON object")
		return
	}

	post := ingest.ParsePost(row)
	var standings domain.Standings
	if p := post.Puzzle; p != nil {
		standings, err = h.service.MarkPuzzle(r.Context(), eventID, p.Team, p.Catalog, p.Answer, p.SolvedAt)
	} else {
		standings, err = h.service.Submit(r.Context(), eventID, post.Submission)
	}
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

func (h *ResultsHandler) ClearResults(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), chi.URLParam(r, "event")); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ResultsHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	standings, err := h.service.Standings(r.Context(), chi.URLParam(r, "event"))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, standings.Leaderboards)
}

func (h *ResultsHandler) Scoreboard(w http.ResponseWriter, r *http.Request) {
	standings, err := h.service.Standings(r.Context(), chi.URLParam(r, "event"))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, standings.Scoreboard)
}

func (h *ResultsHandler) Download(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event")
	attempts, err := h.service.Attempts(r.Context(), eventID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=UTF-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+csvFilename(eventID)+`"`)
	if err := WriteResultsCSV(w, attempts, h.agg); err != nil {
		h.log.Warn("csv export interrupted", "event", eventID, "error", err)
	}
}
