package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"quiz-rankings-service/internal/domain"
	"quiz-rankings-service/internal/ingest"
	"quiz-rankings-service/internal/ranking"
)

// ResultStore persists attempts and question rows per event.
type ResultStore interface {
	// AddSubmission stores an attempt together with its question rows, all or
	// nothing. A zero rec.Attempt is replaced by the next free number for the
	// team and catalog, allocated atomically with the insert. Every row is
	// stored under the returned attempt number.
	AddSubmission(ctx context.Context, eventID string, rec domain.AttemptRecord, rows []domain.QuestionResultRecord) (int, error)
	// MarkPuzzle sets the puzzle solve time on the team's latest attempt,
	// restricted to catalog when it is not empty.
	MarkPuzzle(ctx context.Context, eventID, team, catalog string, solvedAt int64) error
	Attempts(ctx context.Context, eventID string) ([]domain.AttemptRecord, error)
	QuestionResults(ctx context.Context, eventID string) ([]domain.QuestionResultRecord, error)
	Clear(ctx context.Context, eventID string) error
}

// CatalogRepository loads the catalog metadata of an event.
type CatalogRepository interface {
	GetCatalogs(ctx context.Context, eventID string) ([]domain.Catalog, error)
}

// BoardRepository abstracts where live boards are kept (in-memory, Redis, etc).
// Boards exist only while someone subscribes to them.
type BoardRepository interface {
	// Acquire returns the event's board, creating it if needed, and retains it
	// before the repository lock is released. The caller must Release it.
	Acquire(eventID string) *Board
	Get(eventID string) (*Board, bool)
	DeleteIfIdle(eventID string)
}

// Recorder receives service measurements.
type Recorder interface {
	ObserveStandings(eventID string, took time.Duration, fallbackAttempts int)
	CountSubmission(kind string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStandings(string, time.Duration, int) {}
func (nopRecorder) CountSubmission(string)                      {}

// Option configures a ResultsService.
type Option func(*ResultsService)

// WithPuzzleWord sets the answer accepted by MarkPuzzle.
func WithPuzzleWord(word string) Option {
	return func(s *ResultsService) { s.puzzleWord = strings.TrimSpace(word) }
}

// WithAggregator sets the location and language used for rankings.
func WithAggregator(agg ranking.Aggregator) Option {
	return func(s *ResultsService) { s.agg = agg }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *ResultsService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *ResultsService) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithClock overrides time.Now; tests use it for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ResultsService) { s.now = now }
}

// ResultsService contains the results and rankings use cases.
type ResultsService struct {
	results    ResultStore
	catalogs   CatalogRepository
	boards     BoardRepository
	agg        ranking.Aggregator
	puzzleWord string
	validate   *validator.Validate
	log        *slog.Logger
	metrics    Recorder
	tracer     trace.Tracer
	now        func() time.Time
}

func NewResultsService(results ResultStore, catalogs CatalogRepository, boards BoardRepository, opts ...Option) *ResultsService {
	s := &ResultsService{
		results:  results,
		catalogs: catalogs,
		boards:   boards,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      slog.Default(),
		metrics:  nopRecorder{},
		tracer:   otel.Tracer("quiz-rankings-service/internal/app"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "results")
	return s
}

// Submit stores a finished catalog run and returns the refreshed standings.
func (s *ResultsService) Submit(ctx context.Context, eventID string, sub domain.ResultSubmission) (domain.Standings, error) {
	sub.Team = ingest.TeamName(sub.Team)
	sub.Catalog = strings.TrimSpace(sub.Catalog)
	if err := s.validate.Struct(sub); err != nil {
		return domain.Standings{}, fmt.Errorf("%w: %v", domain.ErrInvalidSubmission, err)
	}

	finished := sub.FinishedAt
	if finished == 0 {
		finished = s.now().Unix()
	}
	rec := domain.AttemptRecord{
		Team:            sub.Team,
		Catalog:         sub.Catalog,
		Attempt:         sub.Attempt,
		CorrectCount:    sub.CorrectCount,
		TotalQuestions:  sub.TotalQuestions,
		FinishTimestamp: &finished,
		DurationSeconds: sub.DurationSec,
	}

	rows := make([]domain.QuestionResultRecord, 0, len(sub.Answers))
	for _, a := range sub.Answers {
		efficiency := 0.0
		if a.Correct {
			efficiency = 1
		}
		if a.Efficiency != nil {
			efficiency = *a.Efficiency
		}
		rows = append(rows, domain.QuestionResultRecord{
			Team:          sub.Team,
			Catalog:       sub.Catalog,
			IsCorrect:     a.Correct,
			PointsAwarded: a.Points,
			Efficiency:    efficiency,
		})
	}

	attempt, err := s.results.AddSubmission(ctx, eventID, rec, rows)
	if err != nil {
		return domain.Standings{}, err
	}

	s.metrics.CountSubmission("attempt")
	s.log.Info("result stored", "event", eventID, "team", sub.Team, "catalog", sub.Catalog, "attempt", attempt)
	return s.Refresh(ctx, eventID)
}

// MarkPuzzle records a puzzle solve when answer matches the configured word.
func (s *ResultsService) MarkPuzzle(ctx context.Context, eventID, team, catalog, answer string, solvedAt int64) (domain.Standings, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" || s.puzzleWord == "" || !strings.EqualFold(answer, s.puzzleWord) {
		return domain.Standings{}, domain.ErrPuzzleMismatch
	}
	if solvedAt <= 0 {
		solvedAt = s.now().Unix()
	}
	team = ingest.TeamName(team)
	if err := s.results.MarkPuzzle(ctx, eventID, team, strings.TrimSpace(catalog), solvedAt); err != nil {
		return domain.Standings{}, err
	}
	s.metrics.CountSubmission("puzzle")
	s.log.Info("puzzle solved", "event", eventID, "team", team, "at", solvedAt)
	return s.Refresh(ctx, eventID)
}

// Standings computes the current standings of an event. When the event has a
// live board the result goes through its sequence guard.
func (s *ResultsService) Standings(ctx context.Context, eventID string) (domain.Standings, error) {
	return s.Refresh(ctx, eventID)
}

// Refresh recomputes the standings and publishes them to subscribers unless a
// newer computation has already been committed, in which case that newer
// snapshot is returned. Events nobody watches are computed without a board.
func (s *ResultsService) Refresh(ctx context.Context, eventID string) (domain.Standings, error) {
	board, ok := s.boards.Get(eventID)
	if !ok {
		return s.compute(ctx, eventID)
	}
	seq := board.nextSeq()
	standings, err := s.compute(ctx, eventID)
	if err != nil {
		return domain.Standings{}, err
	}
	if !board.commit(seq, standings) {
		s.log.Debug("discarding stale standings", "event", eventID, "seq", seq)
		if latest, ok := board.Snapshot(); ok {
			return latest, nil
		}
	}
	return standings, nil
}

// Subscribe returns a channel that receives standings updates for an event.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ResultsService) Subscribe(ctx context.Context, eventID string) (<-chan domain.Standings, func(), error) {
	board := s.boards.Acquire(eventID)
	ch, unsubscribe := board.subscribe()
	board.Release()
	cancel := func() {
		unsubscribe()
		s.boards.DeleteIfIdle(eventID)
	}

	// The subscriber is registered first so the board cannot be pruned while
	// the initial snapshot is computed; the commit reaches ch.
	if _, ok := board.Snapshot(); !ok {
		if _, err := s.Refresh(ctx, eventID); err != nil {
			cancel()
			return nil, nil, err
		}
	}
	return ch, cancel, nil
}

// Attempts returns the stored attempts with catalog keys resolved to names.
func (s *ResultsService) Attempts(ctx context.Context, eventID string) ([]domain.AttemptRecord, error) {
	attempts, catalogs, err := s.loadAttempts(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return resolveAttempts(attempts, ingest.NewCatalogDirectory(catalogs)), nil
}

// QuestionResults returns the stored question rows with catalog names resolved.
func (s *ResultsService) QuestionResults(ctx context.Context, eventID string) ([]domain.QuestionResultRecord, error) {
	var (
		rows     []domain.QuestionResultRecord
		catalogs []domain.Catalog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rows, err = s.results.QuestionResults(gctx, eventID)
		return err
	})
	g.Go(func() (err error) {
		catalogs, err = s.catalogs.GetCatalogs(gctx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolveQuestions(rows, ingest.NewCatalogDirectory(catalogs)), nil
}

// Clear removes every stored result of an event and publishes empty standings.
func (s *ResultsService) Clear(ctx context.Context, eventID string) error {
	if err := s.results.Clear(ctx, eventID); err != nil {
		return err
	}
	s.log.Warn("results cleared", "event", eventID)
	if _, ok := s.boards.Get(eventID); !ok {
		return nil
	}
	_, err := s.Refresh(ctx, eventID)
	return err
}

func (s *ResultsService) loadAttempts(ctx context.Context, eventID string) ([]domain.AttemptRecord, []domain.Catalog, error) {
	var (
		attempts []domain.AttemptRecord
		catalogs []domain.Catalog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		attempts, err = s.results.Attempts(gctx, eventID)
		return err
	})
	g.Go(func() (err error) {
		catalogs, err = s.catalogs.GetCatalogs(gctx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return attempts, catalogs, nil
}

func (s *ResultsService) compute(ctx context.Context, eventID string) (domain.Standings, error) {
	ctx, span := s.tracer.Start(ctx, "results.compute", trace.WithAttributes(attribute.String("event.id", eventID)))
	defer span.End()

	var (
		attempts  []domain.AttemptRecord
		questions []domain.QuestionResultRecord
		catalogs  []domain.Catalog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		attempts, err = s.results.Attempts(gctx, eventID)
		return err
	})
	g.Go(func() (err error) {
		questions, err = s.results.QuestionResults(gctx, eventID)
		return err
	})
	g.Go(func() (err error) {
		catalogs, err = s.catalogs.GetCatalogs(gctx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load results")
		return domain.Standings{}, fmt.Errorf("load results for %s: %w", eventID, err)
	}

	dir := ingest.NewCatalogDirectory(catalogs)
	attempts = resolveAttempts(attempts, dir)
	questions = resolveQuestions(questions, dir)

	start := time.Now()
	standings := domain.Standings{
		EventID:      eventID,
		CatalogCount: dir.Count(),
		Leaderboards: s.agg.ComputeLeaderboards(attempts, questions, dir.Count()),
		Scoreboard:   s.agg.BuildScoreboard(attempts, questions),
		UpdatedAt:    s.now(),
	}
	fallbacks := ranking.FallbackAttempts(attempts, questions)
	s.metrics.ObserveStandings(eventID, time.Since(start), fallbacks)
	if fallbacks > 0 {
		s.log.Debug("attempts ranked without question rows", "event", eventID, "attempts", fallbacks)
	}
	span.SetAttributes(
		attribute.Int("results.attempts", len(attempts)),
		attribute.Int("results.questions", len(questions)),
		attribute.Int("results.fallback_attempts", fallbacks),
	)
	return standings, nil
}

func resolveAttempts(in []domain.AttemptRecord, dir *ingest.CatalogDirectory) []domain.AttemptRecord {
	out := make([]domain.AttemptRecord, len(in))
	for i, rec := range in {
		rec.Catalog = dir.Resolve(rec.Catalog)
		out[i] = rec
	}
	return out
}

func resolveQuestions(in []domain.QuestionResultRecord, dir *ingest.CatalogDirectory) []domain.QuestionResultRecord {
	out := make([]domain.QuestionResultRecord, len(in))
	for i, rec := range in {
		rec.Catalog = dir.Resolve(rec.Catalog)
		out[i] = rec
	}
	return out
}
