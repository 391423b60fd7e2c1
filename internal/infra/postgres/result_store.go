package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-rankings-service/internal/domain"
)

// ResultStore keeps attempts and question rows in Postgres.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// AddSubmission inserts the attempt and its question rows in one transaction.
// A transaction-scoped advisory lock on (event, team, catalog) serializes
// attempt number allocation across service instances.
func (s *ResultStore) AddSubmission(ctx context.Context, eventID string, rec domain.AttemptRecord, rows []domain.QuestionResultRecord) (int, error) {
	attempt := rec.Attempt
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1::text), hashtext($2::text || '|' || $3::text))`,
			eventID, rec.Team, rec.Catalog); err != nil {
			return fmt.Errorf("lock attempt: %w", err)
		}
		if attempt == 0 {
			if err := tx.QueryRow(ctx,
				`SELECT COALESCE(MAX(attempt), 0) + 1 FROM results WHERE event_id=$1 AND name=$2 AND catalog=$3`,
				eventID, rec.Team, rec.Catalog).Scan(&attempt); err != nil {
				return fmt.Errorf("next attempt: %w", err)
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO results (event_id, name, catalog, attempt, correct, total, finished_at, duration_sec, puzzle_time)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			eventID, rec.Team, rec.Catalog, attempt, rec.CorrectCount, rec.TotalQuestions,
			rec.FinishTimestamp, rec.DurationSeconds, rec.PuzzleSolveTimestamp); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"question_results"},
			[]string{"event_id", "name", "catalog", "attempt", "is_correct", "final_points", "efficiency"},
			pgx.CopyFromSlice(len(rows), func(i int) ([]interface{}, error) {
				r := rows[i]
				return []interface{}{eventID, r.Team, r.Catalog, attempt, r.IsCorrect, r.PointsAwarded, r.Efficiency}, nil
			}),
		); err != nil {
			return fmt.Errorf("copy question results: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return attempt, nil
}

// MarkPuzzle keeps an earlier solve time if the attempt already has one.
func (s *ResultStore) MarkPuzzle(ctx context.Context, eventID, team, catalog string, solvedAt int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE results SET puzzle_time = COALESCE(puzzle_time, $4)
		 WHERE id = (
		     SELECT id FROM results
		     WHERE event_id=$1 AND name=$2 AND ($3 = '' OR catalog=$3)
		     ORDER BY attempt DESC, id DESC
		     LIMIT 1
		 )`,
		eventID, team, catalog, solvedAt)
	if err != nil {
		return fmt.Errorf("mark puzzle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (s *ResultStore) Attempts(ctx context.Context, eventID string) ([]domain.AttemptRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, catalog, attempt, correct, total, finished_at, duration_sec, puzzle_time
		 FROM results WHERE event_id=$1 ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	defer rows.Close()

	out := []domain.AttemptRecord{}
	for rows.Next() {
		var rec domain.AttemptRecord
		if err := rows.Scan(&rec.Team, &rec.Catalog, &rec.Attempt, &rec.CorrectCount, &rec.TotalQuestions,
			&rec.FinishTimestamp, &rec.DurationSeconds, &rec.PuzzleSolveTimestamp); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	return out, nil
}

func (s *ResultStore) QuestionResults(ctx context.Context, eventID string) ([]domain.QuestionResultRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, catalog, attempt, is_correct, final_points, efficiency
		 FROM question_results WHERE event_id=$1 ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("load question results: %w", err)
	}
	defer rows.Close()

	out := []domain.QuestionResultRecord{}
	for rows.Next() {
		var rec domain.QuestionResultRecord
		if err := rows.Scan(&rec.Team, &rec.Catalog, &rec.Attempt, &rec.IsCorrect, &rec.PointsAwarded, &rec.Efficiency); err != nil {
			return nil, fmt.Errorf("scan question result: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load question results: %w", err)
	}
	return out, nil
}

func (s *ResultStore) Clear(ctx context.Context, eventID string) error {
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM question_results WHERE event_id=$1`, eventID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM results WHERE event_id=$1`, eventID)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear results: %w", err)
	}
	return nil
}
