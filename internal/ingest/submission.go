package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"quiz-rankings-service/internal/domain"
)

// PuzzleSolve is a request to mark a team's puzzle as solved.
type PuzzleSolve struct {
	Team     string
	Catalog  string
	Answer   string
	SolvedAt int64
}

// Post is a decoded results POST body: either a finished run or a puzzle solve.
type Post struct {
	Submission domain.ResultSubmission
	Puzzle     *PuzzleSolve
}

// DecodeObject reads a single JSON object with numbers kept as json.Number.
func DecodeObject(r io.Reader) (Row, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var row Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("decode object: null body")
	}
	return row, nil
}

// ParsePost coerces a loosely typed POST body. A present puzzleTime makes it
// a puzzle solve; anything else is a result submission. A missing attempt
// stays zero so the store assigns the next number.
func ParsePost(row Row) Post {
	team := TeamName(field(row, "name", "team"))
	catalog := strings.TrimSpace(catalogKey(row))

	if solvedAt := field(row, "puzzleTime", "puzzle_time"); solvedAt != nil {
		at := int64(0)
		if v := nonNegative(optionalInt(solvedAt)); v != nil {
			at = *v
		}
		return Post{Puzzle: &PuzzleSolve{
			Team:     team,
			Catalog:  catalog,
			Answer:   stringField(row, "puzzleAnswer", "puzzle_answer"),
			SolvedAt: at,
		}}
	}

	sub := domain.ResultSubmission{
		Team:           team,
		Catalog:        catalog,
		Attempt:        nonNegativeInt(field(row, "attempt")),
		CorrectCount:   nonNegativeInt(field(row, "correct")),
		TotalQuestions: nonNegativeInt(field(row, "total")),
		DurationSec:    nonNegative(optionalInt(field(row, "durationSec", "duration_sec"))),
	}
	if finished := nonNegative(optionalInt(field(row, "time"))); finished != nil {
		sub.FinishedAt = *finished
	}
	if answers, ok := field(row, "answers").([]any); ok {
		for _, raw := range answers {
			a, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			answer := domain.AnswerSubmission{
				Correct: ParseFlag(field(a, "correct", "is_correct", "isCorrect")),
				Points:  ParseFiniteNumber(field(a, "points", "final_points", "finalPoints"), 0),
			}
			if eff, ok := ParseOptionalNumber(field(a, "efficiency")); ok {
				answer.Efficiency = &eff
			}
			sub.Answers = append(sub.Answers, answer)
		}
	}
	return Post{Submission: sub}
}
