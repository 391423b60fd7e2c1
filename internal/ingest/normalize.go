package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"quiz-rankings-service/internal/domain"
)

// Row is one decoded JSON object as received from clients or exports.
type Row = map[string]any

// DecodeRows reads a JSON array of objects, or an object wrapping the array
// in "items". Non-object elements are skipped.
func DecodeRows(r io.Reader) ([]Row, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	var list []any
	switch p := payload.(type) {
	case []any:
		list = p
	case map[string]any:
		items, ok := p["items"].([]any)
		if !ok {
			return nil, fmt.Errorf("decode rows: object without items array")
		}
		list = items
	default:
		return nil, fmt.Errorf("decode rows: unexpected %T", payload)
	}
	rows := make([]Row, 0, len(list))
	for _, item := range list {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// NormalizeAttempts converts raw attempt rows into canonical records. Rows
// without a team name are dropped; malformed numbers fall back to defaults.
func NormalizeAttempts(rows []Row, dir *CatalogDirectory) []domain.AttemptRecord {
	out := make([]domain.AttemptRecord, 0, len(rows))
	for _, row := range rows {
		rec, ok := NormalizeAttempt(row, dir)
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

// NormalizeAttempt converts a single raw attempt row.
func NormalizeAttempt(row Row, dir *CatalogDirectory) (domain.AttemptRecord, bool) {
	team := TeamName(field(row, "name", "team"))
	if team == "" {
		return domain.AttemptRecord{}, false
	}
	return domain.AttemptRecord{
		Team:                 team,
		Catalog:              dir.Resolve(catalogKey(row)),
		Attempt:              attemptNumber(field(row, "attempt")),
		CorrectCount:         nonNegativeInt(field(row, "correct")),
		TotalQuestions:       nonNegativeInt(field(row, "total")),
		FinishTimestamp:      nonNegative(optionalInt(field(row, "time"))),
		DurationSeconds:      nonNegative(optionalInt(field(row, "durationSec", "duration_sec"))),
		PuzzleSolveTimestamp: nonNegative(optionalInt(field(row, "puzzleTime", "puzzle_time"))),
	}, true
}

// NormalizeQuestionResults converts raw per-question rows. Rows without a
// team or catalog cannot be joined and are dropped.
func NormalizeQuestionResults(rows []Row, dir *CatalogDirectory) []domain.QuestionResultRecord {
	out := make([]domain.QuestionResultRecord, 0, len(rows))
	for _, row := range rows {
		team := TeamName(field(row, "name", "team"))
		catalog := dir.Resolve(catalogKey(row))
		if team == "" || catalog == "" {
			continue
		}
		correct := ParseFlag(field(row, "is_correct", "isCorrect", "correct"))
		points := ParseFiniteNumber(field(row, "final_points", "finalPoints", "points"), 0)
		if points < 0 {
			points = 0
		}
		efficiency, ok := ParseOptionalNumber(field(row, "efficiency"))
		if !ok {
			efficiency = 0
			if correct {
				efficiency = 1
			}
		}
		out = append(out, domain.QuestionResultRecord{
			Team:          team,
			Catalog:       catalog,
			Attempt:       attemptNumber(field(row, "attempt")),
			IsCorrect:     correct,
			PointsAwarded: points,
			Efficiency:    math.Max(0, math.Min(efficiency, 1)),
		})
	}
	return out
}

// NormalizeCatalogs converts raw catalog metadata rows.
func NormalizeCatalogs(rows []Row) []domain.Catalog {
	out := make([]domain.Catalog, 0, len(rows))
	for _, row := range rows {
		c := domain.Catalog{
			UID:       stringField(row, "uid"),
			Slug:      stringField(row, "slug"),
			SortOrder: stringField(row, "sortOrder", "sort_order"),
			Name:      stringField(row, "name"),
		}
		if c.UID == "" && c.Slug == "" && c.SortOrder == "" && c.Name == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// TeamName trims and NFKC-normalizes a team name so visually identical names
// group together.
func TeamName(v any) string {
	return norm.NFKC.String(stringify(v))
}

func catalogKey(row Row) string {
	return stringField(row, "catalogUid", "catalog_uid", "catalogRef", "catalog")
}

// field returns the first non-nil value among keys.
func field(row Row, keys ...string) any {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// stringField returns the first non-blank string form among keys.
func stringField(row Row, keys ...string) string {
	for _, k := range keys {
		if s := stringify(row[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return ""
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		if s {
			return "1"
		}
		return "0"
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func nonNegative(v *int64) *int64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}
