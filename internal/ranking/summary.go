package ranking

import (
	"math"
	"sort"

	"quiz-rankings-service/internal/domain"
)

type attemptKey struct {
	team    string
	catalog string
	attempt int
}

// questionTotals accumulates the question rows of one attempt.
type questionTotals struct {
	points float64
	effSum float64
	count  int
	solved int
}

// attemptSummary is what best-attempt selection compares. correct and total
// are the attempt's own counts, kept apart from the question-row totals.
type attemptSummary struct {
	attempt   int
	correct   int
	total     int
	points    float64
	effSum    float64
	questions int
	solved    int
	duration  *int64
	finish    *int64
}

func (s attemptSummary) average() float64 {
	if s.questions <= 0 {
		return 0
	}
	return clamp01(s.effSum / float64(s.questions))
}

func (s attemptSummary) fullySolved() bool {
	return s.total > 0 && s.correct >= s.total
}

type teamState struct {
	name         string
	attempts     int
	lastActivity int64
	puzzle       *int64
	best         map[string]attemptSummary
}

// collection is the per-call working state shared by leaderboards and scoreboard.
type collection struct {
	teams     map[string]*teamState
	order     []string
	catalogs  map[string]struct{}
	fallbacks int
}

func collect(attempts []domain.AttemptRecord, results []domain.QuestionResultRecord) collection {
	totals := joinQuestions(results)
	c := collection{
		teams:    make(map[string]*teamState),
		catalogs: make(map[string]struct{}),
	}

	for _, rec := range attempts {
		// Nameless rows cannot be attributed to a team.
		if rec.Team == "" {
			continue
		}
		team, ok := c.teams[rec.Team]
		if !ok {
			team = &teamState{name: rec.Team, best: make(map[string]attemptSummary)}
			c.teams[rec.Team] = team
			c.order = append(c.order, rec.Team)
		}
		team.attempts++
		if finish := optionalNonNegative(rec.FinishTimestamp); finish != nil && *finish > team.lastActivity {
			team.lastActivity = *finish
		}
		if puzzle := optionalNonNegative(rec.PuzzleSolveTimestamp); puzzle != nil {
			if team.puzzle == nil || *puzzle < *team.puzzle {
				team.puzzle = puzzle
			}
		}

		if rec.Catalog == "" {
			continue
		}
		c.catalogs[rec.Catalog] = struct{}{}

		summary, fallback := summarize(rec, totals)
		if fallback {
			c.fallbacks++
		}
		prev, seen := team.best[rec.Catalog]
		if !seen || better(summary, prev) {
			team.best[rec.Catalog] = summary
		}
	}
	return c
}

// joinQuestions folds question rows into one total per team|catalog|attempt.
func joinQuestions(results []domain.QuestionResultRecord) map[attemptKey]*questionTotals {
	totals := make(map[attemptKey]*questionTotals)
	for _, r := range results {
		if r.Team == "" || r.Catalog == "" {
			continue
		}
		key := attemptKey{team: r.Team, catalog: r.Catalog, attempt: normalizeAttempt(r.Attempt)}
		t, ok := totals[key]
		if !ok {
			t = &questionTotals{}
			totals[key] = t
		}
		t.points += nonNegative(r.PointsAwarded)
		t.effSum += clamp01(r.Efficiency)
		t.count++
		if r.IsCorrect {
			t.solved++
		}
	}
	return totals
}

// summarize builds the attempt's summary from its question rows, or from the
// attempt's own counts when no rows exist. The bool reports the fallback.
func summarize(rec domain.AttemptRecord, totals map[attemptKey]*questionTotals) (attemptSummary, bool) {
	attempt := normalizeAttempt(rec.Attempt)
	correct := max(rec.CorrectCount, 0)
	total := max(rec.TotalQuestions, 0)
	s := attemptSummary{
		attempt:  attempt,
		correct:  correct,
		total:    total,
		duration: optionalNonNegative(rec.DurationSeconds),
		finish:   optionalNonNegative(rec.FinishTimestamp),
	}
	if t, ok := totals[attemptKey{team: rec.Team, catalog: rec.Catalog, attempt: attempt}]; ok && t.count > 0 {
		s.points = t.points
		s.effSum = t.effSum
		s.questions = t.count
		s.solved = t.solved
		return s, false
	}

	s.points = float64(correct)
	s.solved = correct
	s.questions = total
	if total > 0 {
		s.effSum = clamp01(float64(correct)/float64(total)) * float64(total)
	}
	return s, true
}

// better reports whether a beats b. The chain is applied level by level:
// correct answers, points, known shorter duration, mean efficiency, earlier
// finish, and finally the lower attempt number.
func better(a, b attemptSummary) bool {
	if a.solved != b.solved {
		return a.solved > b.solved
	}
	if a.points != b.points {
		return a.points > b.points
	}
	if c := compareOptional(a.duration, b.duration); c != 0 {
		return c < 0
	}
	if aa, ba := a.average(), b.average(); aa != ba {
		return aa > ba
	}
	if c := compareOptional(a.finish, b.finish); c != 0 {
		return c < 0
	}
	return a.attempt < b.attempt
}

// FallbackAttempts counts attempts that have no matching question rows and are
// therefore summarized from their correct/total counts.
func FallbackAttempts(attempts []domain.AttemptRecord, results []domain.QuestionResultRecord) int {
	return collect(attempts, results).fallbacks
}

// sortedCatalogs returns the catalog keys of a team in a fixed order so float
// sums do not depend on map iteration.
func (t *teamState) sortedCatalogs() []string {
	keys := make([]string, 0, len(t.best))
	for k := range t.best {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// compareOptional orders known values ascending and unknown values last.
func compareOptional(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

func normalizeAttempt(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func optionalNonNegative(v *int64) *int64 {
	if v == nil || *v < 0 {
		return nil
	}
	out := *v
	return &out
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
