package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-rankings-service/internal/domain"
)

func bestAttempt(t *testing.T, attempts []domain.AttemptRecord, results []domain.QuestionResultRecord, team, catalog string) attemptSummary {
	t.Helper()
	c := collect(attempts, results)
	state, ok := c.teams[team]
	require.True(t, ok, "team %q missing", team)
	best, ok := state.best[catalog]
	require.True(t, ok, "catalog %q missing for %q", catalog, team)
	return best
}

func TestBestAttemptPrefersShorterDuration(t *testing.T) {
	attempts := []domain.AttemptRecord{
		{Team: "A", Catalog: "X", Attempt: 1, CorrectCount: 4, TotalQuestions: 5, DurationSeconds: ptr(90)},
		{Team: "A", Catalog: "X", Attempt: 2, CorrectCount: 4, TotalQuestions: 5, DurationSeconds: ptr(60)},
	}

	assert.Equal(t, 2, bestAttempt(t, attempts, nil, "A", "X").attempt)

	attempts[0], attempts[1] = attempts[1], attempts[0]
	assert.Equal(t, 2, bestAttempt(t, attempts, nil, "A", "X").attempt)
}

func TestBestAttemptChain(t *testing.T) {
	cases := []struct {
		name string
		a, b attemptSummary
		want bool
	}{
		{
			name: "more correct wins over points",
			a:    attemptSummary{attempt: 2, solved: 3, points: 1},
			b:    attemptSummary{attempt: 1, solved: 2, points: 10},
			want: true,
		},
		{
			name: "points break equal correct",
			a:    attemptSummary{attempt: 2, solved: 3, points: 4},
			b:    attemptSummary{attempt: 1, solved: 3, points: 5},
			want: false,
		},
		{
			name: "known duration beats unknown",
			a:    attemptSummary{attempt: 2, solved: 3, points: 5, duration: ptr(500)},
			b:    attemptSummary{attempt: 1, solved: 3, points: 5},
			want: true,
		},
		{
			name: "efficiency breaks equal duration",
			a:    attemptSummary{attempt: 2, solved: 1, points: 5, duration: ptr(60), effSum: 1.5, questions: 2},
			b:    attemptSummary{attempt: 1, solved: 1, points: 5, duration: ptr(60), effSum: 1, questions: 2},
			want: true,
		},
		{
			name: "earlier finish breaks equal efficiency",
			a:    attemptSummary{attempt: 2, solved: 1, points: 5, finish: ptr(100)},
			b:    attemptSummary{attempt: 1, solved: 1, points: 5, finish: ptr(90)},
			want: false,
		},
		{
			name: "missing finish is infinitely late",
			a:    attemptSummary{attempt: 2, solved: 1, points: 5, finish: ptr(1 << 40)},
			b:    attemptSummary{attempt: 1, solved: 1, points: 5},
			want: true,
		},
		{
			name: "lower attempt settles a full tie",
			a:    attemptSummary{attempt: 1, solved: 1, points: 5},
			b:    attemptSummary{attempt: 2, solved: 1, points: 5},
			want: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, better(tc.a, tc.b))
			if tc.want {
				assert.False(t, better(tc.b, tc.a))
			}
		})
	}
}

func TestSummaryFallsBackToAttemptCounts(t *testing.T) {
	attempts := []domain.AttemptRecord{
		{Team: "A", Catalog: "X", Attempt: 1, CorrectCount: 3, TotalQuestions: 4},
		{Team: "A", Catalog: "Y", Attempt: 1, CorrectCount: 0, TotalQuestions: 2},
	}
	results := []domain.QuestionResultRecord{
		{Team: "A", Catalog: "Y", Attempt: 1, IsCorrect: true, PointsAwarded: 7, Efficiency: 0.5},
	}

	x := bestAttempt(t, attempts, results, "A", "X")
	assert.Equal(t, 3.0, x.points)
	assert.Equal(t, 4, x.questions)
	assert.InDelta(t, 0.75, x.average(), 1e-9)

	y := bestAttempt(t, attempts, results, "A", "Y")
	assert.Equal(t, 7.0, y.points)
	assert.Equal(t, 1, y.solved)
	assert.Equal(t, 1, y.questions)

	assert.Equal(t, 1, FallbackAttempts(attempts, results))
}

func TestJoinQuestionsClampsValues(t *testing.T) {
	totals := joinQuestions([]domain.QuestionResultRecord{
		{Team: "A", Catalog: "X", Attempt: 0, PointsAwarded: -4, Efficiency: 3},
		{Team: "A", Catalog: "X", Attempt: 1, PointsAwarded: 2, Efficiency: -1, IsCorrect: true},
		{Team: "", Catalog: "X", Attempt: 1, PointsAwarded: 100},
	})

	require.Len(t, totals, 1)
	got := totals[attemptKey{team: "A", catalog: "X", attempt: 1}]
	require.NotNil(t, got)
	assert.Equal(t, 2.0, got.points)
	assert.Equal(t, 1.0, got.effSum)
	assert.Equal(t, 2, got.count)
	assert.Equal(t, 1, got.solved)
}
