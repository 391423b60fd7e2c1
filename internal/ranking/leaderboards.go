package ranking

import (
	"fmt"
	"sort"

	"golang.org/x/text/collate"

	"quiz-rankings-service/internal/domain"
)

// TopN is the length limit of every leaderboard.
const TopN = 3

// teamTotals sums a team's best attempts across catalogs.
type teamTotals struct {
	name        string
	catalogs    int
	points      float64
	effSum      float64
	questions   int
	solved      int
	duration    int64
	hasDuration bool
	lastFinish  *int64
}

func (t teamTotals) average() float64 {
	if t.questions <= 0 {
		return 0
	}
	return clamp01(t.effSum / float64(t.questions))
}

func totalsFor(team *teamState) teamTotals {
	out := teamTotals{name: team.name, catalogs: len(team.best)}
	for _, catalog := range team.sortedCatalogs() {
		s := team.best[catalog]
		out.points += s.points
		out.effSum += s.effSum
		out.questions += s.questions
		out.solved += s.solved
		if s.duration != nil {
			out.duration += *s.duration
			out.hasDuration = true
		}
		if s.finish != nil && (out.lastFinish == nil || *s.finish > *out.lastFinish) {
			finish := *s.finish
			out.lastFinish = &finish
		}
	}
	return out
}

// ComputeLeaderboards ranks teams by puzzle speed, catalog completion, points
// and accuracy. A catalogCount of zero or less is inferred from the distinct
// catalogs found in attempts.
func (a Aggregator) ComputeLeaderboards(attempts []domain.AttemptRecord, results []domain.QuestionResultRecord, catalogCount int) domain.Leaderboards {
	c := collect(attempts, results)
	if catalogCount <= 0 {
		catalogCount = len(c.catalogs)
	}
	col := a.collator()

	totals := make([]teamTotals, 0, len(c.order))
	for _, name := range c.order {
		totals = append(totals, totalsFor(c.teams[name]))
	}

	return domain.Leaderboards{
		PuzzleTop3:   a.puzzleTop(c, col),
		CatalogTop3:  catalogTop(totals, catalogCount, col),
		PointsTop3:   pointsTop(totals, col),
		AccuracyTop3: accuracyTop(totals, col),
	}
}

func (a Aggregator) puzzleTop(c collection, col *collate.Collator) []domain.LeaderboardEntry {
	type solve struct {
		name string
		at   int64
	}
	solves := make([]solve, 0, len(c.order))
	for _, name := range c.order {
		if t := c.teams[name]; t.puzzle != nil {
			solves = append(solves, solve{name: name, at: *t.puzzle})
		}
	}
	sort.Slice(solves, func(i, j int) bool {
		if solves[i].at != solves[j].at {
			return solves[i].at < solves[j].at
		}
		return compareNames(col, solves[i].name, solves[j].name) < 0
	})

	entries := newEntries(len(solves))
	for _, s := range solves[:min(len(solves), TopN)] {
		entries = appendEntry(entries, s.name, a.FormatTimestamp(float64(s.at)), float64(s.at))
	}
	return entries
}

// catalogTop only considers teams that completed every catalog. A single
// catalog event has no completion ranking.
func catalogTop(totals []teamTotals, catalogCount int, col *collate.Collator) []domain.LeaderboardEntry {
	if catalogCount <= 1 {
		return newEntries(0)
	}
	finishers := make([]teamTotals, 0, len(totals))
	for _, t := range totals {
		if t.catalogs >= catalogCount {
			finishers = append(finishers, t)
		}
	}
	sort.Slice(finishers, func(i, j int) bool {
		a, b := finishers[i], finishers[j]
		if a.solved != b.solved {
			return a.solved > b.solved
		}
		if a.points != b.points {
			return a.points > b.points
		}
		if a.hasDuration != b.hasDuration {
			return a.hasDuration
		}
		if a.hasDuration && a.duration != b.duration {
			return a.duration < b.duration
		}
		if c := compareOptional(a.lastFinish, b.lastFinish); c != 0 {
			return c < 0
		}
		return compareNames(col, a.name, b.name) < 0
	})

	entries := newEntries(len(finishers))
	for _, t := range finishers[:min(len(finishers), TopN)] {
		value := fmt.Sprintf("%d solved, %s points", t.solved, formatPoints(t.points))
		entries = appendEntry(entries, t.name, value, float64(t.solved))
	}
	return entries
}

func pointsTop(totals []teamTotals, col *collate.Collator) []domain.LeaderboardEntry {
	ranked := append([]teamTotals(nil), totals...)
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.points != b.points {
			return a.points > b.points
		}
		if aa, ba := a.average(), b.average(); aa != ba {
			return aa > ba
		}
		return compareNames(col, a.name, b.name) < 0
	})

	entries := newEntries(len(ranked))
	for _, t := range ranked[:min(len(ranked), TopN)] {
		value := fmt.Sprintf("%s points (avg %s)", formatPoints(t.points), FormatEfficiency(t.average()))
		entries = appendEntry(entries, t.name, value, t.points)
	}
	return entries
}

func accuracyTop(totals []teamTotals, col *collate.Collator) []domain.LeaderboardEntry {
	ranked := make([]teamTotals, 0, len(totals))
	for _, t := range totals {
		if t.questions > 0 {
			ranked = append(ranked, t)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if aa, ba := a.average(), b.average(); aa != ba {
			return aa > ba
		}
		if a.questions != b.questions {
			return a.questions > b.questions
		}
		if a.points != b.points {
			return a.points > b.points
		}
		return compareNames(col, a.name, b.name) < 0
	})

	entries := newEntries(len(ranked))
	for _, t := range ranked[:min(len(ranked), TopN)] {
		entries = appendEntry(entries, t.name, "avg "+FormatEfficiency(t.average()), t.average())
	}
	return entries
}

func newEntries(candidates int) []domain.LeaderboardEntry {
	return make([]domain.LeaderboardEntry, 0, min(candidates, TopN))
}

func appendEntry(entries []domain.LeaderboardEntry, name, value string, raw float64) []domain.LeaderboardEntry {
	return append(entries, domain.LeaderboardEntry{
		Place: len(entries) + 1,
		Name:  name,
		Value: value,
		Raw:   raw,
	})
}
