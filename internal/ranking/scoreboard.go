package ranking

import (
	"sort"

	"quiz-rankings-service/internal/domain"
)

// BuildScoreboard returns one row per named team, ordered by points (desc),
// known puzzle time before unknown (asc when both known), last activity (asc)
// and name. Attempts with a blank team name are skipped; ingest drops them
// before they reach storage. A catalog counts as solved when the best
// attempt's own correct count reaches its question total.
func (a Aggregator) BuildScoreboard(attempts []domain.AttemptRecord, results []domain.QuestionResultRecord) []domain.ScoreboardRow {
	c := collect(attempts, results)

	rows := make([]domain.ScoreboardRow, 0, len(c.order))
	for _, name := range c.order {
		team := c.teams[name]
		row := domain.ScoreboardRow{
			Name:                  team.name,
			AttemptsCount:         team.attempts,
			CatalogsPlayed:        len(team.best),
			LastActivityTimestamp: team.lastActivity,
		}
		for _, catalog := range team.sortedCatalogs() {
			best := team.best[catalog]
			row.TotalPoints += best.points
			if best.fullySolved() {
				row.CatalogsSolved++
			}
		}
		if team.puzzle != nil {
			puzzle := *team.puzzle
			row.BestPuzzleTime = &puzzle
		}
		rows = append(rows, row)
	}

	col := a.collator()
	sort.Slice(rows, func(i, j int) bool {
		ri, rj := rows[i], rows[j]
		if ri.TotalPoints != rj.TotalPoints {
			return ri.TotalPoints > rj.TotalPoints
		}
		if c := compareOptional(ri.BestPuzzleTime, rj.BestPuzzleTime); c != 0 {
			return c < 0
		}
		if ri.LastActivityTimestamp != rj.LastActivityTimestamp {
			return ri.LastActivityTimestamp < rj.LastActivityTimestamp
		}
		return compareNames(col, ri.Name, rj.Name) < 0
	})
	return rows
}
