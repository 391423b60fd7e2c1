// Package ranking turns raw quiz attempts into leaderboards and a scoreboard.
//
// Everything here is a pure computation over the records passed in: inputs are
// never mutated and every call allocates its own working state, so callers may
// run computations concurrently.
package ranking

import (
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"quiz-rankings-service/internal/domain"
)

// Aggregator carries the presentation settings used for value strings and
// name ordering. The zero value formats in time.Local and collates with the
// root locale.
type Aggregator struct {
	Location *time.Location
	Language language.Tag
}

// New returns an Aggregator for the given location and collation language.
func New(loc *time.Location, lang language.Tag) Aggregator {
	return Aggregator{Location: loc, Language: lang}
}

// ComputeLeaderboards is Aggregator.ComputeLeaderboards with default settings.
func ComputeLeaderboards(attempts []domain.AttemptRecord, results []domain.QuestionResultRecord, catalogCount int) domain.Leaderboards {
	return Aggregator{}.ComputeLeaderboards(attempts, results, catalogCount)
}

// BuildScoreboard is Aggregator.BuildScoreboard with default settings.
func BuildScoreboard(attempts []domain.AttemptRecord, results []domain.QuestionResultRecord) []domain.ScoreboardRow {
	return Aggregator{}.BuildScoreboard(attempts, results)
}

// FormatTimestamp is Aggregator.FormatTimestamp in time.Local.
func FormatTimestamp(epochSeconds float64) string {
	return Aggregator{}.FormatTimestamp(epochSeconds)
}

func (a Aggregator) location() *time.Location {
	if a.Location == nil {
		return time.Local
	}
	return a.Location
}

// collator is not safe for concurrent use; build one per computation.
func (a Aggregator) collator() *collate.Collator {
	return collate.New(a.Language)
}

// compareNames orders names by locale collation, falling back to byte order so
// distinct names never compare equal.
func compareNames(col *collate.Collator, x, y string) int {
	if c := col.CompareString(x, y); c != 0 {
		return c
	}
	return strings.Compare(x, y)
}
