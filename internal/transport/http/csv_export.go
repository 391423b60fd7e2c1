package http

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"quiz-rankings-service/internal/domain"
	"quiz-rankings-service/internal/ranking"
)

// utf8BOM lets spreadsheet tools detect the encoding.
const utf8BOM = "\xEF\xBB\xBF"

var csvHeader = []string{"Name", "Versuch", "Katalog", "Richtige", "Gesamt", "Zeit", "Rätselwort", "Beweisfoto"}

// WriteResultsCSV writes attempts as ';' separated CSV. Timestamps use the
// aggregator's location; the proof photo column stays empty.
func WriteResultsCSV(w io.Writer, attempts []domain.AttemptRecord, agg ranking.Aggregator) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range attempts {
		row := []string{
			rec.Team,
			strconv.Itoa(rec.Attempt),
			rec.Catalog,
			strconv.Itoa(rec.CorrectCount),
			strconv.Itoa(rec.TotalQuestions),
			formatOptional(agg, rec.FinishTimestamp),
			formatOptional(agg, rec.PuzzleSolveTimestamp),
			"",
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatOptional(agg ranking.Aggregator, ts *int64) string {
	if ts == nil {
		return ""
	}
	return agg.FormatTimestamp(float64(*ts))
}

func csvFilename(eventID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, eventID)
	return safe + "-results.csv"
}
