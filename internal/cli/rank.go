package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"quiz-rankings-service/internal/config"
	"quiz-rankings-service/internal/domain"
	"quiz-rankings-service/internal/ingest"
)

type rankOptions struct {
	attemptsPath  string
	questionsPath string
	catalogsPath  string
	catalogCount  int
	timezone      string
	language      string
}

// NewRankCmd computes standings offline from exported JSON files.
func NewRankCmd() *cobra.Command {
	opts := rankOptions{}
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Compute leaderboards and scoreboard from exported results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd.OutOrStdout(), opts, time.Now)
		},
	}
	cmd.Flags().StringVar(&opts.attemptsPath, "attempts", "", "results JSON (array or {\"items\": [...]})")
	cmd.Flags().StringVar(&opts.questionsPath, "questions", "", "question results JSON")
	cmd.Flags().StringVar(&opts.catalogsPath, "catalogs", "", "catalogs JSON")
	cmd.Flags().IntVar(&opts.catalogCount, "catalog-count", 0, "catalogs needed for completion (default: known catalogs)")
	cmd.Flags().StringVar(&opts.timezone, "timezone", "", "IANA timezone for formatted times (default: local)")
	cmd.Flags().StringVar(&opts.language, "language", "", "language whose collation orders names")
	_ = cmd.MarkFlagRequired("attempts")
	return cmd
}

func runRank(w io.Writer, opts rankOptions, now func() time.Time) error {
	agg, err := aggregatorFromConfig(config.ResultsConfig{Timezone: opts.timezone, Language: opts.language})
	if err != nil {
		return err
	}

	var catalogs []domain.Catalog
	if opts.catalogsPath != "" {
		rows, err := readRows(opts.catalogsPath)
		if err != nil {
			return err
		}
		catalogs = ingest.NormalizeCatalogs(rows)
	}
	dir := ingest.NewCatalogDirectory(catalogs)

	rows, err := readRows(opts.attemptsPath)
	if err != nil {
		return err
	}
	attempts := ingest.NormalizeAttempts(rows, dir)

	var questions []domain.QuestionResultRecord
	if opts.questionsPath != "" {
		rows, err := readRows(opts.questionsPath)
		if err != nil {
			return err
		}
		questions = ingest.NormalizeQuestionResults(rows, dir)
	}

	count := opts.catalogCount
	if count <= 0 {
		count = dir.Count()
	}
	standings := domain.Standings{
		CatalogCount: count,
		Leaderboards: agg.ComputeLeaderboards(attempts, questions, count),
		Scoreboard:   agg.BuildScoreboard(attempts, questions),
		UpdatedAt:    now().UTC(),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(standings)
}

func readRows(path string) ([]ingest.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := ingest.DecodeRows(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}
