package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 2025030102_create_results.sql
var createResultsSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, createResultsSQL)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, `DROP TABLE IF EXISTS question_results; DROP TABLE IF EXISTS results;`)
		},
	)
}
