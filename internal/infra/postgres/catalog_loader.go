package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-rankings-service/internal/domain"
	"quiz-rankings-service/internal/ingest"
)

// CatalogLoader loads event catalogs from Postgres.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadCatalogs(ctx context.Context, eventID string) ([]domain.Catalog, error) {
	rows, err := l.pool.Query(ctx, `SELECT uid, slug, sort_order, name FROM catalogs WHERE event_id=$1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}
	defer rows.Close()

	catalogs := []domain.Catalog{}
	for rows.Next() {
		var c domain.Catalog
		if err := rows.Scan(&c.UID, &c.Slug, &c.SortOrder, &c.Name); err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		catalogs = append(catalogs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}
	ingest.SortCatalogs(catalogs)
	return catalogs, nil
}

// UpsertCatalogs inserts or updates the given catalogs of an event.
func (l *CatalogLoader) UpsertCatalogs(ctx context.Context, eventID string, catalogs []domain.Catalog) error {
	batch := &pgx.Batch{}
	for _, c := range catalogs {
		batch.Queue(`INSERT INTO catalogs (event_id, uid, slug, sort_order, name) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (event_id, uid) DO UPDATE SET slug=EXCLUDED.slug, sort_order=EXCLUDED.sort_order, name=EXCLUDED.name`,
			eventID, c.UID, c.Slug, c.SortOrder, c.Name)
	}
	br := l.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range catalogs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert catalog: %w", err)
		}
	}
	return nil
}
