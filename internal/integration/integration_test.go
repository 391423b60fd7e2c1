package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-rankings-service/internal/app"
	"quiz-rankings-service/internal/domain"
	"quiz-rankings-service/internal/infra/postgres"
	pgmigrations "quiz-rankings-service/internal/infra/postgres/migrations"
	infraredis "quiz-rankings-service/internal/infra/redis"
	"quiz-rankings-service/internal/ranking"
)

func TestResultsEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := postgres.NewCatalogLoader(pool)
	if err := loader.UpsertCatalogs(ctx, "event-1", []domain.Catalog{
		{UID: "c2", Slug: "final", SortOrder: "2", Name: "Final"},
		{UID: "c1", Slug: "warmup", SortOrder: "1", Name: "Warm-up"},
	}); err != nil {
		t.Fatalf("seed catalogs: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	catalogRepo := infraredis.NewCatalogRepository(redisClient, loader, 5*time.Minute)
	boards := infraredis.NewBoardStore(redisClient, 5*time.Minute)
	service := app.NewResultsService(postgres.NewResultStore(pool), catalogRepo, boards,
		app.WithPuzzleWord("owl"),
		app.WithAggregator(ranking.Aggregator{Location: time.UTC}),
	)

	submit := func(team, catalog string, answers ...domain.AnswerSubmission) domain.Standings {
		t.Helper()
		correct := 0
		for _, a := range answers {
			if a.Correct {
				correct++
			}
		}
		st, err := service.Submit(ctx, "event-1", domain.ResultSubmission{
			Team: team, Catalog: catalog, CorrectCount: correct, TotalQuestions: len(answers), FinishedAt: 1_700_000_000,
			Answers: answers,
		})
		if err != nil {
			t.Fatalf("submit %s/%s: %v", team, catalog, err)
		}
		return st
	}

	right := domain.AnswerSubmission{Correct: true, Points: 10}
	wrong := domain.AnswerSubmission{Correct: false}
	submit("Owls", "c1", right, right)
	submit("Owls", "c2", right, wrong)
	submit("Foxes", "c1", wrong, wrong)
	standings := submit("Foxes", "c1", right, right)

	attempts, err := service.Attempts(ctx, "event-1")
	if err != nil {
		t.Fatalf("attempts: %v", err)
	}
	if len(attempts) != 4 || attempts[3].Attempt != 2 || attempts[3].Catalog != "Warm-up" {
		t.Fatalf("unexpected attempts %+v", attempts)
	}

	if standings.CatalogCount != 2 {
		t.Fatalf("expected 2 catalogs, got %d", standings.CatalogCount)
	}
	catalogTop := standings.Leaderboards.CatalogTop3
	if len(catalogTop) != 1 || catalogTop[0].Name != "Owls" || catalogTop[0].Value != "3 solved, 30 points" {
		t.Fatalf("unexpected catalog leaderboard %+v", catalogTop)
	}
	if len(standings.Scoreboard) != 2 || standings.Scoreboard[0].Name != "Owls" || standings.Scoreboard[1].TotalPoints != 20 {
		t.Fatalf("unexpected scoreboard %+v", standings.Scoreboard)
	}

	if _, err := service.MarkPuzzle(ctx, "event-1", "Foxes", "", "wolf", 1_700_000_500); !errors.Is(err, domain.ErrPuzzleMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if _, err := service.MarkPuzzle(ctx, "event-1", "Foxes", "c1", "OWL", 1_700_000_500); err != nil {
		t.Fatalf("mark puzzle: %v", err)
	}
	standings, err = service.MarkPuzzle(ctx, "event-1", "Foxes", "c1", "owl", 1_700_000_900)
	if err != nil {
		t.Fatalf("mark puzzle again: %v", err)
	}
	puzzle := standings.Leaderboards.PuzzleTop3
	if len(puzzle) != 1 || puzzle[0].Name != "Foxes" || puzzle[0].Raw != 1_700_000_500 {
		t.Fatalf("expected first solve kept, got %+v", puzzle)
	}

	if err := service.Clear(ctx, "event-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	standings, err = service.Standings(ctx, "event-1")
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if len(standings.Scoreboard) != 0 {
		t.Fatalf("expected empty scoreboard after clear, got %+v", standings.Scoreboard)
	}

	// A failing question row insert must roll back the attempt as well.
	if _, err := pool.Exec(ctx, `ALTER TABLE question_results RENAME TO question_results_off`); err != nil {
		t.Fatalf("rename table: %v", err)
	}
	if _, err := service.Submit(ctx, "event-1", domain.ResultSubmission{
		Team: "Owls", Catalog: "c1", CorrectCount: 1, TotalQuestions: 1, FinishedAt: 1_700_001_000,
		Answers: []domain.AnswerSubmission{right},
	}); err == nil {
		t.Fatalf("expected submit to fail without question_results")
	}
	if _, err := pool.Exec(ctx, `ALTER TABLE question_results_off RENAME TO question_results`); err != nil {
		t.Fatalf("restore table: %v", err)
	}
	var stored int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM results WHERE event_id=$1`, "event-1").Scan(&stored); err != nil {
		t.Fatalf("count results: %v", err)
	}
	if stored != 0 {
		t.Fatalf("expected failed submission rolled back, found %d attempts", stored)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "rankings", "POSTGRES_PASSWORD": "rankingspass", "POSTGRES_DB": "rankings"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://rankings:rankingspass@%s:%s/rankings?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
