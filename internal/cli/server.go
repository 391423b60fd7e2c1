package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-rankings-service/internal/app"
	"quiz-rankings-service/internal/config"
	"quiz-rankings-service/internal/domain"
	"quiz-rankings-service/internal/infra/memory"
	"quiz-rankings-service/internal/infra/postgres"
	redisstore "quiz-rankings-service/internal/infra/redis"
	"quiz-rankings-service/internal/ingest"
	"quiz-rankings-service/internal/logger"
	"quiz-rankings-service/internal/metrics"
	"quiz-rankings-service/internal/ranking"
	transport "quiz-rankings-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the rankings server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	agg, err := aggregatorFromConfig(cfg.Results)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	seed, err := loadCatalogFile(cfg.Catalogs.File)
	if err != nil {
		return err
	}

	var loader memory.CatalogLoader = memory.NewStaticCatalogLoader(seed)
	var results app.ResultStore = memory.NewResultStore()
	if pool != nil {
		pgCatalogs := postgres.NewCatalogLoader(pool)
		for eventID, catalogs := range seed {
			if err := pgCatalogs.UpsertCatalogs(ctx, eventID, catalogs); err != nil {
				return err
			}
		}
		loader = pgCatalogs
		results = postgres.NewResultStore(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalogs.TTL, 10*time.Minute)
	var catalogRepo app.CatalogRepository
	if redisClient != nil {
		catalogRepo = redisstore.NewCatalogRepository(redisClient, loader, catalogTTL)
	} else {
		catalogRepo = memory.NewCatalogRepository(loader, catalogTTL)
	}

	var boards app.BoardRepository
	if redisClient != nil {
		boards = redisstore.NewBoardStore(redisClient, redisTTL)
	} else {
		boards = memory.NewBoardStore()
	}

	collector := metrics.New()
	service := app.NewResultsService(results, catalogRepo, boards,
		app.WithPuzzleWord(cfg.Results.PuzzleWord),
		app.WithAggregator(agg),
		app.WithLogger(log),
		app.WithRecorder(collector),
	)
	if cfg.Results.PuzzleWord == "" {
		log.Warn("no puzzle word configured; puzzle solves will be rejected")
	}

	handler := transport.NewRouter(service, transport.RouterOptions{
		Logger:      logger.WithComponent(log, "http"),
		Metrics:     collector,
		Aggregator:  agg,
		JWTSecret:   cfg.Auth.JWTSecret,
		CORSOrigins: cfg.Server.CORSOrigins,
		SubmitRate:  cfg.Server.SubmitRate,
		SubmitBurst: cfg.Server.SubmitBurst,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
	}

	go func() {
		log.Info("starting rankings service", "port", finalPort, "postgres", pool != nil, "redis", redisClient != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func aggregatorFromConfig(cfg config.ResultsConfig) (ranking.Aggregator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return ranking.Aggregator{}, fmt.Errorf("results timezone: %w", err)
	}
	tag, err := cfg.LanguageTag()
	if err != nil {
		return ranking.Aggregator{}, fmt.Errorf("results language: %w", err)
	}
	return ranking.New(loc, tag), nil
}

// loadCatalogFile reads a JSON object mapping event ids to catalog lists.
// An empty path yields no catalogs.
func loadCatalogFile(path string) (map[string][]domain.Catalog, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var byEvent map[string][]ingest.Row
	if err := json.Unmarshal(raw, &byEvent); err != nil {
		return nil, fmt.Errorf("parse catalogs %s: %w", path, err)
	}
	out := make(map[string][]domain.Catalog, len(byEvent))
	for eventID, rows := range byEvent {
		catalogs := ingest.NormalizeCatalogs(rows)
		ingest.SortCatalogs(catalogs)
		out[eventID] = catalogs
	}
	return out, nil
}
