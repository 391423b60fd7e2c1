package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"quiz-rankings-service/internal/ranking"
)

// MetricsCollector exposes the instruments the router serves and updates.
type MetricsCollector interface {
	SubscriberGauge
	Handler() http.Handler
}

// RouterOptions configures NewRouter. Zero values disable the optional parts.
type RouterOptions struct {
	Logger      *slog.Logger
	Metrics     MetricsCollector
	Aggregator  ranking.Aggregator
	JWTSecret   string
	CORSOrigins []string
	SubmitRate  float64
	SubmitBurst int
}

// NewRouter wires the results API.
func NewRouter(service ResultsService, opts RouterOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", RequestIDHeader},
			ExposedHeaders: []string{RequestIDHeader, "Content-Disposition"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	var gauge SubscriberGauge
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
		gauge = opts.Metrics
	}

	results := NewResultsHandler(service, opts.Aggregator, log)
	ws := NewWSHandler(service, gauge, log)
	limiter := NewClientRateLimiter(opts.SubmitRate, opts.SubmitBurst)
	admin := AdminOnly(opts.JWTSecret)

	r.Route("/events/{event}", func(r chi.Router) {
		r.Get("/results.json", results.ListResults)
		r.Get("/question-results.json", results.ListQuestionResults)
		r.With(limiter.Middleware).Post("/results", results.PostResult)
		r.With(admin).Delete("/results", results.ClearResults)
		r.With(admin).Get("/results/download", results.Download)
		r.Get("/rankings.json", results.Rankings)
		r.Get("/scoreboard.json", results.Scoreboard)
		r.Get("/ws", ws.ServeWS)
	})
	return r
}
