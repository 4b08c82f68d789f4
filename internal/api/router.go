package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/credence-ai/credence/internal/api/handlers"
	mw "github.com/credence-ai/credence/internal/api/middleware"
	"github.com/credence-ai/credence/internal/buildconfig"
	"github.com/credence-ai/credence/internal/config"
	"github.com/credence-ai/credence/internal/domain"
	"github.com/credence-ai/credence/internal/service"
	"github.com/credence-ai/credence/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router plus process metrics for the /metrics endpoint.
type App struct {
	Router       *chi.Mux
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	// Stores
	beliefStore := store.NewBeliefStore(db)
	decisionStore := store.NewDecisionStore(db)

	// Services
	beliefSvc := service.NewBeliefService(beliefStore, logger)
	decisionSvc := service.NewDecisionService(decisionStore, logger)

	propagator, err := service.NewPropagator(service.PropagatorConfig{
		Samples: config.PropagationSamples(),
		Workers: config.PropagationWorkers(),
		Seed:    config.PropagationSeed(),
	}, logger)
	if err != nil {
		return nil, err
	}

	executor, err := service.NewExecutor(service.ExecutorConfig{
		Threshold:    config.ExecutorThreshold(),
		Adaptive:     config.ExecutorAdaptive(),
		MinThreshold: config.ExecutorMinThreshold(),
		MaxThreshold: config.ExecutorMaxThreshold(),
	}, nil, logger)
	if err != nil {
		return nil, err
	}

	// Handlers
	beliefHandler := handlers.NewBeliefHandler(beliefSvc, decisionSvc)
	engineHandler := handlers.NewEngineHandler(propagator, beliefSvc)
	executorHandler := handlers.NewExecutorHandler(executor, beliefSvc, decisionSvc, logger)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		// Stored beliefs
		r.Route("/beliefs", func(r chi.Router) {
			r.Post("/", beliefHandler.Create)
			r.Get("/", beliefHandler.List)
			r.Post("/similar", beliefHandler.FindSimilar)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", beliefHandler.GetByID)
				r.Delete("/", beliefHandler.Delete)
				r.Post("/evidence", beliefHandler.ApplyEvidence)
				r.Get("/decisions", beliefHandler.ListDecisions)
			})
		})

		// Stateless belief operations
		r.Post("/propagate", engineHandler.Propagate)
		r.Post("/combine", engineHandler.Combine)
		r.Post("/calibrate", engineHandler.Calibrate)
		r.Post("/ensemble", engineHandler.Ensemble)

		// Gated execution
		r.Post("/execute", executorHandler.Execute)
		r.Route("/executor", func(r chi.Router) {
			r.Get("/stats", executorHandler.Stats)
			r.Post("/threshold", executorHandler.AdjustThreshold)
		})
	})

	return app, nil
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
			"build":      buildconfig.VersionInfo(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.BeliefStore   = (*store.BeliefStore)(nil)
	_ domain.DecisionStore = (*store.DecisionStore)(nil)
)
