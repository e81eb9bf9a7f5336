package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lifeline-ems/dispatch/internal/adapters/capacity"
	"github.com/lifeline-ems/dispatch/internal/ambulance"
	"github.com/lifeline-ems/dispatch/internal/dispatch"
	"github.com/lifeline-ems/dispatch/internal/emergency"
	"github.com/lifeline-ems/dispatch/internal/hospital"
	"github.com/lifeline-ems/dispatch/internal/ranking"
	"github.com/lifeline-ems/dispatch/internal/realtime"
	"github.com/lifeline-ems/dispatch/internal/routing"
	"github.com/lifeline-ems/dispatch/internal/shared/auth"
	"github.com/lifeline-ems/dispatch/internal/shared/config"
	"github.com/lifeline-ems/dispatch/internal/shared/database"
	"github.com/lifeline-ems/dispatch/internal/shared/events"
	"github.com/lifeline-ems/dispatch/internal/shared/logging"
	"github.com/lifeline-ems/dispatch/internal/shared/metrics"
	secmiddleware "github.com/lifeline-ems/dispatch/internal/shared/middleware"
)

// App holds all application dependencies
type App struct {
	Config  *config.Config
	DB      *database.DB
	Journal events.Journal
	Feed    *capacity.Adapter
	Logger  zerolog.Logger
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("dispatchd")
	app := &App{Config: cfg, Journal: events.NopJournal{}, Logger: logger}

	// Database is optional: without it the engine runs on in-memory
	// stores, which is enough for demos and local development.
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Warn().Err(err).Msg("database not available, using in-memory stores")
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			logger.Error().Err(err).Msg("migration failed")
			os.Exit(1)
		}
	}

	// Event journal is optional: dispatch never depends on it.
	if cfg.EventStore.Enabled {
		journal, err := events.NewESDBJournal(cfg.EventStore)
		if err != nil {
			logger.Warn().Err(err).Msg("event store not available, running without journal")
		} else {
			app.Journal = journal
			defer journal.Close()
			logger.Info().Msg("event journal connected")
		}
	}

	hub := realtime.NewHub(logging.New("realtime"))

	// Stores: SQL-backed when the database is up, in-memory otherwise.
	var (
		hospitalRepo  hospital.Repository
		ambulanceRepo ambulance.Repository
		emergencyRepo emergency.Repository
		ranker        ranking.Ranker
	)
	if app.DB != nil {
		hospitalRepo = hospital.NewPostgresRepository(app.DB.Pool)
		ambulanceRepo = ambulance.NewPostgresRepository(app.DB.Pool)
		emergencyRepo = emergency.NewPostgresRepository(app.DB.Pool)
		ranker = ranking.NewPostgresRanker(app.DB.Pool)
	} else {
		ambulanceMem := ambulance.NewMemoryRepository()
		hospitalMem := hospital.NewMemoryRepository()
		hospitalRepo = hospitalMem
		ambulanceRepo = ambulanceMem
		emergencyRepo = emergency.NewMemoryRepository(ambulanceMem)
		ranker = ranking.NewMemoryRanker(ambulanceMem, hospitalMem)
	}

	hospitalService := hospital.NewService(hospitalRepo, app.Journal, logging.New("hospital"))
	emergencyService := emergency.NewService(emergencyRepo, ambulanceRepo, hub, app.Journal, logging.New("emergency"))
	estimator := routing.NewClient(cfg.Routing, logging.New("routing"))
	coordinator := dispatch.NewCoordinator(
		emergencyRepo, ambulanceRepo, hospitalRepo,
		estimator, hub, app.Journal, logging.New("dispatch"),
	)

	hospitalHandler := hospital.NewHandler(hospitalService)
	ambulanceHandler := ambulance.NewHandler(ambulanceRepo)
	emergencyHandler := emergency.NewHandler(emergencyService)
	rankingHandler := ranking.NewHandler(ranker)
	dispatchHandler := dispatch.NewHandler(coordinator)
	streamHandler := realtime.NewHandler(hub, cfg.Realtime)

	// HIS capacity feed is optional.
	if cfg.CapacityFeed.Enabled {
		feed := capacity.New(cfg.CapacityFeed, hospitalService, logging.New("capacity-feed"))
		if err := feed.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("capacity feed not available")
		} else {
			app.Feed = feed
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				feed.Stop(stopCtx)
			}()
		}
	}

	rateLimiter := secmiddleware.NewIPRateLimiter(100, 200)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.InputSanitizer)
	r.Use(rateLimiter.Middleware)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth))

		r.Route("/hospitals", func(r chi.Router) {
			r.Get("/", hospitalHandler.List)
			r.With(auth.RequireRoles(auth.RoleAdmin)).Post("/", hospitalHandler.Create)

			r.Route("/{hospitalID}", func(r chi.Router) {
				r.Get("/", hospitalHandler.Get)
				r.With(auth.RequireRoles(auth.RoleHospital)).Put("/capacity", hospitalHandler.UpdateCapacity)
				r.With(auth.RequireRoles(auth.RoleHospital)).Get("/emergencies", emergencyHandler.ListForHospital)
				r.With(auth.RequireRoles(auth.RoleHospital)).Get("/stream", streamHandler.Stream)
			})
		})

		r.Mount("/ambulances", ambulanceHandler.Routes())
		r.Mount("/emergencies", emergencyHandler.Routes())
		r.Mount("/candidates", rankingHandler.Routes())
		r.Mount("/dispatch", dispatchHandler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		// SSE streams outlive ordinary responses.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info().Msg("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
		close(done)
	}()

	logger.Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Bool("database", app.DB != nil).
		Bool("journal", cfg.EventStore.Enabled).
		Bool("capacity_feed", app.Feed != nil).
		Msg("dispatch engine listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server error")
		os.Exit(1)
	}

	<-done
	logger.Info().Msg("server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Lifeline EMS Dispatch Engine",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Feed != nil {
			if err := app.Feed.Health(r.Context()); err != nil {
				checks["capacity_feed"] = "not ready: " + err.Error()
			} else {
				checks["capacity_feed"] = "ready"
			}
		} else {
			checks["capacity_feed"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
