package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/precheck/criteria"
	"github.com/liamcoop/precheck/internal/config"
	"github.com/liamcoop/precheck/internal/logger"
	"github.com/liamcoop/precheck/internal/metrics"
	"github.com/liamcoop/precheck/projects"
	"github.com/liamcoop/precheck/resolver"
)

type Server struct {
	db       *sql.DB
	criteria *criteria.Service
	projects *projects.Manager
	resolver *resolver.Resolver
	policy   criteria.FailurePolicy
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	router   *chi.Mux
}

// NewServer wires the services. A nil db keeps criteria and projects in
// memory.
func NewServer(cfg config.Server, db *sql.DB) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var store criteria.Store = criteria.NewInMemoryStore()
	if db != nil {
		store = criteria.NewPostgresStore(db)
	}
	cache := criteria.NewInMemoryCache(criteria.CacheConfig{TTL: cfg.CriteriaTTL})

	s := &Server{
		db:       db,
		criteria: criteria.NewService(store, cache),
		projects: projects.NewManager(db, criteria.WithFailurePolicy(cfg.FailurePolicy)),
		resolver: resolver.New(),
		policy:   cfg.FailurePolicy,
		metrics:  metrics.New(registry),
		registry: registry,
	}

	logger.Info("Loading projects...")
	if err := s.projects.LoadAll(); err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}
	logger.Info("Projects loaded", "count", len(s.projects.List()))

	if cfg.CriteriaFile != "" {
		list, err := criteria.LoadYAMLFile(cfg.CriteriaFile)
		if err != nil {
			return nil, err
		}
		if err := s.criteria.Seed(list); err != nil {
			if db == nil {
				return nil, fmt.Errorf("failed to seed criteria: %w", err)
			}
			// Criteria already stored by a previous start are expected here.
			logger.Warn("Some criteria were not seeded", "error", err)
		}
		logger.Info("Criteria seeded", "file", cfg.CriteriaFile, "count", len(list))
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1/rulesets", func(r chi.Router) {
		r.Get("/", s.handleListRulesets)
		r.Get("/{rulesetId}", s.handleGetRuleset)
	})

	r.Post("/api/v1/precheck", s.handlePrecheck)
	r.Post("/api/v1/resolve", s.handleResolve)
	r.Post("/api/v1/documents/check", s.handleDocumentCheck)

	r.Route("/api/v1/criteria", func(r chi.Router) {
		r.Get("/", s.handleListCriteria)
		r.Post("/", s.handleCreateCriterion)
		r.Post("/evaluate", s.handleEvaluateCriteria)

		r.Route("/{criterionId}", func(r chi.Router) {
			r.Get("/", s.handleGetCriterion)
			r.Put("/", s.handleUpdateCriterion)
			r.Delete("/", s.handleDeleteCriterion)
		})
	})

	r.Route("/api/v1/projects", func(r chi.Router) {
		r.Get("/", s.handleListProjects)

		r.Route("/{projectId}", func(r chi.Router) {
			r.Get("/", s.handleGetProject)
			r.Put("/", s.handlePutProject)
			r.Delete("/", s.handleDeleteProject)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// observe logs each request and records it under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(route, r.Method, status, elapsed)

		args := []any{
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		}
		switch {
		case status >= 500:
			logger.ErrorHttp5xx()
			logger.Logger.Error("request failed", args...)
		case status >= 400:
			logger.WarnHttp4xx()
			logger.Debug("request rejected", args...)
		default:
			logger.Debug("request served", args...)
		}
	})
}

func openDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("Invalid configuration", "error", err)
	}
	logger.SetLevel(cfg.LogLevel)

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = openDB(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Database unavailable", "error", err)
		}
		defer db.Close()
	} else {
		logger.Info("DATABASE_URL not set, keeping criteria and projects in memory")
	}

	server, err := NewServer(cfg, db)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("Server starting", "addr", cfg.Addr, "failure_policy", cfg.FailurePolicy.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}
