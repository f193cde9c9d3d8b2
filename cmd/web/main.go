package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"report-dashboard/internal/catalog"
	"report-dashboard/internal/config"
	"report-dashboard/internal/middleware"
	"report-dashboard/internal/observability"
	"report-dashboard/internal/server"
	"report-dashboard/internal/services"
)

const version = "1.0.0"

// newHandler wires the report service, routes and middleware chain.
func newHandler(cfg *config.Config, logger *slog.Logger, reports *services.Reports, rateLimiter *middleware.RateLimiter) http.Handler {
	srv := server.NewServer(reports, logger, cfg.Upload.MaxBytes)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Session(cfg.Session),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"config", cfg,
	)

	cat, err := catalog.Default()
	if err != nil {
		logger.Error("failed to load report catalog", "error", err)
		os.Exit(1)
	}
	logger.Info("report catalog loaded", "reports", len(cat.All()))

	store := services.NewStore(cfg.Session.IdleTTL, logger)
	reports := services.NewReports(store, cat, logger, cfg.Upload.ParseTimeout)
	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	sweeper, err := services.NewSweeper(cfg.Session.SweepSchedule, logger,
		func() { store.Sweep() },
		func() {
			if n := rateLimiter.Sweep(cfg.Session.IdleTTL); n > 0 {
				logger.Debug("evicted idle rate limiters", "count", n)
			}
		},
	)
	if err != nil {
		logger.Error("failed to schedule session sweeper", "error", err)
		os.Exit(1)
	}
	sweeper.Start()

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, logger, reports, rateLimiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)
	gracefulServer.RegisterShutdownHook("sweeper", sweeper.Stop)
	gracefulServer.RegisterShutdownHook("store", func(ctx context.Context) error {
		stats := store.Stats()
		logger.Info("discarding session reports",
			"sessions", stats.Sessions,
			"loaded_slots", stats.LoadedSlots,
			"rows", stats.Rows,
		)
		return nil
	})

	if err := gracefulServer.ListenAndServe(context.Background()); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
