package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"calltrack/internal/config"
	"calltrack/internal/httpserver"
	"calltrack/internal/logging"
	"calltrack/internal/observability"
	"calltrack/internal/provider"
	"calltrack/internal/scheduler"
	"calltrack/internal/service"
	"calltrack/internal/store/pg"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.DBPoolMaxConns,
		MinConns:          cfg.DBPoolMinConns,
		MaxConnLifetime:   cfg.DBPoolMaxConnLifetime,
		MaxConnIdleTime:   cfg.DBPoolMaxConnIdleTime,
		HealthCheckPeriod: cfg.DBPoolHealthCheckPeriod,
	})
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.Port
	}

	// The provider lives in this binary; the client still goes over HTTP so
	// the round-trip looks like a real third-party integration.
	providerClient := &provider.Client{
		BaseURL:   baseURL,
		AuthToken: cfg.APIToken,
		HTTP:      &http.Client{Timeout: 8 * time.Second},
		Limiter:   rate.NewLimiter(rate.Limit(cfg.DispatchRPS), cfg.DispatchBurst),
	}

	sim := provider.NewSimulator(
		time.Duration(cfg.ProviderDelayMsMin)*time.Millisecond,
		time.Duration(cfg.ProviderDelayMsMax)*time.Millisecond,
		cfg.ProviderFailRate,
		nil,
	)

	svc := &service.CallService{
		Store:     pg.New(db),
		Dispatch:  providerClient,
		Callbacks: providerClient,
		Timers:    scheduler.New(),
		Simulator: sim,
	}

	s := httpserver.New()
	api := &httpserver.API{Svc: svc}
	api.Register(s.Mux, httpserver.BearerAuth(cfg.APIToken))

	s.Mux.Handle("/metrics", promhttp.Handler())
	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(ctx context.Context) error {
		return db.Ping(ctx)
	}))

	handler := httpserver.Logging(httpserver.Metrics(observability.APIRequests)(s.Mux))
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port, "base_url", baseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}

	db.Close()
}
