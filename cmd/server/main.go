package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/damon-houk/exchange-rate-service/internal/application/job"
	"github.com/damon-houk/exchange-rate-service/internal/application/service"
	"github.com/damon-houk/exchange-rate-service/internal/config"
	"github.com/damon-houk/exchange-rate-service/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/api"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/cache"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/db"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/handler"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/logger"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/metrics"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/middleware"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/resilience"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/scheduler"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.MustLoad()

	log := newLogger(cfg.Log)
	logger.SetDefaultLogger(log)
	defer func() { _ = log.Sync() }()

	log.Info("Starting exchange rate service", map[string]interface{}{
		"env":     cfg.Env,
		"address": cfg.HTTPServer.Address,
	})

	providerID, err := entity.ParseProviderID(cfg.Provider.Default)
	if err != nil {
		log.Fatal("Invalid default provider", map[string]interface{}{"error": err.Error()})
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(reg)

	badgerDB, err := db.Open(db.Options{
		Path:       cfg.Storage.Path,
		InMemory:   cfg.Storage.InMemory,
		SyncWrites: cfg.Storage.SyncWrites,
	}, log)
	if err != nil {
		log.Fatal("Failed to open database", map[string]interface{}{"error": err.Error()})
	}
	defer func() {
		if err := badgerDB.Close(); err != nil {
			log.Error("Error closing BadgerDB", map[string]interface{}{"error": err.Error()})
		}
	}()

	rateRepo := db.NewBadgerRateRepository(badgerDB)
	store := cache.NewMemoryStore()

	policy := resilience.NewPolicy(resilience.Settings{
		Name:                       string(entity.ProviderFrankfurter),
		MaxAttempts:                cfg.Resilience.MaxAttempts,
		BaseDelay:                  cfg.Resilience.BaseDelay,
		AllowedFailuresBeforeBreak: cfg.Resilience.AllowedFailuresBeforeBreak,
		BreakDuration:              cfg.Resilience.BreakDuration,
	}, log, appMetrics.ResilienceHandler())

	frankfurter := api.NewFrankfurterClient(
		&http.Client{Timeout: cfg.Provider.Timeout},
		policy,
		api.FrankfurterOptions{
			LatestURL: cfg.Provider.FrankfurterLatestURL,
			UserAgent: cfg.Provider.UserAgent,
		},
		log,
	)
	providers, err := api.NewRegistry(frankfurter)
	if err != nil {
		log.Fatal("Failed to register rate providers", map[string]interface{}{"error": err.Error()})
	}

	exchangeService := service.NewExchangeService(providers, store, rateRepo, service.Options{
		CurrentRateTTL: cfg.Cache.CurrentRateTTL(),
		HistoryTTL:     cfg.Cache.HistoryTTL(),
	}, log, appMetrics)

	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.MetricsMiddleware(appMetrics))
	handler.NewExchangeRateHandler(exchangeService, providerID, log).RegisterRoutes(router)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	ctx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	// Warm the cache from storage; an empty store is fine on first boot
	if _, err := exchangeService.RefreshCacheFromStore(ctx); err != nil {
		log.Warn("Rate cache not warmed from storage", map[string]interface{}{"error": err.Error()})
	}

	sched := scheduler.New(log, appMetrics)
	if cfg.Scheduler.Enabled {
		if err := sched.Every(cfg.Scheduler.ImportInterval, job.NewImportJob(exchangeService, providerID, log), cfg.Scheduler.RunOnStart); err != nil {
			log.Fatal("Failed to schedule import job", map[string]interface{}{"error": err.Error()})
		}
	}
	if err := sched.Every(cfg.Cache.JanitorInterval, job.NewCacheJanitorJob(store, log), false); err != nil {
		log.Fatal("Failed to schedule cache janitor", map[string]interface{}{"error": err.Error()})
	}
	sched.Start(ctx)

	go func() {
		log.Info("Server listening", map[string]interface{}{"address": cfg.HTTPServer.Address})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Shutting down server", map[string]interface{}{"signal": sig.String()})

	cancelJobs()
	sched.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", map[string]interface{}{"error": err.Error()})
	}

	if err := rateRepo.Save(context.Background()); err != nil {
		log.Error("Failed to flush storage", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Server exited", nil)
}

func newLogger(cfg config.Log) *logger.JSONLogger {
	level := logger.ParseLevel(cfg.Level)
	if cfg.Output == "file" {
		return logger.NewFileLogger(logger.FileOptions{
			Path:       cfg.File,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAgeDays: cfg.MaxAgeDays,
		}, level)
	}
	return logger.NewJSONLogger(os.Stdout, level)
}
