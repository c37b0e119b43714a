package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/samims/taskpulse/internal/app"
	"github.com/samims/taskpulse/internal/config"
	"github.com/samims/taskpulse/internal/handler"
	"github.com/samims/taskpulse/internal/logger"
	"github.com/samims/taskpulse/internal/metrics"
	"github.com/samims/taskpulse/internal/router"
	"github.com/samims/taskpulse/internal/service"
	"github.com/samims/taskpulse/internal/storage"
	"github.com/samims/taskpulse/internal/store"
	"github.com/samims/taskpulse/pkg/observability"
)

const defaultServiceName = "taskpulse-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	l := logger.NewJSONLogger(cfg.LogLevel)
	slog.SetDefault(l)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serviceName := cfg.Tracing.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	tracerShutdown, err := observability.NewTracerProvider(ctx, serviceName, cfg.Tracing.CollectorEndpoint, l)
	if err != nil {
		l.Error("Failed to initialize OpenTelemetry TracerProvider", slog.Any("error", err))
		os.Exit(1)
	}
	defer tracerShutdown()

	db, err := store.ConnectPostgres(cfg.DB)
	if err != nil {
		l.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	if cfg.DB.Migrate {
		if err := store.MigrateUp(db); err != nil {
			l.Error("Failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	pool, err := storage.NewPostgresPool(ctx, cfg.DB.URL)
	if err != nil {
		l.Error("Failed to create pgx pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Queue.Backend == config.QueueBackendMemory {
		l.Warn("Worker started with the memory queue backend; it will only see jobs it enqueues itself")
	}
	jobStore, closeJobStore, err := app.NewQueueStore(ctx, cfg.Queue, pool, l)
	if err != nil {
		l.Error("Failed to create queue store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeJobStore()
	q := app.NewQueue(jobStore, cfg.Queue, l)

	snd, err := app.NewSender(cfg, l)
	if err != nil {
		l.Error("Failed to create sender", slog.Any("error", err))
		os.Exit(1)
	}
	outcomes := app.NewOutcomePublisher(cfg.Kafka, l)
	defer func() {
		if err := outcomes.Close(); err != nil {
			l.Warn("Failed to close outcome publisher", slog.Any("error", err))
		}
	}()

	logStore := store.NewNotificationLogStorage(db)
	settingsStore := store.NewSettingsStorage(db)
	enqueuer := service.NewNotifyEnqueuer(q, l)
	dispatcher := service.NewDispatcher(logStore, settingsStore, storage.NewUserDirectory(pool), snd, enqueuer, outcomes, l)
	healthSvc := service.NewHealthService(map[string]service.Pinger{"db": logStore, "queue": q}, l)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := q.Consume(ctx, dispatcher); err != nil && !errors.Is(err, context.Canceled) {
			l.Error("Dispatch worker stopped with error", slog.Any("error", err))
		}
	}()

	hServer := &http.Server{
		Addr:              cfg.Worker.Addr,
		Handler:           router.NewOpsRouter(handler.NewHealthHandler(healthSvc, l)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Info("Starting health server", "addr", hServer.Addr)
		if err := hServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Health server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	l.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hServer.Shutdown(shutdownCtx); err != nil {
		l.Error("Health server shutdown failed", "error", err)
	}

	wg.Wait()
	l.Info("Worker shut down gracefully")
}
