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

	"github.com/IBM/sarama"

	"github.com/samims/taskpulse/internal/app"
	"github.com/samims/taskpulse/internal/config"
	"github.com/samims/taskpulse/internal/handler"
	"github.com/samims/taskpulse/internal/kafka"
	"github.com/samims/taskpulse/internal/logger"
	"github.com/samims/taskpulse/internal/metrics"
	"github.com/samims/taskpulse/internal/router"
	"github.com/samims/taskpulse/internal/service"
	"github.com/samims/taskpulse/internal/storage"
	"github.com/samims/taskpulse/internal/store"
	"github.com/samims/taskpulse/pkg/observability"
)

const defaultServiceName = "taskpulse-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
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

	jobStore, closeJobStore, err := app.NewQueueStore(ctx, cfg.Queue, pool, l)
	if err != nil {
		l.Error("Failed to create queue store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeJobStore()
	q := app.NewQueue(jobStore, cfg.Queue, l)

	// Initialize layers
	logStore := store.NewNotificationLogStorage(db)
	settingsStore := store.NewSettingsStorage(db)

	enqueuer := service.NewNotifyEnqueuer(q, l)
	scheduler := service.NewReminderScheduler(logStore, settingsStore, enqueuer, l)
	triggers := service.NewTriggerService(logStore, settingsStore, enqueuer, scheduler, l)
	healthSvc := service.NewHealthService(map[string]service.Pinger{"db": logStore, "queue": q}, l)
	tokens := service.NewJWTService(cfg.Auth.SecretKey, 24*time.Hour)

	var wg sync.WaitGroup

	// A memory queue is invisible to a separate worker, so deliver in-process.
	if cfg.Queue.Backend == config.QueueBackendMemory {
		if err := cfg.ValidateWorker(); err != nil {
			l.Error("Invalid config for in-process delivery", slog.Any("error", err))
			os.Exit(1)
		}
		snd, err := app.NewSender(cfg, l)
		if err != nil {
			l.Error("Failed to create sender", slog.Any("error", err))
			os.Exit(1)
		}
		outcomes := app.NewOutcomePublisher(cfg.Kafka, l)
		defer outcomes.Close()
		dispatcher := service.NewDispatcher(logStore, settingsStore, storage.NewUserDirectory(pool), snd, enqueuer, outcomes, l)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q.Consume(ctx, dispatcher); err != nil && !errors.Is(err, context.Canceled) {
				l.Error("In-process dispatcher stopped with error", slog.Any("error", err))
			}
		}()
	}

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.TaskTopic != "" {
		saramaCfg := sarama.NewConfig()
		saramaCfg.Version = sarama.V2_1_0_0
		saramaCfg.Consumer.Return.Errors = true
		saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
		consumerGroup, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, saramaCfg)
		if err != nil {
			l.Error("Failed to create Kafka consumer group", slog.Any("error", err))
			os.Exit(1)
		}
		consumer := kafka.NewKafkaConsumer(cfg.Kafka.TaskTopic, consumerGroup, triggers, l)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				l.Error("Kafka consumer stopped with error", slog.Any("error", err))
			}
		}()
	}

	r := router.NewRouter(router.Handlers{
		Settings:      handler.NewSettingsHandler(service.NewSettingsService(settingsStore, l), l),
		Notifications: handler.NewNotificationHandler(triggers, scheduler, l),
		Logs:          handler.NewLogHandler(service.NewLogService(logStore, l), l),
		Health:        handler.NewHealthHandler(healthSvc, l),
	}, tokens)

	server := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Info("Server started", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Failed to start server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	l.Info("Shutting down server...")

	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxTimeout); err != nil {
		l.Error("Shutdown failed", "err", err)
	}

	wg.Wait()
	l.Info("Server exited cleanly")
}
