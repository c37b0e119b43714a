// Package app builds the components shared by the api and worker binaries
// from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/samims/taskpulse/internal/config"
	"github.com/samims/taskpulse/internal/events"
	"github.com/samims/taskpulse/internal/queue"
	"github.com/samims/taskpulse/internal/sender"
)

// NewQueueStore returns the job store for the configured backend and a
// function releasing whatever it opened.
func NewQueueStore(ctx context.Context, cfg config.QueueConfig, pool *pgxpool.Pool, logger *slog.Logger) (queue.Store, func(), error) {
	switch cfg.Backend {
	case config.QueueBackendPostgres:
		if pool == nil {
			return nil, nil, fmt.Errorf("postgres queue backend needs a connection pool")
		}
		return queue.NewPostgresStore(pool), func() {}, nil
	case config.QueueBackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse QUEUE_REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close redis client", slog.Any("error", err))
			}
		}
		return queue.NewRedisStore(client, cfg.RedisKey), closeFn, nil
	case config.QueueBackendMemory:
		logger.Warn("In-memory queue backend: jobs are lost on restart and are only visible to this process")
		return queue.NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
}

// NewQueue applies the retry and consumer settings to store.
func NewQueue(store queue.Store, cfg config.QueueConfig, logger *slog.Logger) queue.Queue {
	return queue.New(store, logger,
		queue.WithRetryPolicy(queue.RetryPolicy{
			Attempts:   cfg.Attempts,
			Backoff:    cfg.Backoff,
			MaxBackoff: cfg.MaxBackoff,
		}),
		queue.WithConcurrency(cfg.Concurrency),
		queue.WithPollInterval(cfg.PollInterval),
		queue.WithLease(cfg.Lease),
	)
}

func NewSender(cfg *config.Config, logger *slog.Logger) (sender.Sender, error) {
	switch cfg.Sender.Kind {
	case config.SenderConsole:
		return sender.NewConsoleSender(logger), nil
	case config.SenderTelegram:
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			return nil, fmt.Errorf("create telegram bot: %w", err)
		}
		logger.Info("Telegram bot authorized", slog.String("username", bot.Self.UserName))
		return sender.NewTelegramSender(bot, cfg.Telegram.DisableLinkPreview, logger), nil
	}
	return nil, fmt.Errorf("unknown sender kind %q", cfg.Sender.Kind)
}

// NewOutcomePublisher is a no-op unless an outcome topic is configured.
func NewOutcomePublisher(cfg config.KafkaConfig, logger *slog.Logger) events.OutcomePublisher {
	if cfg.OutcomeTopic == "" || len(cfg.Brokers) == 0 {
		return events.NewNopPublisher()
	}
	logger.Info("Publishing delivery outcomes", slog.String("topic", cfg.OutcomeTopic))
	return events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Brokers, cfg.OutcomeTopic), cfg.OutcomeTopic, logger)
}
