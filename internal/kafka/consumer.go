package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/attribute"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/model"
	"github.com/samims/taskpulse/pkg/tracing"
)

// TaskEventHandler receives decoded task events.
type TaskEventHandler interface {
	HandleTaskEvent(ctx context.Context, ev model.TaskEvent) error
}

// Consumer reads task events from a topic using a consumer group.
type Consumer struct {
	topic         string
	handler       TaskEventHandler
	consumerGroup sarama.ConsumerGroup
	log           *slog.Logger
	tracer        *tracing.Tracer
}

// NewKafkaConsumer receives its consumer group via dependency injection.
func NewKafkaConsumer(
	topic string,
	consumerGroup sarama.ConsumerGroup,
	handler TaskEventHandler,
	log *slog.Logger,
) *Consumer {
	return &Consumer{
		topic:         topic,
		consumerGroup: consumerGroup,
		handler:       handler,
		log:           log.With("layer", "kafka", "component", "task_event_consumer"),
		tracer:        tracing.NewTracer(tracing.GetTracer("task-event-consumer")),
	}
}

// Start blocks until the context is cancelled or the consumer group is closed.
func (c *Consumer) Start(ctx context.Context) error {
	defer func() {
		if err := c.consumerGroup.Close(); err != nil {
			c.log.Warn("Failed to close consumer group", slog.Any("error", err))
		}
	}()

	c.log.Info("Kafka consumer started", slog.String("topic", c.topic))

	backoff := 1 * time.Second
	for {
		// Consume returns on rebalance, error or cancellation.
		err := c.consumerGroup.Consume(ctx, []string{c.topic}, c)
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return err
			}
			c.log.Error("Error consuming messages", slog.Any("error", err))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = 1 * time.Second

		if ctx.Err() != nil {
			c.log.Info("Context cancelled, stopping consumer")
			return ctx.Err()
		}
	}
}

// Setup is called once when a new consumer session starts.
func (c *Consumer) Setup(session sarama.ConsumerGroupSession) error {
	for topic, partitions := range session.Claims() {
		c.log.Info("Partition assignment",
			slog.String("topic", topic),
			slog.Any("partitions", partitions),
		)
	}
	return nil
}

// Cleanup is called once when the consumer session ends.
func (c *Consumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	c.log.Info("Kafka session cleanup complete")
	return nil
}

// ConsumeClaim is called by sarama for each assigned partition.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if c.handleMessage(session.Context(), message) {
			session.MarkMessage(message, "")
		}
	}
	return nil
}

// handleMessage reports whether the offset may be committed. Malformed and
// invalid events are committed so they do not block the partition.
func (c *Consumer) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) bool {
	ctx = tracing.ExtractTraceContext(ctx, message.Headers)
	ctx, span := c.tracer.StartConsumerSpan(ctx, "TaskEventConsumer.handle")
	defer span.End()
	c.tracer.AddKafkaAttributes(span, message.Topic, "process", message.Partition, message.Offset)

	log := c.log.With(
		slog.String("topic", message.Topic),
		slog.Int("partition", int(message.Partition)),
		slog.Int64("offset", message.Offset),
	)
	log.DebugContext(ctx, "Message received")

	var ev model.TaskEvent
	if err := json.Unmarshal(message.Value, &ev); err != nil {
		c.tracer.RecordError(span, err)
		log.ErrorContext(ctx, "Failed to decode task event, skipping", slog.Any("error", err))
		return true
	}
	c.tracer.AddAttributes(span,
		attribute.String(tracing.AttrTaskID, ev.TaskID),
		attribute.String(tracing.AttrRecipientID, ev.UserID),
	)

	if err := c.handler.HandleTaskEvent(ctx, ev); err != nil {
		c.tracer.RecordError(span, err)
		if appErr.IsInvalidInput(err) {
			log.WarnContext(ctx, "Invalid task event, skipping", slog.String("kind", string(ev.Kind)), slog.Any("error", err))
			return true
		}
		log.ErrorContext(ctx, "Task event handling failed", slog.String("kind", string(ev.Kind)), slog.Any("error", err))
		return false
	}
	return true
}
