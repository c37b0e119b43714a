package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samims/taskpulse/internal/model"
	"github.com/samims/taskpulse/pkg/tracing"
)

// publishTimeout bounds one publish so a broker outage cannot stall delivery.
const publishTimeout = 2 * time.Second

// OutcomePublisher streams delivery outcomes for downstream consumers.
type OutcomePublisher interface {
	Publish(ctx context.Context, ev model.DeliveryEvent) error
	Close() error
}

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	logger  *slog.Logger
	tracer  *tracing.Tracer
}

// NewKafkaWriter builds a writer keyed by user id so a user's outcomes stay
// on one partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		WriteTimeout: publishTimeout,
	}
}

func NewKafkaPublisher(w messageWriter, topic string, logger *slog.Logger) OutcomePublisher {
	return &kafkaPublisher{
		writer:  w,
		topic:   topic,
		timeout: publishTimeout,
		logger:  logger.With("layer", "events", "component", "outcome_publisher"),
		tracer:  tracing.NewTracer(tracing.GetTracer("outcome-publisher")),
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, ev model.DeliveryEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ctx, span := p.tracer.StartClientSpan(ctx, "OutcomePublisher.Publish",
		attribute.String(tracing.AttrLogID, ev.LogID),
	)
	defer span.End()
	p.tracer.AddMessagingAttributes(span, p.topic, "publish")

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode delivery event: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(ev.UserID),
		Value:   value,
		Time:    ev.At,
		Headers: traceHeaders(ctx),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.tracer.RecordError(span, err)
		return fmt.Errorf("publish delivery event: %w", err)
	}
	p.logger.DebugContext(ctx, "Delivery outcome published",
		slog.String("log_id", ev.LogID),
		slog.String("status", string(ev.Status)),
	)
	return nil
}

func traceHeaders(ctx context.Context) []kafka.Header {
	carrier := tracing.InjectMap(ctx)
	headers := make([]kafka.Header, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

type nopPublisher struct{}

// NewNopPublisher is used when no outcome topic is configured.
func NewNopPublisher() OutcomePublisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, model.DeliveryEvent) error { return nil }
func (nopPublisher) Close() error                                       { return nil }
