package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/samims/taskpulse/internal/metrics"
	"github.com/samims/taskpulse/pkg/tracing"
)

// Queue is a delayed job queue with bounded, exponentially backed-off retries.
type Queue interface {
	Enqueue(ctx context.Context, job Job, opts Options) (JobHandle, error)
	// Consume runs handler for eligible jobs until ctx is done.
	Consume(ctx context.Context, handler Handler) error
	Ping(ctx context.Context) error
}

// Handler executes one attempt of a job. A returned error schedules a retry.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// ExhaustedHandler is implemented by handlers that want to know when a job
// is dropped after its last failed attempt.
type ExhaustedHandler interface {
	Exhausted(ctx context.Context, job Job, lastErr error)
}

type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error { return f(ctx, job) }

type Option func(*queue)

func WithRetryPolicy(p RetryPolicy) Option { return func(q *queue) { q.policy = p } }

func WithConcurrency(n int) Option {
	return func(q *queue) {
		if n > 0 {
			q.concurrency = n
		}
	}
}

func WithPollInterval(d time.Duration) Option { return func(q *queue) { q.poll = d } }

func WithLease(d time.Duration) Option { return func(q *queue) { q.lease = d } }

func WithClock(now func() time.Time) Option { return func(q *queue) { q.now = now } }

type queue struct {
	store       Store
	policy      RetryPolicy
	concurrency int
	poll        time.Duration
	lease       time.Duration
	now         func() time.Time
	logger      *slog.Logger
	tracer      *tracing.Tracer
}

// New builds a Queue over store.
func New(store Store, logger *slog.Logger, opts ...Option) Queue {
	q := &queue{
		store:       store,
		policy:      DefaultRetryPolicy,
		concurrency: 4,
		poll:        500 * time.Millisecond,
		lease:       5 * time.Minute,
		now:         time.Now,
		logger:      logger.With("layer", "queue", "component", "delayed_job_queue"),
		tracer:      tracing.NewTracer(tracing.GetTracer("delayed-job-queue")),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *queue) Enqueue(ctx context.Context, job Job, opts Options) (JobHandle, error) {
	now := q.now()
	delay := opts.Delay
	if delay < 0 {
		delay = 0
	}
	env := Envelope{
		ID:          uuid.NewString(),
		Job:         job,
		Priority:    opts.Priority,
		MaxAttempts: q.policy.Attempts,
		RunAt:       now.Add(delay),
		EnqueuedAt:  now,
		Trace:       tracing.InjectMap(ctx),
	}
	if err := q.store.Push(ctx, env); err != nil {
		return JobHandle{}, fmt.Errorf("queue: push job: %w", err)
	}
	q.logger.DebugContext(ctx, "Job enqueued",
		slog.String("job_id", env.ID),
		slog.String("type", string(job.Type)),
		slog.Duration("delay", delay),
		slog.Int("priority", opts.Priority),
	)
	return JobHandle{ID: env.ID, RunAt: env.RunAt}, nil
}

func (q *queue) Consume(ctx context.Context, handler Handler) error {
	q.logger.InfoContext(ctx, "Starting queue consumer",
		slog.Int("concurrency", q.concurrency),
		slog.Duration("poll_interval", q.poll),
	)
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()

	for {
		n, err := q.runOnce(ctx, handler)
		if err != nil && ctx.Err() == nil {
			q.logger.ErrorContext(ctx, "Error claiming jobs", slog.Any("error", err))
		}
		// a full batch means more work is probably waiting
		if n == q.concurrency && ctx.Err() == nil {
			continue
		}
		select {
		case <-ctx.Done():
			q.logger.InfoContext(ctx, "Queue consumer shutting down")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *queue) Ping(ctx context.Context) error {
	return q.store.Ping(ctx)
}

// runOnce claims one batch of eligible jobs and runs it to completion.
func (q *queue) runOnce(ctx context.Context, handler Handler) (int, error) {
	if ctx.Err() != nil {
		return 0, nil
	}
	envs, err := q.store.Claim(ctx, q.now(), q.concurrency, q.lease)
	if err != nil {
		return 0, fmt.Errorf("queue: claim: %w", err)
	}
	if len(envs) == 0 {
		return 0, nil
	}

	var eg errgroup.Group
	sem := make(chan struct{}, q.concurrency)
	for _, env := range envs {
		env := env
		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()
			q.execute(ctx, handler, env)
			return nil
		})
	}
	return len(envs), eg.Wait()
}

// execute runs a single attempt and settles it: ack on success, push back
// with backoff on failure, ack and notify once attempts are used up.
func (q *queue) execute(ctx context.Context, handler Handler, env Envelope) {
	ctx = tracing.ExtractMap(ctx, env.Trace)
	ctx, span := q.tracer.StartConsumerSpan(ctx, "queue.execute",
		attribute.String(tracing.AttrJobID, env.ID),
		attribute.Int(tracing.AttrJobAttempt, env.Attempt+1),
		attribute.String(tracing.AttrJobType, string(env.Job.Type)),
	)
	defer span.End()

	// settling must survive consumer shutdown
	storeCtx := context.WithoutCancel(ctx)
	log := q.logger.With(slog.String("job_id", env.ID), slog.Int("attempt", env.Attempt+1))

	// a claimed attempt finishes within its lease even when the consumer stops
	runCtx, cancel := context.WithTimeout(storeCtx, q.lease)
	defer cancel()

	err := handler.Handle(runCtx, env.Job)
	if err == nil {
		metrics.JobsProcessed.WithLabelValues("ok").Inc()
		if ackErr := q.store.Ack(storeCtx, env.ID); ackErr != nil {
			log.ErrorContext(ctx, "Failed to ack job", slog.Any("error", ackErr))
		}
		return
	}
	q.tracer.RecordError(span, err)

	maxAttempts := env.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = q.policy.Attempts
	}
	failed := env.Attempt + 1
	if failed < maxAttempts {
		delay := q.policy.Delay(failed)
		env.Attempt = failed
		env.RunAt = q.now().Add(delay)
		metrics.JobsProcessed.WithLabelValues("retry").Inc()
		log.WarnContext(ctx, "Job failed, retry scheduled", slog.Any("error", err), slog.Duration("backoff", delay))
		if pushErr := q.store.Push(storeCtx, env); pushErr != nil {
			log.ErrorContext(ctx, "Failed to reschedule job", slog.Any("error", pushErr))
		}
		return
	}

	metrics.JobsProcessed.WithLabelValues("exhausted").Inc()
	log.ErrorContext(ctx, "Job attempts exhausted, dropping", slog.Any("error", err), slog.Int("max_attempts", maxAttempts))
	if ackErr := q.store.Ack(storeCtx, env.ID); ackErr != nil {
		log.ErrorContext(ctx, "Failed to ack exhausted job", slog.Any("error", ackErr))
	}
	if eh, ok := handler.(ExhaustedHandler); ok {
		eh.Exhausted(storeCtx, env.Job, err)
	}
}
