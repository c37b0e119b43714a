package service

import (
	"context"
	"log/slog"

	"github.com/samims/taskpulse/internal/metrics"
	"github.com/samims/taskpulse/internal/queue"
)

// NotifyEnqueuer is the single entry point producers use to put a
// notification job on the delayed queue.
type NotifyEnqueuer interface {
	Enqueue(ctx context.Context, job queue.Job, opts queue.Options) (queue.JobHandle, error)
}

type notifyEnqueuer struct {
	q      queue.Queue
	logger *slog.Logger
}

func NewNotifyEnqueuer(q queue.Queue, logger *slog.Logger) NotifyEnqueuer {
	return &notifyEnqueuer{
		q:      q,
		logger: logger.With("layer", "service", "component", "notify_enqueuer"),
	}
}

// Enqueue validates job and hands it to the queue. Invalid jobs are rejected
// here with ErrInvalidJob rather than failing later in the worker.
func (e *notifyEnqueuer) Enqueue(ctx context.Context, job queue.Job, opts queue.Options) (queue.JobHandle, error) {
	if err := job.Validate(); err != nil {
		e.logger.WarnContext(ctx, "Rejected notification job", slog.Any("error", err))
		return queue.JobHandle{}, err
	}
	handle, err := e.q.Enqueue(ctx, job, opts)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to enqueue notification job",
			slog.String("type", string(job.Type)),
			slog.Any("error", err),
		)
		return queue.JobHandle{}, err
	}
	metrics.JobsEnqueued.WithLabelValues(string(job.Type)).Inc()
	return handle, nil
}
