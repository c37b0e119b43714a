package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/events"
	"github.com/samims/taskpulse/internal/metrics"
	"github.com/samims/taskpulse/internal/model"
	"github.com/samims/taskpulse/internal/queue"
	"github.com/samims/taskpulse/internal/sender"
	"github.com/samims/taskpulse/internal/storage"
	"github.com/samims/taskpulse/internal/store"
	"github.com/samims/taskpulse/pkg/tracing"
)

const errTypeDisabled = "notification type disabled by recipient"

// Dispatcher is the queue handler that delivers notification jobs.
type Dispatcher interface {
	queue.Handler
	queue.ExhaustedHandler
}

type dispatcher struct {
	logs      store.NotificationLogStorage
	settings  store.SettingsStorage
	directory storage.UserDirectory
	sender    sender.Sender
	enqueuer  NotifyEnqueuer
	outcomes  events.OutcomePublisher
	now       func() time.Time
	logger    *slog.Logger
	tracer    *tracing.Tracer
}

func NewDispatcher(
	logs store.NotificationLogStorage,
	settings store.SettingsStorage,
	directory storage.UserDirectory,
	s sender.Sender,
	enqueuer NotifyEnqueuer,
	outcomes events.OutcomePublisher,
	logger *slog.Logger,
) Dispatcher {
	if outcomes == nil {
		outcomes = events.NewNopPublisher()
	}
	return &dispatcher{
		logs:      logs,
		settings:  settings,
		directory: directory,
		sender:    s,
		enqueuer:  enqueuer,
		outcomes:  outcomes,
		now:       time.Now,
		logger:    logger.With("layer", "service", "component", "dispatcher"),
		tracer:    tracing.NewTracer(tracing.GetTracer("notification-dispatcher")),
	}
}

// Handle runs one delivery attempt. A returned error lets the queue retry.
func (d *dispatcher) Handle(ctx context.Context, job queue.Job) error {
	ctx, span := d.tracer.StartConsumerSpan(ctx, "Dispatcher.Handle",
		attribute.String(tracing.AttrJobType, string(job.Type)),
		attribute.String(tracing.AttrLogID, job.Payload.NotificationLogID),
		attribute.String(tracing.AttrRecipientID, job.RecipientUserID),
		attribute.String(tracing.AttrTaskID, job.Payload.TaskID),
	)
	defer span.End()

	log := d.logger.With(
		slog.String("log_id", job.Payload.NotificationLogID),
		slog.String("user_id", job.RecipientUserID),
		slog.String("type", string(job.Type)),
	)

	channelID, err := d.resolveChannel(ctx, job)
	if err != nil {
		d.tracer.RecordError(span, err)
		log.WarnContext(ctx, "Cannot resolve recipient", slog.Any("error", err))
		return err
	}

	now := d.now()
	if job.RecipientUserID != "" {
		if settings, ok := d.recipientSettings(ctx, job.RecipientUserID); ok {
			if !settings.IsEnabled(job.Type) {
				return d.dropDisabled(ctx, log, job)
			}
			if until, quiet := QuietUntil(settings.QuietHours, now); quiet {
				return d.deferJob(ctx, log, job, now, until)
			}
		}
	}

	if err := d.sender.Send(ctx, channelID, job.Text); err != nil {
		d.tracer.RecordError(span, err)
		log.WarnContext(ctx, "Delivery failed", slog.Any("error", err))
		d.record(ctx, log, job, model.FailedUpdate(err.Error()))
		metrics.Deliveries.WithLabelValues(string(job.Type), string(model.StatusFailed)).Inc()
		d.publish(ctx, log, job, model.StatusFailed, err.Error())
		return err
	}

	d.record(ctx, log, job, model.SentUpdate(d.now()))
	metrics.Deliveries.WithLabelValues(string(job.Type), string(model.StatusSent)).Inc()
	d.publish(ctx, log, job, model.StatusSent, "")
	log.InfoContext(ctx, "Notification delivered")
	return nil
}

// Exhausted fails a log row left queued or deferred after the last attempt.
// Rows that already recorded a send failure keep their error.
func (d *dispatcher) Exhausted(ctx context.Context, job queue.Job, lastErr error) {
	id := job.Payload.NotificationLogID
	if id == "" {
		return
	}
	reason := "attempts exhausted"
	if lastErr != nil {
		reason = fmt.Sprintf("attempts exhausted: %v", lastErr)
	}
	changed, err := d.logs.MarkAbandoned(ctx, id, reason)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to mark exhausted notification", slog.String("log_id", id), slog.Any("error", err))
		return
	}
	if changed {
		d.publish(ctx, d.logger, job, model.StatusFailed, reason)
	}
}

func (d *dispatcher) resolveChannel(ctx context.Context, job queue.Job) (string, error) {
	if job.RecipientChannelID != "" {
		return job.RecipientChannelID, nil
	}
	if job.RecipientUserID == "" {
		return "", appErr.ErrNoRecipient
	}
	channelID, err := d.directory.ChannelID(ctx, job.RecipientUserID)
	if err != nil {
		return "", fmt.Errorf("resolve channel for user %s: %w", job.RecipientUserID, err)
	}
	if channelID == "" {
		return "", appErr.ErrNoRecipient
	}
	return channelID, nil
}

// recipientSettings fails open: a settings read error never blocks delivery.
func (d *dispatcher) recipientSettings(ctx context.Context, userID string) (model.ReminderSettings, bool) {
	settings, err := loadSettings(ctx, d.settings, userID)
	if err != nil {
		d.logger.WarnContext(ctx, "Settings unavailable, ignoring recipient preferences", slog.String("user_id", userID), slog.Any("error", err))
		return model.ReminderSettings{}, false
	}
	return settings, true
}

// dropDisabled settles a job whose type the recipient switched off after it
// was queued. The attempt succeeds so the queue does not retry it.
func (d *dispatcher) dropDisabled(ctx context.Context, log *slog.Logger, job queue.Job) error {
	d.record(ctx, log, job, model.FailedUpdate(errTypeDisabled))
	metrics.Deliveries.WithLabelValues(string(job.Type), string(model.StatusFailed)).Inc()
	d.publish(ctx, log, job, model.StatusFailed, errTypeDisabled)
	log.InfoContext(ctx, "Notification type disabled by recipient, dropped")
	return nil
}

// deferJob re-enqueues the job for the end of the quiet window. The current
// attempt then completes successfully, so the retry budget is untouched.
func (d *dispatcher) deferJob(ctx context.Context, log *slog.Logger, job queue.Job, now, until time.Time) error {
	delay := deferralDelay(now, until)
	if _, err := d.enqueuer.Enqueue(ctx, job, queue.Options{Delay: delay}); err != nil {
		return fmt.Errorf("defer for quiet hours: %w", err)
	}
	metrics.QuietHoursDeferrals.Inc()
	if id := job.Payload.NotificationLogID; id != "" {
		if err := d.logs.UpdateStatus(ctx, id, model.SkippedQuietHoursUpdate()); err != nil {
			log.ErrorContext(ctx, "Failed to mark notification skipped", slog.Any("error", err))
		}
	}
	d.publish(ctx, log, job, model.StatusSkippedQuietHours, "")
	log.InfoContext(ctx, "Quiet hours, notification deferred", slog.Duration("delay", delay))
	return nil
}

// record writes the delivery outcome. Jobs carrying a log id update exactly
// that row; jobs without one fall back to every queued row of the user and
// type. Write errors are logged and never change the outcome of the attempt.
func (d *dispatcher) record(ctx context.Context, log *slog.Logger, job queue.Job, upd model.StatusUpdate) {
	if id := job.Payload.NotificationLogID; id != "" {
		if err := d.logs.UpdateStatus(ctx, id, upd); err != nil {
			log.ErrorContext(ctx, "Failed to update notification log", slog.String("status", string(upd.Status)), slog.Any("error", err))
		}
		return
	}
	if job.RecipientUserID == "" {
		return
	}
	n, err := d.logs.UpdateQueuedByUserType(ctx, job.RecipientUserID, job.Type, upd)
	if err != nil {
		log.ErrorContext(ctx, "Failed to update queued notification logs", slog.String("status", string(upd.Status)), slog.Any("error", err))
		return
	}
	log.DebugContext(ctx, "Matched queued notification logs", slog.Int64("rows", n))
}

func (d *dispatcher) publish(ctx context.Context, log *slog.Logger, job queue.Job, status model.NotificationStatus, errMsg string) {
	ev := model.DeliveryEvent{
		LogID:  job.Payload.NotificationLogID,
		UserID: job.RecipientUserID,
		TaskID: job.Payload.TaskID,
		Type:   job.Type,
		Status: status,
		Error:  errMsg,
		At:     d.now(),
	}
	if err := d.outcomes.Publish(ctx, ev); err != nil {
		log.WarnContext(ctx, "Failed to publish delivery outcome", slog.Any("error", err))
	}
}
