package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/model"
	"github.com/samims/taskpulse/internal/queue"
	"github.com/samims/taskpulse/internal/store"
	"github.com/samims/taskpulse/pkg/tracing"
)

// assignedPriority puts assignment notices ahead of routine reminders.
const assignedPriority = 1

// NotifyRequest is an immediate or delayed notification from a producer.
type NotifyRequest struct {
	RecipientUserID    string
	RecipientChannelID string
	Type               model.NotificationType
	Text               string
	TaskID             string
	Delay              time.Duration
	Priority           int
}

// NotifyResult tells the caller what happened to a NotifyRequest. Skipped is
// set when the recipient disabled the type; nothing was written then.
type NotifyResult struct {
	Log     *model.NotificationLog
	Job     queue.JobHandle
	Skipped bool
}

// TriggerService turns producer requests and task events into queued
// notifications.
type TriggerService interface {
	Notify(ctx context.Context, req NotifyRequest) (NotifyResult, error)
	HandleTaskEvent(ctx context.Context, ev model.TaskEvent) error
}

type triggerService struct {
	logs      store.NotificationLogStorage
	settings  store.SettingsStorage
	enqueuer  NotifyEnqueuer
	scheduler ReminderScheduler
	logger    *slog.Logger
	tracer    *tracing.Tracer
}

func NewTriggerService(
	logs store.NotificationLogStorage,
	settings store.SettingsStorage,
	enqueuer NotifyEnqueuer,
	scheduler ReminderScheduler,
	logger *slog.Logger,
) TriggerService {
	return &triggerService{
		logs:      logs,
		settings:  settings,
		enqueuer:  enqueuer,
		scheduler: scheduler,
		logger:    logger.With("layer", "service", "component", "trigger_service"),
		tracer:    tracing.NewTracer(tracing.GetTracer("notification-triggers")),
	}
}

func (s *triggerService) Notify(ctx context.Context, req NotifyRequest) (NotifyResult, error) {
	ctx, span := s.tracer.StartServerSpan(ctx, "TriggerService.Notify",
		attribute.String(tracing.AttrJobType, string(req.Type)),
		attribute.String(tracing.AttrRecipientID, req.RecipientUserID),
		attribute.String(tracing.AttrTaskID, req.TaskID),
	)
	defer span.End()

	job := queue.Job{
		RecipientUserID:    req.RecipientUserID,
		RecipientChannelID: req.RecipientChannelID,
		Type:               req.Type,
		Text:               req.Text,
		Payload:            queue.Payload{TaskID: req.TaskID},
	}
	if err := job.Validate(); err != nil {
		s.tracer.RecordError(span, err)
		return NotifyResult{}, err
	}
	if req.Priority < 0 {
		return NotifyResult{}, appErr.NewInvalidInput("priority must not be negative")
	}

	var result NotifyResult
	if req.RecipientUserID != "" {
		settings, err := loadSettings(ctx, s.settings, req.RecipientUserID)
		if err != nil {
			s.tracer.RecordError(span, err)
			return NotifyResult{}, appErr.NewInternal("failed to load settings: %v", err)
		}
		if !settings.IsEnabled(req.Type) {
			s.logger.InfoContext(ctx, "Notification type disabled by user, skipping",
				slog.String("user_id", req.RecipientUserID),
				slog.String("type", string(req.Type)),
			)
			return NotifyResult{Skipped: true}, nil
		}

		l := &model.NotificationLog{
			ID:      uuid.NewString(),
			UserID:  req.RecipientUserID,
			Type:    req.Type,
			Status:  model.StatusQueued,
			Payload: model.LogPayload{TaskID: req.TaskID},
		}
		if err := s.logs.Create(ctx, l); err != nil {
			s.tracer.RecordError(span, err)
			return NotifyResult{}, appErr.NewInternal("failed to create notification log: %v", err)
		}
		job.Payload.NotificationLogID = l.ID
		result.Log = l
	}

	handle, err := s.enqueuer.Enqueue(ctx, job, queue.Options{Delay: req.Delay, Priority: req.Priority})
	if err != nil {
		s.tracer.RecordError(span, err)
		return NotifyResult{}, appErr.NewInternal("failed to enqueue notification: %v", err)
	}
	result.Job = handle
	return result, nil
}

func (s *triggerService) HandleTaskEvent(ctx context.Context, ev model.TaskEvent) error {
	if strings.TrimSpace(ev.UserID) == "" {
		return appErr.NewInvalidInput("task event %s has no user id", ev.Kind)
	}

	if ev.Kind == model.TaskDueChanged {
		if ev.DueAt == nil {
			return appErr.NewInvalidInput("due_changed event for task %s has no due_at", ev.TaskID)
		}
		_, err := s.scheduler.ScheduleDueReminders(ctx, ScheduleRequest{
			TaskID:         ev.TaskID,
			AssignedUserID: ev.UserID,
			DueAt:          *ev.DueAt,
			TextBase:       ev.Text,
		})
		return err
	}

	typ, ok := ev.Kind.NotificationType()
	if !ok {
		return appErr.NewInvalidInput("unknown task event kind %q", ev.Kind)
	}
	req := NotifyRequest{
		RecipientUserID: ev.UserID,
		Type:            typ,
		Text:            ev.Text,
		TaskID:          ev.TaskID,
	}
	if ev.Kind == model.TaskAssigned {
		req.Priority = assignedPriority
	}
	_, err := s.Notify(ctx, req)
	return err
}
