package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/metrics"
	"github.com/samims/taskpulse/internal/model"
	"github.com/samims/taskpulse/internal/queue"
	"github.com/samims/taskpulse/internal/store"
	"github.com/samims/taskpulse/pkg/tracing"
)

// overdueDelay is how long after the due time the overdue reminder fires.
const overdueDelay = 60 * time.Second

// ScheduleRequest describes a task whose due time was set or changed.
type ScheduleRequest struct {
	TaskID         string
	AssignedUserID string
	DueAt          time.Time
	TextBase       string
}

func (r ScheduleRequest) Validate() error {
	if strings.TrimSpace(r.AssignedUserID) == "" {
		return appErr.NewInvalidInput("assigned user id is required")
	}
	if r.DueAt.IsZero() {
		return appErr.NewInvalidInput("due time is required")
	}
	if strings.TrimSpace(r.TextBase) == "" {
		return appErr.NewInvalidInput("text is required")
	}
	return nil
}

// ReminderScheduler plans deadline and overdue reminders for a task.
type ReminderScheduler interface {
	// ScheduleDueReminders writes one queued log row and enqueues one
	// delayed job per reminder that still lies in the future. It returns
	// the rows it created.
	ScheduleDueReminders(ctx context.Context, req ScheduleRequest) ([]model.NotificationLog, error)
}

type reminderScheduler struct {
	logs     store.NotificationLogStorage
	settings store.SettingsStorage
	enqueuer NotifyEnqueuer
	now      func() time.Time
	logger   *slog.Logger
	tracer   *tracing.Tracer
}

func NewReminderScheduler(
	logs store.NotificationLogStorage,
	settings store.SettingsStorage,
	enqueuer NotifyEnqueuer,
	logger *slog.Logger,
) ReminderScheduler {
	return &reminderScheduler{
		logs:     logs,
		settings: settings,
		enqueuer: enqueuer,
		now:      time.Now,
		logger:   logger.With("layer", "service", "component", "reminder_scheduler"),
		tracer:   tracing.NewTracer(tracing.GetTracer("reminder-scheduler")),
	}
}

type plannedReminder struct {
	typ       model.NotificationType
	fireAt    time.Time
	offsetSec *int64
	text      string
}

func (s *reminderScheduler) ScheduleDueReminders(ctx context.Context, req ScheduleRequest) ([]model.NotificationLog, error) {
	ctx, span := s.tracer.StartServerSpan(ctx, "ReminderScheduler.ScheduleDueReminders",
		attribute.String(tracing.AttrTaskID, req.TaskID),
		attribute.String(tracing.AttrRecipientID, req.AssignedUserID),
	)
	defer span.End()

	if err := req.Validate(); err != nil {
		s.tracer.RecordError(span, err)
		return nil, err
	}

	settings, err := loadSettings(ctx, s.settings, req.AssignedUserID)
	if err != nil {
		s.tracer.RecordError(span, err)
		s.logger.ErrorContext(ctx, "Failed to load settings", slog.String("user_id", req.AssignedUserID), slog.Any("error", err))
		return nil, appErr.NewInternal("failed to load settings: %v", err)
	}

	now := s.now()
	plan := s.plan(settings, req, now)
	if len(plan) == 0 {
		s.logger.DebugContext(ctx, "Nothing to schedule", slog.String("task_id", req.TaskID))
		return nil, nil
	}

	created := make([]model.NotificationLog, 0, len(plan))
	for _, p := range plan {
		l, err := s.schedule(ctx, req, p, now)
		if err != nil {
			s.tracer.RecordError(span, err)
			return created, err
		}
		created = append(created, *l)
	}
	s.tracer.AddAttributes(span, attribute.Int("reminders.count", len(created)))
	s.logger.InfoContext(ctx, "Reminders scheduled",
		slog.String("task_id", req.TaskID),
		slog.String("user_id", req.AssignedUserID),
		slog.Int("count", len(created)),
	)
	return created, nil
}

// plan lists the reminders whose fire time is strictly after now.
func (s *reminderScheduler) plan(settings model.ReminderSettings, req ScheduleRequest, now time.Time) []plannedReminder {
	var out []plannedReminder
	if settings.IsEnabled(model.TypeDeadline) {
		for _, sec := range settings.DueOffsets() {
			fireAt := req.DueAt.Add(-time.Duration(sec) * time.Second)
			if !fireAt.After(now) {
				continue
			}
			offset := sec
			out = append(out, plannedReminder{
				typ:       model.TypeDeadline,
				fireAt:    fireAt,
				offsetSec: &offset,
				text:      deadlineText(req.TextBase, sec),
			})
		}
	}
	if settings.IsEnabled(model.TypeOverdue) {
		fireAt := req.DueAt.Add(overdueDelay)
		if fireAt.After(now) {
			out = append(out, plannedReminder{
				typ:    model.TypeOverdue,
				fireAt: fireAt,
				text:   overdueText(req.TextBase),
			})
		}
	}
	return out
}

func (s *reminderScheduler) schedule(ctx context.Context, req ScheduleRequest, p plannedReminder, now time.Time) (*model.NotificationLog, error) {
	fireAt := p.fireAt
	l := &model.NotificationLog{
		ID:     uuid.NewString(),
		UserID: req.AssignedUserID,
		Type:   p.typ,
		Status: model.StatusQueued,
		Payload: model.LogPayload{
			TaskID:    req.TaskID,
			FireAt:    &fireAt,
			OffsetSec: p.offsetSec,
		},
	}
	if err := s.logs.Create(ctx, l); err != nil {
		s.logger.ErrorContext(ctx, "Failed to create notification log", slog.String("task_id", req.TaskID), slog.Any("error", err))
		return nil, appErr.NewInternal("failed to create notification log: %v", err)
	}

	job := queue.Job{
		RecipientUserID: req.AssignedUserID,
		Type:            p.typ,
		Text:            p.text,
		Payload:         queue.Payload{TaskID: req.TaskID, NotificationLogID: l.ID},
	}
	if _, err := s.enqueuer.Enqueue(ctx, job, queue.Options{Delay: p.fireAt.Sub(now)}); err != nil {
		// the row stays queued; an operator can see it never fired
		return nil, appErr.NewInternal("failed to enqueue reminder: %v", err)
	}
	metrics.RemindersScheduled.WithLabelValues(string(p.typ)).Inc()
	return l, nil
}
