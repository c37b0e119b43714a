package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/model"
	"github.com/samims/taskpulse/internal/service"
	"github.com/samims/taskpulse/pkg/tracing"
)

// NotificationHandler is the HTTP producer boundary: other services call it
// to plan reminders and send immediate notifications.
type NotificationHandler struct {
	triggers  service.TriggerService
	scheduler service.ReminderScheduler
	logger    *slog.Logger
	tracer    *tracing.Tracer
}

func NewNotificationHandler(triggers service.TriggerService, scheduler service.ReminderScheduler, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		triggers:  triggers,
		scheduler: scheduler,
		logger:    logger.With("layer", "handler", "component", "notification_handler"),
		tracer:    tracing.NewTracer(tracing.GetTracer("notification-handler")),
	}
}

type scheduleRemindersRequest struct {
	AssignedUserID string    `json:"assigned_user_id"`
	DueAt          time.Time `json:"due_at"`
	TextBase       string    `json:"text_base"`
}

type scheduleRemindersResponse struct {
	Scheduled int                     `json:"scheduled"`
	Logs      []model.NotificationLog `json:"logs"`
}

func (h *NotificationHandler) ScheduleReminders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartServerSpan(r.Context(), "ScheduleReminders")
	defer span.End()
	w, done := traceResponse(h.tracer, span, w, r)
	defer done()

	taskID := strings.TrimSpace(chi.URLParam(r, "taskID"))
	if taskID == "" {
		respondError(w, h.logger, "ScheduleReminders", appErr.NewInvalidInput("task id is required"))
		return
	}
	var body scheduleRemindersRequest
	if err := decodeJSON(r, &body); err != nil {
		h.logger.Warn("Invalid request body for ScheduleReminders", slog.String("task_id", taskID))
		respondError(w, h.logger, "ScheduleReminders", err)
		return
	}

	logs, err := h.scheduler.ScheduleDueReminders(ctx, service.ScheduleRequest{
		TaskID:         taskID,
		AssignedUserID: body.AssignedUserID,
		DueAt:          body.DueAt,
		TextBase:       body.TextBase,
	})
	if err != nil {
		h.tracer.RecordError(span, err)
		respondError(w, h.logger, "ScheduleReminders", err)
		return
	}
	if logs == nil {
		logs = []model.NotificationLog{}
	}
	writeJSON(w, http.StatusCreated, scheduleRemindersResponse{Scheduled: len(logs), Logs: logs})
}

type notifyRequest struct {
	RecipientUserID    string                 `json:"recipient_user_id"`
	RecipientChannelID string                 `json:"recipient_channel_id"`
	Type               model.NotificationType `json:"type"`
	Text               string                 `json:"text"`
	TaskID             string                 `json:"task_id"`
	DelayMs            int64                  `json:"delay_ms"`
	Priority           int                    `json:"priority"`
}

type notifyResponse struct {
	JobID   string     `json:"job_id,omitempty"`
	RunAt   *time.Time `json:"run_at,omitempty"`
	LogID   string     `json:"log_id,omitempty"`
	Skipped bool       `json:"skipped"`
}

func (h *NotificationHandler) Notify(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartServerSpan(r.Context(), "Notify")
	defer span.End()
	w, done := traceResponse(h.tracer, span, w, r)
	defer done()

	var body notifyRequest
	if err := decodeJSON(r, &body); err != nil {
		h.logger.Warn("Invalid request body for Notify")
		respondError(w, h.logger, "Notify", err)
		return
	}
	if body.DelayMs < 0 {
		respondError(w, h.logger, "Notify", appErr.NewInvalidInput("delay_ms must not be negative"))
		return
	}

	res, err := h.triggers.Notify(ctx, service.NotifyRequest{
		RecipientUserID:    body.RecipientUserID,
		RecipientChannelID: body.RecipientChannelID,
		Type:               body.Type,
		Text:               body.Text,
		TaskID:             body.TaskID,
		Delay:              time.Duration(body.DelayMs) * time.Millisecond,
		Priority:           body.Priority,
	})
	if err != nil {
		h.tracer.RecordError(span, err)
		respondError(w, h.logger, "Notify", err)
		return
	}
	if res.Skipped {
		writeJSON(w, http.StatusOK, notifyResponse{Skipped: true})
		return
	}

	resp := notifyResponse{JobID: res.Job.ID, RunAt: &res.Job.RunAt}
	if res.Log != nil {
		resp.LogID = res.Log.ID
	}
	writeJSON(w, http.StatusAccepted, resp)
}
