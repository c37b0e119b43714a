package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/model"
	"github.com/samims/taskpulse/internal/service"
	"github.com/samims/taskpulse/pkg/tracing"
)

// LogHandler exposes the notification log to operators.
type LogHandler struct {
	svc    service.LogService
	logger *slog.Logger
	tracer *tracing.Tracer
}

func NewLogHandler(s service.LogService, logger *slog.Logger) *LogHandler {
	return &LogHandler{
		svc:    s,
		logger: logger.With("layer", "handler", "component", "log_handler"),
		tracer: tracing.NewTracer(tracing.GetTracer("log-handler")),
	}
}

func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartServerSpan(r.Context(), "ListLogs")
	defer span.End()
	w, done := traceResponse(h.tracer, span, w, r)
	defer done()

	q := r.URL.Query()
	filter := model.LogFilter{
		UserID: q.Get("user_id"),
		Type:   model.NotificationType(q.Get("type")),
		Status: model.NotificationStatus(q.Get("status")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, h.logger, "ListLogs", appErr.NewInvalidInput("limit must be an integer"))
			return
		}
		filter.Limit = limit
	}

	logs, err := h.svc.Query(ctx, filter)
	if err != nil {
		h.tracer.RecordError(span, err)
		respondError(w, h.logger, "ListLogs", err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *LogHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartServerSpan(r.Context(), "GetLog")
	defer span.End()
	w, done := traceResponse(h.tracer, span, w, r)
	defer done()

	id := chi.URLParam(r, "id")
	l, err := h.svc.GetByID(ctx, id)
	if err != nil {
		if appErr.IsNotFound(err) {
			h.logger.Warn("Notification log not found", "id", id)
		} else {
			h.tracer.RecordError(span, err)
		}
		respondError(w, h.logger, "GetLog", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}
