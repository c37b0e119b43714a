package handler

import (
	"log/slog"
	"net/http"

	"github.com/samims/taskpulse/internal/middleware"
	"github.com/samims/taskpulse/internal/model"
	"github.com/samims/taskpulse/internal/service"
	"github.com/samims/taskpulse/pkg/tracing"
)

// SettingsHandler serves the signed-in user's reminder settings.
type SettingsHandler struct {
	svc    service.SettingsService
	logger *slog.Logger
	tracer *tracing.Tracer
}

func NewSettingsHandler(s service.SettingsService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		svc:    s,
		logger: logger.With("layer", "handler", "component", "settings_handler"),
		tracer: tracing.NewTracer(tracing.GetTracer("settings-handler")),
	}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartServerSpan(r.Context(), "GetSettings")
	defer span.End()
	w, done := traceResponse(h.tracer, span, w, r)
	defer done()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	settings, err := h.svc.Get(ctx, userID)
	if err != nil {
		h.tracer.RecordError(span, err)
		respondError(w, h.logger, "GetSettings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.StartServerSpan(r.Context(), "PatchSettings")
	defer span.End()
	w, done := traceResponse(h.tracer, span, w, r)
	defer done()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var patch model.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		h.logger.Warn("Invalid request body for PatchSettings", slog.String("user_id", userID))
		respondError(w, h.logger, "PatchSettings", err)
		return
	}
	settings, err := h.svc.Update(ctx, userID, patch)
	if err != nil {
		h.tracer.RecordError(span, err)
		respondError(w, h.logger, "PatchSettings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
