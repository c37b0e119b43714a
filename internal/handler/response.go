package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/pkg/tracing"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError maps service errors onto HTTP statuses. Internal details are
// logged, not returned.
func respondError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case appErr.IsInvalidInput(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case appErr.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case appErr.IsConflict(err):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case appErr.IsUnauthorized(err):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	default:
		logger.Error(op+" failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return appErr.NewInvalidInput("invalid request body: %v", err)
	}
	return nil
}

// traceResponse wraps w so the final status can be put on span. Call the
// returned func before the span ends.
func traceResponse(t *tracing.Tracer, span trace.Span, w http.ResponseWriter, r *http.Request) (http.ResponseWriter, func()) {
	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	return ww, func() {
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		t.AddRequestAttributes(span, r.Method, route, ww.Status())
	}
}
