package service

import (
	"context"
	"log/slog"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/model"
	"github.com/samims/taskpulse/internal/store"
)

// LogService is the read side of the notification log for operators.
type LogService interface {
	Query(ctx context.Context, filter model.LogFilter) ([]model.NotificationLog, error)
	GetByID(ctx context.Context, id string) (*model.NotificationLog, error)
}

type logService struct {
	store  store.NotificationLogStorage
	logger *slog.Logger
}

func NewLogService(s store.NotificationLogStorage, logger *slog.Logger) LogService {
	return &logService{
		store:  s,
		logger: logger.With("layer", "service", "component", "log_service"),
	}
}

func (s *logService) Query(ctx context.Context, filter model.LogFilter) ([]model.NotificationLog, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, appErr.NewInvalidInput("unknown notification type %q", filter.Type)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, appErr.NewInvalidInput("unknown notification status %q", filter.Status)
	}
	if filter.Limit < 0 {
		return nil, appErr.NewInvalidInput("limit must not be negative")
	}
	logs, err := s.store.Query(ctx, filter.Normalize())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query notification logs", slog.Any("error", err))
		return nil, appErr.NewInternal("failed to query notification logs: %v", err)
	}
	return logs, nil
}

func (s *logService) GetByID(ctx context.Context, id string) (*model.NotificationLog, error) {
	l, err := s.store.GetByID(ctx, id)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.NewNotFound("notification log %s not found", id)
		}
		s.logger.ErrorContext(ctx, "Failed to fetch notification log", slog.String("log_id", id), slog.Any("error", err))
		return nil, appErr.NewInternal("failed to fetch notification log: %v", err)
	}
	return l, nil
}
