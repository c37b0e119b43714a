package store

import (
	"context"

	"github.com/samims/taskpulse/internal/model"
)

// NotificationLogStorage persists the notification log.
type NotificationLogStorage interface {
	Create(ctx context.Context, log *model.NotificationLog) error
	GetByID(ctx context.Context, id string) (*model.NotificationLog, error)
	// UpdateStatus returns ErrNotFound when no row has the id.
	UpdateStatus(ctx context.Context, id string, upd model.StatusUpdate) error
	// UpdateQueuedByUserType updates every queued row of the user and type.
	// It only serves jobs that carry no log id.
	UpdateQueuedByUserType(ctx context.Context, userID string, typ model.NotificationType, upd model.StatusUpdate) (int64, error)
	// MarkAbandoned fails a row that never reached sent or failed.
	MarkAbandoned(ctx context.Context, id, reason string) (bool, error)
	Query(ctx context.Context, filter model.LogFilter) ([]model.NotificationLog, error)
	Ping(ctx context.Context) error
}

// SettingsStorage persists per-user reminder settings.
type SettingsStorage interface {
	// Get returns ErrNotFound when the user never saved settings.
	Get(ctx context.Context, userID string) (*model.ReminderSettings, error)
	Upsert(ctx context.Context, s *model.ReminderSettings) error
}
