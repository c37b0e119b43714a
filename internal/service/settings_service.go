package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/model"
	"github.com/samims/taskpulse/internal/store"
)

// SettingsService reads and patches per-user reminder settings.
type SettingsService interface {
	Get(ctx context.Context, userID string) (model.ReminderSettings, error)
	Update(ctx context.Context, userID string, patch model.SettingsPatch) (model.ReminderSettings, error)
}

type settingsService struct {
	store  store.SettingsStorage
	logger *slog.Logger
}

func NewSettingsService(s store.SettingsStorage, logger *slog.Logger) SettingsService {
	return &settingsService{
		store:  s,
		logger: logger.With("layer", "service", "component", "settings_service"),
	}
}

// Get returns the stored settings or the defaults. Defaults are not persisted.
func (s *settingsService) Get(ctx context.Context, userID string) (model.ReminderSettings, error) {
	if strings.TrimSpace(userID) == "" {
		return model.ReminderSettings{}, appErr.NewInvalidInput("user id is required")
	}
	return loadSettings(ctx, s.store, userID)
}

func (s *settingsService) Update(ctx context.Context, userID string, patch model.SettingsPatch) (model.ReminderSettings, error) {
	if strings.TrimSpace(userID) == "" {
		return model.ReminderSettings{}, appErr.NewInvalidInput("user id is required")
	}
	if err := validatePatch(patch); err != nil {
		return model.ReminderSettings{}, err
	}
	current, err := loadSettings(ctx, s.store, userID)
	if err != nil {
		return model.ReminderSettings{}, err
	}
	current.Apply(patch)
	if err := s.store.Upsert(ctx, &current); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save settings", slog.String("user_id", userID), slog.Any("error", err))
		return model.ReminderSettings{}, appErr.NewInternal("failed to save settings: %v", err)
	}
	s.logger.InfoContext(ctx, "Settings updated", slog.String("user_id", userID))
	return current, nil
}

func validatePatch(p model.SettingsPatch) error {
	if p.Timezone != nil && strings.TrimSpace(*p.Timezone) == "" {
		return appErr.NewInvalidInput("timezone must not be empty")
	}
	if q := p.QuietHours; q != nil {
		if _, ok := parseHHMM(q.From); !ok {
			return appErr.NewInvalidInput("quiet_hours.from must be HH:MM, got %q", q.From)
		}
		if _, ok := parseHHMM(q.To); !ok {
			return appErr.NewInvalidInput("quiet_hours.to must be HH:MM, got %q", q.To)
		}
	}
	if n := p.NoDueNudge; n != nil && (n.Hour < 0 || n.Hour > 23) {
		return appErr.NewInvalidInput("no_due_nudge.hour must be within 0..23")
	}
	for _, sec := range p.DefaultDueOffsets {
		if sec <= 0 {
			return appErr.NewInvalidInput("default_due_offsets must be positive seconds, got %d", sec)
		}
	}
	for t := range p.EnabledTypes {
		if !t.Valid() {
			return appErr.NewInvalidInput("unknown notification type %q", t)
		}
	}
	return nil
}

// loadSettings falls back to the defaults when the user never saved any.
func loadSettings(ctx context.Context, s store.SettingsStorage, userID string) (model.ReminderSettings, error) {
	rs, err := s.Get(ctx, userID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return model.DefaultSettings(userID), nil
		}
		return model.ReminderSettings{}, fmt.Errorf("load settings for %s: %w", userID, err)
	}
	return *rs, nil
}
