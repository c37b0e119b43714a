package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/model"
)

type settingsStorage struct {
	db    *sqlx.DB
	trace queryTracer
}

func NewSettingsStorage(db *sqlx.DB) SettingsStorage {
	return &settingsStorage{db: db, trace: newQueryTracer("reminder_settings")}
}

func (s *settingsStorage) Get(ctx context.Context, userID string) (*model.ReminderSettings, error) {
	ctx, end := s.trace.start(ctx, "select")
	defer end()

	var rs model.ReminderSettings
	err := s.db.GetContext(ctx, &rs, `SELECT * FROM reminder_settings WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

func (s *settingsStorage) Upsert(ctx context.Context, rs *model.ReminderSettings) error {
	ctx, end := s.trace.start(ctx, "upsert")
	defer end()

	if rs == nil {
		return fmt.Errorf("settings cannot be nil")
	}
	query := `INSERT INTO reminder_settings
		(user_id, timezone, quiet_hours, no_due_nudge, default_due_offsets, enabled_types)
		VALUES (:user_id, :timezone, :quiet_hours, :no_due_nudge, :default_due_offsets, :enabled_types)
		ON CONFLICT (user_id) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			quiet_hours = EXCLUDED.quiet_hours,
			no_due_nudge = EXCLUDED.no_due_nudge,
			default_due_offsets = EXCLUDED.default_due_offsets,
			enabled_types = EXCLUDED.enabled_types,
			updated_at = now()
		RETURNING created_at, updated_at`

	rows, err := s.db.NamedQueryContext(ctx, query, rs)
	if err != nil {
		return err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&rs.CreatedAt, &rs.UpdatedAt); err != nil {
			return err
		}
	}
	return rows.Err()
}
