package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/model"
)

type logStorage struct {
	db    *sqlx.DB
	trace queryTracer
}

// NewNotificationLogStorage returns the Postgres notification log store.
func NewNotificationLogStorage(db *sqlx.DB) NotificationLogStorage {
	return &logStorage{db: db, trace: newQueryTracer("notification_logs")}
}

func (s *logStorage) Create(ctx context.Context, l *model.NotificationLog) error {
	ctx, end := s.trace.start(ctx, "insert")
	defer end()

	if l == nil {
		return fmt.Errorf("notification log cannot be nil")
	}
	query := `INSERT INTO notification_logs (id, user_id, type, status, payload)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query, l.ID, l.UserID, l.Type, l.Status, l.Payload)
	return row.Scan(&l.CreatedAt, &l.UpdatedAt)
}

func (s *logStorage) GetByID(ctx context.Context, id string) (*model.NotificationLog, error) {
	ctx, end := s.trace.start(ctx, "select")
	defer end()

	var l model.NotificationLog
	err := s.db.GetContext(ctx, &l, `SELECT * FROM notification_logs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *logStorage) UpdateStatus(ctx context.Context, id string, upd model.StatusUpdate) error {
	ctx, end := s.trace.start(ctx, "update")
	defer end()

	query := `UPDATE notification_logs
		SET status = $1, error = $2, sent_at = COALESCE($3, sent_at), updated_at = $4
		WHERE id = $5`
	res, err := s.db.ExecContext(ctx, query, upd.Status, upd.Error, upd.SentAt, time.Now(), id)
	if err != nil {
		return err
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (s *logStorage) UpdateQueuedByUserType(ctx context.Context, userID string, typ model.NotificationType, upd model.StatusUpdate) (int64, error) {
	ctx, end := s.trace.start(ctx, "update")
	defer end()

	query := `UPDATE notification_logs
		SET status = $1, error = $2, sent_at = COALESCE($3, sent_at), updated_at = $4
		WHERE user_id = $5 AND status = $6 AND type = $7`
	res, err := s.db.ExecContext(ctx, query, upd.Status, upd.Error, upd.SentAt, time.Now(), userID, model.StatusQueued, typ)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *logStorage) MarkAbandoned(ctx context.Context, id, reason string) (bool, error) {
	ctx, end := s.trace.start(ctx, "update")
	defer end()

	query := `UPDATE notification_logs
		SET status = $1, error = $2, updated_at = $3
		WHERE id = $4 AND status IN ($5, $6)`
	res, err := s.db.ExecContext(ctx, query, model.StatusFailed, reason, time.Now(), id,
		model.StatusQueued, model.StatusSkippedQuietHours)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *logStorage) Query(ctx context.Context, filter model.LogFilter) ([]model.NotificationLog, error) {
	ctx, end := s.trace.start(ctx, "select")
	defer end()

	filter = filter.Normalize()

	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}

	query := `SELECT * FROM notification_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	logs := []model.NotificationLog{}
	if err := s.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *logStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
