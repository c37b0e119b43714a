package model

import (
	"database/sql/driver"
	"time"
)

// NotificationType is the category of a notification.
type NotificationType string

const (
	TypeAssigned NotificationType = "assigned"
	TypeDeadline NotificationType = "deadline"
	TypeOverdue  NotificationType = "overdue"
	TypeTrial    NotificationType = "trial"
	TypeComment  NotificationType = "comment"
)

// AllTypes lists every known notification type.
var AllTypes = []NotificationType{TypeAssigned, TypeDeadline, TypeOverdue, TypeComment, TypeTrial}

func (t NotificationType) Valid() bool {
	switch t {
	case TypeAssigned, TypeDeadline, TypeOverdue, TypeTrial, TypeComment:
		return true
	}
	return false
}

// NotificationStatus is the latest known outcome of a planned notification.
type NotificationStatus string

const (
	StatusQueued            NotificationStatus = "queued"
	StatusSent              NotificationStatus = "sent"
	StatusFailed            NotificationStatus = "failed"
	StatusSkippedQuietHours NotificationStatus = "skipped_quiet_hours"
)

func (s NotificationStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusSent, StatusFailed, StatusSkippedQuietHours:
		return true
	}
	return false
}

// LogPayload is the structured context stored with a NotificationLog.
type LogPayload struct {
	TaskID    string     `json:"task_id,omitempty"`
	FireAt    *time.Time `json:"fire_at,omitempty"`
	OffsetSec *int64     `json:"offset_sec,omitempty"`
}

func (p LogPayload) Value() (driver.Value, error) { return jsonValue(p) }
func (p *LogPayload) Scan(src any) error          { return scanJSON(src, p) }

// NotificationLog is the durable record of one planned notification.
// Rows are never deleted; status converges to sent or failed.
type NotificationLog struct {
	ID        string             `db:"id" json:"id"`
	UserID    string             `db:"user_id" json:"user_id"`
	Type      NotificationType   `db:"type" json:"type"`
	Status    NotificationStatus `db:"status" json:"status"`
	Payload   LogPayload         `db:"payload" json:"payload"`
	Error     *string            `db:"error" json:"error,omitempty"`
	SentAt    *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt time.Time          `db:"updated_at" json:"updated_at"`
}

// StatusUpdate describes a status transition written by the dispatch worker.
// A nil Error clears the stored error; a nil SentAt keeps the stored one.
type StatusUpdate struct {
	Status NotificationStatus
	Error  *string
	SentAt *time.Time
}

func SentUpdate(at time.Time) StatusUpdate {
	return StatusUpdate{Status: StatusSent, SentAt: &at}
}

func FailedUpdate(msg string) StatusUpdate {
	return StatusUpdate{Status: StatusFailed, Error: &msg}
}

func SkippedQuietHoursUpdate() StatusUpdate {
	return StatusUpdate{Status: StatusSkippedQuietHours}
}

// LogFilter narrows an operator query over the notification log.
type LogFilter struct {
	UserID string
	Type   NotificationType
	Status NotificationStatus
	Limit  int
}

const (
	DefaultLogLimit = 100
	MaxLogLimit     = 500
)

// Normalize clamps Limit into [1, MaxLogLimit].
func (f LogFilter) Normalize() LogFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLogLimit
	}
	if f.Limit > MaxLogLimit {
		f.Limit = MaxLogLimit
	}
	return f
}
