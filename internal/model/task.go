package model

import "time"

// TaskEventKind is the kind of change reported by the task service.
type TaskEventKind string

const (
	TaskDueChanged TaskEventKind = "due_changed"
	TaskAssigned   TaskEventKind = "assigned"
	TaskCommented  TaskEventKind = "comment"
	TaskTrial      TaskEventKind = "trial"
)

// TaskEvent is published by the task service whenever an assignee, a due
// time or a comment changes.
type TaskEvent struct {
	Kind   TaskEventKind `json:"kind"`
	TaskID string        `json:"task_id"`
	UserID string        `json:"user_id"`
	DueAt  *time.Time    `json:"due_at,omitempty"`
	Text   string        `json:"text"`
}

// NotificationType maps an immediate event to the notification it produces.
// due_changed has no direct mapping and returns false.
func (k TaskEventKind) NotificationType() (NotificationType, bool) {
	switch k {
	case TaskAssigned:
		return TypeAssigned, true
	case TaskCommented:
		return TypeComment, true
	case TaskTrial:
		return TypeTrial, true
	}
	return "", false
}
