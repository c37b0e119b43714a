package model

import "time"

// DeliveryEvent reports the outcome of one dispatch attempt.
type DeliveryEvent struct {
	LogID  string             `json:"log_id,omitempty"`
	UserID string             `json:"user_id,omitempty"`
	TaskID string             `json:"task_id,omitempty"`
	Type   NotificationType   `json:"type"`
	Status NotificationStatus `json:"status"`
	Error  string             `json:"error,omitempty"`
	At     time.Time          `json:"at"`
}
