package queue

import (
	"fmt"
	"sort"
	"strings"
	"time"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/model"
)

// Payload links a job back to the task and log row it was planned for.
type Payload struct {
	TaskID            string `json:"task_id,omitempty"`
	NotificationLogID string `json:"notification_log_id,omitempty"`
}

// Job is the one payload shape every producer submits.
type Job struct {
	RecipientUserID    string                 `json:"recipient_user_id,omitempty"`
	RecipientChannelID string                 `json:"recipient_channel_id,omitempty"`
	Type               model.NotificationType `json:"type"`
	Text               string                 `json:"text"`
	Payload            Payload                `json:"payload"`
}

// Validate rejects jobs a worker could never deliver.
func (j Job) Validate() error {
	if !j.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", appErr.ErrInvalidJob, j.Type)
	}
	if strings.TrimSpace(j.Text) == "" {
		return fmt.Errorf("%w: empty text", appErr.ErrInvalidJob)
	}
	if j.RecipientUserID == "" && j.RecipientChannelID == "" {
		return fmt.Errorf("%w: no recipient user or channel", appErr.ErrInvalidJob)
	}
	return nil
}

// Options are per-enqueue scheduling attributes.
type Options struct {
	// Delay before the job becomes eligible; negative means now.
	Delay time.Duration
	// Priority hint among eligible jobs: 1 is most urgent, 0 means none.
	Priority int
}

// JobHandle identifies an enqueued job.
type JobHandle struct {
	ID    string
	RunAt time.Time
}

// Envelope is the stored form of a job together with its retry state.
type Envelope struct {
	ID          string            `json:"id"`
	Job         Job               `json:"job"`
	Priority    int               `json:"priority"`
	Attempt     int               `json:"attempt"`
	MaxAttempts int               `json:"max_attempts"`
	RunAt       time.Time         `json:"run_at"`
	EnqueuedAt  time.Time         `json:"enqueued_at"`
	Trace       map[string]string `json:"trace,omitempty"`
}

// before orders eligible envelopes: prioritized first, lower value first,
// then earliest run time.
func before(a, b Envelope) bool {
	ap, bp := a.Priority > 0, b.Priority > 0
	if ap != bp {
		return ap
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.RunAt.Equal(b.RunAt) {
		return a.RunAt.Before(b.RunAt)
	}
	return a.EnqueuedAt.Before(b.EnqueuedAt)
}

func sortEnvelopes(envs []Envelope) {
	sort.SliceStable(envs, func(i, j int) bool { return before(envs[i], envs[j]) })
}
