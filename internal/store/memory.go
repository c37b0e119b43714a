package store

import (
	"context"
	"sort"
	"sync"
	"time"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/internal/model"
)

// MemoryLogStorage is an in-process NotificationLogStorage.
type MemoryLogStorage struct {
	mu   sync.Mutex
	rows map[string]model.NotificationLog
	now  func() time.Time
}

func NewMemoryLogStorage() *MemoryLogStorage {
	return &MemoryLogStorage{rows: make(map[string]model.NotificationLog), now: time.Now}
}

func (s *MemoryLogStorage) Create(_ context.Context, l *model.NotificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[l.ID]; ok {
		return appErr.ErrConflict
	}
	l.CreatedAt = s.now()
	l.UpdatedAt = l.CreatedAt
	s.rows[l.ID] = *l
	return nil
}

func (s *MemoryLogStorage) GetByID(_ context.Context, id string) (*model.NotificationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rows[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &l, nil
}

func (s *MemoryLogStorage) UpdateStatus(_ context.Context, id string, upd model.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rows[id]
	if !ok {
		return appErr.ErrNotFound
	}
	s.rows[id] = s.apply(l, upd)
	return nil
}

func (s *MemoryLogStorage) UpdateQueuedByUserType(_ context.Context, userID string, typ model.NotificationType, upd model.StatusUpdate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, l := range s.rows {
		if l.UserID == userID && l.Type == typ && l.Status == model.StatusQueued {
			s.rows[id] = s.apply(l, upd)
			n++
		}
	}
	return n, nil
}

func (s *MemoryLogStorage) MarkAbandoned(_ context.Context, id, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rows[id]
	if !ok || (l.Status != model.StatusQueued && l.Status != model.StatusSkippedQuietHours) {
		return false, nil
	}
	l.Status = model.StatusFailed
	l.Error = &reason
	l.UpdatedAt = s.now()
	s.rows[id] = l
	return true, nil
}

func (s *MemoryLogStorage) Query(_ context.Context, filter model.LogFilter) ([]model.NotificationLog, error) {
	filter = filter.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.NotificationLog{}
	for _, l := range s.rows {
		if filter.UserID != "" && l.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && l.Type != filter.Type {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryLogStorage) Ping(context.Context) error { return nil }

// apply mirrors the SQL update: error is replaced, sent_at only set.
func (s *MemoryLogStorage) apply(l model.NotificationLog, upd model.StatusUpdate) model.NotificationLog {
	l.Status = upd.Status
	l.Error = upd.Error
	if upd.SentAt != nil {
		at := *upd.SentAt
		l.SentAt = &at
	}
	l.UpdatedAt = s.now()
	return l
}

// MemorySettingsStorage is an in-process SettingsStorage.
type MemorySettingsStorage struct {
	mu   sync.Mutex
	rows map[string]model.ReminderSettings
}

func NewMemorySettingsStorage() *MemorySettingsStorage {
	return &MemorySettingsStorage{rows: make(map[string]model.ReminderSettings)}
}

func (s *MemorySettingsStorage) Get(_ context.Context, userID string) (*model.ReminderSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rows[userID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &rs, nil
}

func (s *MemorySettingsStorage) Upsert(_ context.Context, rs *model.ReminderSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if prev, ok := s.rows[rs.UserID]; ok {
		rs.CreatedAt = prev.CreatedAt
	} else {
		rs.CreatedAt = now
	}
	rs.UpdatedAt = now
	s.rows[rs.UserID] = *rs
	return nil
}
