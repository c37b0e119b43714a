package store

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/samims/taskpulse/internal/model"
)

// MockNotificationLogStorage is a testify mock of NotificationLogStorage.
type MockNotificationLogStorage struct {
	mock.Mock
}

func (_m *MockNotificationLogStorage) Create(ctx context.Context, l *model.NotificationLog) error {
	ret := _m.Called(ctx, l)
	if rf, ok := ret.Get(0).(func(context.Context, *model.NotificationLog) error); ok {
		return rf(ctx, l)
	}
	return ret.Error(0)
}

func (_m *MockNotificationLogStorage) GetByID(ctx context.Context, id string) (*model.NotificationLog, error) {
	ret := _m.Called(ctx, id)
	var r0 *model.NotificationLog
	if v := ret.Get(0); v != nil {
		r0 = v.(*model.NotificationLog)
	}
	return r0, ret.Error(1)
}

func (_m *MockNotificationLogStorage) UpdateStatus(ctx context.Context, id string, upd model.StatusUpdate) error {
	ret := _m.Called(ctx, id, upd)
	return ret.Error(0)
}

func (_m *MockNotificationLogStorage) UpdateQueuedByUserType(ctx context.Context, userID string, typ model.NotificationType, upd model.StatusUpdate) (int64, error) {
	ret := _m.Called(ctx, userID, typ, upd)
	return ret.Get(0).(int64), ret.Error(1)
}

func (_m *MockNotificationLogStorage) MarkAbandoned(ctx context.Context, id, reason string) (bool, error) {
	ret := _m.Called(ctx, id, reason)
	return ret.Bool(0), ret.Error(1)
}

func (_m *MockNotificationLogStorage) Query(ctx context.Context, filter model.LogFilter) ([]model.NotificationLog, error) {
	ret := _m.Called(ctx, filter)
	var r0 []model.NotificationLog
	if v := ret.Get(0); v != nil {
		r0 = v.([]model.NotificationLog)
	}
	return r0, ret.Error(1)
}

func (_m *MockNotificationLogStorage) Ping(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}

// NewMockNotificationLogStorage registers expectation checks on test cleanup.
func NewMockNotificationLogStorage(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockNotificationLogStorage {
	m := &MockNotificationLogStorage{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// MockSettingsStorage is a testify mock of SettingsStorage.
type MockSettingsStorage struct {
	mock.Mock
}

func (_m *MockSettingsStorage) Get(ctx context.Context, userID string) (*model.ReminderSettings, error) {
	ret := _m.Called(ctx, userID)
	var r0 *model.ReminderSettings
	if v := ret.Get(0); v != nil {
		r0 = v.(*model.ReminderSettings)
	}
	return r0, ret.Error(1)
}

func (_m *MockSettingsStorage) Upsert(ctx context.Context, rs *model.ReminderSettings) error {
	ret := _m.Called(ctx, rs)
	return ret.Error(0)
}

func NewMockSettingsStorage(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSettingsStorage {
	m := &MockSettingsStorage{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
