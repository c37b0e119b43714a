package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockUserDirectory is a testify mock of UserDirectory.
type MockUserDirectory struct {
	mock.Mock
}

func (_m *MockUserDirectory) ChannelID(ctx context.Context, userID string) (string, error) {
	ret := _m.Called(ctx, userID)
	return ret.String(0), ret.Error(1)
}

func NewMockUserDirectory(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockUserDirectory {
	m := &MockUserDirectory{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
