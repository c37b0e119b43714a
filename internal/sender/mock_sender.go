package sender

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockSender is a testify mock of Sender.
type MockSender struct {
	mock.Mock
}

func (_m *MockSender) Send(ctx context.Context, channelID, text string) error {
	ret := _m.Called(ctx, channelID, text)
	return ret.Error(0)
}

func NewMockSender(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSender {
	m := &MockSender{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
