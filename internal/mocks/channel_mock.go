package mocks

import (
	"context"

	"storyline-server/internal/progress"

	"github.com/stretchr/testify/mock"
)

// MockChannel is a mock type for the progress.Channel type
type MockChannel struct {
	mock.Mock
}

// Publish provides a mock function with given fields: ctx, sessionID, payload
func (_m *MockChannel) Publish(ctx context.Context, sessionID string, payload []byte) error {
	ret := _m.Called(ctx, sessionID, payload)
	return ret.Error(0)
}

// Subscribe provides a mock function with given fields: ctx, sessionID
func (_m *MockChannel) Subscribe(ctx context.Context, sessionID string) (progress.Subscription, error) {
	ret := _m.Called(ctx, sessionID)

	var r0 progress.Subscription
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(progress.Subscription)
	}

	return r0, ret.Error(1)
}

// Close provides a mock function with given fields:
func (_m *MockChannel) Close() error {
	ret := _m.Called()
	return ret.Error(0)
}

// NewMockChannel creates a new instance of MockChannel. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockChannel(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockChannel {
	m := &MockChannel{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ progress.Channel = (*MockChannel)(nil)
