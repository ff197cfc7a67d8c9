package mocks

import (
	"context"

	"storyline-server/internal/domain"

	"github.com/stretchr/testify/mock"
)

// MockPipelines is a mock type for the service.Pipelines type
type MockPipelines struct {
	mock.Mock
}

// RunCreation provides a mock function with given fields: ctx, sessionID, storyType
func (_m *MockPipelines) RunCreation(ctx context.Context, sessionID string, storyType string) error {
	ret := _m.Called(ctx, sessionID, storyType)
	return ret.Error(0)
}

// SubmitChoice provides a mock function with given fields: ctx, sessionID, choiceText
func (_m *MockPipelines) SubmitChoice(ctx context.Context, sessionID string, choiceText string) (*domain.GameState, error) {
	ret := _m.Called(ctx, sessionID, choiceText)

	var r0 *domain.GameState
	if rf, ok := ret.Get(0).(func(context.Context, string, string) *domain.GameState); ok {
		r0 = rf(ctx, sessionID, choiceText)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.GameState)
	}

	return r0, ret.Error(1)
}

// NewMockPipelines creates a new instance of MockPipelines. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockPipelines(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPipelines {
	m := &MockPipelines{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
