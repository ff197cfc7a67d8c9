package mocks

import (
	"context"

	"storyline-server/internal/domain"
	"storyline-server/internal/progress"

	"github.com/stretchr/testify/mock"
)

// MockGameService is a mock type for the service.GameService type
type MockGameService struct {
	mock.Mock
}

// CreateGame provides a mock function with given fields: ctx, storyType
func (_m *MockGameService) CreateGame(ctx context.Context, storyType string) (*domain.CreateResult, error) {
	ret := _m.Called(ctx, storyType)

	var r0 *domain.CreateResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.CreateResult)
	}

	return r0, ret.Error(1)
}

// SubmitChoice provides a mock function with given fields: ctx, sessionID, choiceText
func (_m *MockGameService) SubmitChoice(ctx context.Context, sessionID string, choiceText string) (*domain.GameState, error) {
	ret := _m.Called(ctx, sessionID, choiceText)

	var r0 *domain.GameState
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.GameState)
	}

	return r0, ret.Error(1)
}

// GetState provides a mock function with given fields: ctx, sessionID
func (_m *MockGameService) GetState(ctx context.Context, sessionID string) (*domain.GameState, error) {
	ret := _m.Called(ctx, sessionID)

	var r0 *domain.GameState
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.GameState)
	}

	return r0, ret.Error(1)
}

// DeleteGame provides a mock function with given fields: ctx, sessionID
func (_m *MockGameService) DeleteGame(ctx context.Context, sessionID string) error {
	ret := _m.Called(ctx, sessionID)
	return ret.Error(0)
}

// Subscribe provides a mock function with given fields: ctx, sessionID
func (_m *MockGameService) Subscribe(ctx context.Context, sessionID string) (progress.Subscription, error) {
	ret := _m.Called(ctx, sessionID)

	var r0 progress.Subscription
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(progress.Subscription)
	}

	return r0, ret.Error(1)
}

// NewMockGameService creates a new instance of MockGameService. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockGameService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockGameService {
	m := &MockGameService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
