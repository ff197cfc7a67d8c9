package mocks

import (
	"context"
	"time"

	"storyline-server/internal/domain"
	"storyline-server/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockSessionRepository is a mock type for the SessionRepository type
type MockSessionRepository struct {
	mock.Mock
}

// Create provides a mock function with given fields: ctx, session
func (_m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) (string, error) {
	ret := _m.Called(ctx, session)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, *domain.Session) string); ok {
		r0 = rf(ctx, session)
	} else {
		r0 = ret.String(0)
	}

	return r0, ret.Error(1)
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	ret := _m.Called(ctx, id)

	var r0 *domain.Session
	if rf, ok := ret.Get(0).(func(context.Context, string) *domain.Session); ok {
		r0 = rf(ctx, id)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.Session)
	}

	return r0, ret.Error(1)
}

// ReplaceFields provides a mock function with given fields: ctx, id, fields
func (_m *MockSessionRepository) ReplaceFields(ctx context.Context, id string, fields domain.SessionFields) (*domain.Session, error) {
	ret := _m.Called(ctx, id, fields)

	var r0 *domain.Session
	if rf, ok := ret.Get(0).(func(context.Context, string, domain.SessionFields) *domain.Session); ok {
		r0 = rf(ctx, id, fields)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.Session)
	}

	return r0, ret.Error(1)
}

// DeleteByID provides a mock function with given fields: ctx, id
func (_m *MockSessionRepository) DeleteByID(ctx context.Context, id string) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

// ListIdleSince provides a mock function with given fields: ctx, threshold
func (_m *MockSessionRepository) ListIdleSince(ctx context.Context, threshold time.Duration) ([]string, error) {
	ret := _m.Called(ctx, threshold)

	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}

	return r0, ret.Error(1)
}

// Close provides a mock function with given fields:
func (_m *MockSessionRepository) Close() error {
	ret := _m.Called()
	return ret.Error(0)
}

// NewMockSessionRepository creates a new instance of MockSessionRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockSessionRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSessionRepository {
	m := &MockSessionRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ repository.SessionRepository = (*MockSessionRepository)(nil)
