package mocks

import (
	"context"

	"storyline-server/pkg/ai"

	"github.com/stretchr/testify/mock"
)

// MockGenerationClient is a mock type for the ai.Client type
type MockGenerationClient struct {
	mock.Mock
}

// Complete provides a mock function with given fields: ctx, prompt, opts
func (_m *MockGenerationClient) Complete(ctx context.Context, prompt ai.Prompt, opts ai.Options) (string, ai.Usage, error) {
	ret := _m.Called(ctx, prompt, opts)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, ai.Prompt, ai.Options) string); ok {
		r0 = rf(ctx, prompt, opts)
	} else {
		r0 = ret.String(0)
	}

	var r1 ai.Usage
	if ret.Get(1) != nil {
		r1 = ret.Get(1).(ai.Usage)
	}

	return r0, r1, ret.Error(2)
}

// NewMockGenerationClient creates a new instance of MockGenerationClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockGenerationClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockGenerationClient {
	m := &MockGenerationClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ ai.Client = (*MockGenerationClient)(nil)
