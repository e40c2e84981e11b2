// Package mocks provides test doubles for the provider interfaces.
package mocks

import (
	"context"

	model "github.com/sells-group/leadgen/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// MockSearcher is a mock type for the Searcher interface.
type MockSearcher struct {
	mock.Mock
}

// Search provides a mock function with given fields: ctx, params
func (_m *MockSearcher) Search(ctx context.Context, params model.SearchParams) ([]model.CandidateLead, error) {
	ret := _m.Called(ctx, params)

	if len(ret) == 0 {
		panic("no return value specified for Search")
	}

	var r0 []model.CandidateLead
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, model.SearchParams) ([]model.CandidateLead, error)); ok {
		return rf(ctx, params)
	}
	if rf, ok := ret.Get(0).(func(context.Context, model.SearchParams) []model.CandidateLead); ok {
		r0 = rf(ctx, params)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.CandidateLead)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, model.SearchParams) error); ok {
		r1 = rf(ctx, params)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockSearcher creates a new instance of MockSearcher.
func NewMockSearcher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSearcher {
	mock := &MockSearcher{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
