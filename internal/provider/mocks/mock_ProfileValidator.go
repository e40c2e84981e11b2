package mocks

import (
	"context"

	model "github.com/sells-group/leadgen/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// MockProfileValidator is a mock type for the ProfileValidator interface.
type MockProfileValidator struct {
	mock.Mock
}

// ValidateProfileURL provides a mock function with given fields: ctx, url
func (_m *MockProfileValidator) ValidateProfileURL(ctx context.Context, url string) (*model.ProfileValidation, error) {
	ret := _m.Called(ctx, url)

	if len(ret) == 0 {
		panic("no return value specified for ValidateProfileURL")
	}

	var r0 *model.ProfileValidation
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.ProfileValidation, error)); ok {
		return rf(ctx, url)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.ProfileValidation); ok {
		r0 = rf(ctx, url)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.ProfileValidation)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, url)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockProfileValidator creates a new instance of MockProfileValidator.
func NewMockProfileValidator(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProfileValidator {
	mock := &MockProfileValidator{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
