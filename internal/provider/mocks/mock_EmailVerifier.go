package mocks

import (
	"context"

	model "github.com/sells-group/leadgen/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// MockEmailVerifier is a mock type for the EmailVerifier interface.
type MockEmailVerifier struct {
	mock.Mock
}

// VerifyEmail provides a mock function with given fields: ctx, email
func (_m *MockEmailVerifier) VerifyEmail(ctx context.Context, email string) (*model.VerificationResult, error) {
	ret := _m.Called(ctx, email)

	if len(ret) == 0 {
		panic("no return value specified for VerifyEmail")
	}

	var r0 *model.VerificationResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.VerificationResult, error)); ok {
		return rf(ctx, email)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.VerificationResult); ok {
		r0 = rf(ctx, email)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.VerificationResult)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, email)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockEmailVerifier creates a new instance of MockEmailVerifier.
func NewMockEmailVerifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockEmailVerifier {
	mock := &MockEmailVerifier{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
