package mocks

import (
	"context"

	model "github.com/sells-group/leadgen/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// MockOrgEnricher is a mock type for the OrgEnricher interface.
type MockOrgEnricher struct {
	mock.Mock
}

// EnrichOrganization provides a mock function with given fields: ctx, domain
func (_m *MockOrgEnricher) EnrichOrganization(ctx context.Context, domain string) (*model.OrgInfo, error) {
	ret := _m.Called(ctx, domain)

	if len(ret) == 0 {
		panic("no return value specified for EnrichOrganization")
	}

	var r0 *model.OrgInfo
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.OrgInfo, error)); ok {
		return rf(ctx, domain)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.OrgInfo); ok {
		r0 = rf(ctx, domain)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.OrgInfo)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, domain)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockOrgEnricher creates a new instance of MockOrgEnricher.
func NewMockOrgEnricher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockOrgEnricher {
	mock := &MockOrgEnricher{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
