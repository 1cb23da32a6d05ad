package mocks

import (
	context "context"
	time "time"

	mock "github.com/stretchr/testify/mock"
)

// SchedulerLockDatabase is a testify mock of the SchedulerLockDatabase type
type SchedulerLockDatabase struct {
	mock.Mock
}

// ReleaseLock provides a mock function with given fields: ctx, name, owner
func (_m *SchedulerLockDatabase) ReleaseLock(ctx context.Context, name string, owner string) error {
	ret := _m.Called(ctx, name, owner)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) error); ok {
		r0 = rf(ctx, name, owner)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// TryAcquireLock provides a mock function with given fields: ctx, name, owner, ttl
func (_m *SchedulerLockDatabase) TryAcquireLock(ctx context.Context, name string, owner string, ttl time.Duration) (bool, error) {
	ret := _m.Called(ctx, name, owner, ttl)

	var r0 bool
	if rf, ok := ret.Get(0).(func(context.Context, string, string, time.Duration) bool); ok {
		r0 = rf(ctx, name, owner, ttl)
	} else {
		r0 = ret.Get(0).(bool)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, string, time.Duration) error); ok {
		r1 = rf(ctx, name, owner, ttl)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

type mockConstructorTestingTNewSchedulerLockDatabase interface {
	mock.TestingT
	Cleanup(func())
}

// NewSchedulerLockDatabase creates a new instance of SchedulerLockDatabase. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewSchedulerLockDatabase(t mockConstructorTestingTNewSchedulerLockDatabase) *SchedulerLockDatabase {
	mock := &SchedulerLockDatabase{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
