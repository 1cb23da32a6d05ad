package mocks

import (
	context "context"

	mock "github.com/stretchr/testify/mock"

	models "github.com/seanlongden/lead-formatter-waitlist/models"

	primitive "go.mongodb.org/mongo-driver/bson/primitive"
)

// ReferralDatabase is a testify mock of the ReferralDatabase type
type ReferralDatabase struct {
	mock.Mock
}

// CountDocuments provides a mock function with given fields: ctx
func (_m *ReferralDatabase) CountDocuments(ctx context.Context) (int64, error) {
	ret := _m.Called(ctx)

	var r0 int64
	if rf, ok := ret.Get(0).(func(context.Context) int64); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Get(0).(int64)
	}
	return r0, ret.Error(1)
}

// DeleteByReferred provides a mock function with given fields: ctx, referredID
func (_m *ReferralDatabase) DeleteByReferred(ctx context.Context, referredID primitive.ObjectID) error {
	ret := _m.Called(ctx, referredID)
	return ret.Error(0)
}

// FindByReferrer provides a mock function with given fields: ctx, referrerID, limit
func (_m *ReferralDatabase) FindByReferrer(ctx context.Context, referrerID primitive.ObjectID, limit int64) ([]models.Referral, error) {
	ret := _m.Called(ctx, referrerID, limit)

	var r0 []models.Referral
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.Referral)
	}
	return r0, ret.Error(1)
}

// InsertOne provides a mock function with given fields: ctx, referral
func (_m *ReferralDatabase) InsertOne(ctx context.Context, referral models.Referral) error {
	ret := _m.Called(ctx, referral)
	return ret.Error(0)
}
