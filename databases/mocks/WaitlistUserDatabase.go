package mocks

import (
	context "context"
	time "time"

	bson "go.mongodb.org/mongo-driver/bson"

	mock "github.com/stretchr/testify/mock"

	models "github.com/seanlongden/lead-formatter-waitlist/models"

	primitive "go.mongodb.org/mongo-driver/bson/primitive"
)

// WaitlistUserDatabase is a testify mock of the WaitlistUserDatabase type
type WaitlistUserDatabase struct {
	mock.Mock
}

func userResult(ret mock.Arguments) (*models.WaitlistUser, error) {
	var r0 *models.WaitlistUser
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.WaitlistUser)
	}
	return r0, ret.Error(1)
}

func usersResult(ret mock.Arguments) ([]models.WaitlistUser, error) {
	var r0 []models.WaitlistUser
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.WaitlistUser)
	}
	return r0, ret.Error(1)
}

// CompareAndSetTier provides a mock function with given fields: ctx, id, expectedTier, newTier, unlocked, now
func (_m *WaitlistUserDatabase) CompareAndSetTier(ctx context.Context, id primitive.ObjectID, expectedTier int, newTier int, unlocked [5]*time.Time, now time.Time) (bool, error) {
	ret := _m.Called(ctx, id, expectedTier, newTier, unlocked, now)
	return ret.Bool(0), ret.Error(1)
}

// ConsumeVerificationToken provides a mock function with given fields: ctx, tokenHash, now
func (_m *WaitlistUserDatabase) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*models.WaitlistUser, error) {
	return userResult(_m.Called(ctx, tokenHash, now))
}

// CountUsers provides a mock function with given fields: ctx, verified
func (_m *WaitlistUserDatabase) CountUsers(ctx context.Context, verified *bool) (int64, error) {
	ret := _m.Called(ctx, verified)

	var r0 int64
	if rf, ok := ret.Get(0).(func(context.Context, *bool) int64); ok {
		r0 = rf(ctx, verified)
	} else {
		r0 = ret.Get(0).(int64)
	}
	return r0, ret.Error(1)
}

// FindByConsumedToken provides a mock function with given fields: ctx, tokenHash
func (_m *WaitlistUserDatabase) FindByConsumedToken(ctx context.Context, tokenHash string) (*models.WaitlistUser, error) {
	return userResult(_m.Called(ctx, tokenHash))
}

// FindByEmail provides a mock function with given fields: ctx, email
func (_m *WaitlistUserDatabase) FindByEmail(ctx context.Context, email string) (*models.WaitlistUser, error) {
	return userResult(_m.Called(ctx, email))
}

// FindByID provides a mock function with given fields: ctx, id
func (_m *WaitlistUserDatabase) FindByID(ctx context.Context, id primitive.ObjectID) (*models.WaitlistUser, error) {
	return userResult(_m.Called(ctx, id))
}

// FindByIDs provides a mock function with given fields: ctx, ids
func (_m *WaitlistUserDatabase) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.WaitlistUser, error) {
	return usersResult(_m.Called(ctx, ids))
}

// FindByReferralCode provides a mock function with given fields: ctx, code, verifiedOnly
func (_m *WaitlistUserDatabase) FindByReferralCode(ctx context.Context, code string, verifiedOnly bool) (*models.WaitlistUser, error) {
	return userResult(_m.Called(ctx, code, verifiedOnly))
}

// FindUnsynced provides a mock function with given fields: ctx, limit
func (_m *WaitlistUserDatabase) FindUnsynced(ctx context.Context, limit int64) ([]models.WaitlistUser, error) {
	return usersResult(_m.Called(ctx, limit))
}

// FindPendingCredits provides a mock function with given fields: ctx, before, limit
func (_m *WaitlistUserDatabase) FindPendingCredits(ctx context.Context, before time.Time, limit int64) ([]models.WaitlistUser, error) {
	return usersResult(_m.Called(ctx, before, limit))
}

// ClearCreditPending provides a mock function with given fields: ctx, id, now
func (_m *WaitlistUserDatabase) ClearCreditPending(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	ret := _m.Called(ctx, id, now)
	return ret.Error(0)
}

// IncrementReferralCount provides a mock function with given fields: ctx, id, now
func (_m *WaitlistUserDatabase) IncrementReferralCount(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.WaitlistUser, error) {
	return userResult(_m.Called(ctx, id, now))
}

// InsertOne provides a mock function with given fields: ctx, user
func (_m *WaitlistUserDatabase) InsertOne(ctx context.Context, user models.WaitlistUser) (primitive.ObjectID, error) {
	ret := _m.Called(ctx, user)

	var r0 primitive.ObjectID
	if rf, ok := ret.Get(0).(func(context.Context, models.WaitlistUser) primitive.ObjectID); ok {
		r0 = rf(ctx, user)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(primitive.ObjectID)
	}
	return r0, ret.Error(1)
}

// List provides a mock function with given fields: ctx, page, limit, sort
func (_m *WaitlistUserDatabase) List(ctx context.Context, page int, limit int, sort bson.D) ([]models.WaitlistUser, error) {
	return usersResult(_m.Called(ctx, page, limit, sort))
}

// ListVerified provides a mock function with given fields: ctx
func (_m *WaitlistUserDatabase) ListVerified(ctx context.Context) ([]models.WaitlistUser, error) {
	return usersResult(_m.Called(ctx))
}

// MarkSynced provides a mock function with given fields: ctx, userID, subscriberID
func (_m *WaitlistUserDatabase) MarkSynced(ctx context.Context, userID string, subscriberID string) error {
	ret := _m.Called(ctx, userID, subscriberID)
	return ret.Error(0)
}

// ReferralCodeExists provides a mock function with given fields: ctx, code
func (_m *WaitlistUserDatabase) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	ret := _m.Called(ctx, code)
	return ret.Bool(0), ret.Error(1)
}

// ReplaceVerificationToken provides a mock function with given fields: ctx, id, tokenHash, expires, now
func (_m *WaitlistUserDatabase) ReplaceVerificationToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time, now time.Time) error {
	ret := _m.Called(ctx, id, tokenHash, expires, now)
	return ret.Error(0)
}

// TierBreakdown provides a mock function with given fields: ctx
func (_m *WaitlistUserDatabase) TierBreakdown(ctx context.Context) (map[int]int64, error) {
	ret := _m.Called(ctx)

	var r0 map[int]int64
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(map[int]int64)
	}
	return r0, ret.Error(1)
}

// TopReferrers provides a mock function with given fields: ctx, limit
func (_m *WaitlistUserDatabase) TopReferrers(ctx context.Context, limit int64) ([]models.WaitlistUser, error) {
	return usersResult(_m.Called(ctx, limit))
}
