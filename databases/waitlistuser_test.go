package databases_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/seanlongden/lead-formatter-waitlist/config"
	"github.com/seanlongden/lead-formatter-waitlist/databases"
	"github.com/seanlongden/lead-formatter-waitlist/databases/mocks"
	"github.com/seanlongden/lead-formatter-waitlist/models"
)

func TestNewWaitlistUserDatabase(t *testing.T) {
	_ = os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	_ = os.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	userDB := databases.NewWaitlistUserDatabase(db)

	assert.NotEmpty(t, userDB)
}

func TestWaitlistUserDatabase_FindByEmail(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(mongo.ErrNoDocuments)

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.WaitlistUser)
		(*arg).Email = "jane@acme.io"
		(*arg).ReferralCode = "ABCD2345"
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"email": "missing@acme.io"}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"email": "jane@acme.io"}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "waitlistUsers").Return(collectionHelper)

	userDba := databases.NewWaitlistUserDatabase(dbHelper)

	user, err := userDba.FindByEmail(context.Background(), "missing@acme.io")

	assert.Nil(t, user)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	user, err = userDba.FindByEmail(context.Background(), "jane@acme.io")

	assert.NoError(t, err)
	assert.Equal(t, &models.WaitlistUser{Email: "jane@acme.io", ReferralCode: "ABCD2345"}, user)
}

func TestWaitlistUserDatabase_FindByReferralCode(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	srHelper := &mocks.SingleResultHelper{}

	srHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.WaitlistUser)
		(*arg).ReferralCode = "ABCD2345"
		(*arg).EmailVerified = true
	})

	// the verified-only lookup must add the emailVerified constraint
	collectionHelper.
		On("FindOne", context.Background(), bson.M{"referralCode": "ABCD2345", "emailVerified": true}).
		Return(srHelper)
	collectionHelper.
		On("FindOne", context.Background(), bson.M{"referralCode": "ABCD2345"}).
		Return(srHelper)

	dbHelper.On("Collection", "waitlistUsers").Return(collectionHelper)

	userDba := databases.NewWaitlistUserDatabase(dbHelper)

	user, err := userDba.FindByReferralCode(context.Background(), "ABCD2345", true)
	assert.NoError(t, err)
	assert.True(t, user.EmailVerified)

	_, err = userDba.FindByReferralCode(context.Background(), "ABCD2345", false)
	assert.NoError(t, err)

	collectionHelper.AssertNumberOfCalls(t, "FindOne", 2)
}

func TestWaitlistUserDatabase_FindByIDs(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursor := &mocks.CursorHelper{}

	id := primitive.NewObjectID()
	cursor.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.WaitlistUser)
		*arg = []models.WaitlistUser{{ID: id, Email: "a@b.co"}}
	})
	collectionHelper.
		On("Find", context.Background(), bson.M{"_id": bson.M{"$in": []primitive.ObjectID{id}}}).
		Return(cursor, nil)
	dbHelper.On("Collection", "waitlistUsers").Return(collectionHelper)

	userDba := databases.NewWaitlistUserDatabase(dbHelper)

	users, err := userDba.FindByIDs(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, users)
	collectionHelper.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)

	users, err = userDba.FindByIDs(context.Background(), []primitive.ObjectID{id})
	assert.NoError(t, err)
	assert.Equal(t, []models.WaitlistUser{{ID: id, Email: "a@b.co"}}, users)
}

func TestWaitlistUserDatabase_ReferralCodeExists(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.
		On("CountDocuments", context.Background(), bson.M{"referralCode": "TAKEN234"}, mock.Anything).
		Return(int64(1), nil)
	collectionHelper.
		On("CountDocuments", context.Background(), bson.M{"referralCode": "FREE2345"}, mock.Anything).
		Return(int64(0), nil)
	collectionHelper.
		On("CountDocuments", context.Background(), bson.M{"referralCode": "BROKEN23"}, mock.Anything).
		Return(int64(0), errors.New("mocked-error"))
	dbHelper.On("Collection", "waitlistUsers").Return(collectionHelper)

	userDba := databases.NewWaitlistUserDatabase(dbHelper)

	exists, err := userDba.ReferralCodeExists(context.Background(), "TAKEN234")
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = userDba.ReferralCodeExists(context.Background(), "FREE2345")
	assert.NoError(t, err)
	assert.False(t, exists)

	_, err = userDba.ReferralCodeExists(context.Background(), "BROKEN23")
	assert.EqualError(t, err, "mocked-error")
}

func TestWaitlistUserDatabase_InsertOne(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	insertResult := &mocks.InsertOneResultHelper{}

	collectionHelper.
		On("InsertOne", context.Background(), mock.MatchedBy(func(u models.WaitlistUser) bool {
			return u.Email == "new@acme.io"
		})).
		Return(insertResult, nil)
	collectionHelper.
		On("InsertOne", context.Background(), mock.MatchedBy(func(u models.WaitlistUser) bool {
			return u.Email == "dupe@acme.io"
		})).
		Return(nil, errors.Join(databases.ErrDuplicateKey, errors.New("E11000")))
	dbHelper.On("Collection", "waitlistUsers").Return(collectionHelper)

	userDba := databases.NewWaitlistUserDatabase(dbHelper)

	id, err := userDba.InsertOne(context.Background(), models.WaitlistUser{Email: "new@acme.io"})
	assert.NoError(t, err)
	assert.False(t, id.IsZero())

	id, err = userDba.InsertOne(context.Background(), models.WaitlistUser{Email: "dupe@acme.io"})
	assert.ErrorIs(t, err, databases.ErrDuplicateKey)
	assert.True(t, id.IsZero())
}

func TestWaitlistUserDatabase_ConsumeVerificationToken(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	srHelperErr := &mocks.SingleResultHelper{}
	srHelperCorrect := &mocks.SingleResultHelper{}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	srHelperErr.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	srHelperCorrect.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.WaitlistUser)
		(*arg).EmailVerified = true
		(*arg).ConsumedTokenHash = "live-hash"
	})

	liveFilter := bson.M{
		"verificationToken":        "live-hash",
		"verificationTokenExpires": bson.M{"$gt": now},
		"emailVerified":            false,
	}
	collectionHelper.
		On("FindOneAndUpdate", context.Background(), liveFilter, mock.Anything, mock.Anything).
		Return(srHelperCorrect)
	collectionHelper.
		On("FindOneAndUpdate", context.Background(), mock.Anything, mock.Anything, mock.Anything).
		Return(srHelperErr)
	dbHelper.On("Collection", "waitlistUsers").Return(collectionHelper)

	userDba := databases.NewWaitlistUserDatabase(dbHelper)

	user, err := userDba.ConsumeVerificationToken(context.Background(), "live-hash", now)
	assert.NoError(t, err)
	assert.True(t, user.EmailVerified)
	assert.Equal(t, "live-hash", user.ConsumedTokenHash)

	user, err = userDba.ConsumeVerificationToken(context.Background(), "stale-hash", now)
	assert.Nil(t, user)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestWaitlistUserDatabase_ReplaceVerificationToken(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	pending := primitive.NewObjectID()
	verified := primitive.NewObjectID()
	now := time.Now().UTC()

	collectionHelper.
		On("UpdateOne", context.Background(), bson.M{"_id": pending, "emailVerified": false}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)
	collectionHelper.
		On("UpdateOne", context.Background(), bson.M{"_id": verified, "emailVerified": false}, mock.Anything).
		Return(&mongo.UpdateResult{}, nil)
	dbHelper.On("Collection", "waitlistUsers").Return(collectionHelper)

	userDba := databases.NewWaitlistUserDatabase(dbHelper)

	assert.NoError(t, userDba.ReplaceVerificationToken(context.Background(), pending, "h", now.Add(time.Hour), now))
	assert.ErrorIs(t, userDba.ReplaceVerificationToken(context.Background(), verified, "h", now.Add(time.Hour), now), mongo.ErrNoDocuments)
}

func TestWaitlistUserDatabase_CompareAndSetTier(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	id := primitive.NewObjectID()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var unlocked [5]*time.Time
	unlocked[1] = &now

	expectedUpdate := bson.M{"$set": bson.M{
		"currentTier":     1,
		"updatedAt":       now,
		"tier1UnlockedAt": now,
	}}
	collectionHelper.
		On("UpdateOne", context.Background(), bson.M{"_id": id, "currentTier": 0}, expectedUpdate).
		Return(&mongo.UpdateResult{MatchedCount: 1}, nil).Once()
	collectionHelper.
		On("UpdateOne", context.Background(), bson.M{"_id": id, "currentTier": 0}, expectedUpdate).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil).Once()
	dbHelper.On("Collection", "waitlistUsers").Return(collectionHelper)

	userDba := databases.NewWaitlistUserDatabase(dbHelper)

	ok, err := userDba.CompareAndSetTier(context.Background(), id, 0, 1, unlocked, now)
	assert.NoError(t, err)
	assert.True(t, ok)

	// a concurrent writer already moved the tier
	ok, err = userDba.CompareAndSetTier(context.Background(), id, 0, 1, unlocked, now)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestWaitlistUserDatabase_MarkSynced(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	id := primitive.NewObjectID()
	collectionHelper.
		On("UpdateOne", context.Background(), bson.M{"_id": id}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1}, nil)
	dbHelper.On("Collection", "waitlistUsers").Return(collectionHelper)

	userDba := databases.NewWaitlistUserDatabase(dbHelper)

	assert.NoError(t, userDba.MarkSynced(context.Background(), id.Hex(), "12345"))
	assert.Error(t, userDba.MarkSynced(context.Background(), "not-an-id", "12345"))
	collectionHelper.AssertNumberOfCalls(t, "UpdateOne", 1)
}

func TestWaitlistUserDatabase_CountUsers(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("CountDocuments", context.Background(), bson.M{}).Return(int64(10), nil)
	collectionHelper.On("CountDocuments", context.Background(), bson.M{"emailVerified": true}).Return(int64(7), nil)
	collectionHelper.On("CountDocuments", context.Background(), bson.M{"emailVerified": false}).Return(int64(3), nil)
	dbHelper.On("Collection", "waitlistUsers").Return(collectionHelper)

	userDba := databases.NewWaitlistUserDatabase(dbHelper)

	verified, unverified := true, false
	total, err := userDba.CountUsers(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(10), total)

	count, err := userDba.CountUsers(context.Background(), &verified)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), count)

	count, err = userDba.CountUsers(context.Background(), &unverified)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestWaitlistUserDatabase_TierBreakdown(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursor := &mocks.CursorHelper{}

	cursor.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]struct {
			Tier  int   `bson:"_id"`
			Count int64 `bson:"count"`
		})
		*arg = append(*arg,
			struct {
				Tier  int   `bson:"_id"`
				Count int64 `bson:"count"`
			}{Tier: 0, Count: 5},
			struct {
				Tier  int   `bson:"_id"`
				Count int64 `bson:"count"`
			}{Tier: 2, Count: 1},
		)
	})
	collectionHelper.On("Aggregate", context.Background(), mock.Anything).Return(cursor, nil)
	dbHelper.On("Collection", "waitlistUsers").Return(collectionHelper)

	userDba := databases.NewWaitlistUserDatabase(dbHelper)

	breakdown, err := userDba.TierBreakdown(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, map[int]int64{0: 5, 2: 1}, breakdown)
}

func TestWaitlistUserDatabase_List(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursor := &mocks.CursorHelper{}

	cursor.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.WaitlistUser)
		*arg = []models.WaitlistUser{{Email: "one@acme.io"}, {Email: "two@acme.io"}}
	})
	collectionHelper.On("Find", context.Background(), bson.M{}, mock.Anything).Return(cursor, nil)
	collectionHelper.On("Find", context.Background(), bson.M{"emailVerified": true}, mock.Anything).
		Return(nil, errors.New("mocked-error"))
	dbHelper.On("Collection", "waitlistUsers").Return(collectionHelper)

	userDba := databases.NewWaitlistUserDatabase(dbHelper)

	users, err := userDba.List(context.Background(), 2, 50, bson.D{{Key: "createdAt", Value: -1}})
	assert.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = userDba.ListVerified(context.Background())
	assert.Nil(t, users)
	assert.EqualError(t, err, "mocked-error")
}

func TestWaitlistUserDatabase_PendingCredits(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursor := &mocks.CursorHelper{}

	id := primitive.NewObjectID()
	before := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	cursor.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.WaitlistUser)
		*arg = []models.WaitlistUser{{ID: id, ReferralCreditPending: true}}
	})
	collectionHelper.On("Find", context.Background(), bson.M{
		"emailVerified":         true,
		"referralCreditPending": true,
		"updatedAt":             bson.M{"$lte": before},
	}, mock.Anything).Return(cursor, nil)
	collectionHelper.On("UpdateOne", context.Background(), bson.M{"_id": id}, bson.M{
		"$unset": bson.M{"referralCreditPending": ""},
		"$set":   bson.M{"updatedAt": before},
	}).Return(&mongo.UpdateResult{MatchedCount: 1}, nil)
	dbHelper.On("Collection", "waitlistUsers").Return(collectionHelper)

	userDba := databases.NewWaitlistUserDatabase(dbHelper)

	users, err := userDba.FindPendingCredits(context.Background(), before, 100)
	assert.NoError(t, err)
	assert.Len(t, users, 1)
	assert.NoError(t, userDba.ClearCreditPending(context.Background(), id, before))
	collectionHelper.AssertExpectations(t)
}
