package databases

// go generate: mockery --name WaitlistUserDatabase

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/seanlongden/lead-formatter-waitlist/models"
)

const waitlistUserName = "waitlistUsers"

// WaitlistUserDatabase contains the methods to use with the waitlist user database.
// Lookups that find nothing return mongo.ErrNoDocuments.
type WaitlistUserDatabase interface {
	FindByEmail(ctx context.Context, email string) (*models.WaitlistUser, error)
	FindByReferralCode(ctx context.Context, code string, verifiedOnly bool) (*models.WaitlistUser, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.WaitlistUser, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.WaitlistUser, error)
	FindByConsumedToken(ctx context.Context, tokenHash string) (*models.WaitlistUser, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	InsertOne(ctx context.Context, user models.WaitlistUser) (primitive.ObjectID, error)
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*models.WaitlistUser, error)
	ReplaceVerificationToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires, now time.Time) error
	IncrementReferralCount(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.WaitlistUser, error)
	CompareAndSetTier(ctx context.Context, id primitive.ObjectID, expectedTier, newTier int, unlocked [5]*time.Time, now time.Time) (bool, error)
	MarkSynced(ctx context.Context, userID, subscriberID string) error
	FindUnsynced(ctx context.Context, limit int64) ([]models.WaitlistUser, error)
	FindPendingCredits(ctx context.Context, before time.Time, limit int64) ([]models.WaitlistUser, error)
	ClearCreditPending(ctx context.Context, id primitive.ObjectID, now time.Time) error
	CountUsers(ctx context.Context, verified *bool) (int64, error)
	TopReferrers(ctx context.Context, limit int64) ([]models.WaitlistUser, error)
	List(ctx context.Context, page, limit int, sort bson.D) ([]models.WaitlistUser, error)
	ListVerified(ctx context.Context) ([]models.WaitlistUser, error)
	TierBreakdown(ctx context.Context) (map[int]int64, error)
}

type waitlistUserDatabase struct {
	db DatabaseHelper
}

// NewWaitlistUserDatabase initializes a new instance of waitlist user database with the provided db connection
func NewWaitlistUserDatabase(db DatabaseHelper) WaitlistUserDatabase {
	return &waitlistUserDatabase{
		db: db,
	}
}

func (u *waitlistUserDatabase) findOne(ctx context.Context, filter interface{}) (*models.WaitlistUser, error) {
	user := &models.WaitlistUser{}
	err := u.db.Collection(waitlistUserName).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *waitlistUserDatabase) find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.WaitlistUser, error) {
	var users []models.WaitlistUser
	cur, err := u.db.Collection(waitlistUserName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&users)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (u *waitlistUserDatabase) FindByEmail(ctx context.Context, email string) (*models.WaitlistUser, error) {
	return u.findOne(ctx, bson.M{"email": email})
}

func (u *waitlistUserDatabase) FindByReferralCode(ctx context.Context, code string, verifiedOnly bool) (*models.WaitlistUser, error) {
	filter := bson.M{"referralCode": code}
	if verifiedOnly {
		filter["emailVerified"] = true
	}
	return u.findOne(ctx, filter)
}

func (u *waitlistUserDatabase) FindByID(ctx context.Context, id primitive.ObjectID) (*models.WaitlistUser, error) {
	return u.findOne(ctx, bson.M{"_id": id})
}

func (u *waitlistUserDatabase) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.WaitlistUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return u.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (u *waitlistUserDatabase) FindByConsumedToken(ctx context.Context, tokenHash string) (*models.WaitlistUser, error) {
	return u.findOne(ctx, bson.M{"consumedTokenHash": tokenHash, "emailVerified": true})
}

func (u *waitlistUserDatabase) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	count, err := u.db.Collection(waitlistUserName).CountDocuments(ctx, bson.M{"referralCode": code}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (u *waitlistUserDatabase) InsertOne(ctx context.Context, user models.WaitlistUser) (primitive.ObjectID, error) {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := u.db.Collection(waitlistUserName).InsertOne(ctx, user)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return user.ID, nil
}

// ConsumeVerificationToken flips an unverified user holding a live token to verified and
// clears the token in the same write, so only one caller can ever win.
func (u *waitlistUserDatabase) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*models.WaitlistUser, error) {
	filter := bson.M{
		"verificationToken":        tokenHash,
		"verificationTokenExpires": bson.M{"$gt": now},
		"emailVerified":            false,
	}
	update := bson.M{
		"$set": bson.M{
			"emailVerified":     true,
			"consumedTokenHash": tokenHash,
			"updatedAt":         now,
		},
		"$unset": bson.M{
			"verificationToken":        "",
			"verificationTokenExpires": "",
		},
	}
	user := &models.WaitlistUser{}
	err := u.db.Collection(waitlistUserName).
		FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).
		Decode(&user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *waitlistUserDatabase) ReplaceVerificationToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires, now time.Time) error {
	res, err := u.db.Collection(waitlistUserName).UpdateOne(ctx,
		bson.M{"_id": id, "emailVerified": false},
		bson.M{"$set": bson.M{
			"verificationToken":        tokenHash,
			"verificationTokenExpires": expires,
			"updatedAt":                now,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// IncrementReferralCount atomically bumps the count and returns the record after the update
func (u *waitlistUserDatabase) IncrementReferralCount(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.WaitlistUser, error) {
	user := &models.WaitlistUser{}
	err := u.db.Collection(waitlistUserName).
		FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{
				"$inc": bson.M{"referralCount": 1},
				"$set": bson.M{"updatedAt": now},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).
		Decode(&user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CompareAndSetTier writes a new tier only if the stored tier is still expectedTier.
// It reports false when another writer got there first.
func (u *waitlistUserDatabase) CompareAndSetTier(ctx context.Context, id primitive.ObjectID, expectedTier, newTier int, unlocked [5]*time.Time, now time.Time) (bool, error) {
	set := bson.M{
		"currentTier": newTier,
		"updatedAt":   now,
	}
	for tier := 1; tier < len(unlocked); tier++ {
		if unlocked[tier] != nil {
			set[fmt.Sprintf("tier%dUnlockedAt", tier)] = *unlocked[tier]
		}
	}
	res, err := u.db.Collection(waitlistUserName).UpdateOne(ctx,
		bson.M{"_id": id, "currentTier": expectedTier},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (u *waitlistUserDatabase) MarkSynced(ctx context.Context, userID, subscriberID string) error {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	_, err = u.db.Collection(waitlistUserName).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"convertkitSynced":       true,
			"convertkitSubscriberId": subscriberID,
			"updatedAt":              time.Now().UTC(),
		}},
	)
	return err
}

func (u *waitlistUserDatabase) FindUnsynced(ctx context.Context, limit int64) ([]models.WaitlistUser, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(limit)
	return u.find(ctx, bson.M{"emailVerified": true, "convertkitSynced": false}, opts)
}

// FindPendingCredits returns verified users not updated since before whose referrer has not
// been credited yet, oldest first
func (u *waitlistUserDatabase) FindPendingCredits(ctx context.Context, before time.Time, limit int64) ([]models.WaitlistUser, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(limit)
	return u.find(ctx, bson.M{
		"emailVerified":         true,
		"referralCreditPending": true,
		"updatedAt":             bson.M{"$lte": before},
	}, opts)
}

func (u *waitlistUserDatabase) ClearCreditPending(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	_, err := u.db.Collection(waitlistUserName).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$unset": bson.M{"referralCreditPending": ""},
			"$set":   bson.M{"updatedAt": now},
		},
	)
	return err
}

func (u *waitlistUserDatabase) CountUsers(ctx context.Context, verified *bool) (int64, error) {
	filter := bson.M{}
	if verified != nil {
		filter["emailVerified"] = *verified
	}
	count, err := u.db.Collection(waitlistUserName).CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (u *waitlistUserDatabase) TopReferrers(ctx context.Context, limit int64) ([]models.WaitlistUser, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "referralCount", Value: -1}}).
		SetLimit(limit).
		SetProjection(bson.M{"referralCode": 1, "referralCount": 1, "currentTier": 1})
	return u.find(ctx, bson.M{"emailVerified": true, "referralCount": bson.M{"$gt": 0}}, opts)
}

func (u *waitlistUserDatabase) List(ctx context.Context, page, limit int, sort bson.D) ([]models.WaitlistUser, error) {
	opts := newMongoPaginate(limit, page).getPaginatedOpts().SetSort(sort)
	return u.find(ctx, bson.M{}, opts)
}

func (u *waitlistUserDatabase) ListVerified(ctx context.Context) ([]models.WaitlistUser, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return u.find(ctx, bson.M{"emailVerified": true}, opts)
}

func (u *waitlistUserDatabase) TierBreakdown(ctx context.Context) (map[int]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"emailVerified": true}}},
		{{Key: "$group", Value: bson.M{"_id": "$currentTier", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	cur, err := u.db.Collection(waitlistUserName).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Tier  int   `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cur.Decode(&rows); err != nil {
		return nil, err
	}
	breakdown := make(map[int]int64, len(rows))
	for _, row := range rows {
		breakdown[row.Tier] = row.Count
	}
	return breakdown, nil
}
