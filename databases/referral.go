package databases

// go generate: mockery --name ReferralDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/seanlongden/lead-formatter-waitlist/models"
)

const referralName = "referrals"

// ReferralDatabase contains the methods to use with the referral database.
// InsertOne returns an error wrapping ErrDuplicateKey when the referred user already has an edge.
type ReferralDatabase interface {
	InsertOne(ctx context.Context, referral models.Referral) error
	FindByReferrer(ctx context.Context, referrerID primitive.ObjectID, limit int64) ([]models.Referral, error)
	CountDocuments(ctx context.Context) (int64, error)
	DeleteByReferred(ctx context.Context, referredID primitive.ObjectID) error
}

type referralDatabase struct {
	db DatabaseHelper
}

// NewReferralDatabase initializes a new instance of referral database with the provided db connection
func NewReferralDatabase(db DatabaseHelper) ReferralDatabase {
	return &referralDatabase{
		db: db,
	}
}

func (r *referralDatabase) InsertOne(ctx context.Context, referral models.Referral) error {
	if referral.ID.IsZero() {
		referral.ID = primitive.NewObjectID()
	}
	_, err := r.db.Collection(referralName).InsertOne(ctx, referral)
	return err
}

func (r *referralDatabase) FindByReferrer(ctx context.Context, referrerID primitive.ObjectID, limit int64) ([]models.Referral, error) {
	var referrals []models.Referral
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	cur, err := r.db.Collection(referralName).Find(ctx, bson.M{"referrerId": referrerID}, opts)
	if err != nil {
		return nil, err
	}
	if err := cur.Decode(&referrals); err != nil {
		return nil, err
	}
	return referrals, nil
}

func (r *referralDatabase) CountDocuments(ctx context.Context) (int64, error) {
	return r.db.Collection(referralName).CountDocuments(ctx, bson.M{})
}

// DeleteByReferred removes the edge for a referred user so its credit can be attempted again
func (r *referralDatabase) DeleteByReferred(ctx context.Context, referredID primitive.ObjectID) error {
	_, err := r.db.Collection(referralName).DeleteOne(ctx, bson.M{"referredId": referredID})
	return err
}
