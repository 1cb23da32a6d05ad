package databases

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// EnsureIndexes creates the unique constraints the waitlist relies on. It is safe to run
// on every boot; existing indexes with the same definition are left alone.
func EnsureIndexes(ctx context.Context, db DatabaseHelper) error {
	userIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "referralCode", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "verificationToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "consumedTokenHash", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "emailVerified", Value: 1}, {Key: "referralCount", Value: -1}}},
		{Keys: bson.D{{Key: "referralCreditPending", Value: 1}}, Options: options.Index().SetSparse(true)},
	}
	if err := db.Collection(waitlistUserName).CreateIndexes(ctx, userIndexes); err != nil {
		return fmt.Errorf("failed to create %s indexes: %w", waitlistUserName, err)
	}

	referralIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "referredId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "referrerId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "referralCode", Value: 1}}},
	}
	if err := db.Collection(referralName).CreateIndexes(ctx, referralIndexes); err != nil {
		return fmt.Errorf("failed to create %s indexes: %w", referralName, err)
	}

	zap.S().Infow("database indexes ensured",
		"collections", []string{waitlistUserName, referralName})
	return nil
}
