package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Referral holds the structure for the referrals collection in mongo. A referral is
// written once, when the referred user verifies, and never modified.
type Referral struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	ReferrerID   primitive.ObjectID `json:"referrerId" bson:"referrerId"`
	ReferredID   primitive.ObjectID `json:"referredId" bson:"referredId"`
	ReferralCode string             `json:"referralCode" bson:"referralCode"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
}
