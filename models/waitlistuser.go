package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WaitlistUser holds the structure for the waitlistUsers collection in mongo
type WaitlistUser struct {
	ID                       primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	Email                    string              `json:"email" bson:"email"`
	EmailVerified            bool                `json:"emailVerified" bson:"emailVerified"`
	VerificationToken        string              `json:"-" bson:"verificationToken,omitempty"`
	VerificationTokenExpires *time.Time          `json:"-" bson:"verificationTokenExpires,omitempty"`
	ConsumedTokenHash        string              `json:"-" bson:"consumedTokenHash,omitempty"`
	ReferralCode             string              `json:"referralCode" bson:"referralCode"`
	ReferredBy               *primitive.ObjectID `json:"referredBy" bson:"referredBy"`
	ReferredByCode           string              `json:"referredByCode,omitempty" bson:"referredByCode,omitempty"`
	ReferralCreditPending    bool                `json:"-" bson:"referralCreditPending,omitempty"`
	ReferralCount            int                 `json:"referralCount" bson:"referralCount"`
	CurrentTier              int                 `json:"currentTier" bson:"currentTier"`
	Tier1UnlockedAt          *time.Time          `json:"tier1UnlockedAt" bson:"tier1UnlockedAt"`
	Tier2UnlockedAt          *time.Time          `json:"tier2UnlockedAt" bson:"tier2UnlockedAt"`
	Tier3UnlockedAt          *time.Time          `json:"tier3UnlockedAt" bson:"tier3UnlockedAt"`
	Tier4UnlockedAt          *time.Time          `json:"tier4UnlockedAt" bson:"tier4UnlockedAt"`
	IPAddress                string              `json:"ipAddress,omitempty" bson:"ipAddress,omitempty"`
	ConvertkitSynced         bool                `json:"convertkitSynced" bson:"convertkitSynced"`
	ConvertkitSubscriberID   string              `json:"convertkitSubscriberId,omitempty" bson:"convertkitSubscriberId,omitempty"`
	CreatedAt                time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt                time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// UnlockedAt returns the unlock timestamps indexed by tier; index 0 is always nil
func (u WaitlistUser) UnlockedAt() [5]*time.Time {
	return [5]*time.Time{nil, u.Tier1UnlockedAt, u.Tier2UnlockedAt, u.Tier3UnlockedAt, u.Tier4UnlockedAt}
}

// SetUnlockedAt copies tier unlock timestamps back onto the record
func (u *WaitlistUser) SetUnlockedAt(unlocked [5]*time.Time) {
	u.Tier1UnlockedAt = unlocked[1]
	u.Tier2UnlockedAt = unlocked[2]
	u.Tier3UnlockedAt = unlocked[3]
	u.Tier4UnlockedAt = unlocked[4]
}
