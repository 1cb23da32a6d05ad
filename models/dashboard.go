package models

import "time"

// Reward is a single downloadable reward inside a tier
type Reward struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// TierReward describes what a tier unlocks
type TierReward struct {
	Name              string   `json:"name"`
	ReferralsRequired int      `json:"referralsRequired,omitempty"`
	Rewards           []Reward `json:"rewards"`
}

// ReferralListItem is one entry of a dashboard referral history
type ReferralListItem struct {
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

// Dashboard is the read-only view returned for a verified user
type Dashboard struct {
	Email               string             `json:"email"`
	ReferralCode        string             `json:"referralCode"`
	ReferralLink        string             `json:"referralLink"`
	CurrentTier         int                `json:"currentTier"`
	ReferralCount       int                `json:"referralCount"`
	NextTier            *int               `json:"nextTier"`
	ReferralsToNextTier int                `json:"referralsToNextTier"`
	Progress            int                `json:"progress"`
	TierRewards         map[int]TierReward `json:"tierRewards"`
	UnlockedTiers       []int              `json:"unlockedTiers"`
	ReferralList        []ReferralListItem `json:"referralList"`
	JoinedAt            time.Time          `json:"joinedAt"`
}

// LeaderboardEntry is one anonymized row of the public leaderboard
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ReferralCode  string `json:"referralCode"`
	ReferralCount int    `json:"referralCount"`
	Tier          int    `json:"tier"`
}

// Stats is the public waitlist summary
type Stats struct {
	TotalUsers     int64              `json:"totalUsers"`
	TotalReferrals int64              `json:"totalReferrals"`
	Leaderboard    []LeaderboardEntry `json:"leaderboard"`
}

// Pagination describes a page of admin results
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// AdminStats summarizes the whole waitlist for admins
type AdminStats struct {
	Total          int64            `json:"total"`
	Verified       int64            `json:"verified"`
	Unverified     int64            `json:"unverified"`
	TotalReferrals int64            `json:"totalReferrals"`
	TierBreakdown  map[string]int64 `json:"tierBreakdown"`
}

// AdminUserPage is the response of the admin user listing
type AdminUserPage struct {
	Users      []WaitlistUser `json:"users"`
	Pagination Pagination     `json:"pagination"`
	Stats      AdminStats     `json:"stats"`
}
