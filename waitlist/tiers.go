package waitlist

import (
	"math"
	"time"
)

// MaxTier is the highest reward tier.
const MaxTier = 4

// Thresholds holds the referral count needed to reach each tier. Index 0 is the base tier.
var Thresholds = [MaxTier + 1]int{0, 3, 6, 10, 20}

// TierState is a tier together with the time each tier was first unlocked.
type TierState struct {
	Tier       int
	UnlockedAt [MaxTier + 1]*time.Time
}

// TierFor returns the highest tier whose threshold count has reached.
func TierFor(count int) int {
	for tier := MaxTier; tier >= 1; tier-- {
		if count >= Thresholds[tier] {
			return tier
		}
	}
	return 0
}

// RecomputeTier moves currentTier up to the tier count qualifies for. Tiers never go down,
// and every tier passed on the way that has no unlock time yet is stamped with now.
// changed reports whether the tier went up.
func RecomputeTier(count, currentTier int, unlocked [MaxTier + 1]*time.Time, now time.Time) (TierState, bool) {
	state := TierState{Tier: currentTier, UnlockedAt: unlocked}

	target := TierFor(count)
	if target <= currentTier {
		return state, false
	}

	stamp := now
	for tier := 1; tier <= target; tier++ {
		if state.UnlockedAt[tier] == nil {
			state.UnlockedAt[tier] = &stamp
		}
	}
	state.Tier = target
	return state, true
}

// TierProgress describes how far a user is from the next tier.
type TierProgress struct {
	NextTier            *int
	ReferralsToNextTier int
	Progress            int
}

// Progress reports the next tier, the referrals still missing and the percentage of the
// way from the current tier's threshold to the next one. At the top tier progress is 100.
func Progress(currentTier, count int) TierProgress {
	if currentTier >= MaxTier {
		return TierProgress{Progress: 100}
	}

	next := currentTier + 1
	floor := Thresholds[currentTier]
	ceiling := Thresholds[next]

	pct := int(math.Round(float64(count-floor) / float64(ceiling-floor) * 100))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	remaining := ceiling - count
	if remaining < 0 {
		remaining = 0
	}

	return TierProgress{
		NextTier:            &next,
		ReferralsToNextTier: remaining,
		Progress:            pct,
	}
}

// UnlockedTiers lists every tier up to and including currentTier. Tier 0 is always unlocked.
func UnlockedTiers(currentTier int) []int {
	if currentTier > MaxTier {
		currentTier = MaxTier
	}
	tiers := make([]int, 0, currentTier+1)
	for tier := 0; tier <= currentTier; tier++ {
		tiers = append(tiers, tier)
	}
	return tiers
}
