package waitlist

import (
	"github.com/seanlongden/lead-formatter-waitlist/config"
	"github.com/seanlongden/lead-formatter-waitlist/models"
)

// TierRewards describes every tier with its reward links.
func TierRewards(rewards config.Rewards) map[int]models.TierReward {
	return map[int]models.TierReward{
		0: {
			Name: "Base Rewards",
			Rewards: []models.Reward{
				{Name: "The Cold Email Bible", Link: rewards.ColdEmailBible},
				{Name: "Email Generator", Link: rewards.EmailGenerator},
				{Name: "10 Proven Niches + AI Prompt", Link: rewards.NichesPrompt},
				{Name: "Exclusive Partner Discounts", Link: rewards.PartnerDiscounts},
			},
		},
		1: {
			Name:              "Tier 1",
			ReferralsRequired: Thresholds[1],
			Rewards:           []models.Reward{{Name: "Subject Line & CTA Masterclass", Link: rewards.Tier1}},
		},
		2: {
			Name:              "Tier 2",
			ReferralsRequired: Thresholds[2],
			Rewards:           []models.Reward{{Name: "Offer Creation System + Custom GPT", Link: rewards.Tier2}},
		},
		3: {
			Name:              "Tier 3",
			ReferralsRequired: Thresholds[3],
			Rewards:           []models.Reward{{Name: "Dream 100 System + 1:1 Strategy Call", Link: rewards.Tier3}},
		},
		4: {
			Name:              "Tier 4",
			ReferralsRequired: Thresholds[4],
			Rewards:           []models.Reward{{Name: "Complete Agency Roadmap", Link: rewards.Tier4}},
		},
	}
}

// ProjectDashboard builds the dashboard of a verified user. referred maps referral edges to
// the referred user's email; edges whose user is gone show as "Unknown".
func ProjectDashboard(user models.WaitlistUser, edges []models.Referral, referred map[string]string, baseURL string, rewards config.Rewards) models.Dashboard {
	progress := Progress(user.CurrentTier, user.ReferralCount)

	list := make([]models.ReferralListItem, 0, len(edges))
	for _, edge := range edges {
		email := "Unknown"
		if addr, ok := referred[edge.ReferredID.Hex()]; ok {
			email = MaskEmail(addr)
		}
		list = append(list, models.ReferralListItem{Email: email, Date: edge.CreatedAt})
	}

	return models.Dashboard{
		Email:               MaskEmail(user.Email),
		ReferralCode:        user.ReferralCode,
		ReferralLink:        ReferralLink(baseURL, user.ReferralCode),
		CurrentTier:         user.CurrentTier,
		ReferralCount:       user.ReferralCount,
		NextTier:            progress.NextTier,
		ReferralsToNextTier: progress.ReferralsToNextTier,
		Progress:            progress.Progress,
		TierRewards:         TierRewards(rewards),
		UnlockedTiers:       UnlockedTiers(user.CurrentTier),
		ReferralList:        list,
		JoinedAt:            user.CreatedAt,
	}
}

// ReferralLink is the public invite link for code.
func ReferralLink(baseURL, code string) string {
	return baseURL + "/waitlist?ref=" + code
}

// DashboardURL is where a user's dashboard lives.
func DashboardURL(baseURL, code string) string {
	return baseURL + "/waitlist/dashboard/" + code
}

// VerificationURL is the link mailed to confirm an address.
func VerificationURL(baseURL, token string) string {
	return baseURL + "/waitlist/verify?token=" + token
}
