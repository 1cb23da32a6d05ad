package waitlist

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/seanlongden/lead-formatter-waitlist/databases"
	"github.com/seanlongden/lead-formatter-waitlist/events"
	"github.com/seanlongden/lead-formatter-waitlist/metrics"
	"github.com/seanlongden/lead-formatter-waitlist/models"
)

const pendingCreditGrace = 5 * time.Minute

// VerifyResult names the dashboard to send the user to.
type VerifyResult struct {
	ReferralCode    string
	AlreadyVerified bool
}

// Verify consumes a verification token. The first successful call flips the user to
// verified, credits the referrer once and emits the sync events; repeating it with the same
// token reports AlreadyVerified and changes nothing.
func (s *Service) Verify(ctx context.Context, token string) (*VerifyResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &ValidationError{Message: "Verification token is required"}
	}
	tokenHash := hashToken(token)
	now := s.now()

	user, err := s.users.ConsumeVerificationToken(ctx, tokenHash, now)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return s.alreadyVerified(ctx, tokenHash)
	}
	if err != nil {
		metrics.VerificationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to consume verification token: %w", err)
	}
	metrics.VerificationsTotal.WithLabelValues("ok").Inc()
	zap.S().Infow("waitlist user verified", "referralCode", user.ReferralCode)

	if user.ReferredBy != nil {
		if err := s.creditReferrer(ctx, *user, now); err != nil {
			// the user is verified either way; the scheduler retries the credit
			zap.S().Errorw("failed to credit referrer",
				"referredId", user.ID.Hex(),
				"referrerId", user.ReferredBy.Hex(),
				"error", err)
		}
	}

	s.bus.Publish(ctx, verifiedEvent(*user, now))
	return &VerifyResult{ReferralCode: user.ReferralCode}, nil
}

func (s *Service) alreadyVerified(ctx context.Context, tokenHash string) (*VerifyResult, error) {
	user, err := s.users.FindByConsumedToken(ctx, tokenHash)
	if errors.Is(err, mongo.ErrNoDocuments) {
		metrics.VerificationsTotal.WithLabelValues("invalid").Inc()
		return nil, &ValidationError{Message: "Invalid or expired verification token"}
	}
	if err != nil {
		metrics.VerificationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to look up consumed token: %w", err)
	}
	metrics.VerificationsTotal.WithLabelValues("repeat").Inc()
	return &VerifyResult{ReferralCode: user.ReferralCode, AlreadyVerified: true}, nil
}

// creditReferrer records the referral edge, bumps the referrer's count and raises its tier.
// The unique index on the edge's referred id makes the credit happen at most once. The
// referred user's pending flag is cleared only once the credit is settled, so a failed
// attempt is picked up again by RetryPendingCredits.
func (s *Service) creditReferrer(ctx context.Context, referred models.WaitlistUser, now time.Time) error {
	referrerID := *referred.ReferredBy

	referrer, err := s.users.FindByID(ctx, referrerID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		zap.S().Warnw("referrer no longer exists, skipping credit",
			"referredId", referred.ID.Hex(),
			"referrerId", referrerID.Hex())
		return s.settleCredit(ctx, referred, now)
	}
	if err != nil {
		return fmt.Errorf("failed to load referrer: %w", err)
	}

	credited := true
	err = s.referrals.InsertOne(ctx, models.Referral{
		ReferrerID:   referrerID,
		ReferredID:   referred.ID,
		ReferralCode: referred.ReferredByCode,
		CreatedAt:    now,
	})
	switch {
	case errors.Is(err, databases.ErrDuplicateKey):
		zap.S().Infow("referral already credited", "referredId", referred.ID.Hex())
		credited = false
	case err != nil:
		return fmt.Errorf("failed to record referral: %w", err)
	}

	if credited {
		referrer, err = s.users.IncrementReferralCount(ctx, referrerID, now)
		if err != nil {
			// an edge without its increment would block every later attempt
			if delErr := s.referrals.DeleteByReferred(ctx, referred.ID); delErr != nil {
				zap.S().Errorw("failed to remove uncredited referral",
					"referredId", referred.ID.Hex(),
					"error", delErr)
			}
			if errors.Is(err, mongo.ErrNoDocuments) {
				return s.settleCredit(ctx, referred, now)
			}
			return fmt.Errorf("failed to increment referral count: %w", err)
		}
		metrics.ReferralsCreditedTotal.Inc()
	}

	upgraded, previousTier, err := s.raiseTier(ctx, referrer, now)
	if err != nil {
		return err
	}
	if err := s.settleCredit(ctx, referred, now); err != nil {
		zap.S().Warnw("failed to clear pending referral credit",
			"referredId", referred.ID.Hex(),
			"error", err)
	}

	if credited {
		s.bus.Publish(ctx, events.Event{
			Type:          events.ReferralCredited,
			UserID:        referrer.ID.Hex(),
			Email:         referrer.Email,
			ReferralCode:  referrer.ReferralCode,
			ReferralCount: referrer.ReferralCount,
			Tier:          referrer.CurrentTier,
			OccurredAt:    now,
		})
	}
	if upgraded != nil {
		metrics.TierUpgradesTotal.WithLabelValues(strconv.Itoa(upgraded.Tier)).Inc()
		zap.S().Infow("referrer reached a new tier",
			"referralCode", referrer.ReferralCode,
			"from", previousTier,
			"to", upgraded.Tier)
		s.bus.Publish(ctx, events.Event{
			Type:          events.TierUpgraded,
			UserID:        referrer.ID.Hex(),
			Email:         referrer.Email,
			ReferralCode:  referrer.ReferralCode,
			ReferralCount: referrer.ReferralCount,
			Tier:          upgraded.Tier,
			PreviousTier:  previousTier,
			OccurredAt:    now,
		})
	}
	return nil
}

func (s *Service) settleCredit(ctx context.Context, referred models.WaitlistUser, now time.Time) error {
	if !referred.ReferralCreditPending {
		return nil
	}
	return s.users.ClearCreditPending(ctx, referred.ID, now)
}

// RetryPendingCredits settles referral credits that failed during verification. Users
// verified within the last pendingCreditGrace are left to their own request. It returns how
// many were settled.
func (s *Service) RetryPendingCredits(ctx context.Context, limit int64) (int, error) {
	pending, err := s.users.FindPendingCredits(ctx, s.now().Add(-pendingCreditGrace), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending referral credits: %w", err)
	}
	settled := 0
	for _, u := range pending {
		if u.ReferredBy == nil {
			if err := s.users.ClearCreditPending(ctx, u.ID, s.now()); err == nil {
				settled++
			}
			continue
		}
		if err := s.creditReferrer(ctx, u, s.now()); err != nil {
			zap.S().Warnw("referral credit still failing",
				"referredId", u.ID.Hex(),
				"referrerId", u.ReferredBy.Hex(),
				"error", err)
			continue
		}
		settled++
	}
	return settled, nil
}

// raiseTier applies RecomputeTier with a compare-and-set on the stored tier, re-reading the
// referrer after every lost race. When this call raised the tier it returns the new state
// and the tier it replaced. referrer is updated in place with the stored tier.
func (s *Service) raiseTier(ctx context.Context, referrer *models.WaitlistUser, now time.Time) (*TierState, int, error) {
	current := referrer
	for {
		state, changed := RecomputeTier(current.ReferralCount, current.CurrentTier, current.UnlockedAt(), now)
		if !changed {
			return nil, current.CurrentTier, nil
		}

		ok, err := s.users.CompareAndSetTier(ctx, current.ID, current.CurrentTier, state.Tier, state.UnlockedAt, now)
		if err != nil {
			return nil, current.CurrentTier, fmt.Errorf("failed to update tier: %w", err)
		}
		if ok {
			previous := current.CurrentTier
			referrer.CurrentTier = state.Tier
			referrer.SetUnlockedAt(state.UnlockedAt)
			return &state, previous, nil
		}

		// another verification moved the tier first
		current, err = s.users.FindByID(ctx, referrer.ID)
		if err != nil {
			return nil, referrer.CurrentTier, fmt.Errorf("failed to reload referrer: %w", err)
		}
		referrer.CurrentTier = current.CurrentTier
		referrer.SetUnlockedAt(current.UnlockedAt())
	}
}
