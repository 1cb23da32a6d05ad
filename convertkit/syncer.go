package convertkit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/seanlongden/lead-formatter-waitlist/events"
	"github.com/seanlongden/lead-formatter-waitlist/metrics"
)

// SyncRecorder persists the outcome of a subscriber sync.
type SyncRecorder interface {
	MarkSynced(ctx context.Context, userID, subscriberID string) error
}

// Syncer mirrors waitlist events into ConvertKit. Every call is best effort: failures are
// logged and counted, never returned.
type Syncer struct {
	client   *Client
	recorder SyncRecorder
	timeout  time.Duration
}

// NewSyncer returns a Syncer bounding each API call by timeout
func NewSyncer(client *Client, recorder SyncRecorder, timeout time.Duration) *Syncer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Syncer{
		client:   client,
		recorder: recorder,
		timeout:  timeout,
	}
}

// Handle is an events.Handler.
func (s *Syncer) Handle(ctx context.Context, e events.Event) {
	switch e.Type {
	case events.UserVerified:
		s.syncVerifiedUser(ctx, e)
	case events.ReferralCredited:
		s.call(ctx, "tag_new_referral", e, func(ctx context.Context) error {
			return s.client.TagSubscriber(ctx, e.Email, s.client.conf.TagNewReferral)
		})
		s.call(ctx, "update_referral_count", e, func(ctx context.Context) error {
			return s.client.UpdateField(ctx, e.Email, "referral_count", strconv.Itoa(e.ReferralCount))
		})
	case events.TierUpgraded:
		s.call(ctx, "tag_tier", e, func(ctx context.Context) error {
			return s.client.TagTier(ctx, e.Email, e.Tier)
		})
	default:
		zap.S().Debugw("ignoring event", "type", e.Type)
	}
}

func (s *Syncer) syncVerifiedUser(ctx context.Context, e events.Event) {
	var subscriberID string
	added := s.call(ctx, "add_subscriber", e, func(ctx context.Context) error {
		id, err := s.client.AddSubscriber(ctx, e.Email, e.ReferralCode, e.ReferredBy)
		subscriberID = id
		return err
	})
	s.call(ctx, "tag_tier", e, func(ctx context.Context) error {
		return s.client.TagTier(ctx, e.Email, 0)
	})
	if !added {
		return
	}

	markCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.recorder.MarkSynced(markCtx, e.UserID, subscriberID); err != nil {
		zap.S().Warnw("failed to record convertkit sync", "userId", e.UserID, "error", err)
	}
}

// call runs fn under its own timeout and reports whether it succeeded.
func (s *Syncer) call(ctx context.Context, operation string, e events.Event, fn func(context.Context) error) bool {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := fn(callCtx)
	switch {
	case err == nil:
		metrics.SyncCallsTotal.WithLabelValues(operation, "ok").Inc()
		return true
	case errors.Is(err, ErrNotConfigured):
		metrics.SyncCallsTotal.WithLabelValues(operation, "skipped").Inc()
		zap.S().Debugw("convertkit call skipped", "operation", operation, "type", e.Type)
		return false
	default:
		metrics.SyncCallsTotal.WithLabelValues(operation, "error").Inc()
		zap.S().Warnw("convertkit call failed",
			"operation", operation,
			"type", e.Type,
			"userId", e.UserID,
			"error", err)
		return false
	}
}
