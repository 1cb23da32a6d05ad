package events

import (
	"context"
	"time"
)

// Type names a domain event. The value doubles as the NATS subject.
type Type string

const (
	UserVerified     Type = "waitlist.user.verified"
	ReferralCredited Type = "waitlist.referral.credited"
	TierUpgraded     Type = "waitlist.tier.upgraded"
)

// Event is the payload published after a state change has been committed.
type Event struct {
	Type          Type      `json:"type"`
	UserID        string    `json:"userId"`
	Email         string    `json:"email"`
	ReferralCode  string    `json:"referralCode"`
	ReferredBy    string    `json:"referredBy,omitempty"`
	ReferralCount int       `json:"referralCount"`
	Tier          int       `json:"tier"`
	PreviousTier  int       `json:"previousTier"`
	SubscriberID  string    `json:"subscriberId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Handler consumes events. Handlers run off the request path.
type Handler func(ctx context.Context, e Event)

// Bus delivers events to subscribers. Publish never blocks the caller and never fails it;
// an event that cannot be delivered is dropped and counted.
type Bus interface {
	Publish(ctx context.Context, e Event)
	Subscribe(h Handler) error
	Close() error
}
