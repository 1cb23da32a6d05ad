package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	SignupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_signups_total",
			Help: "Signup attempts by outcome.",
		},
		[]string{"result"},
	)

	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_verifications_total",
			Help: "Verification attempts by outcome.",
		},
		[]string{"result"},
	)

	ReferralsCreditedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_referrals_credited_total",
			Help: "Referrals credited to a referrer.",
		},
	)

	TierUpgradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_tier_upgrades_total",
			Help: "Tier upgrades by the tier reached.",
		},
		[]string{"tier"},
	)

	SyncCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_convertkit_calls_total",
			Help: "Calls to the email-automation provider.",
		},
		[]string{"operation", "result"},
	)

	EmailsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_emails_sent_total",
			Help: "Transactional emails by provider and outcome.",
		},
		[]string{"provider", "result"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_events_dropped_total",
			Help: "Domain events dropped because the bus was full or closed.",
		},
		[]string{"type"},
	)
)

var registerOnce sync.Once

// MustRegister registers every collector with the default registry. Repeat calls are no-ops.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			SignupsTotal,
			VerificationsTotal,
			ReferralsCreditedTotal,
			TierUpgradesTotal,
			SyncCallsTotal,
			EmailsSentTotal,
			EventsDroppedTotal,
		)
	})
}

// Result maps an error to the result label used across counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
