package templates

import (
	"fmt"
	"time"
)

const (
	VerificationSubject  = "Confirm your spot on the Lead Formatter waitlist"
	DashboardLinkSubject = "Your Lead Formatter referral dashboard"
)

// RenderVerificationEmail returns the plain text and HTML bodies of the verification email.
func RenderVerificationEmail(verifyURL string, ttl time.Duration) (string, string) {
	body := "Thanks for joining the Lead Formatter waitlist!\n\n" +
		"Confirm your email to get your personal referral link and unlock your base rewards. " +
		"This link expires in " + humanDuration(ttl) + "."
	text := fmt.Sprintf("%s\n\nVerify your email: %s\n\nIf you didn't sign up, you can ignore this email.", body, verifyURL)
	return text, RenderGenericEmail(VerificationSubject, body, "Verify my email", verifyURL)
}

// RenderDashboardEmail returns the plain text and HTML bodies of the dashboard link email.
func RenderDashboardEmail(dashboardURL, referralCode string) (string, string) {
	body := fmt.Sprintf("Here is the link to your referral dashboard.\n\nYour referral code is %s. "+
		"Share your link to unlock more rewards.", referralCode)
	text := fmt.Sprintf("%s\n\nOpen your dashboard: %s", body, dashboardURL)
	return text, RenderGenericEmail(DashboardLinkSubject, body, "Open my dashboard", dashboardURL)
}

// humanDuration spells ttl in whole days, hours or minutes when it divides evenly
func humanDuration(ttl time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case ttl >= 48*time.Hour && ttl%(24*time.Hour) == 0:
		return plural(int64(ttl/(24*time.Hour)), "day")
	case ttl >= time.Hour && ttl%time.Hour == 0:
		return plural(int64(ttl/time.Hour), "hour")
	case ttl >= time.Minute && ttl%time.Minute == 0:
		return plural(int64(ttl/time.Minute), "minute")
	default:
		return ttl.String()
	}
}
