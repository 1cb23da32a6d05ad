package waitlist

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var disposableDomains = map[string]struct{}{
	"tempmail.com": {}, "throwaway.email": {}, "guerrillamail.com": {}, "mailinator.com": {},
	"10minutemail.com": {}, "temp-mail.org": {}, "fakeinbox.com": {}, "trashmail.com": {},
	"tempail.com": {}, "discard.email": {}, "sharklasers.com": {}, "guerrillamail.info": {},
	"grr.la": {}, "spam4.me": {}, "yopmail.com": {}, "getnada.com": {}, "tempmailo.com": {},
	"mohmal.com": {}, "tempr.email": {}, "dropmail.me": {}, "emailondeck.com": {},
	"temp.email": {}, "fakemailgenerator.com": {}, "generator.email": {}, "emailfake.com": {},
	"crazymailing.com": {}, "tempinbox.com": {}, "getairmail.com": {}, "dispostable.com": {},
}

// NormalizeEmail lower-cases and trims an address. Every lookup and write goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func disposableEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	_, ok := disposableDomains[strings.ToLower(email[at+1:])]
	return ok
}
