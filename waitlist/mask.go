package waitlist

import "strings"

// MaskEmail keeps the first character of a local part of up to two characters, or the
// first two otherwise: "jane@acme.io" becomes "ja***@acme.io".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return ""
	}
	local := []rune(email[:at])
	domain := email[at+1:]

	keep := 2
	if len(local) <= 2 {
		keep = 1
	}
	return string(local[:keep]) + "***@" + domain
}
