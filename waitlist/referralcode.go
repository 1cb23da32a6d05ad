package waitlist

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	referralPrefix   = "LF-"
	referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralSymbols  = 6

	verificationTokenBytes = 32
)

// NewReferralCode draws a code like LF-7KQ2MX from r. The alphabet has 32 symbols, so taking
// each byte modulo 32 keeps the draw uniform.
func NewReferralCode(r io.Reader) (string, error) {
	buf := make([]byte, referralSymbols)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	var sb strings.Builder
	sb.Grow(len(referralPrefix) + referralSymbols)
	sb.WriteString(referralPrefix)
	for _, b := range buf {
		sb.WriteByte(referralAlphabet[int(b)%len(referralAlphabet)])
	}
	return sb.String(), nil
}

// NormalizeReferralCode upper-cases and trims a code taken from user input.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsReferralCode reports whether code has the shape NewReferralCode produces.
func IsReferralCode(code string) bool {
	if len(code) != len(referralPrefix)+referralSymbols || !strings.HasPrefix(code, referralPrefix) {
		return false
	}
	for _, c := range code[len(referralPrefix):] {
		if !strings.ContainsRune(referralAlphabet, c) {
			return false
		}
	}
	return true
}

// newVerificationToken returns a 256-bit hex token and the digest that gets stored.
func newVerificationToken(r io.Reader) (string, string, error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	token := hex.EncodeToString(buf)
	return token, hashToken(token), nil
}

// hashToken is the only form of a verification token that is persisted.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
