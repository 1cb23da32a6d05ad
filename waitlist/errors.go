package waitlist

import "fmt"

// ValidationError is returned for input the caller must fix.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError is returned when the addressed record does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ForbiddenError is returned when the record exists but may not be shown yet.
type ForbiddenError struct {
	Message       string
	EmailVerified bool
}

func (e *ForbiddenError) Error() string { return e.Message }

// ConflictError is returned when an email is already on the waitlist. ReferralCode is only
// set for verified users.
type ConflictError struct {
	EmailVerified bool
	ReferralCode  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("email already registered (verified=%t)", e.EmailVerified)
}
