package convertkit

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when the key, form, secret or tag a call needs is missing.
// Callers treat it as a silent skip.
var ErrNotConfigured = errors.New("convertkit not configured")

// HTTPError represents a non-2xx response from the ConvertKit API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}
