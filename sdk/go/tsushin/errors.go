// Package tsushin provides a Go client for the Tsushin agent coordination API.
package tsushin

import (
	"errors"
	"fmt"
)

// Error represents an error from the Tsushin API with the HTTP status code
// and the server's status and message fields.
type Error struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tsushin: %s (%d)", e.Status, e.StatusCode)
	}
	return fmt.Sprintf("tsushin: %s (%d): %s", e.Status, e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool {
	return hasStatus(err, 404)
}

// IsBadRequest returns true if the error is a 400.
func IsBadRequest(err error) bool {
	return hasStatus(err, 400)
}

// IsRateLimited returns true if the error is a 429 (Too Many Requests).
func IsRateLimited(err error) bool {
	return hasStatus(err, 429)
}

func hasStatus(err error, code int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == code
	}
	return false
}
