// Package broker speaks the venue's OpenAPI dialect: OAuth session
// management, the HTTP transport with its retry table, and the wire shapes
// for positions and orders.
package broker

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError is an irrecoverable authentication failure: bad credentials, a
// forced password change, or an unaccepted disclaimer. It halts the trading
// loop; an operator has to intervene.
type AuthError struct {
	Step    string
	Message string
	Cause   error
}

func NewAuthError(step, message string, cause error) *AuthError {
	return &AuthError{Step: step, Message: message, Cause: cause}
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth %s: %s: %v", e.Step, e.Message, e.Cause)
	}
	return fmt.Sprintf("auth %s: %s", e.Step, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Cause }

// APIError is a venue response outside the 2xx range that the retry table
// did not absorb.
type APIError struct {
	Status int
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue %s: status %d: %s", e.Path, e.Status, e.Body)
}

// PositionNotFoundError reports a close attempt against a position the venue
// no longer knows about.
type PositionNotFoundError struct {
	PositionID string
}

func (e *PositionNotFoundError) Error() string {
	return fmt.Sprintf("position %s not found", e.PositionID)
}

// IsFatal reports whether err should halt the trading loop instead of being
// retried on the next alert. Auth failures and 404s qualify; everything else
// is assumed transient.
func IsFatal(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusNotFound
	}
	return false
}
