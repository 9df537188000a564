package github

import (
	"errors"
	"fmt"
)

// Common errors returned by the GitHub client.
//
// These can be checked with errors.Is():
//
//	if errors.Is(err, github.ErrConflict) {
//	    // re-read the revision and retry the write
//	}
var (
	// ErrNotFound is returned when the repository or file does not exist.
	// For document reads this is an expected state: the first publish
	// creates the file.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional write was rejected because
	// the supplied revision (sha) is stale.
	ErrConflict = errors.New("revision conflict")

	// ErrUnauthorized is returned when the token is invalid or expired.
	ErrUnauthorized = errors.New("invalid or expired token")

	// ErrForbidden is returned when the token lacks permission for the
	// operation.
	ErrForbidden = errors.New("insufficient permissions")
)

// StatusError carries a non-success HTTP status that does not map to one of
// the sentinel errors, along with the API's message when one was returned.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("github: %s (status %d)", e.Message, e.StatusCode)
}

// IsRetryable returns true if the error is likely to succeed on retry.
// Stale-revision conflicts always are; server-side errors usually clear.
// Authentication and not-found errors never do.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrConflict) {
		return true
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotFound) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}

	// Transport-level failures (timeouts, resets) are worth another attempt.
	return true
}
