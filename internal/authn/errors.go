package authn

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredential covers every login rejection the client is
	// allowed to learn about: unknown employee, inactive employee, wrong
	// PIN. One error, one message, no enumeration.
	ErrInvalidCredential = errors.New("authn: invalid credentials")

	// ErrMalformedStoredHash reports a credential row whose digest cannot
	// be verified. This is an operational fault, not a client mistake, and
	// it never counts as a login failure.
	ErrMalformedStoredHash = errors.New("authn: stored credential digest is malformed")

	// ErrSessionInvalid covers missing, unknown and expired tokens alike.
	ErrSessionInvalid = errors.New("authn: session invalid")
)

// RateLimitedError signals that the attempt was refused before any
// credential was examined, with the wait the client must observe.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("authn: rate limited, retry after %ds", e.RetryAfterSeconds)
}
