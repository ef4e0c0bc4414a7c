package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for tokens and IDs that do not resolve to a
// live session. Expired sessions are reported identically to missing
// ones; callers never learn which.
var ErrNotFound = errors.New("session: not found")

// Store persists session rows. Implementations must look tokens up by
// exact match only, and TouchIfValid must perform its read-then-extend as
// one atomic operation so two concurrent touches of the same session
// cannot lose an update.
type Store interface {
	// Insert persists a new session row.
	Insert(ctx context.Context, s *Session) error

	// TouchIfValid extends the session identified by token when it is
	// still valid at now, setting expires_at to now plus the kind's
	// policy duration and last_activity_at to now. Returns the refreshed
	// session, or ErrNotFound if the token is unknown or expired. An
	// expired row must never be treated as valid, even within the same
	// call.
	TouchIfValid(ctx context.Context, token string, now time.Time, policy LifetimePolicy) (*Session, error)

	// DeleteByToken removes the session for token. Missing tokens are
	// not an error.
	DeleteByToken(ctx context.Context, token string) error

	// DeleteByID removes the session with the given ID.
	DeleteByID(ctx context.Context, id string) error

	// DeleteForPrincipal removes every session bound to principalID and
	// returns how many were removed.
	DeleteForPrincipal(ctx context.Context, principalID string) (int, error)

	// DeleteExpired removes sessions whose expires_at is before now and
	// returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
