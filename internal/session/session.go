// Package session issues and validates the opaque bearer tokens that
// authenticate requests. One Session entity covers both principal kinds;
// they differ only in default lifetime and in whether a principal ID is
// bound.
package session

import (
	"time"
)

// Kind tags which principal a session authenticates.
type Kind string

const (
	KindAdmin    Kind = "admin"
	KindEmployee Kind = "employee"
)

// Session is one active login. Token is populated only on the Session
// returned from Create; it is never read back out of storage APIs that
// list or introspect sessions.
type Session struct {
	ID             string    `json:"session_id"`
	Kind           Kind      `json:"kind"`
	PrincipalID    string    `json:"principal_id,omitempty"`
	Token          string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// ValidAt reports whether the session is live at the given instant.
func (s *Session) ValidAt(now time.Time) bool {
	return !now.After(s.ExpiresAt)
}

// LifetimePolicy holds the sliding-expiration duration per session kind.
type LifetimePolicy struct {
	AdminTTL    time.Duration
	EmployeeTTL time.Duration
}

// DefaultLifetimePolicy returns the shipped lifetimes: administrators get
// a short leash, employees a full shift.
func DefaultLifetimePolicy() LifetimePolicy {
	return LifetimePolicy{
		AdminTTL:    30 * time.Minute,
		EmployeeTTL: 8 * time.Hour,
	}
}

// TTLFor returns the sliding-expiration duration for a session kind.
func (p LifetimePolicy) TTLFor(kind Kind) time.Duration {
	if kind == KindAdmin {
		return p.AdminTTL
	}
	return p.EmployeeTTL
}
