package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"repairshop-api/internal/clock"
)

// Manager issues, refreshes and revokes sessions on top of a Store.
type Manager struct {
	store  Store
	policy LifetimePolicy
	clock  clock.Clock
}

func NewManager(store Store, policy LifetimePolicy, clk clock.Clock) *Manager {
	return &Manager{
		store:  store,
		policy: policy,
		clock:  clk,
	}
}

// Create mints a session of the given kind. Employee sessions must carry
// the employee's ID; the admin session must not, since the administrator
// is a single role-level principal.
func (m *Manager) Create(ctx context.Context, kind Kind, principalID string) (*Session, error) {
	switch kind {
	case KindEmployee:
		if principalID == "" {
			return nil, errors.New("employee session requires a principal ID")
		}
	case KindAdmin:
		if principalID != "" {
			return nil, errors.New("admin session must not carry a principal ID")
		}
	default:
		return nil, fmt.Errorf("unknown session kind %q", kind)
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	s := &Session{
		ID:             uuid.New().String(),
		Kind:           kind,
		PrincipalID:    principalID,
		Token:          token,
		CreatedAt:      now,
		ExpiresAt:      now.Add(m.policy.TTLFor(kind)),
		LastActivityAt: now,
	}

	if err := m.store.Insert(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return s, nil
}

// VerifyAndTouch resolves token to a live session and slides its expiry
// forward in the same atomic step. Unknown and expired tokens both come
// back as ErrNotFound.
func (m *Manager) VerifyAndTouch(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return m.store.TouchIfValid(ctx, token, m.clock.Now(), m.policy)
}

// Delete revokes the session holding token. Revoking an already absent
// token succeeds.
func (m *Manager) Delete(ctx context.Context, token string) error {
	return m.store.DeleteByToken(ctx, token)
}

// DeleteByID revokes a session by its ID, for administrative teardown.
func (m *Manager) DeleteByID(ctx context.Context, id string) error {
	return m.store.DeleteByID(ctx, id)
}

// RevokeAllForPrincipal tears down every session an employee holds, used
// when the employee is deactivated or their PIN is reset.
func (m *Manager) RevokeAllForPrincipal(ctx context.Context, principalID string) (int, error) {
	return m.store.DeleteForPrincipal(ctx, principalID)
}

// DeleteExpired sweeps rows whose expiry has passed. Expired sessions are
// already unusable before the sweep; this only reclaims storage.
func (m *Manager) DeleteExpired(ctx context.Context) (int, error) {
	return m.store.DeleteExpired(ctx, m.clock.Now())
}

// Policy exposes the lifetime policy so storage backends wired elsewhere
// can share it.
func (m *Manager) Policy() LifetimePolicy {
	return m.policy
}
