package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. It is the development and
// test backend and the fallback when neither Scylla nor Redis is
// configured. All methods copy sessions in and out so callers cannot
// mutate stored state.
type MemoryStore struct {
	mu      sync.Mutex
	byToken map[string]*Session
	idToken map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byToken: make(map[string]*Session),
		idToken: make(map[string]string),
	}
}

func (m *MemoryStore) Insert(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.byToken[s.Token] = &cp
	m.idToken[s.ID] = s.Token
	return nil
}

func (m *MemoryStore) TouchIfValid(ctx context.Context, token string, now time.Time, policy LifetimePolicy) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byToken[token]
	if !ok || !s.ValidAt(now) {
		return nil, ErrNotFound
	}

	s.ExpiresAt = now.Add(policy.TTLFor(s.Kind))
	s.LastActivityAt = now

	cp := *s
	return &cp, nil
}

func (m *MemoryStore) DeleteByToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byToken[token]; ok {
		delete(m.idToken, s.ID)
		delete(m.byToken, token)
	}
	return nil
}

func (m *MemoryStore) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.idToken[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byToken, token)
	delete(m.idToken, id)
	return nil
}

func (m *MemoryStore) DeleteForPrincipal(ctx context.Context, principalID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for token, s := range m.byToken {
		if s.PrincipalID == principalID && principalID != "" {
			delete(m.byToken, token)
			delete(m.idToken, s.ID)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for token, s := range m.byToken {
		if !s.ValidAt(now) {
			delete(m.byToken, token)
			delete(m.idToken, s.ID)
			removed++
		}
	}
	return removed, nil
}
