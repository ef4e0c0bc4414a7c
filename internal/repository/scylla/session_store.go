package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"repairshop-api/internal/session"
	"repairshop-api/internal/util"
)

// touchRetries bounds the compare-and-set loop when concurrent requests
// race to extend the same session.
const touchRetries = 3

// SessionStore keeps sessions in two ScyllaDB tables: sessions_by_token
// for the hot lookup path and session_tokens_by_id for revocation by ID
// or principal. The sliding-expiration touch is a lightweight transaction
// on expires_at, so a row that expired between read and write is never
// revived.
type SessionStore struct {
	client *ScyllaClient
}

func NewSessionStore(client *ScyllaClient) *SessionStore {
	return &SessionStore{client: client}
}

func (r *SessionStore) Insert(ctx context.Context, s *session.Session) error {
	batch := r.client.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)

	batch.Query(r.client.Prepared.InsertSession.Statement(),
		s.Token, s.ID, string(s.Kind), s.PrincipalID,
		s.CreatedAt, s.ExpiresAt, s.LastActivityAt)

	batch.Query(r.client.Prepared.InsertPrincipalIndex.Statement(),
		s.ID, s.Token, s.PrincipalID)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		util.Error("failed to insert session",
			util.String("session_id", s.ID),
			util.ErrorField(err))
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *SessionStore) TouchIfValid(ctx context.Context, token string, now time.Time, policy session.LifetimePolicy) (*session.Session, error) {
	for attempt := 0; attempt < touchRetries; attempt++ {
		s, err := r.getByToken(ctx, token)
		if err != nil {
			return nil, err
		}
		if !s.ValidAt(now) {
			return nil, session.ErrNotFound
		}

		newExpiry := now.Add(policy.TTLFor(s.Kind))
		q := r.client.Prepared.TouchSession.
			Bind(newExpiry, now, token, s.ExpiresAt).
			WithContext(ctx)

		var currentExpiry time.Time
		applied, err := q.ScanCAS(&currentExpiry)
		if err != nil {
			return nil, fmt.Errorf("failed to touch session: %w", err)
		}
		if applied {
			s.ExpiresAt = newExpiry
			s.LastActivityAt = now
			return s, nil
		}
		// Another request extended the row first; re-read and retry.
	}
	return nil, fmt.Errorf("session touch contention on token")
}

func (r *SessionStore) getByToken(ctx context.Context, token string) (*session.Session, error) {
	var (
		s    session.Session
		kind string
	)
	err := r.client.Prepared.GetSessionByToken.Bind(token).WithContext(ctx).
		Scan(&s.Token, &s.ID, &kind, &s.PrincipalID,
			&s.CreatedAt, &s.ExpiresAt, &s.LastActivityAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	s.Kind = session.Kind(kind)
	return &s, nil
}

func (r *SessionStore) DeleteByToken(ctx context.Context, token string) error {
	s, err := r.getByToken(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return err
	}
	return r.deleteRows(ctx, token, s.ID)
}

func (r *SessionStore) DeleteByID(ctx context.Context, id string) error {
	var token string
	err := r.client.Prepared.GetTokenByID.Bind(id).WithContext(ctx).Scan(&token)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return session.ErrNotFound
		}
		return fmt.Errorf("failed to resolve session ID: %w", err)
	}
	return r.deleteRows(ctx, token, id)
}

func (r *SessionStore) DeleteForPrincipal(ctx context.Context, principalID string) (int, error) {
	if principalID == "" {
		return 0, nil
	}

	iter := r.client.Prepared.GetTokensForPrincipal.Bind(principalID).
		WithContext(ctx).Iter()

	type row struct{ id, token string }
	var rows []row
	var id, token string
	for iter.Scan(&id, &token) {
		rows = append(rows, row{id: id, token: token})
	}
	if err := iter.Close(); err != nil {
		return 0, fmt.Errorf("failed to list sessions for principal: %w", err)
	}

	removed := 0
	for _, rw := range rows {
		if err := r.deleteRows(ctx, rw.token, rw.id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (r *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	iter := r.client.Prepared.ScanSessions.WithContext(ctx).Iter()

	type row struct{ token, id string }
	var dead []row
	var (
		token, id string
		expiresAt time.Time
	)
	for iter.Scan(&token, &id, &expiresAt) {
		if now.After(expiresAt) {
			dead = append(dead, row{token: token, id: id})
		}
	}
	if err := iter.Close(); err != nil {
		return 0, fmt.Errorf("failed to scan sessions: %w", err)
	}

	removed := 0
	for _, rw := range dead {
		if err := r.deleteRows(ctx, rw.token, rw.id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (r *SessionStore) deleteRows(ctx context.Context, token, id string) error {
	batch := r.client.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(r.client.Prepared.DeleteSessionByToken.Statement(), token)
	batch.Query(r.client.Prepared.DeletePrincipalIndex.Statement(), id)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
