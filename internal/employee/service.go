package employee

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"repairshop-api/internal/clock"
	"repairshop-api/internal/pinhash"
	"repairshop-api/internal/session"
	"repairshop-api/internal/util"
)

// Service runs roster management on behalf of the administrator. PIN
// resets and deactivations revoke the employee's live sessions so the
// change takes effect immediately, not at next login.
type Service struct {
	repo     Repository
	hasher   *pinhash.Hasher
	sessions *session.Manager
	clock    clock.Clock
}

func NewService(repo Repository, hasher *pinhash.Hasher, sessions *session.Manager, clk clock.Clock) *Service {
	return &Service{
		repo:     repo,
		hasher:   hasher,
		sessions: sessions,
		clock:    clk,
	}
}

// Create adds an employee with a fresh ID and the given starting PIN.
func (s *Service) Create(ctx context.Context, name, pin string) (*Employee, error) {
	digest, err := s.hasher.Hash(pin)
	if err != nil {
		return nil, fmt.Errorf("failed to hash PIN: %w", err)
	}

	now := s.clock.Now()
	e := &Employee{
		ID:        uuid.New().String(),
		Name:      name,
		Active:    true,
		PINDigest: digest,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	util.Info("employee created", util.String("employee_id", e.ID))
	return e, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Employee, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Employee, error) {
	return s.repo.List(ctx)
}

// Deactivate removes an employee's ability to log in and revokes every
// session they currently hold.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.SetActive(ctx, id, false, s.clock.Now()); err != nil {
		return err
	}

	revoked, err := s.sessions.RevokeAllForPrincipal(ctx, id)
	if err != nil {
		return fmt.Errorf("employee deactivated but session revocation failed: %w", err)
	}

	util.Info("employee deactivated",
		util.String("employee_id", id),
		util.Int("sessions_revoked", revoked))
	return nil
}

// Reactivate restores login access. Old sessions were revoked at
// deactivation, so the employee starts clean.
func (s *Service) Reactivate(ctx context.Context, id string) error {
	return s.repo.SetActive(ctx, id, true, s.clock.Now())
}

// ResetPIN replaces the stored digest and revokes the employee's live
// sessions, since the old PIN may have leaked.
func (s *Service) ResetPIN(ctx context.Context, id, newPIN string) error {
	digest, err := s.hasher.Hash(newPIN)
	if err != nil {
		return fmt.Errorf("failed to hash PIN: %w", err)
	}
	if err := s.repo.SetPINDigest(ctx, id, digest, s.clock.Now()); err != nil {
		return err
	}

	revoked, err := s.sessions.RevokeAllForPrincipal(ctx, id)
	if err != nil {
		return fmt.Errorf("PIN reset but session revocation failed: %w", err)
	}

	util.Info("employee PIN reset",
		util.String("employee_id", id),
		util.Int("sessions_revoked", revoked))
	return nil
}

// AdminDigestFunc resolves the administrator's stored PIN digest.
type AdminDigestFunc func(ctx context.Context) (string, error)

// StaticAdminDigest serves a digest fixed at startup, for deployments
// that bootstrap the admin credential from the environment.
func StaticAdminDigest(digest string) AdminDigestFunc {
	return func(ctx context.Context) (string, error) {
		return digest, nil
	}
}

// Credentials adapts the roster and an admin digest source into the
// credential lookups the login pipeline needs.
type Credentials struct {
	repo  Repository
	admin AdminDigestFunc
}

func NewCredentials(repo Repository, admin AdminDigestFunc) *Credentials {
	return &Credentials{repo: repo, admin: admin}
}

func (c *Credentials) AdminPINDigest(ctx context.Context) (string, error) {
	if c.admin == nil {
		return "", nil
	}
	return c.admin(ctx)
}

func (c *Credentials) EmployeePINDigest(ctx context.Context, employeeID string) (string, bool, bool, error) {
	e, err := c.repo.GetByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, false, nil
		}
		return "", false, false, err
	}
	return e.PINDigest, e.Active, true, nil
}
