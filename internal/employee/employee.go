// Package employee holds the staff roster: the people who log in with an
// employee ID and PIN and appear in ticket attribution fields.
package employee

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("employee: not found")
	ErrDuplicate = errors.New("employee: ID already exists")
)

// Employee is one roster entry. PINDigest is the Argon2id digest of the
// login PIN; the PIN itself is never stored. Deactivated employees stay
// on the roster so old tickets keep their attribution.
type Employee struct {
	ID        string    `json:"employee_id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	PINDigest string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists the roster.
type Repository interface {
	Create(ctx context.Context, e *Employee) error
	GetByID(ctx context.Context, id string) (*Employee, error)
	List(ctx context.Context) ([]*Employee, error)
	SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error
	SetPINDigest(ctx context.Context, id, digest string, updatedAt time.Time) error
}
