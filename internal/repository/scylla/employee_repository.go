package scylla

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"

	"repairshop-api/internal/employee"
	"repairshop-api/internal/util"
)

// EmployeeRepository persists the roster in the employees table. Creates
// and updates go through lightweight transactions so a duplicate ID or a
// vanished row is detected at the database rather than papered over.
type EmployeeRepository struct {
	client *ScyllaClient
}

func NewEmployeeRepository(client *ScyllaClient) *EmployeeRepository {
	return &EmployeeRepository{client: client}
}

func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) error {
	q := r.client.Prepared.CreateEmployee.
		Bind(e.ID, e.Name, e.Active, e.PINDigest, e.CreatedAt, e.UpdatedAt).
		WithContext(ctx)

	applied, err := q.MapScanCAS(map[string]interface{}{})
	if err != nil {
		util.Error("failed to create employee",
			util.String("employee_id", e.ID),
			util.ErrorField(err))
		return fmt.Errorf("failed to create employee: %w", err)
	}
	if !applied {
		return employee.ErrDuplicate
	}
	return nil
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (*employee.Employee, error) {
	var e employee.Employee
	err := r.client.Prepared.GetEmployeeByID.Bind(id).WithContext(ctx).
		Scan(&e.ID, &e.Name, &e.Active, &e.PINDigest, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, employee.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read employee: %w", err)
	}
	return &e, nil
}

func (r *EmployeeRepository) List(ctx context.Context) ([]*employee.Employee, error) {
	iter := r.client.Prepared.ListEmployees.WithContext(ctx).Iter()

	var out []*employee.Employee
	var e employee.Employee
	for iter.Scan(&e.ID, &e.Name, &e.Active, &e.PINDigest, &e.CreatedAt, &e.UpdatedAt) {
		cp := e
		out = append(out, &cp)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *EmployeeRepository) SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	q := r.client.Prepared.SetEmployeeActive.
		Bind(active, updatedAt, id).
		WithContext(ctx)

	applied, err := q.MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("failed to update employee status: %w", err)
	}
	if !applied {
		return employee.ErrNotFound
	}
	return nil
}

func (r *EmployeeRepository) SetPINDigest(ctx context.Context, id, digest string, updatedAt time.Time) error {
	q := r.client.Prepared.SetEmployeeDigest.
		Bind(digest, updatedAt, id).
		WithContext(ctx)

	applied, err := q.MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("failed to update employee PIN digest: %w", err)
	}
	if !applied {
		return employee.ErrNotFound
	}
	return nil
}

// AdminCredentialStore reads the administrator digest out of the
// admin_credentials table. The AUTH_ADMIN_PIN_DIGEST environment override
// takes precedence in the factory; this is the durable fallback.
type AdminCredentialStore struct {
	client *ScyllaClient
}

func NewAdminCredentialStore(client *ScyllaClient) *AdminCredentialStore {
	return &AdminCredentialStore{client: client}
}

func (r *AdminCredentialStore) Get(ctx context.Context) (string, error) {
	var digest string
	err := r.client.Prepared.GetAdminDigest.Bind("admin").WithContext(ctx).Scan(&digest)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read admin credential: %w", err)
	}
	return digest, nil
}

func (r *AdminCredentialStore) Set(ctx context.Context, digest string) error {
	q := r.client.Prepared.SetAdminDigest.Bind("admin", digest).WithContext(ctx)
	if err := q.Exec(); err != nil {
		return fmt.Errorf("failed to store admin credential: %w", err)
	}
	return nil
}
