package authn

import (
	"context"
	"sync"
)

// CredentialSource resolves stored PIN digests. Implementations live in
// the repository layer; the in-memory one below backs tests and
// single-binary development runs.
type CredentialSource interface {
	// AdminPINDigest returns the administrator's stored digest, or ""
	// when no admin credential is configured.
	AdminPINDigest(ctx context.Context) (string, error)

	// EmployeePINDigest returns the digest and active flag for an
	// employee. A missing employee is reported as found=false, not as an
	// error.
	EmployeePINDigest(ctx context.Context, employeeID string) (digest string, active bool, found bool, err error)
}

// MemoryCredentials is a map-backed CredentialSource.
type MemoryCredentials struct {
	mu        sync.RWMutex
	admin     string
	employees map[string]memoryEmployee
}

type memoryEmployee struct {
	digest string
	active bool
}

func NewMemoryCredentials(adminDigest string) *MemoryCredentials {
	return &MemoryCredentials{
		admin:     adminDigest,
		employees: make(map[string]memoryEmployee),
	}
}

func (m *MemoryCredentials) SetEmployee(employeeID, digest string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[employeeID] = memoryEmployee{digest: digest, active: active}
}

func (m *MemoryCredentials) AdminPINDigest(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.admin, nil
}

func (m *MemoryCredentials) EmployeePINDigest(ctx context.Context, employeeID string) (string, bool, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emp, ok := m.employees[employeeID]
	if !ok {
		return "", false, false, nil
	}
	return emp.digest, emp.active, true, nil
}
