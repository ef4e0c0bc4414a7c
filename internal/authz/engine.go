package authz

// Principal identifies the authenticated actor. The administrator is a
// single principal with no employee ID; employees carry theirs.
type Principal struct {
	EmployeeID string
	Role       Role
}

// Resource is anything access can be evaluated against. Tickets expose
// their two attribution fields; ownership is derived from them, never
// stored.
type Resource interface {
	Attribution() (takenInBy, workedBy string)
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

const (
	ReasonMissingPermission = "missing permission"
	ReasonNotOwner          = "not owner"
	ReasonAdminOnly         = "admin only"
)

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Engine evaluates role and ownership rules. It is stateless; a single
// instance is shared across requests.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Authorize evaluates whether principal may apply perm to resource.
// Admin is always allowed. Closing tickets and deleting photos are
// checked through their dedicated predicates rather than the permission
// table. modify-own-ticket additionally requires ownership; resource may
// be nil for permissions that carry no ownership rule.
func (e *Engine) Authorize(principal Principal, resource Resource, perm Permission) Decision {
	if principal.Role == RoleAdmin {
		return allow()
	}

	switch perm {
	case PermCloseAnyTicket:
		if !CanCloseTicket(principal.Role) {
			return deny(ReasonAdminOnly)
		}
	case PermDeletePhotos:
		if !CanDeletePhoto(principal.Role) {
			return deny(ReasonAdminOnly)
		}
	}

	if !HasPermission(principal.Role, perm) {
		return deny(ReasonMissingPermission)
	}

	if perm == PermModifyOwnTicket {
		if resource == nil || !isOwner(principal, resource) {
			return deny(ReasonNotOwner)
		}
	}

	return allow()
}

// isOwner reports whether principal appears in either attribution field.
func isOwner(principal Principal, resource Resource) bool {
	if principal.EmployeeID == "" {
		return false
	}
	takenInBy, workedBy := resource.Attribution()
	return principal.EmployeeID == takenInBy || principal.EmployeeID == workedBy
}
