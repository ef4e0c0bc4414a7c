// Package authz decides what an authenticated principal may do. Roles map
// to permission sets through a static table; ticket ownership adds a
// per-resource rule on top.
package authz

// Role is the coarse access level attached to a principal.
type Role string

const (
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// Permission is a closed enumeration of the actions the API exposes.
type Permission string

const (
	PermCreateTicket    Permission = "create-ticket"
	PermViewTicket      Permission = "view-ticket"
	PermModifyOwnTicket Permission = "modify-own-ticket"
	PermModifyAnyTicket Permission = "modify-any-ticket"
	PermAddNotes        Permission = "add-notes"
	PermUploadPhotos    Permission = "upload-photos"
	PermDeletePhotos    Permission = "delete-photos"
	PermCloseAnyTicket  Permission = "close-any-ticket"
	PermManageEmployees Permission = "manage-employees"
	PermManageSettings  Permission = "manage-settings"
	PermManageLocations Permission = "manage-locations"
)

// AllPermissions returns every permission in the enumeration.
func AllPermissions() []Permission {
	return []Permission{
		PermCreateTicket,
		PermViewTicket,
		PermModifyOwnTicket,
		PermModifyAnyTicket,
		PermAddNotes,
		PermUploadPhotos,
		PermDeletePhotos,
		PermCloseAnyTicket,
		PermManageEmployees,
		PermManageSettings,
		PermManageLocations,
	}
}

// staffPermissions is the fixed grant set for the Staff role. Admin is not
// listed here: it implicitly holds every permission.
var staffPermissions = map[Permission]struct{}{
	PermCreateTicket:    {},
	PermViewTicket:      {},
	PermModifyOwnTicket: {},
	PermAddNotes:        {},
	PermUploadPhotos:    {},
}

// HasPermission reports whether role holds the given permission under the
// static role table.
func HasPermission(role Role, perm Permission) bool {
	if role == RoleAdmin {
		return true
	}
	_, ok := staffPermissions[perm]
	return ok
}

// CanCloseTicket reports whether role may close a ticket. Closing is an
// invariant business rule reserved to the administrator, independent of
// the permission table.
func CanCloseTicket(role Role) bool {
	return role == RoleAdmin
}

// CanDeletePhoto reports whether role may delete an uploaded photo.
// Reserved to the administrator, independent of the permission table.
func CanDeletePhoto(role Role) bool {
	return role == RoleAdmin
}
