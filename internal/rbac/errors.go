package rbac

import "net/http"

// Error is a domain sentinel carrying its HTTP surface. Validation errors are
// detected before any write and returned to the caller; store failures are
// wrapped with %w so callers can still reach the driver error.
type Error struct {
	msg    string
	title  string
	status int
}

func (e *Error) Error() string { return e.msg }

// Title is the RFC7807 problem title for this sentinel.
func (e *Error) Title() string { return e.title }

// HTTPStatus is the response status for this sentinel.
func (e *Error) HTTPStatus() int { return e.status }

// Engine error taxonomy.
var (
	// ErrUnknownPermission indicates a key absent from the registry (and not
	// the wildcard sentinel where the wildcard is legal).
	ErrUnknownPermission = &Error{"rbac: unknown permission", "Unknown Permission", http.StatusBadRequest}
	// ErrInvalidModule indicates a module outside the closed enumeration.
	ErrInvalidModule = &Error{"rbac: invalid module", "Invalid Module", http.StatusBadRequest}
	// ErrDuplicateSlug indicates a (slug, organization) collision.
	ErrDuplicateSlug = &Error{"rbac: duplicate role slug", "Duplicate Slug", http.StatusConflict}
	// ErrDuplicateKey indicates the permission key is already registered.
	ErrDuplicateKey = &Error{"rbac: duplicate permission key", "Duplicate Permission", http.StatusConflict}
	// ErrDuplicateAssignment indicates an active (user, role, organization)
	// triple already exists.
	ErrDuplicateAssignment = &Error{"rbac: duplicate assignment", "Duplicate Assignment", http.StatusConflict}
	// ErrForbidden indicates an action the actor's capabilities do not allow,
	// such as editing a system role without the super capability.
	ErrForbidden = &Error{"rbac: forbidden", "Forbidden", http.StatusForbidden}
	// ErrNotFound indicates a role, assignment or permission lookup miss.
	ErrNotFound = &Error{"rbac: not found", "Not Found", http.StatusNotFound}
	// ErrPermissionInUse blocks deleting a permission still referenced by a role.
	ErrPermissionInUse = &Error{"rbac: permission in use", "Permission In Use", http.StatusConflict}
)
