package rbac

import (
	"sort"
	"time"
)

// WildcardKey is the storage sentinel meaning "every permission the registry
// currently knows". It only appears at persistence and API boundaries; inside
// the engine the wildcard is carried by Grant.All.
const WildcardKey = "*"

// Module partitions the permission catalog. It groups keys for admin UIs and
// filtering; it never participates in authorization decisions.
type Module string

const (
	ModuleGlobal Module = "global"
	ModuleCRM    Module = "crm"
	ModuleHRMS   Module = "hrms"
	ModuleERP    Module = "erp"

	// ModuleAll is accepted by list operations only.
	ModuleAll Module = "all"
)

// Modules enumerates every valid module in declaration order.
var Modules = []Module{ModuleGlobal, ModuleCRM, ModuleHRMS, ModuleERP}

// ParseModule validates a module string from an API or catalog boundary.
func ParseModule(raw string) (Module, error) {
	for _, m := range Modules {
		if string(m) == raw {
			return m, nil
		}
	}
	return "", ErrInvalidModule
}

// Permission represents an atomic capability, keyed `<module>.<resource>.<action>`.
type Permission struct {
	ID          int64
	Key         string
	Module      Module
	Resource    string
	Action      string
	Description string
	IsSystem    bool
	CreatedAt   time.Time
}

// Grant describes the permission set a role confers, or the extra set an
// assignment adds on top of its role. The wildcard is a tagged case, not a
// key comparison, so "all currently known permissions" stays an explicit
// branch everywhere the grant is consumed.
type Grant struct {
	All  bool
	Keys []string
}

// GrantAll returns the wildcard grant.
func GrantAll() Grant { return Grant{All: true} }

// GrantKeys returns a grant over the given specific keys.
func GrantKeys(keys ...string) Grant { return Grant{Keys: keys} }

// GrantFromKeys interprets a raw key list from storage or an API payload.
// A list containing the wildcard sentinel collapses to the wildcard grant.
func GrantFromKeys(keys []string) Grant {
	for _, k := range keys {
		if k == WildcardKey {
			return GrantAll()
		}
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return Grant{Keys: out}
}

// RawKeys renders the grant back to its storage form.
func (g Grant) RawKeys() []string {
	if g.All {
		return []string{WildcardKey}
	}
	out := make([]string, len(g.Keys))
	copy(out, g.Keys)
	return out
}

// IsEmpty reports whether the grant confers nothing.
func (g Grant) IsEmpty() bool { return !g.All && len(g.Keys) == 0 }

// Role is a named bundle of permissions, either system-defined
// (OrganizationID nil) or private to one tenant.
type Role struct {
	ID             int64
	Name           string
	Slug           string
	Module         Module
	Description    string
	Grant          Grant
	OrganizationID *int64
	IsSystem       bool
	IsActive       bool
	CreatedBy      *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SystemManaged reports whether the role is a built-in system role, which
// only a super-privileged actor may edit or delete.
func (r Role) SystemManaged() bool {
	return r.IsSystem && r.OrganizationID == nil
}

// Assignment binds a user to a role inside one tenant, optionally
// time-bounded and optionally carrying per-user grant overrides.
type Assignment struct {
	ID             int64
	UserID         int64
	RoleID         int64
	OrganizationID int64
	GrantedBy      *int64
	ExpiresAt      *time.Time
	// Branch is persisted for future sub-tenant partitioning but is never
	// read during evaluation.
	Branch    *string
	Extra     Grant
	Revoked   []string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LiveAt reports whether the assignment contributes to evaluation at the
// given instant. Expired or soft-revoked rows stay stored for audit.
func (a Assignment) LiveAt(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// PermissionSet is the computed effective set for one (user, organization).
type PermissionSet map[string]struct{}

// Has reports membership of a single key.
func (s PermissionSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Sorted returns the keys in lexical order for stable rendering.
func (s PermissionSet) Sorted() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
