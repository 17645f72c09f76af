package rbac

import "time"

// EffectiveSet reduces a user's assignments to their effective permission set
// for one organization at one instant. It is a pure function of its inputs;
// store access and caching live in Service.
//
// Per assignment: an inactive or expired row contributes nothing; a missing,
// inactive or foreign-tenant role contributes nothing; a wildcard on the role
// or on the assignment's extra grant expands to every key known to the
// registry right now; the assignment's revoked keys are subtracted last, so
// revocation wins even against that same assignment's wildcard. Results are
// unioned across assignments, so a revocation on one assignment never
// suppresses a grant arriving through another.
func EffectiveSet(now time.Time, known []string, assignments []Assignment, roles map[int64]Role) PermissionSet {
	effective := make(PermissionSet)
	for _, a := range assignments {
		if !a.LiveAt(now) {
			continue
		}
		role, ok := roles[a.RoleID]
		if !ok || !role.IsActive {
			continue
		}
		// Scoping integrity: never trust a role belonging to a different
		// tenant, however the reference came to exist.
		if role.OrganizationID != nil && *role.OrganizationID != a.OrganizationID {
			continue
		}

		candidate := make(map[string]struct{})
		if role.Grant.All || a.Extra.All {
			for _, k := range known {
				candidate[k] = struct{}{}
			}
		} else {
			for _, k := range role.Grant.Keys {
				candidate[k] = struct{}{}
			}
			for _, k := range a.Extra.Keys {
				candidate[k] = struct{}{}
			}
		}
		for _, k := range a.Revoked {
			delete(candidate, k)
		}
		for k := range candidate {
			effective[k] = struct{}{}
		}
	}
	return effective
}
