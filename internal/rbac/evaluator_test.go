package rbac

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testKnown = []string{
	"crm.leads.view",
	"crm.deals.approve",
	"erp.invoices.view",
	"hrms.payroll.process",
}

func orgPtr(id int64) *int64 { return &id }

func TestEffectiveSetDenyByDefault(t *testing.T) {
	set := EffectiveSet(time.Now(), testKnown, nil, nil)
	require.Empty(t, set)
}

func TestEffectiveSetRevokeBeatsGrant(t *testing.T) {
	roles := map[int64]Role{
		1: {ID: 1, IsActive: true, Grant: GrantKeys("crm.leads.view", "crm.deals.approve")},
	}
	assignments := []Assignment{
		{RoleID: 1, OrganizationID: 7, IsActive: true, Revoked: []string{"crm.deals.approve"}},
	}
	set := EffectiveSet(time.Now(), testKnown, assignments, roles)
	require.True(t, set.Has("crm.leads.view"))
	require.False(t, set.Has("crm.deals.approve"))
	require.Len(t, set, 1)
}

func TestEffectiveSetWildcardTracksRegistry(t *testing.T) {
	roles := map[int64]Role{
		1: {ID: 1, IsActive: true, Grant: GrantAll()},
	}
	assignments := []Assignment{
		{RoleID: 1, OrganizationID: 7, IsActive: true},
	}
	set := EffectiveSet(time.Now(), testKnown, assignments, roles)
	require.Len(t, set, len(testKnown))

	// A key added to the registry after the grant flows to wildcard
	// holders with no change to role or assignment records.
	grown := append(append([]string{}, testKnown...), "erp.vendors.manage")
	set = EffectiveSet(time.Now(), grown, assignments, roles)
	require.True(t, set.Has("erp.vendors.manage"))
}

func TestEffectiveSetRevokeBeatsSameAssignmentWildcard(t *testing.T) {
	roles := map[int64]Role{
		1: {ID: 1, IsActive: true, Grant: GrantAll()},
	}
	assignments := []Assignment{
		{RoleID: 1, OrganizationID: 7, IsActive: true, Revoked: []string{"hrms.payroll.process"}},
	}
	set := EffectiveSet(time.Now(), testKnown, assignments, roles)
	require.False(t, set.Has("hrms.payroll.process"))
	require.Len(t, set, len(testKnown)-1)
}

func TestEffectiveSetWildcardInExtraGrant(t *testing.T) {
	roles := map[int64]Role{
		1: {ID: 1, IsActive: true, Grant: GrantKeys("crm.leads.view")},
	}
	assignments := []Assignment{
		{RoleID: 1, OrganizationID: 7, IsActive: true, Extra: GrantAll()},
	}
	set := EffectiveSet(time.Now(), testKnown, assignments, roles)
	require.Len(t, set, len(testKnown))
}

func TestEffectiveSetUnionAcrossAssignments(t *testing.T) {
	roles := map[int64]Role{
		1: {ID: 1, IsActive: true, Grant: GrantKeys("crm.leads.view")},
		2: {ID: 2, IsActive: true, Grant: GrantKeys("erp.invoices.view")},
	}
	assignments := []Assignment{
		{RoleID: 1, OrganizationID: 7, IsActive: true},
		{RoleID: 2, OrganizationID: 7, IsActive: true},
	}
	set := EffectiveSet(time.Now(), testKnown, assignments, roles)
	require.True(t, set.Has("crm.leads.view"))
	require.True(t, set.Has("erp.invoices.view"))
}

func TestEffectiveSetRevocationIsPerAssignment(t *testing.T) {
	// Both roles grant the same key; only one assignment revokes it, so the
	// other assignment still supplies it.
	roles := map[int64]Role{
		1: {ID: 1, IsActive: true, Grant: GrantKeys("crm.leads.view")},
		2: {ID: 2, IsActive: true, Grant: GrantKeys("crm.leads.view", "erp.invoices.view")},
	}
	assignments := []Assignment{
		{RoleID: 1, OrganizationID: 7, IsActive: true, Revoked: []string{"crm.leads.view"}},
		{RoleID: 2, OrganizationID: 7, IsActive: true},
	}
	set := EffectiveSet(time.Now(), testKnown, assignments, roles)
	require.True(t, set.Has("crm.leads.view"))
}

func TestEffectiveSetExpiry(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	roles := map[int64]Role{
		1: {ID: 1, IsActive: true, Grant: GrantKeys("crm.leads.view")},
		2: {ID: 2, IsActive: true, Grant: GrantKeys("erp.invoices.view")},
	}
	assignments := []Assignment{
		{RoleID: 1, OrganizationID: 7, IsActive: true, ExpiresAt: &past},
		{RoleID: 2, OrganizationID: 7, IsActive: true, ExpiresAt: &future},
	}
	set := EffectiveSet(now, testKnown, assignments, roles)
	require.False(t, set.Has("crm.leads.view"))
	require.True(t, set.Has("erp.invoices.view"))
}

func TestEffectiveSetSkipsInactiveAndMissingRoles(t *testing.T) {
	roles := map[int64]Role{
		1: {ID: 1, IsActive: false, Grant: GrantKeys("crm.leads.view")},
	}
	assignments := []Assignment{
		{RoleID: 1, OrganizationID: 7, IsActive: true},
		{RoleID: 99, OrganizationID: 7, IsActive: true},
		{RoleID: 2, OrganizationID: 7, IsActive: false},
	}
	set := EffectiveSet(time.Now(), testKnown, assignments, roles)
	require.Empty(t, set)
}

func TestEffectiveSetRejectsForeignTenantRole(t *testing.T) {
	roles := map[int64]Role{
		1: {ID: 1, IsActive: true, OrganizationID: orgPtr(8), Grant: GrantKeys("crm.leads.view")},
		2: {ID: 2, IsActive: true, OrganizationID: orgPtr(7), Grant: GrantKeys("erp.invoices.view")},
	}
	assignments := []Assignment{
		{RoleID: 1, OrganizationID: 7, IsActive: true},
		{RoleID: 2, OrganizationID: 7, IsActive: true},
	}
	set := EffectiveSet(time.Now(), testKnown, assignments, roles)
	require.False(t, set.Has("crm.leads.view"))
	require.True(t, set.Has("erp.invoices.view"))
}

func TestEffectiveSetOverrideScenario(t *testing.T) {
	// sales_manager grants {crm.leads.view, crm.deals.approve}; the
	// assignment adds erp.invoices.view and revokes crm.deals.approve.
	roles := map[int64]Role{
		1: {ID: 1, IsActive: true, Grant: GrantKeys("crm.leads.view", "crm.deals.approve")},
	}
	assignments := []Assignment{
		{
			RoleID:         1,
			OrganizationID: 7,
			IsActive:       true,
			Extra:          GrantKeys("erp.invoices.view"),
			Revoked:        []string{"crm.deals.approve"},
		},
	}
	set := EffectiveSet(time.Now(), testKnown, assignments, roles)
	require.ElementsMatch(t, []string{"crm.leads.view", "erp.invoices.view"}, set.Sorted())
}
