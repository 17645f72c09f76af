package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vantage-suite/vantage-suite/internal/rbac"
)

func TestBuiltinCatalog(t *testing.T) {
	cat, err := BuiltinCatalog()
	require.NoError(t, err)
	require.Equal(t, 1, cat.Version)
	require.NotEmpty(t, cat.Permissions)
	require.NotEmpty(t, cat.Roles)

	var superAdmin *CatalogRole
	for i := range cat.Roles {
		if cat.Roles[i].Slug == "super_admin" {
			superAdmin = &cat.Roles[i]
		}
	}
	require.NotNil(t, superAdmin)
	require.Equal(t, []string{rbac.WildcardKey}, superAdmin.Permissions)

	modules := map[rbac.Module]int{}
	for _, p := range cat.Permissions {
		m, _, _, err := SplitKey(p.Key)
		require.NoError(t, err)
		modules[m]++
	}
	for _, m := range rbac.Modules {
		require.Positive(t, modules[m], "module %s has no permissions", m)
	}
}

func TestCatalogRoleSlugsAreCanonical(t *testing.T) {
	cat, err := BuiltinCatalog()
	require.NoError(t, err)
	for _, r := range cat.Roles {
		require.Equal(t, strings.ToLower(r.Slug), r.Slug)
		require.NotContains(t, r.Slug, " ")
	}
}

func TestSplitKey(t *testing.T) {
	module, resource, action, err := SplitKey("crm.leads.view")
	require.NoError(t, err)
	require.Equal(t, rbac.ModuleCRM, module)
	require.Equal(t, "leads", resource)
	require.Equal(t, "view", action)

	// Extra segments fold into the resource.
	module, resource, action, err = SplitKey("erp.purchase.orders.approve")
	require.NoError(t, err)
	require.Equal(t, rbac.ModuleERP, module)
	require.Equal(t, "purchase.orders", resource)
	require.Equal(t, "approve", action)

	_, _, _, err = SplitKey("crm.leads")
	require.Error(t, err)

	_, _, _, err = SplitKey("warehouse.bins.view")
	require.ErrorIs(t, err, rbac.ErrInvalidModule)

	_, _, _, err = SplitKey("crm..view")
	require.Error(t, err)
}
