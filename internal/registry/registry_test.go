package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vantage-suite/vantage-suite/internal/rbac"
	"github.com/vantage-suite/vantage-suite/internal/shared"
)

// memoryStore is an in-memory StorePort preserving insertion order.
type memoryStore struct {
	order []string
	byKey map[string]rbac.Permission
	refs  map[string]int64
}

func newMemoryStore(keys ...string) *memoryStore {
	s := &memoryStore{byKey: map[string]rbac.Permission{}, refs: map[string]int64{}}
	for _, k := range keys {
		module, resource, action, _ := SplitKey(k)
		s.order = append(s.order, k)
		s.byKey[k] = rbac.Permission{Key: k, Module: module, Resource: resource, Action: action, IsSystem: true}
	}
	return s
}

func (s *memoryStore) List(_ context.Context) ([]rbac.Permission, error) {
	out := make([]rbac.Permission, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.byKey[k])
	}
	return out, nil
}

func (s *memoryStore) Get(_ context.Context, key string) (rbac.Permission, error) {
	p, ok := s.byKey[key]
	if !ok {
		return rbac.Permission{}, rbac.ErrNotFound
	}
	return p, nil
}

func (s *memoryStore) Upsert(_ context.Context, p rbac.Permission) (bool, error) {
	_, exists := s.byKey[p.Key]
	if !exists {
		s.order = append(s.order, p.Key)
	}
	s.byKey[p.Key] = p
	return !exists, nil
}

func (s *memoryStore) RoleReferenceCount(_ context.Context, key string) (int64, error) {
	return s.refs[key], nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	if _, ok := s.byKey[key]; !ok {
		return rbac.ErrNotFound
	}
	delete(s.byKey, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

type recordingInvalidator struct {
	calls int
}

func (r *recordingInvalidator) InvalidateAll(_ context.Context) error {
	r.calls++
	return nil
}

func loadedRegistry(t *testing.T, store *memoryStore) *Registry {
	t.Helper()
	view := New(store)
	require.NoError(t, view.Reload(context.Background()))
	return view
}

func TestRegistryView(t *testing.T) {
	store := newMemoryStore("crm.leads.view", "erp.invoices.view")
	view := loadedRegistry(t, store)

	require.True(t, view.Exists("crm.leads.view"))
	require.False(t, view.Exists("crm.leads.delete"))
	require.Equal(t, []string{"crm.leads.view", "erp.invoices.view"}, view.KnownKeys())

	p, err := view.Get("erp.invoices.view")
	require.NoError(t, err)
	require.Equal(t, rbac.ModuleERP, p.Module)

	_, err = view.Get("hrms.payroll.process")
	require.ErrorIs(t, err, rbac.ErrNotFound)

	require.Len(t, view.ListAll(), 2)
}

func TestRegistryReloadPicksUpNewKeys(t *testing.T) {
	store := newMemoryStore("crm.leads.view")
	view := loadedRegistry(t, store)
	require.Len(t, view.KnownKeys(), 1)

	_, err := store.Upsert(context.Background(), rbac.Permission{Key: "crm.leads.export", Module: rbac.ModuleCRM})
	require.NoError(t, err)
	require.False(t, view.Exists("crm.leads.export"))

	require.NoError(t, view.Reload(context.Background()))
	require.True(t, view.Exists("crm.leads.export"))
}

func TestValidateKeys(t *testing.T) {
	view := loadedRegistry(t, newMemoryStore("crm.leads.view"))

	require.NoError(t, view.ValidateKeys([]string{"crm.leads.view"}, false))
	require.NoError(t, view.ValidateKeys([]string{rbac.WildcardKey, "crm.leads.view"}, true))
	require.ErrorIs(t, view.ValidateKeys([]string{rbac.WildcardKey}, false), rbac.ErrUnknownPermission)
	require.ErrorIs(t, view.ValidateKeys([]string{"crm.leads.teleport"}, true), rbac.ErrUnknownPermission)
	require.NoError(t, view.ValidateKeys(nil, false))
}

func TestCreatePermission(t *testing.T) {
	store := newMemoryStore("crm.leads.view")
	view := loadedRegistry(t, store)
	inv := &recordingInvalidator{}
	svc := NewService(store, view, inv)
	root := shared.Principal{UserID: 99, Super: true}

	_, err := svc.CreatePermission(context.Background(), shared.Principal{UserID: 1}, "crm.leads.export", "Export leads")
	require.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = svc.CreatePermission(context.Background(), root, "not-a-key", "")
	require.ErrorIs(t, err, rbac.ErrUnknownPermission)
	require.Zero(t, inv.calls)

	p, err := svc.CreatePermission(context.Background(), root, "crm.leads.export", "Export leads")
	require.NoError(t, err)
	require.Equal(t, "leads", p.Resource)
	require.False(t, p.IsSystem)
	// The view refreshes and cached decisions flush synchronously, so
	// wildcard holders see the key on their next check.
	require.True(t, view.Exists("crm.leads.export"))
	require.Equal(t, 1, inv.calls)

	_, err = svc.CreatePermission(context.Background(), root, "crm.leads.export", "")
	require.ErrorIs(t, err, rbac.ErrDuplicateKey)
}

func TestDeletePermission(t *testing.T) {
	store := newMemoryStore("crm.leads.view")
	view := loadedRegistry(t, store)
	inv := &recordingInvalidator{}
	svc := NewService(store, view, inv)
	ctx := context.Background()
	root := shared.Principal{UserID: 99, Super: true}

	custom, err := svc.CreatePermission(ctx, root, "crm.leads.export", "")
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeletePermission(ctx, shared.Principal{UserID: 1}, custom.Key), rbac.ErrForbidden)

	// Built-in keys are protected.
	require.ErrorIs(t, svc.DeletePermission(ctx, root, "crm.leads.view"), rbac.ErrForbidden)

	store.refs[custom.Key] = 2
	err = svc.DeletePermission(ctx, root, custom.Key)
	require.ErrorIs(t, err, rbac.ErrPermissionInUse)

	store.refs[custom.Key] = 0
	flushes := inv.calls
	require.NoError(t, svc.DeletePermission(ctx, root, custom.Key))
	require.False(t, view.Exists(custom.Key))
	require.Equal(t, flushes+1, inv.calls)

	err = svc.DeletePermission(ctx, root, custom.Key)
	require.ErrorIs(t, err, rbac.ErrNotFound)
}
