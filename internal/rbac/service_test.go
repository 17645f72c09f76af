package rbac

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubAssignments struct {
	rows  []Assignment
	err   error
	calls int
}

func (s *stubAssignments) ListForUser(_ context.Context, _, _ int64) ([]Assignment, error) {
	s.calls++
	return s.rows, s.err
}

type stubRoles struct {
	byID map[int64]Role
}

func (s *stubRoles) ByIDs(_ context.Context, ids []int64) (map[int64]Role, error) {
	out := make(map[int64]Role, len(ids))
	for _, id := range ids {
		if r, ok := s.byID[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

type stubKeys struct {
	keys []string
}

func (s *stubKeys) KnownKeys() []string { return s.keys }

func newTestService(t *testing.T) (*Service, *stubAssignments, *stubKeys, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	assignments := &stubAssignments{
		rows: []Assignment{{RoleID: 1, UserID: 42, OrganizationID: 7, IsActive: true}},
	}
	roles := &stubRoles{byID: map[int64]Role{
		1: {ID: 1, IsActive: true, Grant: GrantKeys("crm.leads.view")},
	}}
	keys := &stubKeys{keys: []string{"crm.leads.view", "erp.invoices.view"}}

	cache := NewDecisionCache(client, time.Minute)
	svc := NewService(assignments, roles, keys, cache, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	return svc, assignments, keys, mr
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestServiceCachesDecisions(t *testing.T) {
	svc, assignments, _, _ := newTestService(t)
	ctx := context.Background()

	got, err := svc.ListEffectivePermissions(ctx, 42, 7)
	require.NoError(t, err)
	require.Equal(t, []string{"crm.leads.view"}, got)
	require.Equal(t, 1, assignments.calls)

	// Second read is served from the cache.
	got, err = svc.ListEffectivePermissions(ctx, 42, 7)
	require.NoError(t, err)
	require.Equal(t, []string{"crm.leads.view"}, got)
	require.Equal(t, 1, assignments.calls)
}

func TestServiceInvalidateUserForcesRecompute(t *testing.T) {
	svc, assignments, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ListEffectivePermissions(ctx, 42, 7)
	require.NoError(t, err)

	assignments.rows = append(assignments.rows, Assignment{
		RoleID: 1, UserID: 42, OrganizationID: 7, IsActive: true,
		Extra: GrantKeys("erp.invoices.view"),
	})
	require.NoError(t, svc.InvalidateUser(ctx, 42, 7))

	got, err := svc.ListEffectivePermissions(ctx, 42, 7)
	require.NoError(t, err)
	require.Equal(t, []string{"crm.leads.view", "erp.invoices.view"}, got)
	require.Equal(t, 2, assignments.calls)
}

func TestServiceInvalidateHolders(t *testing.T) {
	svc, _, _, mr := newTestService(t)
	ctx := context.Background()

	_, err := svc.ListEffectivePermissions(ctx, 42, 7)
	require.NoError(t, err)
	require.True(t, mr.Exists("rbac:effective:7:42"))

	require.NoError(t, svc.InvalidateHolders(ctx, []Holder{{UserID: 42, OrganizationID: 7}}))
	require.False(t, mr.Exists("rbac:effective:7:42"))
}

func TestDecisionCacheInvalidateAllLeavesForeignKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewDecisionCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, 42, 7, []string{"crm.leads.view"}))
	require.NoError(t, cache.Put(ctx, 43, 8, []string{"crm.leads.view"}))
	require.NoError(t, mr.Set("asynq:queues", "default"))

	require.NoError(t, cache.InvalidateAll(ctx))
	require.False(t, mr.Exists("rbac:effective:7:42"))
	require.False(t, mr.Exists("rbac:effective:8:43"))
	require.True(t, mr.Exists("asynq:queues"))
}

func TestServiceInvalidateAllRefreshesWildcardHolders(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	assignments := &stubAssignments{
		rows: []Assignment{{RoleID: 1, UserID: 42, OrganizationID: 7, IsActive: true}},
	}
	roles := &stubRoles{byID: map[int64]Role{
		1: {ID: 1, IsActive: true, Grant: GrantAll()},
	}}
	keys := &stubKeys{keys: []string{"crm.leads.view"}}
	cache := NewDecisionCache(client, time.Minute)
	svc := NewService(assignments, roles, keys, cache, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	ctx := context.Background()

	ok, err := svc.HasPermission(ctx, 42, 7, "erp.vendors.manage")
	require.NoError(t, err)
	require.False(t, ok)

	// Registering the key flushes cached decisions; the role and assignment
	// records are untouched.
	keys.keys = append(keys.keys, "erp.vendors.manage")
	require.NoError(t, svc.InvalidateAll(ctx))

	ok, err = svc.HasPermission(ctx, 42, 7, "erp.vendors.manage")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists("rbac:effective:7:42"))
}

func TestServicePropagatesStoreErrors(t *testing.T) {
	svc, assignments, _, _ := newTestService(t)
	assignments.err = errors.New("connection refused")

	_, err := svc.ListEffectivePermissions(context.Background(), 42, 7)
	require.Error(t, err)

	ok, err := svc.HasPermission(context.Background(), 42, 7, "crm.leads.view")
	require.Error(t, err)
	require.False(t, ok)
}

func TestServiceHasPermission(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	ok, err := svc.HasPermission(ctx, 42, 7, "crm.leads.view")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasPermission(ctx, 42, 7, "erp.invoices.view")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestServiceSurvivesDeadCache(t *testing.T) {
	svc, _, _, mr := newTestService(t)
	mr.Close()

	got, err := svc.ListEffectivePermissions(context.Background(), 42, 7)
	require.NoError(t, err)
	require.Equal(t, []string{"crm.leads.view"}, got)
}
