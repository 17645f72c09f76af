package registry

import (
	"context"
	"fmt"

	"github.com/vantage-suite/vantage-suite/internal/rbac"
	"github.com/vantage-suite/vantage-suite/internal/shared"
)

// StorePort defines the persistence methods the catalog service needs.
type StorePort interface {
	Source
	Get(ctx context.Context, key string) (rbac.Permission, error)
	Upsert(ctx context.Context, p rbac.Permission) (bool, error)
	RoleReferenceCount(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// DecisionInvalidator flushes cached effective permission sets after a
// catalog change, so wildcard holders see new keys immediately instead of
// after the cache TTL.
type DecisionInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Service covers the rare privileged catalog mutations. Normal operation
// never mutates the registry outside seeding.
type Service struct {
	store       StorePort
	view        *Registry
	invalidator DecisionInvalidator
}

// NewService builds a Service instance. invalidator may be nil.
func NewService(store StorePort, view *Registry, invalidator DecisionInvalidator) *Service {
	return &Service{store: store, view: view, invalidator: invalidator}
}

// CreatePermission registers a new capability key and refreshes the cached
// view, so wildcard holders pick it up on their next check.
func (s *Service) CreatePermission(ctx context.Context, actor shared.Principal, key, description string) (rbac.Permission, error) {
	if !actor.Super {
		return rbac.Permission{}, rbac.ErrForbidden
	}
	module, resource, action, err := SplitKey(key)
	if err != nil {
		return rbac.Permission{}, fmt.Errorf("%w: %s", rbac.ErrUnknownPermission, key)
	}
	if s.view.Exists(key) {
		return rbac.Permission{}, fmt.Errorf("%w: %s", rbac.ErrDuplicateKey, key)
	}
	p := rbac.Permission{
		Key:         key,
		Module:      module,
		Resource:    resource,
		Action:      action,
		Description: description,
	}
	if _, err := s.store.Upsert(ctx, p); err != nil {
		return rbac.Permission{}, err
	}
	if err := s.view.Reload(ctx); err != nil {
		return rbac.Permission{}, err
	}
	if err := s.invalidateDecisions(ctx); err != nil {
		return rbac.Permission{}, err
	}
	return s.store.Get(ctx, key)
}

// DeletePermission removes a capability key after verifying no role still
// references it. Built-in keys are protected.
func (s *Service) DeletePermission(ctx context.Context, actor shared.Principal, key string) error {
	if !actor.Super {
		return rbac.ErrForbidden
	}
	p, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if p.IsSystem {
		return rbac.ErrForbidden
	}
	refs, err := s.store.RoleReferenceCount(ctx, key)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: %s referenced by %d role(s)", rbac.ErrPermissionInUse, key, refs)
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	if err := s.view.Reload(ctx); err != nil {
		return err
	}
	return s.invalidateDecisions(ctx)
}

// invalidateDecisions flushes cached effective sets once the view reflects
// the new catalog. Cached sets are snapshots of the registry at compute time,
// so a key added or removed here never reaches wildcard holders through
// per-user invalidation alone.
func (s *Service) invalidateDecisions(ctx context.Context) error {
	if s.invalidator == nil {
		return nil
	}
	if err := s.invalidator.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("registry: invalidate decisions: %w", err)
	}
	return nil
}
