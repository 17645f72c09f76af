package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vantage-suite/vantage-suite/internal/rbac"
	"github.com/vantage-suite/vantage-suite/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	Create(ctx context.Context, role rbac.Role) (rbac.Role, error)
	Get(ctx context.Context, id int64) (rbac.Role, error)
	Update(ctx context.Context, role rbac.Role) (rbac.Role, error)
	SlugExists(ctx context.Context, slug string, orgID *int64) (bool, error)
	ListVisible(ctx context.Context, module rbac.Module, orgID int64) ([]rbac.Role, error)
	Holders(ctx context.Context, roleID int64) ([]rbac.Holder, error)
	Delete(ctx context.Context, id int64) ([]rbac.Holder, error)
}

// RegistryPort validates permission keys against the live catalog.
type RegistryPort interface {
	ValidateKeys(keys []string, allowWildcard bool) error
}

// Invalidator drops cached decisions for users affected by a role write.
type Invalidator interface {
	InvalidateHolders(ctx context.Context, holders []rbac.Holder) error
}

// AuditPort records administrative mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles role business logic: validation before any write, the
// system-role guard, clone semantics and the delete cascade.
type Service struct {
	repo        RepositoryPort
	registry    RegistryPort
	invalidator Invalidator
	audit       AuditPort
	logger      *slog.Logger
}

// NewService builds Service instance. audit may be nil.
func NewService(repo RepositoryPort, registry RegistryPort, invalidator Invalidator, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, registry: registry, invalidator: invalidator, audit: audit, logger: logger}
}

// CreateRoleInput carries a role creation request.
type CreateRoleInput struct {
	Name           string
	Slug           string
	Module         string
	Description    string
	Permissions    []string
	OrganizationID *int64
}

// Create validates and inserts a tenant custom role. Only a super-privileged
// actor may target a tenant other than their own or create a system-wide
// (organization-less) role.
func (s *Service) Create(ctx context.Context, actor shared.Principal, in CreateRoleInput) (rbac.Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return rbac.Role{}, fmt.Errorf("roles: role name required")
	}
	module, err := rbac.ParseModule(in.Module)
	if err != nil {
		return rbac.Role{}, err
	}
	if err := s.registry.ValidateKeys(in.Permissions, true); err != nil {
		return rbac.Role{}, err
	}
	org := in.OrganizationID
	if !actor.Super {
		if org == nil || *org != actor.OrganizationID {
			return rbac.Role{}, rbac.ErrForbidden
		}
	}
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	createdBy := actor.UserID
	role := rbac.Role{
		Name:           name,
		Slug:           slug,
		Module:         module,
		Description:    strings.TrimSpace(in.Description),
		Grant:          rbac.GrantFromKeys(in.Permissions),
		OrganizationID: org,
		IsSystem:       false,
		IsActive:       true,
		CreatedBy:      &createdBy,
	}
	created, err := s.repo.Create(ctx, role)
	if err != nil {
		return rbac.Role{}, err
	}
	s.record(ctx, actor, "role.create", created)
	return created, nil
}

// UpdateRoleInput is a partial patch; nil fields keep their current value.
// Permissions replace the stored set wholesale, never merge.
type UpdateRoleInput struct {
	Name        *string
	Description *string
	Permissions *[]string
	IsActive    *bool
}

// Update applies a patch to a role. System roles demand the super-privileged
// capability; foreign-tenant roles stay invisible to other tenants.
func (s *Service) Update(ctx context.Context, actor shared.Principal, roleID int64, patch UpdateRoleInput) (rbac.Role, error) {
	role, err := s.visibleRole(ctx, actor, roleID)
	if err != nil {
		return rbac.Role{}, err
	}
	if role.SystemManaged() && !actor.Super {
		return rbac.Role{}, rbac.ErrForbidden
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return rbac.Role{}, fmt.Errorf("roles: role name required")
		}
		role.Name = name
	}
	if patch.Description != nil {
		role.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Permissions != nil {
		if err := s.registry.ValidateKeys(*patch.Permissions, true); err != nil {
			return rbac.Role{}, err
		}
		role.Grant = rbac.GrantFromKeys(*patch.Permissions)
	}
	if patch.IsActive != nil {
		role.IsActive = *patch.IsActive
	}
	updated, err := s.repo.Update(ctx, role)
	if err != nil {
		return rbac.Role{}, err
	}
	if err := s.invalidateRole(ctx, roleID); err != nil {
		return rbac.Role{}, err
	}
	s.record(ctx, actor, "role.update", updated)
	return updated, nil
}

// Clone copies any visible role, including system roles, into the caller's
// tenant. The copy is never a system role and a wildcard grant is copied as
// the sentinel, not expanded into today's key list.
func (s *Service) Clone(ctx context.Context, actor shared.Principal, roleID int64, newName string) (rbac.Role, error) {
	source, err := s.visibleRole(ctx, actor, roleID)
	if err != nil {
		return rbac.Role{}, err
	}
	name := strings.TrimSpace(newName)
	if name == "" {
		name = source.Name + " (Copy)"
	}
	org := actor.OrganizationID
	slug, err := s.freshSlug(ctx, Slugify(name), &org)
	if err != nil {
		return rbac.Role{}, err
	}
	createdBy := actor.UserID
	clone := rbac.Role{
		Name:           name,
		Slug:           slug,
		Module:         source.Module,
		Description:    source.Description,
		Grant:          source.Grant,
		OrganizationID: &org,
		IsSystem:       false,
		IsActive:       true,
		CreatedBy:      &createdBy,
	}
	created, err := s.repo.Create(ctx, clone)
	if err != nil {
		return rbac.Role{}, err
	}
	s.record(ctx, actor, "role.clone", created)
	return created, nil
}

// Delete removes a custom role, soft-revoking every assignment that
// references it. System roles cannot be deleted.
func (s *Service) Delete(ctx context.Context, actor shared.Principal, roleID int64) error {
	role, err := s.visibleRole(ctx, actor, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return rbac.ErrForbidden
	}
	if role.OrganizationID == nil && !actor.Super {
		return rbac.ErrForbidden
	}
	holders, err := s.repo.Delete(ctx, roleID)
	if err != nil {
		return err
	}
	if err := s.invalidator.InvalidateHolders(ctx, holders); err != nil {
		return fmt.Errorf("roles: invalidate decisions: %w", err)
	}
	s.record(ctx, actor, "role.delete", role)
	return nil
}

// Get returns one role visible to the actor.
func (s *Service) Get(ctx context.Context, actor shared.Principal, roleID int64) (rbac.Role, error) {
	return s.visibleRole(ctx, actor, roleID)
}

// List returns the roles visible to the actor's tenant, optionally filtered
// by module; "all" (or empty) lists every module.
func (s *Service) List(ctx context.Context, actor shared.Principal, module string) ([]rbac.Role, error) {
	m := rbac.ModuleAll
	if module != "" && module != string(rbac.ModuleAll) {
		parsed, err := rbac.ParseModule(module)
		if err != nil {
			return nil, err
		}
		m = parsed
	}
	return s.repo.ListVisible(ctx, m, actor.OrganizationID)
}

func (s *Service) visibleRole(ctx context.Context, actor shared.Principal, roleID int64) (rbac.Role, error) {
	role, err := s.repo.Get(ctx, roleID)
	if err != nil {
		return rbac.Role{}, err
	}
	if !actor.Super && role.OrganizationID != nil && *role.OrganizationID != actor.OrganizationID {
		return rbac.Role{}, rbac.ErrNotFound
	}
	return role, nil
}

func (s *Service) invalidateRole(ctx context.Context, roleID int64) error {
	holders, err := s.repo.Holders(ctx, roleID)
	if err != nil {
		return fmt.Errorf("roles: list holders: %w", err)
	}
	if err := s.invalidator.InvalidateHolders(ctx, holders); err != nil {
		return fmt.Errorf("roles: invalidate decisions: %w", err)
	}
	return nil
}

// freshSlug appends a numeric suffix until the slug is free inside the
// target scope, so clones never fail on a name collision.
func (s *Service) freshSlug(ctx context.Context, base string, orgID *int64) (string, error) {
	if base == "" {
		base = "role"
	}
	candidate := base
	for i := 2; ; i++ {
		taken, err := s.repo.SlugExists(ctx, candidate, orgID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
}

func (s *Service) record(ctx context.Context, actor shared.Principal, action string, role rbac.Role) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "role",
		EntityID: fmt.Sprintf("%d", role.ID),
		Meta:     map[string]any{"slug": role.Slug, "module": role.Module},
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("record role audit", slog.Any("error", err))
	}
}
