package assignments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vantage-suite/vantage-suite/internal/rbac"
	"github.com/vantage-suite/vantage-suite/internal/shared"
)

// RepositoryPort defines data access methods for assignments.
type RepositoryPort interface {
	Assign(ctx context.Context, a rbac.Assignment) (rbac.Assignment, error)
	Get(ctx context.Context, id int64) (rbac.Assignment, error)
	Revoke(ctx context.Context, id int64) (rbac.Assignment, error)
	SetOverrides(ctx context.Context, id int64, extra, revoked []string) (rbac.Assignment, error)
	ListForUser(ctx context.Context, userID, orgID int64) ([]rbac.Assignment, error)
	HardDelete(ctx context.Context, id int64) error
}

// RolePort resolves the role a grant references.
type RolePort interface {
	Get(ctx context.Context, id int64) (rbac.Role, error)
}

// RegistryPort validates permission keys against the live catalog.
type RegistryPort interface {
	ValidateKeys(keys []string, allowWildcard bool) error
}

// Invalidator drops the cached decision for one user after a write.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID, orgID int64) error
}

// AuditPort records administrative mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles assignment business logic.
type Service struct {
	repo        RepositoryPort
	roles       RolePort
	registry    RegistryPort
	invalidator Invalidator
	audit       AuditPort
	logger      *slog.Logger
}

// NewService builds Service instance. audit may be nil.
func NewService(repo RepositoryPort, roles RolePort, registry RegistryPort, invalidator Invalidator, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, roles: roles, registry: registry, invalidator: invalidator, audit: audit, logger: logger}
}

// AssignInput carries a grant request.
type AssignInput struct {
	UserID         int64
	RoleID         int64
	OrganizationID int64
	ExpiresAt      *time.Time
	Branch         *string
}

// Assign grants a role to a user within one tenant. The role must be a
// system role or belong to that same tenant; a foreign-tenant role is
// invisible and reported as not found.
func (s *Service) Assign(ctx context.Context, actor shared.Principal, in AssignInput) (rbac.Assignment, error) {
	if !actor.Super && in.OrganizationID != actor.OrganizationID {
		return rbac.Assignment{}, rbac.ErrForbidden
	}
	role, err := s.roles.Get(ctx, in.RoleID)
	if err != nil {
		return rbac.Assignment{}, err
	}
	if role.OrganizationID != nil && *role.OrganizationID != in.OrganizationID {
		return rbac.Assignment{}, rbac.ErrNotFound
	}
	grantedBy := &actor.UserID
	if actor.UserID == 0 {
		grantedBy = nil
	}
	created, err := s.repo.Assign(ctx, rbac.Assignment{
		UserID:         in.UserID,
		RoleID:         in.RoleID,
		OrganizationID: in.OrganizationID,
		GrantedBy:      grantedBy,
		ExpiresAt:      in.ExpiresAt,
		Branch:         in.Branch,
	})
	if err != nil {
		return rbac.Assignment{}, err
	}
	if err := s.invalidator.InvalidateUser(ctx, created.UserID, created.OrganizationID); err != nil {
		return rbac.Assignment{}, fmt.Errorf("assignments: invalidate decisions: %w", err)
	}
	s.record(ctx, actor, "assignment.grant", created)
	return created, nil
}

// Revoke soft-disables an assignment; idempotent.
func (s *Service) Revoke(ctx context.Context, actor shared.Principal, id int64) error {
	a, err := s.visibleAssignment(ctx, actor, id)
	if err != nil {
		return err
	}
	revoked, err := s.repo.Revoke(ctx, a.ID)
	if err != nil {
		return err
	}
	if err := s.invalidator.InvalidateUser(ctx, revoked.UserID, revoked.OrganizationID); err != nil {
		return fmt.Errorf("assignments: invalidate decisions: %w", err)
	}
	s.record(ctx, actor, "assignment.revoke", revoked)
	return nil
}

// SetOverrides replaces the per-user extra and revoked permission sets. The
// wildcard is legal in the extra set only: it grants everything to this one
// user regardless of the assigned role, while a wildcard revocation has no
// defined meaning and is rejected as unknown.
func (s *Service) SetOverrides(ctx context.Context, actor shared.Principal, id int64, extra, revoked []string) (rbac.Assignment, error) {
	a, err := s.visibleAssignment(ctx, actor, id)
	if err != nil {
		return rbac.Assignment{}, err
	}
	if err := s.registry.ValidateKeys(extra, true); err != nil {
		return rbac.Assignment{}, err
	}
	if err := s.registry.ValidateKeys(revoked, false); err != nil {
		return rbac.Assignment{}, err
	}
	updated, err := s.repo.SetOverrides(ctx, a.ID, extra, revoked)
	if err != nil {
		return rbac.Assignment{}, err
	}
	if err := s.invalidator.InvalidateUser(ctx, updated.UserID, updated.OrganizationID); err != nil {
		return rbac.Assignment{}, fmt.Errorf("assignments: invalidate decisions: %w", err)
	}
	s.record(ctx, actor, "assignment.overrides", updated)
	return updated, nil
}

// ListForUser returns the user's assignment history for admin and audit
// views, expired and revoked rows included.
func (s *Service) ListForUser(ctx context.Context, actor shared.Principal, userID, orgID int64) ([]rbac.Assignment, error) {
	if !actor.Super && orgID != actor.OrganizationID {
		return nil, rbac.ErrForbidden
	}
	return s.repo.ListForUser(ctx, userID, orgID)
}

// HardDelete erases an assignment row, audit trail included. Super only.
func (s *Service) HardDelete(ctx context.Context, actor shared.Principal, id int64) error {
	if !actor.Super {
		return rbac.ErrForbidden
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.HardDelete(ctx, a.ID); err != nil {
		return err
	}
	if err := s.invalidator.InvalidateUser(ctx, a.UserID, a.OrganizationID); err != nil {
		return fmt.Errorf("assignments: invalidate decisions: %w", err)
	}
	s.record(ctx, actor, "assignment.delete", a)
	return nil
}

func (s *Service) visibleAssignment(ctx context.Context, actor shared.Principal, id int64) (rbac.Assignment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return rbac.Assignment{}, err
	}
	if !actor.Super && a.OrganizationID != actor.OrganizationID {
		return rbac.Assignment{}, rbac.ErrNotFound
	}
	return a, nil
}

func (s *Service) record(ctx context.Context, actor shared.Principal, action string, a rbac.Assignment) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "assignment",
		EntityID: fmt.Sprintf("%d", a.ID),
		Meta:     map[string]any{"user": a.UserID, "role": a.RoleID, "organization": a.OrganizationID},
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("record assignment audit", slog.Any("error", err))
	}
}
