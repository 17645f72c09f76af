// Package seed reconciles the built-in permission catalog and system roles
// into the database. It runs at startup and on demand; every write is an
// upsert keyed by the natural key, so repeated or concurrent runs converge
// on the same state.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vantage-suite/vantage-suite/internal/rbac"
	"github.com/vantage-suite/vantage-suite/internal/registry"
)

// PermissionStore upserts catalog permissions by key.
type PermissionStore interface {
	Upsert(ctx context.Context, p rbac.Permission) (bool, error)
}

// RoleStore upserts system roles by (slug, NULL organization).
type RoleStore interface {
	UpsertSystemRole(ctx context.Context, role rbac.Role) (bool, error)
}

// Reloader refreshes the in-process registry view after seeding.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Invalidator flushes cached effective permission sets once the catalog is
// reconciled, so wildcard holders pick up newly seeded keys immediately.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Report summarises one reconciliation run.
type Report struct {
	RunID              uuid.UUID `json:"runId"`
	PermissionsCreated int       `json:"permissionsCreated"`
	PermissionsUpdated int       `json:"permissionsUpdated"`
	RolesCreated       int       `json:"rolesCreated"`
	RolesUpdated       int       `json:"rolesUpdated"`
}

// Seeder applies the embedded catalog.
type Seeder struct {
	catalog     registry.Catalog
	permissions PermissionStore
	roles       RoleStore
	reloader    Reloader
	invalidator Invalidator
	logger      *slog.Logger
}

// New builds a Seeder for the given catalog. invalidator may be nil.
func New(catalog registry.Catalog, permissions PermissionStore, roles RoleStore, reloader Reloader, invalidator Invalidator, logger *slog.Logger) *Seeder {
	return &Seeder{catalog: catalog, permissions: permissions, roles: roles, reloader: reloader, invalidator: invalidator, logger: logger}
}

// Reconcile runs the seeder discarding the report, for job handlers that
// only care about convergence.
func (s *Seeder) Reconcile(ctx context.Context) error {
	_, err := s.Run(ctx)
	return err
}

// Run reconciles the catalog and returns created/updated counts. A second
// run over unchanged definitions reports zero created rows.
func (s *Seeder) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.New()}
	for _, def := range s.catalog.Permissions {
		module, resource, action, err := registry.SplitKey(def.Key)
		if err != nil {
			return report, fmt.Errorf("seed: permission %s: %w", def.Key, err)
		}
		created, err := s.permissions.Upsert(ctx, rbac.Permission{
			Key:         def.Key,
			Module:      module,
			Resource:    resource,
			Action:      action,
			Description: def.Description,
			IsSystem:    true,
		})
		if err != nil {
			return report, fmt.Errorf("seed: permission %s: %w", def.Key, err)
		}
		if created {
			report.PermissionsCreated++
		} else {
			report.PermissionsUpdated++
		}
	}

	for _, def := range s.catalog.Roles {
		module, err := rbac.ParseModule(def.Module)
		if err != nil {
			return report, fmt.Errorf("seed: role %s: %w", def.Slug, err)
		}
		created, err := s.roles.UpsertSystemRole(ctx, rbac.Role{
			Name:        def.Name,
			Slug:        def.Slug,
			Module:      module,
			Description: def.Description,
			Grant:       rbac.GrantFromKeys(def.Permissions),
		})
		if err != nil {
			return report, fmt.Errorf("seed: role %s: %w", def.Slug, err)
		}
		if created {
			report.RolesCreated++
		} else {
			report.RolesUpdated++
		}
	}

	if s.reloader != nil {
		if err := s.reloader.Reload(ctx); err != nil {
			return report, fmt.Errorf("seed: reload registry: %w", err)
		}
	}
	if s.invalidator != nil {
		if err := s.invalidator.InvalidateAll(ctx); err != nil {
			return report, fmt.Errorf("seed: invalidate decisions: %w", err)
		}
	}
	if s.logger != nil {
		s.logger.Info("seed run complete",
			slog.String("run_id", report.RunID.String()),
			slog.Int("permissions_created", report.PermissionsCreated),
			slog.Int("permissions_updated", report.PermissionsUpdated),
			slog.Int("roles_created", report.RolesCreated),
			slog.Int("roles_updated", report.RolesUpdated))
	}
	return report, nil
}
