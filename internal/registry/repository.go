package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-suite/vantage-suite/internal/rbac"
)

// Store provides PostgreSQL backed persistence for the permissions table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// List returns every permission in declaration order (catalog order is
// insertion order, so id order is stable across restarts).
func (s *Store) List(ctx context.Context) ([]rbac.Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, key, module, resource, action, description, is_system, created_at FROM permissions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("registry: list permissions: %w", err)
	}
	defer rows.Close()
	var perms []rbac.Permission
	for rows.Next() {
		var p rbac.Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Module, &p.Resource, &p.Action, &p.Description, &p.IsSystem, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("registry: scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: list permissions: %w", err)
	}
	return perms, nil
}

// Get fetches a single permission by key.
func (s *Store) Get(ctx context.Context, key string) (rbac.Permission, error) {
	var p rbac.Permission
	err := s.pool.QueryRow(ctx, `SELECT id, key, module, resource, action, description, is_system, created_at FROM permissions WHERE key = $1`, key).
		Scan(&p.ID, &p.Key, &p.Module, &p.Resource, &p.Action, &p.Description, &p.IsSystem, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rbac.Permission{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Permission{}, fmt.Errorf("registry: get permission: %w", err)
	}
	return p, nil
}

// Upsert inserts or updates a permission by its natural key and reports
// whether a new row was created. The seeder relies on the created flag for
// its report; xmax = 0 distinguishes a fresh insert from a conflict update.
func (s *Store) Upsert(ctx context.Context, p rbac.Permission) (bool, error) {
	var created bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO permissions (key, module, resource, action, description, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (key) DO UPDATE
		SET module = EXCLUDED.module,
		    resource = EXCLUDED.resource,
		    action = EXCLUDED.action,
		    description = EXCLUDED.description,
		    is_system = EXCLUDED.is_system
		RETURNING (xmax = 0)`,
		p.Key, p.Module, p.Resource, p.Action, p.Description, p.IsSystem).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("registry: upsert permission %s: %w", p.Key, err)
	}
	return created, nil
}

// RoleReferenceCount counts roles whose grant names the key. Wildcard roles
// do not reference keys individually and are not counted.
func (s *Store) RoleReferenceCount(ctx context.Context, key string) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles WHERE permissions @> ARRAY[$1]::text[]`, key).Scan(&count); err != nil {
		return 0, fmt.Errorf("registry: count role references: %w", err)
	}
	return count, nil
}

// Delete removes a permission. Callers must verify no role references the
// key first; Service wraps both steps.
func (s *Store) Delete(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM permissions WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("registry: delete permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrNotFound
	}
	return nil
}
