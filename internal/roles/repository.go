package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-suite/vantage-suite/internal/platform/db"
	"github.com/vantage-suite/vantage-suite/internal/rbac"
)

const roleColumns = `id, name, slug, module, description, permissions, organization_id, is_system, is_active, created_by, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for roles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRole(row pgx.Row) (rbac.Role, error) {
	var (
		role rbac.Role
		keys []string
	)
	err := row.Scan(&role.ID, &role.Name, &role.Slug, &role.Module, &role.Description, &keys,
		&role.OrganizationID, &role.IsSystem, &role.IsActive, &role.CreatedBy, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return rbac.Role{}, err
	}
	role.Grant = rbac.GrantFromKeys(keys)
	return role, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a new role. A (slug, organization) collision surfaces as
// ErrDuplicateSlug via the unique index, not an insert-then-check race.
func (r *Repository) Create(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, slug, module, description, permissions, organization_id, is_system, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING `+roleColumns,
		role.Name, role.Slug, role.Module, role.Description, role.Grant.RawKeys(),
		role.OrganizationID, role.IsSystem, role.IsActive, role.CreatedBy)
	created, err := scanRole(row)
	if err != nil {
		if isUniqueViolation(err) {
			return rbac.Role{}, rbac.ErrDuplicateSlug
		}
		return rbac.Role{}, fmt.Errorf("roles: create: %w", err)
	}
	return created, nil
}

// UpsertSystemRole inserts or refreshes a built-in role by its natural key
// (slug, NULL organization) and reports whether a new row was created. The
// seeder calls this repeatedly; the unique index carries the race, not an
// insert-then-check.
func (r *Repository) UpsertSystemRole(ctx context.Context, role rbac.Role) (bool, error) {
	var created bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, slug, module, description, permissions, organization_id, is_system, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULL, TRUE, TRUE, NULL, NOW(), NOW())
		ON CONFLICT (slug, organization_id) DO UPDATE
		SET name = EXCLUDED.name,
		    module = EXCLUDED.module,
		    description = EXCLUDED.description,
		    permissions = EXCLUDED.permissions,
		    is_system = TRUE,
		    updated_at = NOW()
		RETURNING (xmax = 0)`,
		role.Name, role.Slug, role.Module, role.Description, role.Grant.RawKeys()).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("roles: upsert system role %s: %w", role.Slug, err)
	}
	return created, nil
}

// Get fetches a role by ID.
func (r *Repository) Get(ctx context.Context, id int64) (rbac.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return rbac.Role{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Role{}, fmt.Errorf("roles: get: %w", err)
	}
	return role, nil
}

// ByIDs resolves roles in bulk for the evaluator.
func (r *Repository) ByIDs(ctx context.Context, ids []int64) (map[int64]rbac.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("roles: by ids: %w", err)
	}
	defer rows.Close()
	out := make(map[int64]rbac.Role, len(ids))
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("roles: scan: %w", err)
		}
		out[role.ID] = role
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: by ids: %w", err)
	}
	return out, nil
}

// Update replaces every mutable column in one atomic write. Concurrent edits
// are last-writer-wins; the permissions array is never partially merged.
func (r *Repository) Update(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE roles
		SET name = $2, description = $3, permissions = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns,
		role.ID, role.Name, role.Description, role.Grant.RawKeys(), role.IsActive)
	updated, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return rbac.Role{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Role{}, fmt.Errorf("roles: update: %w", err)
	}
	return updated, nil
}

// SlugExists reports whether (slug, organization) is already taken.
func (r *Repository) SlugExists(ctx context.Context, slug string, orgID *int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM roles
			WHERE slug = $1 AND organization_id IS NOT DISTINCT FROM $2
		)`, slug, orgID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("roles: slug exists: %w", err)
	}
	return exists, nil
}

// ListVisible returns the roles a tenant can see: every system role plus the
// tenant's own custom roles, optionally filtered by module.
func (r *Repository) ListVisible(ctx context.Context, module rbac.Module, orgID int64) ([]rbac.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE (organization_id IS NULL OR organization_id = $1)`
	args := []any{orgID}
	if module != rbac.ModuleAll {
		query += ` AND module = $2`
		args = append(args, module)
	}
	query += ` ORDER BY is_system DESC, name`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()
	var out []rbac.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("roles: scan: %w", err)
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	return out, nil
}

// Holders lists the (user, organization) pairs with an active assignment of
// the role, for decision cache invalidation after an edit.
func (r *Repository) Holders(ctx context.Context, roleID int64) ([]rbac.Holder, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, organization_id FROM assignments WHERE role_id = $1 AND is_active`, roleID)
	if err != nil {
		return nil, fmt.Errorf("roles: holders: %w", err)
	}
	defer rows.Close()
	var holders []rbac.Holder
	for rows.Next() {
		var h rbac.Holder
		if err := rows.Scan(&h.UserID, &h.OrganizationID); err != nil {
			return nil, fmt.Errorf("roles: scan holder: %w", err)
		}
		holders = append(holders, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: holders: %w", err)
	}
	return holders, nil
}

// Delete removes the role and soft-revokes every referencing assignment in
// one transaction, returning the affected holders for cache invalidation.
// Dangling active assignments are never left behind.
func (r *Repository) Delete(ctx context.Context, id int64) ([]rbac.Holder, error) {
	var holders []rbac.Holder
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE assignments SET is_active = FALSE, updated_at = NOW()
			WHERE role_id = $1 AND is_active
			RETURNING user_id, organization_id`, id)
		if err != nil {
			return fmt.Errorf("roles: cascade revoke: %w", err)
		}
		for rows.Next() {
			var h rbac.Holder
			if err := rows.Scan(&h.UserID, &h.OrganizationID); err != nil {
				rows.Close()
				return fmt.Errorf("roles: scan holder: %w", err)
			}
			holders = append(holders, h)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("roles: cascade revoke: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("roles: delete: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return rbac.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return holders, nil
}
