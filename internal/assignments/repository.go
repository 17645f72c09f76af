package assignments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-suite/vantage-suite/internal/rbac"
)

const assignmentColumns = `id, user_id, role_id, organization_id, granted_by, expires_at, branch, extra_permissions, revoked_permissions, is_active, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for assignments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAssignment(row pgx.Row) (rbac.Assignment, error) {
	var (
		a       rbac.Assignment
		extra   []string
		revoked []string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.RoleID, &a.OrganizationID, &a.GrantedBy, &a.ExpiresAt,
		&a.Branch, &extra, &revoked, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return rbac.Assignment{}, err
	}
	a.Extra = rbac.GrantFromKeys(extra)
	a.Revoked = revoked
	return a, nil
}

// Assign inserts the (user, role, organization) binding. A soft-revoked row
// for the same triple is reactivated in place, updating granted_by and
// expires_at, so history never duplicates; an active row surfaces as
// ErrDuplicateAssignment. The single upsert keeps the write linearizable.
func (r *Repository) Assign(ctx context.Context, a rbac.Assignment) (rbac.Assignment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO assignments (user_id, role_id, organization_id, granted_by, expires_at, branch, extra_permissions, revoked_permissions, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '{}', '{}', TRUE, NOW(), NOW())
		ON CONFLICT (user_id, role_id, organization_id) DO UPDATE
		SET is_active = TRUE,
		    granted_by = EXCLUDED.granted_by,
		    expires_at = EXCLUDED.expires_at,
		    branch = EXCLUDED.branch,
		    updated_at = NOW()
		WHERE NOT assignments.is_active
		RETURNING `+assignmentColumns,
		a.UserID, a.RoleID, a.OrganizationID, a.GrantedBy, a.ExpiresAt, a.Branch)
	created, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return rbac.Assignment{}, rbac.ErrDuplicateAssignment
	}
	if err != nil {
		return rbac.Assignment{}, fmt.Errorf("assignments: assign: %w", err)
	}
	return created, nil
}

// Get fetches an assignment by ID.
func (r *Repository) Get(ctx context.Context, id int64) (rbac.Assignment, error) {
	a, err := scanAssignment(r.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return rbac.Assignment{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Assignment{}, fmt.Errorf("assignments: get: %w", err)
	}
	return a, nil
}

// Revoke soft-disables the assignment. Revoking an already revoked row is a
// no-op, the row stays for audit.
func (r *Repository) Revoke(ctx context.Context, id int64) (rbac.Assignment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE assignments SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1
		RETURNING `+assignmentColumns, id)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return rbac.Assignment{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Assignment{}, fmt.Errorf("assignments: revoke: %w", err)
	}
	return a, nil
}

// SetOverrides replaces both override sets wholesale in one write.
func (r *Repository) SetOverrides(ctx context.Context, id int64, extra, revoked []string) (rbac.Assignment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE assignments SET extra_permissions = $2, revoked_permissions = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+assignmentColumns, id, extra, revoked)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return rbac.Assignment{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Assignment{}, fmt.Errorf("assignments: set overrides: %w", err)
	}
	return a, nil
}

// ListForUser returns the user's assignment history in one tenant, expired
// and revoked rows included. Liveness filtering happens at evaluation.
func (r *Repository) ListForUser(ctx context.Context, userID, orgID int64) ([]rbac.Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE user_id = $1 AND organization_id = $2 ORDER BY id`, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("assignments: list for user: %w", err)
	}
	defer rows.Close()
	var out []rbac.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("assignments: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("assignments: list for user: %w", err)
	}
	return out, nil
}

// HardDelete removes the row entirely, erasing its audit trail. Reserved for
// privileged cleanup; normal revocation is the soft flag.
func (r *Repository) HardDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("assignments: hard delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrNotFound
	}
	return nil
}
