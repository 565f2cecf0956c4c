package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/bugtracker/internal/domain"
)

const memberSelect = `
	SELECT ra.project_id, ra.user_id, ra.role,
	       u.username, u.email, u.first_name, u.last_name, ra.created_at
	FROM role_assignments ra
	JOIN users u ON u.id = ra.user_id`

var memberOrderColumns = map[string]string{
	"first_name": "u.first_name",
	"last_name":  "u.last_name",
	"email":      "u.email",
	"role":       "ra.role",
	"created_at": "ra.created_at",
}

// MemberRepository handles role assignment data access. It is the role store:
// at most one role per (project, user) pair, enforced by a unique index.
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// GetRole returns the user's role in the project, or domain.RoleNone when no
// assignment exists. Absence of membership is not an error.
func (r *MemberRepository) GetRole(ctx context.Context, projectID, userID int64) (domain.Role, error) {
	var role domain.Role
	err := r.db.GetContext(ctx, &role,
		`SELECT role FROM role_assignments WHERE project_id = $1 AND user_id = $2`,
		projectID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RoleNone, nil
		}
		return domain.RoleNone, fmt.Errorf("get role for user %d in project %d: %w", userID, projectID, err)
	}
	return role, nil
}

// Get retrieves one member of the project, visible only when the requestor is
// a member too.
func (r *MemberRepository) Get(ctx context.Context, projectID, memberID, requestorID int64) (*domain.Member, error) {
	var member domain.Member
	err := r.db.GetContext(ctx, &member, memberSelect+`
		WHERE ra.project_id = $1 AND ra.user_id = $2
		  AND EXISTS (SELECT 1 FROM role_assignments x WHERE x.project_id = $1 AND x.user_id = $3)`,
		projectID, memberID, requestorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get member %d of project %d: %w", memberID, projectID, err)
	}
	return &member, nil
}

// List returns the project's members matching the filter, plus the total
// count before pagination. Visibility requires the requestor's membership.
func (r *MemberRepository) List(ctx context.Context, projectID, requestorID int64, filter MemberFilter, params ListParams) ([]domain.Member, int, error) {
	b := &whereBuilder{args: []any{projectID, requestorID}}
	b.conds = append(b.conds,
		"ra.project_id = $1",
		"EXISTS (SELECT 1 FROM role_assignments x WHERE x.project_id = $1 AND x.user_id = $2)")

	if filter.FirstName != nil {
		b.add("u.first_name ILIKE %s", "%"+*filter.FirstName+"%")
	}
	if filter.LastName != nil {
		b.add("u.last_name ILIKE %s", "%"+*filter.LastName+"%")
	}
	if filter.Email != nil {
		b.add("u.email ILIKE %s", "%"+*filter.Email+"%")
	}
	if filter.Role != nil {
		b.add("ra.role = %s", *filter.Role)
	}

	where := b.clause()

	var count int
	countQuery := `SELECT COUNT(*) FROM role_assignments ra JOIN users u ON u.id = ra.user_id` + where
	if err := r.db.GetContext(ctx, &count, countQuery, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}

	query := memberSelect + where +
		orderClause(params.OrderBy, memberOrderColumns, "ra.created_at ASC") +
		b.limitOffset(params)

	members := []domain.Member{}
	if err := r.db.SelectContext(ctx, &members, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}
	return members, count, nil
}

// Create inserts a role assignment. A second assignment for the same
// (project, user) pair surfaces as domain.ErrConflict.
func (r *MemberRepository) Create(ctx context.Context, q Querier, projectID, userID int64, role domain.Role) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO role_assignments (project_id, user_id, role) VALUES ($1, $2, $3)`,
		projectID, userID, role)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("create role assignment: %w", err)
	}
	return nil
}

// UpdateRole changes a member's role.
func (r *MemberRepository) UpdateRole(ctx context.Context, q Querier, projectID, userID int64, role domain.Role) error {
	res, err := q.ExecContext(ctx,
		`UPDATE role_assignments SET role = $1 WHERE project_id = $2 AND user_id = $3`,
		role, projectID, userID)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update role rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a member's role assignment.
func (r *MemberRepository) Delete(ctx context.Context, q Querier, projectID, userID int64) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM role_assignments WHERE project_id = $1 AND user_id = $2`,
		projectID, userID)
	if err != nil {
		return fmt.Errorf("delete role assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete role assignment rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
