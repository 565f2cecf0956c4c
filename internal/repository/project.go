package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/bugtracker/internal/domain"
)

// projectSelect joins the tenant identifier and the requesting user's role.
// Every read is membership-scoped: a project the user does not belong to is
// indistinguishable from one that does not exist.
const projectSelect = `
	SELECT p.id, p.name, p.description, p.status, p.created_by,
	       pi.subdomain, pi.updated_at AS subdomain_updated_at,
	       ra.role, p.created_at, p.updated_at
	FROM projects p
	JOIN project_identifiers pi ON pi.project_id = p.id
	JOIN role_assignments ra ON ra.project_id = p.id AND ra.user_id = $1`

var projectOrderColumns = map[string]string{
	"name":       "p.name",
	"status":     "p.status",
	"created_at": "p.created_at",
}

// ProjectRepository handles project and tenant identifier data access.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// FindByIDForUser retrieves a project by id, scoped to the user's membership.
func (r *ProjectRepository) FindByIDForUser(ctx context.Context, projectID, userID int64) (*domain.Project, error) {
	var project domain.Project
	err := r.db.GetContext(ctx, &project, projectSelect+` WHERE p.id = $2`, userID, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find project %d: %w", projectID, err)
	}
	return &project, nil
}

// FindBySubdomainForUser retrieves a project by tenant identifier, scoped to
// the user's membership.
func (r *ProjectRepository) FindBySubdomainForUser(ctx context.Context, subdomain string, userID int64) (*domain.Project, error) {
	var project domain.Project
	err := r.db.GetContext(ctx, &project, projectSelect+` WHERE pi.subdomain = $2`, userID, subdomain)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find project by subdomain: %w", err)
	}
	return &project, nil
}

// ListForUser returns the user's projects matching the filter, plus the total
// count before pagination.
func (r *ProjectRepository) ListForUser(ctx context.Context, userID int64, filter ProjectFilter, params ListParams) ([]domain.Project, int, error) {
	b := &whereBuilder{args: []any{userID}}
	if filter.Name != nil {
		b.add("p.name ILIKE %s", "%"+*filter.Name+"%")
	}
	if filter.Status != nil {
		b.add("p.status = %s", *filter.Status)
	}
	if filter.Role != nil {
		b.add("ra.role = %s", *filter.Role)
	}

	where := b.clause()

	var count int
	countQuery := `SELECT COUNT(*) FROM projects p
		JOIN project_identifiers pi ON pi.project_id = p.id
		JOIN role_assignments ra ON ra.project_id = p.id AND ra.user_id = $1` + where
	if err := r.db.GetContext(ctx, &count, countQuery, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	query := projectSelect + where +
		orderClause(params.OrderBy, projectOrderColumns, "p.created_at DESC") +
		b.limitOffset(params)

	projects := []domain.Project{}
	if err := r.db.SelectContext(ctx, &projects, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	return projects, count, nil
}

// Create inserts a project row.
func (r *ProjectRepository) Create(ctx context.Context, q Querier, project domain.Project) (*domain.Project, error) {
	var result domain.Project
	err := sqlx.GetContext(ctx, q, &result,
		`INSERT INTO projects (name, description, status, created_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, name, description, status, created_by, created_at, updated_at`,
		project.Name, project.Description, project.Status, project.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &result, nil
}

// CreateIdentifier inserts the project's unique tenant identifier. A taken
// subdomain surfaces as domain.ErrConflict.
func (r *ProjectRepository) CreateIdentifier(ctx context.Context, q Querier, projectID int64, subdomain string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO project_identifiers (project_id, subdomain) VALUES ($1, $2)`,
		projectID, subdomain)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("create project identifier: %w", err)
	}
	return nil
}

// Update writes project data fields.
func (r *ProjectRepository) Update(ctx context.Context, q Querier, project domain.Project) error {
	_, err := q.ExecContext(ctx,
		`UPDATE projects SET name = $1, description = $2, status = $3, updated_at = NOW() WHERE id = $4`,
		project.Name, project.Description, project.Status, project.ID)
	if err != nil {
		return fmt.Errorf("update project %d: %w", project.ID, err)
	}
	return nil
}

// UpdateSubdomain changes the tenant identifier and stamps its updated_at,
// which restarts the change cooldown.
func (r *ProjectRepository) UpdateSubdomain(ctx context.Context, q Querier, projectID int64, subdomain string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE project_identifiers SET subdomain = $1, updated_at = NOW() WHERE project_id = $2`,
		subdomain, projectID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("update subdomain for project %d: %w", projectID, err)
	}
	return nil
}
