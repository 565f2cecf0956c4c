package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/bugtracker/internal/domain"
)

const issueColumns = `i.id, i.project_id, i.title, i.description, i.status, i.priority, i.type,
	i.created_by, i.assigned_to, i.created_at, i.updated_at`

const issueReturning = `id, project_id, title, description, status, priority, type,
	created_by, assigned_to, created_at, updated_at`

var issueOrderColumns = map[string]string{
	"title":      "i.title",
	"status":     "i.status",
	"priority":   "i.priority",
	"type":       "i.type",
	"created_at": "i.created_at",
}

// IssueRepository handles issue data access operations.
type IssueRepository struct {
	db *sqlx.DB
}

// NewIssueRepository creates a new IssueRepository.
func NewIssueRepository(db *sqlx.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// FindByIDForUser retrieves an issue, visible only to members of its project.
func (r *IssueRepository) FindByIDForUser(ctx context.Context, issueID, userID int64) (*domain.Issue, error) {
	var issue domain.Issue
	err := r.db.GetContext(ctx, &issue,
		`SELECT `+issueColumns+` FROM issues i
		 JOIN role_assignments ra ON ra.project_id = i.project_id AND ra.user_id = $2
		 WHERE i.id = $1`, issueID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find issue %d: %w", issueID, err)
	}
	return &issue, nil
}

// List returns the project's issues matching the filter, plus the total count
// before pagination. Visibility requires the user's membership.
func (r *IssueRepository) List(ctx context.Context, projectID, userID int64, filter IssueFilter, params ListParams) ([]domain.Issue, int, error) {
	b := &whereBuilder{args: []any{projectID, userID}}
	b.conds = append(b.conds,
		"i.project_id = $1",
		"EXISTS (SELECT 1 FROM role_assignments ra WHERE ra.project_id = $1 AND ra.user_id = $2)")

	if filter.Title != nil {
		b.add("i.title ILIKE %s", "%"+*filter.Title+"%")
	}
	if filter.Status != nil {
		b.add("i.status = %s", *filter.Status)
	}
	if filter.Priority != nil {
		b.add("i.priority = %s", *filter.Priority)
	}
	if filter.Type != nil {
		b.add("i.type = %s", *filter.Type)
	}
	if filter.AssignedTo != nil {
		b.add("i.assigned_to = %s", *filter.AssignedTo)
	}
	if filter.CreatedBy != nil {
		b.add("i.created_by = %s", *filter.CreatedBy)
	}
	if filter.Unassigned {
		b.conds = append(b.conds, "i.assigned_to IS NULL")
	}

	where := b.clause()

	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM issues i`+where, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}

	query := `SELECT ` + issueColumns + ` FROM issues i` + where +
		orderClause(params.OrderBy, issueOrderColumns, "i.created_at DESC") +
		b.limitOffset(params)

	issues := []domain.Issue{}
	if err := r.db.SelectContext(ctx, &issues, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list issues: %w", err)
	}
	return issues, count, nil
}

// Create inserts an issue and returns the stored row.
func (r *IssueRepository) Create(ctx context.Context, q Querier, issue domain.Issue) (*domain.Issue, error) {
	var result domain.Issue
	err := sqlx.GetContext(ctx, q, &result,
		`INSERT INTO issues (project_id, title, description, status, priority, type, created_by, assigned_to)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+issueReturning,
		issue.ProjectID, issue.Title, issue.Description, issue.Status, issue.Priority,
		issue.Type, issue.CreatedBy, issue.AssignedTo)
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	return &result, nil
}

// Update writes issue data fields.
func (r *IssueRepository) Update(ctx context.Context, q Querier, issue domain.Issue) error {
	_, err := q.ExecContext(ctx,
		`UPDATE issues SET title = $1, description = $2, status = $3, priority = $4, type = $5, updated_at = NOW()
		 WHERE id = $6`,
		issue.Title, issue.Description, issue.Status, issue.Priority, issue.Type, issue.ID)
	if err != nil {
		return fmt.Errorf("update issue %d: %w", issue.ID, err)
	}
	return nil
}

// UpdateAssignee changes the issue's assignee. A nil assignee unassigns.
func (r *IssueRepository) UpdateAssignee(ctx context.Context, q Querier, issueID int64, assigneeID *int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE issues SET assigned_to = $1, updated_at = NOW() WHERE id = $2`,
		assigneeID, issueID)
	if err != nil {
		return fmt.Errorf("update issue %d assignee: %w", issueID, err)
	}
	return nil
}

// Delete removes an issue. Comments, attachments and history cascade at the
// database level.
func (r *IssueRepository) Delete(ctx context.Context, q Querier, issueID int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM issues WHERE id = $1`, issueID)
	if err != nil {
		return fmt.Errorf("delete issue %d: %w", issueID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete issue rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
