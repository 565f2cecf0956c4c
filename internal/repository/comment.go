package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/bugtracker/internal/domain"
)

const commentColumns = `c.id, c.issue_id, c.author_id, c.text, c.created_at, c.updated_at`

const commentReturning = `id, issue_id, author_id, text, created_at, updated_at`

var commentOrderColumns = map[string]string{
	"created_at": "c.created_at",
}

// CommentRepository handles comment data access operations.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Get retrieves a comment of the given issue, visible only to members of the
// issue's project.
func (r *CommentRepository) Get(ctx context.Context, commentID, issueID, userID int64) (*domain.Comment, error) {
	var comment domain.Comment
	err := r.db.GetContext(ctx, &comment,
		`SELECT `+commentColumns+` FROM comments c
		 JOIN issues i ON i.id = c.issue_id
		 JOIN role_assignments ra ON ra.project_id = i.project_id AND ra.user_id = $3
		 WHERE c.id = $1 AND c.issue_id = $2`, commentID, issueID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get comment %d: %w", commentID, err)
	}
	return &comment, nil
}

// List returns the issue's comments matching the filter, plus the total count
// before pagination.
func (r *CommentRepository) List(ctx context.Context, issueID, userID int64, filter CommentFilter, params ListParams) ([]domain.Comment, int, error) {
	b := &whereBuilder{args: []any{issueID, userID}}
	b.conds = append(b.conds,
		"c.issue_id = $1",
		`EXISTS (SELECT 1 FROM issues i
			JOIN role_assignments ra ON ra.project_id = i.project_id AND ra.user_id = $2
			WHERE i.id = $1)`)

	if filter.AuthorID != nil {
		b.add("c.author_id = %s", *filter.AuthorID)
	}

	where := b.clause()

	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM comments c`+where, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	query := `SELECT ` + commentColumns + ` FROM comments c` + where +
		orderClause(params.OrderBy, commentOrderColumns, "c.created_at ASC") +
		b.limitOffset(params)

	comments := []domain.Comment{}
	if err := r.db.SelectContext(ctx, &comments, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	return comments, count, nil
}

// Create inserts a comment and returns the stored row.
func (r *CommentRepository) Create(ctx context.Context, q Querier, comment domain.Comment) (*domain.Comment, error) {
	var result domain.Comment
	err := sqlx.GetContext(ctx, q, &result,
		`INSERT INTO comments (issue_id, author_id, text)
		 VALUES ($1, $2, $3)
		 RETURNING `+commentReturning,
		comment.IssueID, comment.AuthorID, comment.Text)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return &result, nil
}

// Update writes the comment text.
func (r *CommentRepository) Update(ctx context.Context, q Querier, commentID int64, text string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE comments SET text = $1, updated_at = NOW() WHERE id = $2`, text, commentID)
	if err != nil {
		return fmt.Errorf("update comment %d: %w", commentID, err)
	}
	return nil
}

// Delete removes a comment. Its attachments cascade at the database level.
func (r *CommentRepository) Delete(ctx context.Context, q Querier, commentID int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment %d: %w", commentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete comment rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
