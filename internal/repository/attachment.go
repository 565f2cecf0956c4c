package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/bugtracker/internal/domain"
)

const attachmentColumns = `a.id, a.issue_id, a.comment_id, a.uploaded_by, a.file_path, a.filename, a.extension, a.created_at`

const attachmentReturning = `id, issue_id, comment_id, uploaded_by, file_path, filename, extension, created_at`

var attachmentOrderColumns = map[string]string{
	"created_at": "a.created_at",
}

// visibleAttachment scopes reads to members of the owning issue's project.
const visibleAttachment = `
	JOIN issues i ON i.id = a.issue_id
	JOIN role_assignments ra ON ra.project_id = i.project_id`

// AttachmentRepository handles attachment data access operations.
type AttachmentRepository struct {
	db *sqlx.DB
}

// NewAttachmentRepository creates a new AttachmentRepository.
func NewAttachmentRepository(db *sqlx.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Get retrieves an attachment of the given issue, visible only to members of
// the issue's project.
func (r *AttachmentRepository) Get(ctx context.Context, attachmentID, issueID, userID int64) (*domain.Attachment, error) {
	var attachment domain.Attachment
	err := r.db.GetContext(ctx, &attachment,
		`SELECT `+attachmentColumns+` FROM attachments a`+visibleAttachment+`
		 WHERE a.id = $1 AND a.issue_id = $2 AND ra.user_id = $3`,
		attachmentID, issueID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get attachment %d: %w", attachmentID, err)
	}
	return &attachment, nil
}

// ListForIssue returns the issue's direct and comment attachments matching
// the filter, plus the total count before pagination.
func (r *AttachmentRepository) ListForIssue(ctx context.Context, issueID, userID int64, filter AttachmentFilter, params ListParams) ([]domain.Attachment, int, error) {
	b := &whereBuilder{args: []any{issueID, userID}}
	b.conds = append(b.conds, "a.issue_id = $1", "ra.user_id = $2")
	return r.list(ctx, b, filter, params)
}

// ListForComment returns one comment's attachments matching the filter, plus
// the total count before pagination.
func (r *AttachmentRepository) ListForComment(ctx context.Context, issueID, commentID, userID int64, filter AttachmentFilter, params ListParams) ([]domain.Attachment, int, error) {
	b := &whereBuilder{args: []any{issueID, userID, commentID}}
	b.conds = append(b.conds, "a.issue_id = $1", "ra.user_id = $2", "a.comment_id = $3")
	return r.list(ctx, b, filter, params)
}

func (r *AttachmentRepository) list(ctx context.Context, b *whereBuilder, filter AttachmentFilter, params ListParams) ([]domain.Attachment, int, error) {
	if filter.Extension != nil {
		b.add("a.extension = %s", *filter.Extension)
	}

	where := b.clause()

	var count int
	countQuery := `SELECT COUNT(*) FROM attachments a` + visibleAttachment + where
	if err := r.db.GetContext(ctx, &count, countQuery, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count attachments: %w", err)
	}

	query := `SELECT ` + attachmentColumns + ` FROM attachments a` + visibleAttachment + where +
		orderClause(params.OrderBy, attachmentOrderColumns, "a.created_at ASC") +
		b.limitOffset(params)

	attachments := []domain.Attachment{}
	if err := r.db.SelectContext(ctx, &attachments, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list attachments: %w", err)
	}
	return attachments, count, nil
}

// Create inserts an attachment and returns the stored row.
func (r *AttachmentRepository) Create(ctx context.Context, q Querier, attachment domain.Attachment) (*domain.Attachment, error) {
	var result domain.Attachment
	err := sqlx.GetContext(ctx, q, &result,
		`INSERT INTO attachments (issue_id, comment_id, uploaded_by, file_path, filename, extension)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+attachmentReturning,
		attachment.IssueID, attachment.CommentID, attachment.UploadedBy,
		attachment.FilePath, attachment.Filename, attachment.Extension)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("create attachment: %w", err)
	}
	return &result, nil
}

// Delete removes an attachment row. The backing file is removed by the
// service after the transaction commits.
func (r *AttachmentRepository) Delete(ctx context.Context, q Querier, attachmentID int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM attachments WHERE id = $1`, attachmentID)
	if err != nil {
		return fmt.Errorf("delete attachment %d: %w", attachmentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete attachment rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
