package service

import (
	"context"
	"fmt"

	"github.com/sumire/bugtracker/internal/domain"
	"github.com/sumire/bugtracker/internal/permission"
	"github.com/sumire/bugtracker/internal/repository"
)

// CommentService orchestrates comment use cases. Any project member may
// comment on any visible issue; editing and removal are author-only.
type CommentService struct {
	comments CommentStore
	issues   IssueStore
	history  HistoryStore
	tx       Transactor
}

// NewCommentService creates a new CommentService.
func NewCommentService(comments CommentStore, issues IssueStore, history HistoryStore, tx Transactor) *CommentService {
	return &CommentService{
		comments: comments,
		issues:   issues,
		history:  history,
		tx:       tx,
	}
}

// Create adds a comment to an issue visible to the author.
func (s *CommentService) Create(ctx context.Context, issueID, authorID int64, text string) (*domain.Comment, error) {
	issue, err := s.issues.FindByIDForUser(ctx, issueID, authorID)
	if err != nil {
		return nil, err
	}

	var comment *domain.Comment
	err = s.tx.Transact(ctx, func(q repository.Querier) error {
		created, createErr := s.comments.Create(ctx, q, domain.Comment{
			IssueID:  issue.ID,
			AuthorID: authorID,
			Text:     sanitize(text),
		})
		if createErr != nil {
			return createErr
		}
		comment = created
		return s.history.Append(ctx, q, domain.HistoryEntry{
			IssueID:   issue.ID,
			Subject:   domain.HistorySubjectComment,
			SubjectID: created.ID,
			Action:    domain.HistoryActionCreate,
			ActorID:   &authorID,
		})
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// Update edits a comment's text. Only the author may edit, regardless of
// project role.
func (s *CommentService) Update(ctx context.Context, issueID, commentID, editorID int64, text string) (*domain.Comment, error) {
	comment, err := s.comments.Get(ctx, commentID, issueID, editorID)
	if err != nil {
		return nil, err
	}
	if !permission.CanEditComment(editorID, comment.AuthorID) {
		return nil, fmt.Errorf("%w: only the author can edit a comment", domain.ErrForbidden)
	}

	clean := sanitize(text)
	if clean == comment.Text {
		return comment, nil
	}

	changes := map[string][2]any{"text": {comment.Text, clean}}
	err = s.tx.Transact(ctx, func(q repository.Querier) error {
		if err := s.comments.Update(ctx, q, comment.ID, clean); err != nil {
			return err
		}
		return s.history.Append(ctx, q, domain.HistoryEntry{
			IssueID:   comment.IssueID,
			Subject:   domain.HistorySubjectComment,
			SubjectID: comment.ID,
			Action:    domain.HistoryActionUpdate,
			ActorID:   &editorID,
			Changes:   marshalChanges(changes),
		})
	})
	if err != nil {
		return nil, err
	}

	comment.Text = clean
	return comment, nil
}

// Remove deletes a comment and its attachments. Only the author may remove.
func (s *CommentService) Remove(ctx context.Context, issueID, commentID, editorID int64) error {
	comment, err := s.comments.Get(ctx, commentID, issueID, editorID)
	if err != nil {
		return err
	}
	if !permission.CanRemoveComment(editorID, comment.AuthorID) {
		return fmt.Errorf("%w: only the author can remove a comment", domain.ErrForbidden)
	}

	return s.tx.Transact(ctx, func(q repository.Querier) error {
		if err := s.comments.Delete(ctx, q, comment.ID); err != nil {
			return err
		}
		return s.history.Append(ctx, q, domain.HistoryEntry{
			IssueID:   comment.IssueID,
			Subject:   domain.HistorySubjectComment,
			SubjectID: comment.ID,
			Action:    domain.HistoryActionDelete,
			ActorID:   &editorID,
		})
	})
}

// Get retrieves a comment on an issue visible to the user.
func (s *CommentService) Get(ctx context.Context, issueID, commentID, userID int64) (*domain.Comment, error) {
	return s.comments.Get(ctx, commentID, issueID, userID)
}

// List returns the issue's comments visible to the user.
func (s *CommentService) List(ctx context.Context, issueID, userID int64, filter repository.CommentFilter, params repository.ListParams) ([]domain.Comment, int, error) {
	return s.comments.List(ctx, issueID, userID, filter, params)
}
