package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/sumire/bugtracker/internal/domain"
	"github.com/sumire/bugtracker/internal/permission"
	"github.com/sumire/bugtracker/internal/repository"
	"github.com/sumire/bugtracker/internal/storage"
)

// AttachmentService orchestrates attachment use cases. Uploading to an issue
// follows the issue edit permission; uploading to a comment follows the
// comment edit permission. File content is validated against a per-extension
// MIME allow-list by sniffing, not by trusting the client.
type AttachmentService struct {
	attachments AttachmentStore
	issues      IssueStore
	comments    CommentStore
	members     MemberStore
	history     HistoryStore
	tx          Transactor
	files       storage.Store

	maxSize      int64
	allowedTypes map[string]string
}

// NewAttachmentService creates a new AttachmentService. allowedTypes maps a
// lowercase extension (without dot) to the MIME type its content must sniff
// as.
func NewAttachmentService(
	attachments AttachmentStore,
	issues IssueStore,
	comments CommentStore,
	members MemberStore,
	history HistoryStore,
	tx Transactor,
	files storage.Store,
	maxSize int64,
	allowedTypes map[string]string,
) *AttachmentService {
	return &AttachmentService{
		attachments:  attachments,
		issues:       issues,
		comments:     comments,
		members:      members,
		history:      history,
		tx:           tx,
		files:        files,
		maxSize:      maxSize,
		allowedTypes: allowedTypes,
	}
}

// Upload carries an uploaded file.
type Upload struct {
	Filename string
	Content  io.Reader
}

// AddToIssue attaches a file directly to an issue.
func (s *AttachmentService) AddToIssue(ctx context.Context, issueID, uploaderID int64, upload Upload) (*domain.Attachment, error) {
	issue, err := s.issues.FindByIDForUser(ctx, issueID, uploaderID)
	if err != nil {
		return nil, err
	}

	role, err := s.members.GetRole(ctx, issue.ProjectID, uploaderID)
	if err != nil {
		return nil, err
	}
	if !permission.CanEditIssue(role, uploaderID, issue.CreatedBy) {
		return nil, fmt.Errorf("%w: cannot attach files to this issue", domain.ErrForbidden)
	}

	return s.store(ctx, issue.ID, nil, uploaderID, upload)
}

// AddToComment attaches a file to one of the issue's comments.
func (s *AttachmentService) AddToComment(ctx context.Context, issueID, commentID, uploaderID int64, upload Upload) (*domain.Attachment, error) {
	comment, err := s.comments.Get(ctx, commentID, issueID, uploaderID)
	if err != nil {
		return nil, err
	}
	if !permission.CanEditComment(uploaderID, comment.AuthorID) {
		return nil, fmt.Errorf("%w: cannot attach files to this comment", domain.ErrForbidden)
	}

	return s.store(ctx, comment.IssueID, &comment.ID, uploaderID, upload)
}

func (s *AttachmentService) store(ctx context.Context, issueID int64, commentID *int64, uploaderID int64, upload Upload) (*domain.Attachment, error) {
	ext, content, err := s.validate(upload)
	if err != nil {
		return nil, err
	}

	key := storageKey(issueID, commentID, ext)
	if err := s.files.Save(ctx, key, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("save attachment file: %w", err)
	}

	var attachment *domain.Attachment
	err = s.tx.Transact(ctx, func(q repository.Querier) error {
		created, createErr := s.attachments.Create(ctx, q, domain.Attachment{
			IssueID:    issueID,
			CommentID:  commentID,
			UploadedBy: uploaderID,
			FilePath:   key,
			Filename:   upload.Filename,
			Extension:  ext,
		})
		if createErr != nil {
			return createErr
		}
		attachment = created
		return s.history.Append(ctx, q, domain.HistoryEntry{
			IssueID:   issueID,
			Subject:   domain.HistorySubjectAttachment,
			SubjectID: created.ID,
			Action:    domain.HistoryActionCreate,
			ActorID:   &uploaderID,
		})
	})
	if err != nil {
		// The row never landed, so the file must not linger.
		_ = s.files.Remove(ctx, key)
		return nil, err
	}
	return attachment, nil
}

// validate checks the extension against the allow-list, enforces the size
// cap, and sniffs the content to confirm it matches the MIME type expected
// for the extension. Returns the extension and the buffered content.
func (s *AttachmentService) validate(upload Upload) (string, []byte, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(upload.Filename), "."))
	wantMIME, ok := s.allowedTypes[ext]
	if !ok {
		return "", nil, fmt.Errorf("%w: file extension %q is not allowed", domain.ErrInvalidInput, ext)
	}

	content, err := io.ReadAll(io.LimitReader(upload.Content, s.maxSize+1))
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(content)) > s.maxSize {
		return "", nil, fmt.Errorf("%w: file exceeds the %d byte limit", domain.ErrInvalidInput, s.maxSize)
	}

	if detected := mimetype.Detect(content); !detected.Is(wantMIME) {
		return "", nil, fmt.Errorf("%w: file content is %s, expected %s for .%s", domain.ErrInvalidInput, detected.String(), wantMIME, ext)
	}
	return ext, content, nil
}

// Remove deletes an attachment row and then its backing file. An attachment
// hanging off a comment is gated by the comment edit permission; a direct
// issue attachment by the issue edit permission.
func (s *AttachmentService) Remove(ctx context.Context, issueID, attachmentID, editorID int64) error {
	attachment, err := s.attachments.Get(ctx, attachmentID, issueID, editorID)
	if err != nil {
		return err
	}

	if attachment.CommentID != nil {
		comment, err := s.comments.Get(ctx, *attachment.CommentID, issueID, editorID)
		if err != nil {
			return err
		}
		if !permission.CanRemoveComment(editorID, comment.AuthorID) {
			return fmt.Errorf("%w: cannot remove this attachment", domain.ErrForbidden)
		}
	} else {
		issue, err := s.issues.FindByIDForUser(ctx, issueID, editorID)
		if err != nil {
			return err
		}
		role, err := s.members.GetRole(ctx, issue.ProjectID, editorID)
		if err != nil {
			return err
		}
		if !permission.CanRemoveIssue(role, editorID, issue.CreatedBy) {
			return fmt.Errorf("%w: cannot remove this attachment", domain.ErrForbidden)
		}
	}

	err = s.tx.Transact(ctx, func(q repository.Querier) error {
		if err := s.attachments.Delete(ctx, q, attachment.ID); err != nil {
			return err
		}
		return s.history.Append(ctx, q, domain.HistoryEntry{
			IssueID:   attachment.IssueID,
			Subject:   domain.HistorySubjectAttachment,
			SubjectID: attachment.ID,
			Action:    domain.HistoryActionDelete,
			ActorID:   &editorID,
		})
	})
	if err != nil {
		return err
	}

	// File removal follows the committed row delete and tolerates the file
	// already being gone.
	return s.files.Remove(ctx, attachment.FilePath)
}

// Get retrieves an attachment on an issue visible to the user.
func (s *AttachmentService) Get(ctx context.Context, issueID, attachmentID, userID int64) (*domain.Attachment, error) {
	return s.attachments.Get(ctx, attachmentID, issueID, userID)
}

// Download opens the attachment's stored content for reading.
func (s *AttachmentService) Download(ctx context.Context, issueID, attachmentID, userID int64) (*domain.Attachment, io.ReadCloser, error) {
	attachment, err := s.attachments.Get(ctx, attachmentID, issueID, userID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.files.Open(ctx, attachment.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open attachment file: %w", err)
	}
	return attachment, rc, nil
}

// ListForIssue returns the issue's direct and comment attachments visible to
// the user.
func (s *AttachmentService) ListForIssue(ctx context.Context, issueID, userID int64, filter repository.AttachmentFilter, params repository.ListParams) ([]domain.Attachment, int, error) {
	return s.attachments.ListForIssue(ctx, issueID, userID, filter, params)
}

// ListForComment returns the attachments of one comment visible to the user.
func (s *AttachmentService) ListForComment(ctx context.Context, issueID, commentID, userID int64, filter repository.AttachmentFilter, params repository.ListParams) ([]domain.Attachment, int, error) {
	return s.attachments.ListForComment(ctx, issueID, commentID, userID, filter, params)
}

func storageKey(issueID int64, commentID *int64, ext string) string {
	name := uuid.NewString() + "." + ext
	if commentID != nil {
		return fmt.Sprintf("issue-%d/comment-%d/%s", issueID, *commentID, name)
	}
	return fmt.Sprintf("issue-%d/%s", issueID, name)
}
