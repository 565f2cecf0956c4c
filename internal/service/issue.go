package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sumire/bugtracker/internal/domain"
	"github.com/sumire/bugtracker/internal/permission"
	"github.com/sumire/bugtracker/internal/repository"
)

// IssueService orchestrates issue use cases: creation, edits, assignment and
// removal, with history recording and assignment notifications.
type IssueService struct {
	issues   IssueStore
	projects ProjectStore
	members  MemberStore
	history  HistoryStore
	tx       Transactor
	notifier *Notifier
}

// NewIssueService creates a new IssueService.
func NewIssueService(issues IssueStore, projects ProjectStore, members MemberStore, history HistoryStore, tx Transactor, notifier *Notifier) *IssueService {
	return &IssueService{
		issues:   issues,
		projects: projects,
		members:  members,
		history:  history,
		tx:       tx,
		notifier: notifier,
	}
}

// IssueCreateInput carries an issue creation request.
type IssueCreateInput struct {
	Title       string
	Description *string
	Priority    domain.IssuePriority
	Type        domain.IssueType
	AssignedTo  *int64
}

// Create makes an issue in the project, optionally assigned. The assignee
// must be a project member, and assigning is permission-checked separately
// from creating.
func (s *IssueService) Create(ctx context.Context, projectID, creatorID int64, input IssueCreateInput) (*domain.Issue, error) {
	project, err := s.projects.FindByIDForUser(ctx, projectID, creatorID)
	if err != nil {
		return nil, err
	}
	if !permission.CanCreateIssue(project.Role) {
		return nil, fmt.Errorf("%w: cannot create issues in this project", domain.ErrForbidden)
	}

	assignee, err := s.resolveAssignee(ctx, projectID, creatorID, project.Role, input.AssignedTo)
	if err != nil {
		return nil, err
	}

	var issue *domain.Issue
	err = s.tx.Transact(ctx, func(q repository.Querier) error {
		created, createErr := s.issues.Create(ctx, q, domain.Issue{
			ProjectID:   projectID,
			Title:       input.Title,
			Description: sanitizePtr(input.Description),
			Status:      domain.IssueStatusOpen,
			Priority:    input.Priority,
			Type:        input.Type,
			CreatedBy:   creatorID,
			AssignedTo:  input.AssignedTo,
		})
		if createErr != nil {
			return createErr
		}
		issue = created
		return s.history.Append(ctx, q, domain.HistoryEntry{
			IssueID:   created.ID,
			Subject:   domain.HistorySubjectIssue,
			SubjectID: created.ID,
			Action:    domain.HistoryActionCreate,
			ActorID:   &creatorID,
		})
	})
	if err != nil {
		return nil, err
	}

	if assignee != nil {
		if err := s.notifier.IssueAssigned(ctx, assignee.Email, issue.Title, issue.ID); err != nil {
			return nil, err
		}
	}
	return issue, nil
}

// IssueUpdateInput carries a partial issue update. Nil fields are left
// untouched.
type IssueUpdateInput struct {
	Title       *string
	Description *string
	Status      *domain.IssueStatus
	Priority    *domain.IssuePriority
	Type        *domain.IssueType
}

// Update edits issue data, gated by the edit permission.
func (s *IssueService) Update(ctx context.Context, issueID, editorID int64, input IssueUpdateInput) (*domain.Issue, error) {
	issue, err := s.issues.FindByIDForUser(ctx, issueID, editorID)
	if err != nil {
		return nil, err
	}

	role, err := s.members.GetRole(ctx, issue.ProjectID, editorID)
	if err != nil {
		return nil, err
	}
	if !permission.CanEditIssue(role, editorID, issue.CreatedBy) {
		return nil, fmt.Errorf("%w: cannot edit this issue", domain.ErrForbidden)
	}

	changes := map[string][2]any{}
	if input.Title != nil && *input.Title != issue.Title {
		changes["title"] = [2]any{issue.Title, *input.Title}
		issue.Title = *input.Title
	}
	if input.Description != nil {
		clean := sanitizePtr(input.Description)
		if issue.Description == nil || *issue.Description != *clean {
			changes["description"] = [2]any{issue.Description, clean}
			issue.Description = clean
		}
	}
	if input.Status != nil && *input.Status != issue.Status {
		changes["status"] = [2]any{issue.Status, *input.Status}
		issue.Status = *input.Status
	}
	if input.Priority != nil && *input.Priority != issue.Priority {
		changes["priority"] = [2]any{issue.Priority, *input.Priority}
		issue.Priority = *input.Priority
	}
	if input.Type != nil && *input.Type != issue.Type {
		changes["type"] = [2]any{issue.Type, *input.Type}
		issue.Type = *input.Type
	}

	if len(changes) == 0 {
		return issue, nil
	}

	err = s.tx.Transact(ctx, func(q repository.Querier) error {
		if err := s.issues.Update(ctx, q, *issue); err != nil {
			return err
		}
		return s.history.Append(ctx, q, domain.HistoryEntry{
			IssueID:   issue.ID,
			Subject:   domain.HistorySubjectIssue,
			SubjectID: issue.ID,
			Action:    domain.HistoryActionUpdate,
			ActorID:   &editorID,
			Changes:   marshalChanges(changes),
		})
	})
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// Assign changes the issue's assignee. Re-assigning the current assignee,
// including nobody to nobody, is a conflict and never reaches the store or
// the notifier.
func (s *IssueService) Assign(ctx context.Context, issueID, editorID int64, assigneeID *int64) (*domain.Issue, error) {
	issue, err := s.issues.FindByIDForUser(ctx, issueID, editorID)
	if err != nil {
		return nil, err
	}

	if sameAssignee(issue.AssignedTo, assigneeID) {
		return nil, fmt.Errorf("%w: issue already assigned to given assignee", domain.ErrConflict)
	}

	role, err := s.members.GetRole(ctx, issue.ProjectID, editorID)
	if err != nil {
		return nil, err
	}

	assignee, err := s.resolveAssignee(ctx, issue.ProjectID, editorID, role, assigneeID)
	if err != nil {
		return nil, err
	}

	changes := map[string][2]any{"assigned_to": {issue.AssignedTo, assigneeID}}
	err = s.tx.Transact(ctx, func(q repository.Querier) error {
		if err := s.issues.UpdateAssignee(ctx, q, issue.ID, assigneeID); err != nil {
			return err
		}
		return s.history.Append(ctx, q, domain.HistoryEntry{
			IssueID:   issue.ID,
			Subject:   domain.HistorySubjectIssue,
			SubjectID: issue.ID,
			Action:    domain.HistoryActionUpdate,
			ActorID:   &editorID,
			Changes:   marshalChanges(changes),
		})
	})
	if err != nil {
		return nil, err
	}

	issue.AssignedTo = assigneeID
	if assignee != nil {
		if err := s.notifier.IssueAssigned(ctx, assignee.Email, issue.Title, issue.ID); err != nil {
			return nil, err
		}
	}
	return issue, nil
}

// Remove deletes an issue, gated by the remove permission. Comments,
// attachments and history cascade.
func (s *IssueService) Remove(ctx context.Context, issueID, editorID int64) error {
	issue, err := s.issues.FindByIDForUser(ctx, issueID, editorID)
	if err != nil {
		return err
	}

	role, err := s.members.GetRole(ctx, issue.ProjectID, editorID)
	if err != nil {
		return err
	}
	if !permission.CanRemoveIssue(role, editorID, issue.CreatedBy) {
		return fmt.Errorf("%w: cannot remove this issue", domain.ErrForbidden)
	}

	return s.tx.Transact(ctx, func(q repository.Querier) error {
		return s.issues.Delete(ctx, q, issue.ID)
	})
}

// Get retrieves an issue visible to the user.
func (s *IssueService) Get(ctx context.Context, issueID, userID int64) (*domain.Issue, error) {
	return s.issues.FindByIDForUser(ctx, issueID, userID)
}

// List returns the project's issues visible to the user.
func (s *IssueService) List(ctx context.Context, projectID, userID int64, filter repository.IssueFilter, params repository.ListParams) ([]domain.Issue, int, error) {
	return s.issues.List(ctx, projectID, userID, filter, params)
}

// resolveAssignee validates an assignment target. A nil target means
// unassign. A target outside the project is unprocessable, not forbidden;
// the permission check applies only to real members.
func (s *IssueService) resolveAssignee(ctx context.Context, projectID, actorID int64, actorRole domain.Role, assigneeID *int64) (*domain.Member, error) {
	if assigneeID == nil {
		return nil, nil
	}

	member, err := s.members.Get(ctx, projectID, *assigneeID, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: assignee does not belong to the project", domain.ErrUnprocessable)
		}
		return nil, err
	}

	if !permission.CanAssignIssue(actorRole, actorID, *assigneeID) {
		return nil, fmt.Errorf("%w: cannot assign this issue", domain.ErrForbidden)
	}
	return member, nil
}

func sameAssignee(current, next *int64) bool {
	if current == nil && next == nil {
		return true
	}
	if current == nil || next == nil {
		return false
	}
	return *current == *next
}
