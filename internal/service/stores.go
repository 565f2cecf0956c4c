package service

import (
	"context"

	"github.com/sumire/bugtracker/internal/domain"
	"github.com/sumire/bugtracker/internal/repository"
)

// Transactor runs a function inside a single database transaction. Mutating
// service calls thread the transaction scope explicitly through the store
// methods that accept a repository.Querier.
type Transactor interface {
	Transact(ctx context.Context, fn func(q repository.Querier) error) error
}

// UserStore defines the user data access interface consumed by services.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByProviderID(ctx context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error)
	Create(ctx context.Context, q repository.Querier, user domain.User) (*domain.User, error)
	UpsertOAuth(ctx context.Context, user domain.User) (*domain.User, error)
	SetPassword(ctx context.Context, userID int64, hash string) error
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// ProjectStore defines the project data access interface consumed by services.
type ProjectStore interface {
	FindByIDForUser(ctx context.Context, projectID, userID int64) (*domain.Project, error)
	FindBySubdomainForUser(ctx context.Context, subdomain string, userID int64) (*domain.Project, error)
	ListForUser(ctx context.Context, userID int64, filter repository.ProjectFilter, params repository.ListParams) ([]domain.Project, int, error)
	Create(ctx context.Context, q repository.Querier, project domain.Project) (*domain.Project, error)
	CreateIdentifier(ctx context.Context, q repository.Querier, projectID int64, subdomain string) error
	Update(ctx context.Context, q repository.Querier, project domain.Project) error
	UpdateSubdomain(ctx context.Context, q repository.Querier, projectID int64, subdomain string) error
}

// MemberStore is the role store: it resolves and mutates (project, user, role)
// assignments.
type MemberStore interface {
	GetRole(ctx context.Context, projectID, userID int64) (domain.Role, error)
	Get(ctx context.Context, projectID, memberID, requestorID int64) (*domain.Member, error)
	List(ctx context.Context, projectID, requestorID int64, filter repository.MemberFilter, params repository.ListParams) ([]domain.Member, int, error)
	Create(ctx context.Context, q repository.Querier, projectID, userID int64, role domain.Role) error
	UpdateRole(ctx context.Context, q repository.Querier, projectID, userID int64, role domain.Role) error
	Delete(ctx context.Context, q repository.Querier, projectID, userID int64) error
}

// IssueStore defines the issue data access interface consumed by services.
type IssueStore interface {
	FindByIDForUser(ctx context.Context, issueID, userID int64) (*domain.Issue, error)
	List(ctx context.Context, projectID, userID int64, filter repository.IssueFilter, params repository.ListParams) ([]domain.Issue, int, error)
	Create(ctx context.Context, q repository.Querier, issue domain.Issue) (*domain.Issue, error)
	Update(ctx context.Context, q repository.Querier, issue domain.Issue) error
	UpdateAssignee(ctx context.Context, q repository.Querier, issueID int64, assigneeID *int64) error
	Delete(ctx context.Context, q repository.Querier, issueID int64) error
}

// CommentStore defines the comment data access interface consumed by services.
type CommentStore interface {
	Get(ctx context.Context, commentID, issueID, userID int64) (*domain.Comment, error)
	List(ctx context.Context, issueID, userID int64, filter repository.CommentFilter, params repository.ListParams) ([]domain.Comment, int, error)
	Create(ctx context.Context, q repository.Querier, comment domain.Comment) (*domain.Comment, error)
	Update(ctx context.Context, q repository.Querier, commentID int64, text string) error
	Delete(ctx context.Context, q repository.Querier, commentID int64) error
}

// AttachmentStore defines the attachment data access interface consumed by
// services.
type AttachmentStore interface {
	Get(ctx context.Context, attachmentID, issueID, userID int64) (*domain.Attachment, error)
	ListForIssue(ctx context.Context, issueID, userID int64, filter repository.AttachmentFilter, params repository.ListParams) ([]domain.Attachment, int, error)
	ListForComment(ctx context.Context, issueID, commentID, userID int64, filter repository.AttachmentFilter, params repository.ListParams) ([]domain.Attachment, int, error)
	Create(ctx context.Context, q repository.Querier, attachment domain.Attachment) (*domain.Attachment, error)
	Delete(ctx context.Context, q repository.Querier, attachmentID int64) error
}

// HistoryStore records and reads the append-only change history.
type HistoryStore interface {
	Append(ctx context.Context, q repository.Querier, entry domain.HistoryEntry) error
	List(ctx context.Context, issueID, userID int64, filter repository.HistoryFilter, params repository.ListParams) ([]domain.HistoryEntry, int, error)
}
