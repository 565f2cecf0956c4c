package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sumire/bugtracker/internal/domain"
	"github.com/sumire/bugtracker/internal/permission"
	"github.com/sumire/bugtracker/internal/repository"
)

// InviteTokenIssuer signs the set-password token sent to invitees without an
// account.
type InviteTokenIssuer interface {
	GenerateInviteToken(userID int64) (string, error)
}

// MemberService orchestrates project membership use cases.
type MemberService struct {
	members  MemberStore
	users    UserStore
	projects ProjectStore
	tx       Transactor
	notifier *Notifier
	tokens   InviteTokenIssuer
}

// NewMemberService creates a new MemberService.
func NewMemberService(members MemberStore, users UserStore, projects ProjectStore, tx Transactor, notifier *Notifier, tokens InviteTokenIssuer) *MemberService {
	return &MemberService{
		members:  members,
		users:    users,
		projects: projects,
		tx:       tx,
		notifier: notifier,
		tokens:   tokens,
	}
}

// Invite adds a user to the project by email. Manager-only. Unknown emails
// get a passwordless account and a set-password invitation; known users get
// a plain invitation. Inviting an existing member is a conflict.
func (s *MemberService) Invite(ctx context.Context, projectID, editorID int64, email string, role domain.Role) (*domain.Member, error) {
	project, err := s.projects.FindByIDForUser(ctx, projectID, editorID)
	if err != nil {
		return nil, err
	}
	if !permission.CanEditMembers(project.Role) {
		return nil, fmt.Errorf("%w: not sufficient role in project", domain.ErrForbidden)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	isNewUser := user == nil
	err = s.tx.Transact(ctx, func(q repository.Querier) error {
		if isNewUser {
			created, createErr := s.users.Create(ctx, q, domain.User{
				Username: generateUsername(),
				Email:    email,
			})
			if createErr != nil {
				return createErr
			}
			user = created
		}
		if createErr := s.members.Create(ctx, q, projectID, user.ID, role); createErr != nil {
			if errors.Is(createErr, domain.ErrConflict) {
				return fmt.Errorf("%w: user already in project", domain.ErrConflict)
			}
			return createErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if isNewUser {
		token, tokenErr := s.tokens.GenerateInviteToken(user.ID)
		if tokenErr != nil {
			return nil, tokenErr
		}
		if mailErr := s.notifier.InvitationNewUser(ctx, email, user.Username, project.Name, token); mailErr != nil {
			return nil, mailErr
		}
	} else {
		if mailErr := s.notifier.InvitationExistingUser(ctx, email, project.Name); mailErr != nil {
			return nil, mailErr
		}
	}

	slog.Info("member invited", "project_id", projectID, "user_id", user.ID, "role", role)

	return &domain.Member{
		ProjectID: projectID,
		UserID:    user.ID,
		Role:      role,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}, nil
}

// ChangeRole gives a member a new role. Manager-only; editing one's own
// membership is rejected.
func (s *MemberService) ChangeRole(ctx context.Context, projectID, editorID, memberID int64, role domain.Role) (*domain.Member, error) {
	project, err := s.projects.FindByIDForUser(ctx, projectID, editorID)
	if err != nil {
		return nil, err
	}
	if !permission.CanEditMembers(project.Role) {
		return nil, fmt.Errorf("%w: not sufficient role in project", domain.ErrForbidden)
	}
	if memberID == editorID {
		return nil, fmt.Errorf("%w: cannot modify own membership", domain.ErrUnprocessable)
	}

	member, err := s.members.Get(ctx, projectID, memberID, editorID)
	if err != nil {
		return nil, err
	}

	err = s.tx.Transact(ctx, func(q repository.Querier) error {
		return s.members.UpdateRole(ctx, q, projectID, memberID, role)
	})
	if err != nil {
		return nil, err
	}

	member.Role = role
	return member, nil
}

// Remove deletes a member's role assignment. Manager-only; removing oneself
// is rejected.
func (s *MemberService) Remove(ctx context.Context, projectID, editorID, memberID int64) error {
	project, err := s.projects.FindByIDForUser(ctx, projectID, editorID)
	if err != nil {
		return err
	}
	if !permission.CanEditMembers(project.Role) {
		return fmt.Errorf("%w: not sufficient role in project", domain.ErrForbidden)
	}
	if memberID == editorID {
		return fmt.Errorf("%w: cannot modify own membership", domain.ErrUnprocessable)
	}

	if _, err := s.members.Get(ctx, projectID, memberID, editorID); err != nil {
		return err
	}

	return s.tx.Transact(ctx, func(q repository.Querier) error {
		return s.members.Delete(ctx, q, projectID, memberID)
	})
}

// Get retrieves one member, visible only to fellow members.
func (s *MemberService) Get(ctx context.Context, projectID, memberID, requestorID int64) (*domain.Member, error) {
	return s.members.Get(ctx, projectID, memberID, requestorID)
}

// List returns the project's members, visible only to fellow members.
func (s *MemberService) List(ctx context.Context, projectID, requestorID int64, filter repository.MemberFilter, params repository.ListParams) ([]domain.Member, int, error) {
	return s.members.List(ctx, projectID, requestorID, filter, params)
}
