package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sumire/bugtracker/internal/domain"
	"github.com/sumire/bugtracker/internal/permission"
	"github.com/sumire/bugtracker/internal/repository"
)

// SubdomainChangeAllowed reports whether the project's tenant identifier may
// change at now, and the instant at which a change is next permitted. The
// cooldown restarts from the identifier's last update.
func SubdomainChangeAllowed(lastUpdate time.Time, cooldown time.Duration, now time.Time) (bool, time.Time) {
	next := lastUpdate.Add(cooldown)
	return !now.Before(next), next
}

// SubdomainCooldownError is the unprocessable outcome for a subdomain change
// requested inside the cooldown window. NextAllowed feeds the user-facing
// message.
type SubdomainCooldownError struct {
	NextAllowed time.Time
}

func (e *SubdomainCooldownError) Error() string {
	return fmt.Sprintf("subdomain recently changed, next change possible at %s",
		e.NextAllowed.UTC().Format(time.RFC3339))
}

func (e *SubdomainCooldownError) Unwrap() error { return domain.ErrUnprocessable }

// ProjectService orchestrates project use cases: creation, updates, listings
// and tenant resolution.
type ProjectService struct {
	projects ProjectStore
	members  MemberStore
	tx       Transactor
	cooldown time.Duration
	now      func() time.Time
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projects ProjectStore, members MemberStore, tx Transactor, cooldown time.Duration) *ProjectService {
	return &ProjectService{
		projects: projects,
		members:  members,
		tx:       tx,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// ProjectCreateInput carries a project creation request.
type ProjectCreateInput struct {
	Name        string
	Description *string
	Subdomain   string
}

// Create makes a project, its tenant identifier and the creator's manager
// role assignment in one transaction.
func (s *ProjectService) Create(ctx context.Context, userID int64, input ProjectCreateInput) (*domain.Project, error) {
	var project *domain.Project
	err := s.tx.Transact(ctx, func(q repository.Querier) error {
		created, err := s.projects.Create(ctx, q, domain.Project{
			Name:        input.Name,
			Description: sanitizePtr(input.Description),
			Status:      domain.ProjectStatusActive,
			CreatedBy:   &userID,
		})
		if err != nil {
			return err
		}
		if err := s.projects.CreateIdentifier(ctx, q, created.ID, input.Subdomain); err != nil {
			return err
		}
		if err := s.members.Create(ctx, q, created.ID, userID, domain.RoleManager); err != nil {
			return err
		}
		created.Subdomain = input.Subdomain
		created.Role = domain.RoleManager
		project = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// ProjectUpdateInput carries a partial project update. Nil fields are left
// untouched.
type ProjectUpdateInput struct {
	Name        *string
	Description *string
	Status      *domain.ProjectStatus
	Subdomain   *string
}

// Update edits project data and, cooldown permitting, its subdomain.
// Manager-only.
func (s *ProjectService) Update(ctx context.Context, projectID, editorID int64, input ProjectUpdateInput) (*domain.Project, error) {
	project, err := s.projects.FindByIDForUser(ctx, projectID, editorID)
	if err != nil {
		return nil, err
	}

	if !permission.CanEditProject(project.Role) {
		return nil, fmt.Errorf("%w: not sufficient role in project", domain.ErrForbidden)
	}

	if input.Subdomain != nil {
		allowed, next := SubdomainChangeAllowed(project.SubdomainUpdatedAt, s.cooldown, s.now())
		if !allowed {
			return nil, &SubdomainCooldownError{NextAllowed: next}
		}
	}

	if input.Name != nil {
		project.Name = *input.Name
	}
	if input.Description != nil {
		project.Description = sanitizePtr(input.Description)
	}
	if input.Status != nil {
		project.Status = *input.Status
	}

	err = s.tx.Transact(ctx, func(q repository.Querier) error {
		if input.Name != nil || input.Description != nil || input.Status != nil {
			if err := s.projects.Update(ctx, q, *project); err != nil {
				return err
			}
		}
		if input.Subdomain != nil {
			if err := s.projects.UpdateSubdomain(ctx, q, project.ID, *input.Subdomain); err != nil {
				return err
			}
			project.Subdomain = *input.Subdomain
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Get retrieves a project the user is a member of.
func (s *ProjectService) Get(ctx context.Context, projectID, userID int64) (*domain.Project, error) {
	return s.projects.FindByIDForUser(ctx, projectID, userID)
}

// List returns the user's projects.
func (s *ProjectService) List(ctx context.Context, userID int64, filter repository.ProjectFilter, params repository.ListParams) ([]domain.Project, int, error) {
	return s.projects.ListForUser(ctx, userID, filter, params)
}

// ResolveTenant maps a tenant identifier to the project the user may access
// under it. An unknown identifier and a known identifier without membership
// both come back as domain.ErrNotFound; callers cannot tell them apart.
func (s *ProjectService) ResolveTenant(ctx context.Context, subdomain string, userID int64) (*domain.Project, error) {
	return s.projects.FindBySubdomainForUser(ctx, subdomain, userID)
}
