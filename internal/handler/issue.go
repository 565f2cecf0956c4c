package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sumire/bugtracker/internal/domain"
	"github.com/sumire/bugtracker/internal/repository"
	"github.com/sumire/bugtracker/internal/service"
)

// IssueHandler handles issue endpoints.
type IssueHandler struct {
	issues *service.IssueService
}

// NewIssueHandler creates a new IssueHandler.
func NewIssueHandler(issues *service.IssueService) *IssueHandler {
	return &IssueHandler{issues: issues}
}

// Register registers the handler's routes: creation and listing nested under
// projects, everything else addressed by issue id.
func (h *IssueHandler) Register(projects, issues *echo.Group) {
	projects.GET("/:projectID/issues", h.List)
	projects.POST("/:projectID/issues", h.Create)
	issues.GET("/:issueID", h.Get)
	issues.PUT("/:issueID", h.Update)
	issues.DELETE("/:issueID", h.Remove)
	issues.PUT("/:issueID/assign", h.Assign)
}

type issueCreateRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description"`
	Priority    int     `json:"priority" validate:"required,min=1,max=4"`
	Type        int     `json:"type" validate:"required,min=1,max=2"`
	AssignedTo  *int64  `json:"assigned_to"`
}

// Create makes an issue in the project.
func (h *IssueHandler) Create(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectID")
	if err != nil {
		return err
	}

	var req issueCreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	issue, err := h.issues.Create(c.Request().Context(), projectID, id, service.IssueCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.IssuePriority(req.Priority),
		Type:        domain.IssueType(req.Type),
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, issue)
}

type issueUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	Status      *int    `json:"status" validate:"omitempty,min=1,max=3"`
	Priority    *int    `json:"priority" validate:"omitempty,min=1,max=4"`
	Type        *int    `json:"type" validate:"omitempty,min=1,max=2"`
}

// Update edits issue data.
func (h *IssueHandler) Update(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}

	var req issueUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	input := service.IssueUpdateInput{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Status != nil {
		status := domain.IssueStatus(*req.Status)
		input.Status = &status
	}
	if req.Priority != nil {
		priority := domain.IssuePriority(*req.Priority)
		input.Priority = &priority
	}
	if req.Type != nil {
		issueType := domain.IssueType(*req.Type)
		input.Type = &issueType
	}

	issue, err := h.issues.Update(c.Request().Context(), issueID, id, input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, issue)
}

type assignRequest struct {
	AssignedTo *int64 `json:"assigned_to"`
}

// Assign changes the issue's assignee; null unassigns.
func (h *IssueHandler) Assign(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}

	var req assignRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	issue, err := h.issues.Assign(c.Request().Context(), issueID, id, req.AssignedTo)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, issue)
}

// Remove deletes an issue with its comments, attachments and history.
func (h *IssueHandler) Remove(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}

	if err := h.issues.Remove(c.Request().Context(), issueID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Get retrieves an issue visible to the caller.
func (h *IssueHandler) Get(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}

	issue, err := h.issues.Get(c.Request().Context(), issueID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, issue)
}

// List returns the project's issues.
func (h *IssueHandler) List(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectID")
	if err != nil {
		return err
	}
	params, err := ListParams(c)
	if err != nil {
		return err
	}

	filter, err := issueFilter(c)
	if err != nil {
		return err
	}

	issues, count, err := h.issues.List(c.Request().Context(), projectID, id, filter, params)
	if err != nil {
		return err
	}
	return JSONPage(c, params, count, issues)
}

func issueFilter(c echo.Context) (repository.IssueFilter, error) {
	var filter repository.IssueFilter

	if v := c.QueryParam("title"); v != "" {
		filter.Title = &v
	}
	if raw := c.QueryParam("status"); raw != "" {
		status, err := strconv.Atoi(raw)
		if err != nil || !domain.IssueStatus(status).Valid() {
			return filter, fmt.Errorf("%w: invalid status filter", domain.ErrInvalidInput)
		}
		s := domain.IssueStatus(status)
		filter.Status = &s
	}
	if raw := c.QueryParam("priority"); raw != "" {
		priority, err := strconv.Atoi(raw)
		if err != nil || !domain.IssuePriority(priority).Valid() {
			return filter, fmt.Errorf("%w: invalid priority filter", domain.ErrInvalidInput)
		}
		p := domain.IssuePriority(priority)
		filter.Priority = &p
	}
	if raw := c.QueryParam("type"); raw != "" {
		issueType, err := strconv.Atoi(raw)
		if err != nil || !domain.IssueType(issueType).Valid() {
			return filter, fmt.Errorf("%w: invalid type filter", domain.ErrInvalidInput)
		}
		t := domain.IssueType(issueType)
		filter.Type = &t
	}
	if raw := c.QueryParam("assigned_to"); raw != "" {
		// "none" selects unassigned issues.
		if raw == "none" {
			filter.Unassigned = true
		} else {
			assignee, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return filter, fmt.Errorf("%w: invalid assigned_to filter", domain.ErrInvalidInput)
			}
			filter.AssignedTo = &assignee
		}
	}
	if raw := c.QueryParam("unassigned"); raw != "" {
		unassigned, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid unassigned filter", domain.ErrInvalidInput)
		}
		if unassigned {
			filter.Unassigned = true
		}
	}
	if raw := c.QueryParam("created_by"); raw != "" {
		creator, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid created_by filter", domain.ErrInvalidInput)
		}
		filter.CreatedBy = &creator
	}
	return filter, nil
}
