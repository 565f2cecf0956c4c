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

// ProjectHandler handles project endpoints, including tenant resolution via
// the configured subdomain header.
type ProjectHandler struct {
	projects     *service.ProjectService
	tenantHeader string
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projects *service.ProjectService, tenantHeader string) *ProjectHandler {
	return &ProjectHandler{projects: projects, tenantHeader: tenantHeader}
}

// Register registers the handler's routes on g. All routes require
// authentication.
func (h *ProjectHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/current", h.Current)
	g.GET("/:projectID", h.Get)
	g.PUT("/:projectID", h.Update)
}

type projectCreateRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description"`
	Subdomain   string  `json:"subdomain" validate:"required,min=2,max=63,hostname"`
}

// Create makes a project with the caller as manager.
func (h *ProjectHandler) Create(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	var req projectCreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	project, err := h.projects.Create(c.Request().Context(), id, service.ProjectCreateInput{
		Name:        req.Name,
		Description: req.Description,
		Subdomain:   req.Subdomain,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, project)
}

type projectUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	Status      *int    `json:"status" validate:"omitempty,min=1,max=2"`
	Subdomain   *string `json:"subdomain" validate:"omitempty,min=2,max=63,hostname"`
}

// Update edits project data. Manager-only; subdomain changes respect the
// cooldown.
func (h *ProjectHandler) Update(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectID")
	if err != nil {
		return err
	}

	var req projectUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	input := service.ProjectUpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Subdomain:   req.Subdomain,
	}
	if req.Status != nil {
		status := domain.ProjectStatus(*req.Status)
		input.Status = &status
	}

	project, err := h.projects.Update(c.Request().Context(), projectID, id, input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, project)
}

// Get retrieves one project the caller belongs to.
func (h *ProjectHandler) Get(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectID")
	if err != nil {
		return err
	}

	project, err := h.projects.Get(c.Request().Context(), projectID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, project)
}

// Current resolves the project named by the tenant header. A request without
// the header is a bad request; an unknown subdomain and a project the caller
// does not belong to are both not found.
func (h *ProjectHandler) Current(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	subdomain := c.Request().Header.Get(h.tenantHeader)
	if subdomain == "" {
		return fmt.Errorf("%w: missing %s header", domain.ErrInvalidInput, h.tenantHeader)
	}

	project, err := h.projects.ResolveTenant(c.Request().Context(), subdomain, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, project)
}

// List returns the caller's projects.
func (h *ProjectHandler) List(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	params, err := ListParams(c)
	if err != nil {
		return err
	}

	var filter repository.ProjectFilter
	if name := c.QueryParam("name"); name != "" {
		filter.Name = &name
	}
	if raw := c.QueryParam("status"); raw != "" {
		status, err := strconv.Atoi(raw)
		if err != nil || !domain.ProjectStatus(status).Valid() {
			return fmt.Errorf("%w: invalid status filter", domain.ErrInvalidInput)
		}
		s := domain.ProjectStatus(status)
		filter.Status = &s
	}
	if raw := c.QueryParam("role"); raw != "" {
		role := domain.Role(raw)
		if !role.Valid() {
			return fmt.Errorf("%w: invalid role filter", domain.ErrInvalidInput)
		}
		filter.Role = &role
	}

	projects, count, err := h.projects.List(c.Request().Context(), id, filter, params)
	if err != nil {
		return err
	}
	return JSONPage(c, params, count, projects)
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid %s", domain.ErrInvalidInput, name)
	}
	return id, nil
}
