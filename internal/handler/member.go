package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/bugtracker/internal/domain"
	"github.com/sumire/bugtracker/internal/repository"
	"github.com/sumire/bugtracker/internal/service"
)

// MemberHandler handles project membership endpoints.
type MemberHandler struct {
	members *service.MemberService
}

// NewMemberHandler creates a new MemberHandler.
func NewMemberHandler(members *service.MemberService) *MemberHandler {
	return &MemberHandler{members: members}
}

// Register registers the handler's routes on the project group.
func (h *MemberHandler) Register(g *echo.Group) {
	g.GET("/:projectID/members", h.List)
	g.POST("/:projectID/members", h.Invite)
	g.GET("/:projectID/members/:memberID", h.Get)
	g.PUT("/:projectID/members/:memberID", h.ChangeRole)
	g.DELETE("/:projectID/members/:memberID", h.Remove)
}

type inviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=manager developer reporter"`
}

// Invite adds a user to the project by email, creating an account for
// unknown addresses. Manager-only.
func (h *MemberHandler) Invite(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectID")
	if err != nil {
		return err
	}

	var req inviteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	member, err := h.members.Invite(c.Request().Context(), projectID, id, req.Email, domain.Role(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, member)
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=manager developer reporter"`
}

// ChangeRole changes a member's role. Manager-only; a manager cannot change
// their own role.
func (h *MemberHandler) ChangeRole(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectID")
	if err != nil {
		return err
	}
	memberID, err := pathID(c, "memberID")
	if err != nil {
		return err
	}

	var req changeRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	member, err := h.members.ChangeRole(c.Request().Context(), projectID, id, memberID, domain.Role(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, member)
}

// Remove removes a member from the project. Manager-only; a manager cannot
// remove themselves.
func (h *MemberHandler) Remove(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectID")
	if err != nil {
		return err
	}
	memberID, err := pathID(c, "memberID")
	if err != nil {
		return err
	}

	if err := h.members.Remove(c.Request().Context(), projectID, id, memberID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Get retrieves one member of a project the caller belongs to.
func (h *MemberHandler) Get(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectID")
	if err != nil {
		return err
	}
	memberID, err := pathID(c, "memberID")
	if err != nil {
		return err
	}

	member, err := h.members.Get(c.Request().Context(), projectID, memberID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, member)
}

// List returns the project's members.
func (h *MemberHandler) List(c echo.Context) error {
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

	var filter repository.MemberFilter
	if v := c.QueryParam("first_name"); v != "" {
		filter.FirstName = &v
	}
	if v := c.QueryParam("last_name"); v != "" {
		filter.LastName = &v
	}
	if v := c.QueryParam("email"); v != "" {
		filter.Email = &v
	}
	if raw := c.QueryParam("role"); raw != "" {
		role := domain.Role(raw)
		if !role.Valid() {
			return fmt.Errorf("%w: invalid role filter", domain.ErrInvalidInput)
		}
		filter.Role = &role
	}

	members, count, err := h.members.List(c.Request().Context(), projectID, id, filter, params)
	if err != nil {
		return err
	}
	return JSONPage(c, params, count, members)
}
