package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sumire/bugtracker/internal/repository"
	"github.com/sumire/bugtracker/internal/service"
)

// CommentHandler handles comment endpoints.
type CommentHandler struct {
	comments *service.CommentService
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(comments *service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// Register registers the handler's routes on the issue group.
func (h *CommentHandler) Register(g *echo.Group) {
	g.GET("/:issueID/comments", h.List)
	g.POST("/:issueID/comments", h.Create)
	g.GET("/:issueID/comments/:commentID", h.Get)
	g.PUT("/:issueID/comments/:commentID", h.Update)
	g.DELETE("/:issueID/comments/:commentID", h.Remove)
}

type commentRequest struct {
	Text string `json:"text" validate:"required"`
}

// Create adds a comment to the issue.
func (h *CommentHandler) Create(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}

	var req commentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment, err := h.comments.Create(c.Request().Context(), issueID, id, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, comment)
}

// Update edits a comment's text. Author-only.
func (h *CommentHandler) Update(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}
	commentID, err := pathID(c, "commentID")
	if err != nil {
		return err
	}

	var req commentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment, err := h.comments.Update(c.Request().Context(), issueID, commentID, id, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comment)
}

// Remove deletes a comment. Author-only.
func (h *CommentHandler) Remove(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}
	commentID, err := pathID(c, "commentID")
	if err != nil {
		return err
	}

	if err := h.comments.Remove(c.Request().Context(), issueID, commentID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Get retrieves a comment on an issue visible to the caller.
func (h *CommentHandler) Get(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}
	commentID, err := pathID(c, "commentID")
	if err != nil {
		return err
	}

	comment, err := h.comments.Get(c.Request().Context(), issueID, commentID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comment)
}

// List returns the issue's comments.
func (h *CommentHandler) List(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	issueID, err := pathID(c, "issueID")
	if err != nil {
		return err
	}
	params, err := ListParams(c)
	if err != nil {
		return err
	}

	var filter repository.CommentFilter
	if raw := c.QueryParam("author_id"); raw != "" {
		authorID, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			filter.AuthorID = &authorID
		}
	}

	comments, count, err := h.comments.List(c.Request().Context(), issueID, id, filter, params)
	if err != nil {
		return err
	}
	return JSONPage(c, params, count, comments)
}
