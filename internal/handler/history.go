package handler

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sumire/bugtracker/internal/domain"
	"github.com/sumire/bugtracker/internal/repository"
	"github.com/sumire/bugtracker/internal/service"
)

// HistoryHandler exposes the per-issue change history.
type HistoryHandler struct {
	history *service.HistoryService
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(history *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// Register registers the handler's routes on the issue group.
func (h *HistoryHandler) Register(g *echo.Group) {
	g.GET("/:issueID/history", h.List)
}

// List returns the issue's history entries.
func (h *HistoryHandler) List(c echo.Context) error {
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

	var filter repository.HistoryFilter
	if raw := c.QueryParam("subject"); raw != "" {
		subject := domain.HistorySubject(raw)
		if !subject.Valid() {
			return fmt.Errorf("%w: invalid subject filter", domain.ErrInvalidInput)
		}
		filter.Subject = &subject
	}
	if raw := c.QueryParam("action"); raw != "" {
		action := domain.HistoryAction(raw)
		if !action.Valid() {
			return fmt.Errorf("%w: invalid action filter", domain.ErrInvalidInput)
		}
		filter.Action = &action
	}
	if raw := c.QueryParam("actor_id"); raw != "" {
		actorID, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			filter.ActorID = &actorID
		}
	}

	entries, count, err := h.history.List(c.Request().Context(), issueID, id, filter, params)
	if err != nil {
		return err
	}
	return JSONPage(c, params, count, entries)
}
