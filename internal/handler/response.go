package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sumire/bugtracker/internal/domain"
	"github.com/sumire/bugtracker/internal/repository"
	"github.com/sumire/bugtracker/internal/service"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Page is the standard list response: limit/offset pagination with absolute
// next/previous links, null when off either end.
type Page struct {
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// APIError represents an error in the API response body.
type APIError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// JSONPage writes a paginated list response, deriving next/previous links
// from the request URL.
func JSONPage(c echo.Context, params repository.ListParams, count int, results any) error {
	var next, previous *string
	if params.Offset+params.Limit < count {
		next = pageLink(c, params.Limit, params.Offset+params.Limit)
	}
	if params.Offset > 0 {
		previous = pageLink(c, params.Limit, max(params.Offset-params.Limit, 0))
	}
	return c.JSON(http.StatusOK, Page{
		Limit:    params.Limit,
		Offset:   params.Offset,
		Count:    count,
		Next:     next,
		Previous: previous,
		Results:  results,
	})
}

// pageLink builds the request URL with the given offset.
func pageLink(c echo.Context, limit, offset int) *string {
	u := *c.Request().URL
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	link := u.String()
	return &link
}

// ListParams parses limit/offset/ordering query parameters.
func ListParams(c echo.Context) (repository.ListParams, error) {
	params := repository.ListParams{Limit: defaultPageLimit}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return params, fmt.Errorf("%w: limit must be a positive integer", domain.ErrInvalidInput)
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
		params.Limit = limit
	}

	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return params, fmt.Errorf("%w: offset must be a non-negative integer", domain.ErrInvalidInput)
		}
		params.Offset = offset
	}

	if raw := c.QueryParam("ordering"); raw != "" {
		params.OrderBy = splitOrdering(raw)
	}
	return params, nil
}

// HTTPErrorHandler is the global error handler for echo.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, apiErr := mapError(err)
	if jsonErr := c.JSON(status, map[string]*APIError{"error": &apiErr}); jsonErr != nil {
		slog.Error("failed to send error response", "error", jsonErr)
	}
}

func mapError(err error) (int, APIError) {
	// Handle echo's own HTTP errors (404, 405, etc.)
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		msg, _ := echoErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(echoErr.Code)
		}
		return echoErr.Code, APIError{
			Code:    http.StatusText(echoErr.Code),
			Message: msg,
		}
	}

	var cooldownErr *service.SubdomainCooldownError
	if errors.As(err, &cooldownErr) {
		return http.StatusUnprocessableEntity, APIError{
			Code:    "subdomain_cooldown",
			Message: cooldownErr.Error(),
		}
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, APIError{
			Code:    "validation_error",
			Message: "Validation failed",
			Details: []FieldError{
				{Field: validationErr.Field, Message: validationErr.Message},
			},
		}
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "The requested resource was not found",
		}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, APIError{
			Code:    "unauthorized",
			Message: "Authentication is required",
		}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, APIError{
			Code:    "forbidden",
			Message: "You do not have permission to perform this action",
		}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, APIError{
			Code:    "invalid_input",
			Message: err.Error(),
		}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, APIError{
			Code:    "conflict",
			Message: "The resource already exists or conflicts with current state",
		}
	case errors.Is(err, domain.ErrUnprocessable):
		return http.StatusUnprocessableEntity, APIError{
			Code:    "unprocessable",
			Message: err.Error(),
		}
	default:
		slog.Error("unhandled error", "error", err)
		return http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "An unexpected error occurred",
		}
	}
}

func splitOrdering(raw string) []string {
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
