package repository

import (
	"fmt"
	"strings"

	"github.com/sumire/bugtracker/internal/domain"
)

// ListParams carries limit/offset pagination and ordering for list queries.
// OrderBy entries use the "field" / "-field" convention; fields are matched
// against each repository's ordering whitelist and unknown fields rejected
// at the handler boundary.
type ListParams struct {
	Limit   int
	Offset  int
	OrderBy []string
}

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	Name   *string
	Status *domain.ProjectStatus
	Role   *domain.Role
}

// MemberFilter narrows member listings.
type MemberFilter struct {
	FirstName *string
	LastName  *string
	Email     *string
	Role      *domain.Role
}

// IssueFilter narrows issue listings.
type IssueFilter struct {
	Title      *string
	Status     *domain.IssueStatus
	Priority   *domain.IssuePriority
	Type       *domain.IssueType
	AssignedTo *int64
	CreatedBy  *int64
	Unassigned bool
}

// CommentFilter narrows comment listings.
type CommentFilter struct {
	AuthorID *int64
}

// AttachmentFilter narrows attachment listings.
type AttachmentFilter struct {
	Extension *string
}

// HistoryFilter narrows history listings.
type HistoryFilter struct {
	Subject *domain.HistorySubject
	Action  *domain.HistoryAction
	ActorID *int64
}

// whereBuilder accumulates WHERE conditions with positional args.
type whereBuilder struct {
	conds []string
	args  []any
}

// add appends a condition. The condition string uses one %s verb per arg,
// replaced with the next positional placeholders.
func (b *whereBuilder) add(cond string, args ...any) {
	ph := make([]any, len(args))
	for i := range args {
		ph[i] = fmt.Sprintf("$%d", len(b.args)+i+1)
	}
	b.conds = append(b.conds, fmt.Sprintf(cond, ph...))
	b.args = append(b.args, args...)
}

func (b *whereBuilder) clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// orderClause builds an ORDER BY clause from "field" / "-field" entries,
// translating through the allowed column map. Unknown fields are skipped;
// fallback applies when nothing valid remains.
func orderClause(orderBy []string, allowed map[string]string, fallback string) string {
	var parts []string
	for _, field := range orderBy {
		dir := " ASC"
		name := field
		if strings.HasPrefix(field, "-") {
			dir = " DESC"
			name = field[1:]
		}
		col, ok := allowed[name]
		if !ok {
			continue
		}
		parts = append(parts, col+dir)
	}
	if len(parts) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// limitOffset appends LIMIT/OFFSET with the next positional placeholders.
func (b *whereBuilder) limitOffset(p ListParams) string {
	b.args = append(b.args, p.Limit, p.Offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(b.args)-1, len(b.args))
}
