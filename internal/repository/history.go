package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/bugtracker/internal/domain"
)

const historyColumns = `h.id, h.issue_id, h.subject, h.subject_id, h.action, h.actor_id, h.changes, h.created_at`

var historyOrderColumns = map[string]string{
	"created_at": "h.created_at",
}

// HistoryRepository handles the append-only change history. Entries are only
// ever inserted; there is no update or delete path.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append records a change. Called inside the same transaction as the entity
// mutation it describes.
func (r *HistoryRepository) Append(ctx context.Context, q Querier, entry domain.HistoryEntry) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO history_entries (issue_id, subject, subject_id, action, actor_id, changes)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.IssueID, entry.Subject, entry.SubjectID, entry.Action, entry.ActorID, entry.Changes)
	if err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

// List returns the issue's history matching the filter, plus the total count
// before pagination. Visibility requires the user's membership in the issue's
// project; a cascade-deleted issue leaves orphan-free history behind the same
// membership gate.
func (r *HistoryRepository) List(ctx context.Context, issueID, userID int64, filter HistoryFilter, params ListParams) ([]domain.HistoryEntry, int, error) {
	b := &whereBuilder{args: []any{issueID, userID}}
	b.conds = append(b.conds,
		"h.issue_id = $1",
		`EXISTS (SELECT 1 FROM issues i
			JOIN role_assignments ra ON ra.project_id = i.project_id AND ra.user_id = $2
			WHERE i.id = $1)`)

	if filter.Subject != nil {
		b.add("h.subject = %s", *filter.Subject)
	}
	if filter.Action != nil {
		b.add("h.action = %s", *filter.Action)
	}
	if filter.ActorID != nil {
		b.add("h.actor_id = %s", *filter.ActorID)
	}

	where := b.clause()

	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM history_entries h`+where, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count history entries: %w", err)
	}

	query := `SELECT ` + historyColumns + ` FROM history_entries h` + where +
		orderClause(params.OrderBy, historyOrderColumns, "h.created_at DESC") +
		b.limitOffset(params)

	entries := []domain.HistoryEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list history entries: %w", err)
	}
	return entries, count, nil
}
