package domain

import "time"

// Comment represents a comment on an issue. The author does not need to hold
// a current role in the project; comments survive membership changes.
type Comment struct {
	ID        int64     `json:"id" db:"id"`
	IssueID   int64     `json:"issue_id" db:"issue_id"`
	AuthorID  int64     `json:"author_id" db:"author_id"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
