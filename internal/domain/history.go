package domain

import (
	"encoding/json"
	"time"
)

// HistorySubject identifies the kind of entity a history entry describes.
type HistorySubject string

const (
	HistorySubjectIssue      HistorySubject = "issue"
	HistorySubjectComment    HistorySubject = "comment"
	HistorySubjectAttachment HistorySubject = "attachment"
)

// Valid reports whether s is a known history subject.
func (s HistorySubject) Valid() bool {
	switch s {
	case HistorySubjectIssue, HistorySubjectComment, HistorySubjectAttachment:
		return true
	}
	return false
}

// HistoryAction identifies the kind of change a history entry records.
type HistoryAction string

const (
	HistoryActionCreate HistoryAction = "create"
	HistoryActionUpdate HistoryAction = "update"
	HistoryActionDelete HistoryAction = "delete"
)

// Valid reports whether a is a known history action.
func (a HistoryAction) Valid() bool {
	switch a {
	case HistoryActionCreate, HistoryActionUpdate, HistoryActionDelete:
		return true
	}
	return false
}

// HistoryEntry is an append-only record of a change to an issue, comment or
// attachment, annotated with the owning issue id for lookup. Entries are
// never mutated after creation.
type HistoryEntry struct {
	ID        int64           `json:"id" db:"id"`
	IssueID   int64           `json:"issue_id" db:"issue_id"`
	Subject   HistorySubject  `json:"subject" db:"subject"`
	SubjectID int64           `json:"subject_id" db:"subject_id"`
	Action    HistoryAction   `json:"action" db:"action"`
	ActorID   *int64          `json:"actor_id,omitempty" db:"actor_id"`
	Changes   json.RawMessage `json:"changes,omitempty" db:"changes"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
