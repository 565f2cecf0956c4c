package domain

import "time"

// IssueStatus represents the lifecycle state of an issue.
type IssueStatus int

const (
	IssueStatusOpen       IssueStatus = 1
	IssueStatusInProgress IssueStatus = 2
	IssueStatusClosed     IssueStatus = 3
)

// Valid reports whether s is a known issue status.
func (s IssueStatus) Valid() bool {
	return s >= IssueStatusOpen && s <= IssueStatusClosed
}

// IssuePriority represents the urgency of an issue.
type IssuePriority int

const (
	IssuePriorityLow      IssuePriority = 1
	IssuePriorityMedium   IssuePriority = 2
	IssuePriorityHigh     IssuePriority = 3
	IssuePriorityCritical IssuePriority = 4
)

// Valid reports whether p is a known priority.
func (p IssuePriority) Valid() bool {
	return p >= IssuePriorityLow && p <= IssuePriorityCritical
}

// IssueType distinguishes bug reports from feature requests.
type IssueType int

const (
	IssueTypeBug     IssueType = 1
	IssueTypeFeature IssueType = 2
)

// Valid reports whether t is a known issue type.
func (t IssueType) Valid() bool {
	return t == IssueTypeBug || t == IssueTypeFeature
}

// Issue represents a tracked bug or feature request within a project.
// AssignedTo, if set, must hold a role assignment in the same project.
type Issue struct {
	ID          int64         `json:"id" db:"id"`
	ProjectID   int64         `json:"project_id" db:"project_id"`
	Title       string        `json:"title" db:"title"`
	Description *string       `json:"description,omitempty" db:"description"`
	Status      IssueStatus   `json:"status" db:"status"`
	Priority    IssuePriority `json:"priority" db:"priority"`
	Type        IssueType     `json:"type" db:"type"`
	CreatedBy   int64         `json:"created_by" db:"created_by"`
	AssignedTo  *int64        `json:"assigned_to,omitempty" db:"assigned_to"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}
