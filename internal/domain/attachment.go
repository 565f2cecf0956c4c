package domain

import "time"

// Attachment represents a file attached to an issue, optionally through one
// of the issue's comments. FilePath is the storage key of the backing file;
// Filename is the name the file was uploaded with.
type Attachment struct {
	ID         int64     `json:"id" db:"id"`
	IssueID    int64     `json:"issue_id" db:"issue_id"`
	CommentID  *int64    `json:"comment_id,omitempty" db:"comment_id"`
	UploadedBy int64     `json:"uploaded_by" db:"uploaded_by"`
	FilePath   string    `json:"-" db:"file_path"`
	Filename   string    `json:"filename" db:"filename"`
	Extension  string    `json:"extension" db:"extension"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
