package domain

import "time"

// Role is the single permission level a user holds within one project.
type Role string

const (
	RoleManager   Role = "manager"
	RoleDeveloper Role = "developer"
	RoleReporter  Role = "reporter"

	// RoleNone is the zero value, meaning no membership in the project.
	RoleNone Role = ""
)

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	switch r {
	case RoleManager, RoleDeveloper, RoleReporter:
		return true
	}
	return false
}

// ProjectStatus represents the lifecycle state of a project.
type ProjectStatus int

const (
	ProjectStatusActive ProjectStatus = 1
	ProjectStatusClosed ProjectStatus = 2
)

// Valid reports whether s is a known project status.
func (s ProjectStatus) Valid() bool {
	return s == ProjectStatusActive || s == ProjectStatusClosed
}

// Project represents a project that contains issues. Subdomain is the unique
// tenant identifier; SubdomainUpdatedAt drives the change cooldown. Role is
// the requesting user's role when the project was loaded through a
// membership-scoped query, RoleNone otherwise.
type Project struct {
	ID                 int64         `json:"id" db:"id"`
	Name               string        `json:"name" db:"name"`
	Description        *string       `json:"description,omitempty" db:"description"`
	Status             ProjectStatus `json:"status" db:"status"`
	CreatedBy          *int64        `json:"created_by,omitempty" db:"created_by"`
	Subdomain          string        `json:"subdomain" db:"subdomain"`
	SubdomainUpdatedAt time.Time     `json:"-" db:"subdomain_updated_at"`
	Role               Role          `json:"role,omitempty" db:"role"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// Member is a role assignment joined with the member's user fields.
type Member struct {
	ProjectID int64     `json:"project_id" db:"project_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Role      Role      `json:"role" db:"role"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
