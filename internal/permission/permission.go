// Package permission holds the pure allow/deny predicates gating every
// mutating operation. Predicates are parameterized by the actor's resolved
// project role (or ownership where authorship governs) and perform no I/O.
// An absent role assignment (domain.RoleNone) always denies.
package permission

import "github.com/sumire/bugtracker/internal/domain"

// CanCreateIssue reports whether a holder of role may create issues.
func CanCreateIssue(role domain.Role) bool {
	switch role {
	case domain.RoleManager, domain.RoleDeveloper, domain.RoleReporter:
		return true
	}
	return false
}

// CanAssignIssue reports whether the actor may assign an issue to assigneeID.
// Managers assign freely, developers may only self-assign, reporters never.
func CanAssignIssue(role domain.Role, actorID, assigneeID int64) bool {
	switch role {
	case domain.RoleManager:
		return true
	case domain.RoleDeveloper:
		return actorID == assigneeID
	}
	return false
}

// CanEditIssue reports whether the actor may edit an issue created by
// creatorID. Managers edit any issue, developers and reporters only their own.
func CanEditIssue(role domain.Role, actorID, creatorID int64) bool {
	switch role {
	case domain.RoleManager:
		return true
	case domain.RoleDeveloper, domain.RoleReporter:
		return actorID == creatorID
	}
	return false
}

// CanRemoveIssue follows the same policy as CanEditIssue.
func CanRemoveIssue(role domain.Role, actorID, creatorID int64) bool {
	return CanEditIssue(role, actorID, creatorID)
}

// CanEditComment reports whether the actor may edit a comment. Authorship
// alone governs comment mutation; the project role is irrelevant.
func CanEditComment(actorID, authorID int64) bool {
	return actorID == authorID
}

// CanRemoveComment follows the same policy as CanEditComment.
func CanRemoveComment(actorID, authorID int64) bool {
	return CanEditComment(actorID, authorID)
}

// CanEditProject reports whether a holder of role may edit project data.
func CanEditProject(role domain.Role) bool {
	return role == domain.RoleManager
}

// CanEditMembers reports whether a holder of role may manage memberships.
func CanEditMembers(role domain.Role) bool {
	return role == domain.RoleManager
}
