package service

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/sumire/bugtracker/internal/mail"
)

var assignmentTemplate = template.Must(template.New("assignment").Parse(
	`You have been assigned a new issue "{{.IssueTitle}}".

View it here: {{.IssueURL}}

-- {{.SiteDomain}}
`))

var invitationNewUserTemplate = template.Must(template.New("invitation_new").Parse(
	`You have been invited to the project "{{.ProjectName}}".

An account with the username {{.Username}} has been created for you.
Set your password to get started: {{.SetPasswordURL}}

-- {{.SiteDomain}}
`))

var invitationExistingUserTemplate = template.Must(template.New("invitation_existing").Parse(
	`You have been invited to the project "{{.ProjectName}}".

Log in to see it: {{.SiteDomain}}

-- {{.SiteDomain}}
`))

// Notifier builds notification emails and hands them to the configured
// sender. In production the sender enqueues onto the job queue; the worker
// does the actual delivery.
type Notifier struct {
	sender      mail.Sender
	from        string
	frontendURL string
}

// NewNotifier creates a Notifier.
func NewNotifier(sender mail.Sender, from, frontendURL string) *Notifier {
	return &Notifier{sender: sender, from: from, frontendURL: strings.TrimRight(frontendURL, "/")}
}

// IssueAssigned notifies the assignee of a new assignment.
func (n *Notifier) IssueAssigned(ctx context.Context, email, issueTitle string, issueID int64) error {
	body, err := render(assignmentTemplate, map[string]any{
		"IssueTitle": issueTitle,
		"IssueURL":   fmt.Sprintf("%s/issues/%d", n.frontendURL, issueID),
		"SiteDomain": n.frontendURL,
	})
	if err != nil {
		return err
	}

	return n.sender.Send(ctx, []mail.Message{{
		Subject: fmt.Sprintf("You have been assigned a new issue %q", issueTitle),
		Body:    body,
		From:    n.from,
		To:      []string{email},
	}})
}

// InvitationNewUser invites an email address that had no account; the token
// lets the invitee set a password.
func (n *Notifier) InvitationNewUser(ctx context.Context, email, username, projectName, token string) error {
	body, err := render(invitationNewUserTemplate, map[string]any{
		"ProjectName":    projectName,
		"Username":       username,
		"SetPasswordURL": fmt.Sprintf("%s/account/set-password?token=%s", n.frontendURL, token),
		"SiteDomain":     n.frontendURL,
	})
	if err != nil {
		return err
	}

	return n.sender.Send(ctx, []mail.Message{{
		Subject: fmt.Sprintf("You have been invited to the project %q", projectName),
		Body:    body,
		From:    n.from,
		To:      []string{email},
	}})
}

// InvitationExistingUser invites a user who already has an account.
func (n *Notifier) InvitationExistingUser(ctx context.Context, email, projectName string) error {
	body, err := render(invitationExistingUserTemplate, map[string]any{
		"ProjectName": projectName,
		"SiteDomain":  n.frontendURL,
	})
	if err != nil {
		return err
	}

	return n.sender.Send(ctx, []mail.Message{{
		Subject: fmt.Sprintf("You have been invited to the project %q", projectName),
		Body:    body,
		From:    n.from,
		To:      []string{email},
	}})
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render email template: %w", err)
	}
	return sb.String(), nil
}
