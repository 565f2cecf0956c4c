package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/bugtracker/internal/domain"
	"github.com/sumire/bugtracker/internal/repository"
)

type fixture struct {
	state       *memState
	sender      *fakeSender
	files       *memFiles
	projects    *ProjectService
	members     *MemberService
	issues      *IssueService
	comments    *CommentService
	attachments *AttachmentService
	history     *HistoryService
}

func newFixture() *fixture {
	s := newMemState()
	sender := &fakeSender{}
	files := newMemFiles()
	notifier := NewNotifier(sender, "noreply@tracker.local", "http://localhost:5173")
	tx := fakeTx{}

	allowedTypes := map[string]string{
		"png": "image/png",
		"txt": "text/plain",
	}

	return &fixture{
		state:    s,
		sender:   sender,
		files:    files,
		projects: NewProjectService(fakeProjects{s}, fakeMembers{s}, tx, 30*24*time.Hour),
		members:  NewMemberService(fakeMembers{s}, fakeUsers{s}, fakeProjects{s}, tx, notifier, stubTokens{}),
		issues:   NewIssueService(fakeIssues{s}, fakeProjects{s}, fakeMembers{s}, fakeHistory{s}, tx, notifier),
		comments: NewCommentService(fakeComments{s}, fakeIssues{s}, fakeHistory{s}, tx),
		attachments: NewAttachmentService(
			fakeAttachments{s}, fakeIssues{s}, fakeComments{s}, fakeMembers{s}, fakeHistory{s},
			tx, files, 1<<20, allowedTypes,
		),
		history: NewHistoryService(fakeHistory{s}),
	}
}

// seedProject creates a project with manager and developer members and
// returns (projectID, managerID, developerID).
func seedProject(t *testing.T, f *fixture) (int64, int64, int64) {
	t.Helper()
	ctx := context.Background()

	manager := f.state.addUser("manager", "manager@example.com")
	developer := f.state.addUser("developer", "developer@example.com")

	project, err := f.projects.Create(ctx, manager.ID, ProjectCreateInput{
		Name:      "Tracker",
		Subdomain: "tracker",
	})
	require.NoError(t, err)

	_, err = f.members.Invite(ctx, project.ID, manager.ID, developer.Email, domain.RoleDeveloper)
	require.NoError(t, err)

	return project.ID, manager.ID, developer.ID
}

func TestIssueLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	projectID, managerID, developerID := seedProject(t, f)

	// the invitation produced exactly one email
	require.Equal(t, 1, f.sender.sent())

	issue, err := f.issues.Create(ctx, projectID, developerID, IssueCreateInput{
		Title:    "Login broken",
		Priority: domain.IssuePriorityHigh,
		Type:     domain.IssueTypeBug,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusOpen, issue.Status)
	assert.Equal(t, developerID, issue.CreatedBy)
	assert.Nil(t, issue.AssignedTo)

	entries := f.state.historyFor(issue.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.HistoryActionCreate, entries[0].Action)
	assert.Equal(t, domain.HistorySubjectIssue, entries[0].Subject)

	// a developer cannot edit someone else's issue
	managerIssue, err := f.issues.Create(ctx, projectID, managerID, IssueCreateInput{
		Title:    "Roadmap",
		Priority: domain.IssuePriorityLow,
		Type:     domain.IssueTypeFeature,
	})
	require.NoError(t, err)

	newTitle := "Hijacked"
	_, err = f.issues.Update(ctx, managerIssue.ID, developerID, IssueUpdateInput{Title: &newTitle})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// the manager assigns the developer's issue to the developer: one email
	assigned, err := f.issues.Assign(ctx, issue.ID, managerID, &developerID)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, developerID, *assigned.AssignedTo)
	require.Equal(t, 2, f.sender.sent())
	last := f.sender.batches[len(f.sender.batches)-1]
	assert.Equal(t, []string{"developer@example.com"}, last[0].To)
}

func TestAssignSameAssigneeConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	projectID, managerID, developerID := seedProject(t, f)

	issue, err := f.issues.Create(ctx, projectID, managerID, IssueCreateInput{
		Title:      "Crash on save",
		Priority:   domain.IssuePriorityCritical,
		Type:       domain.IssueTypeBug,
		AssignedTo: &developerID,
	})
	require.NoError(t, err)
	emailsBefore := f.sender.sent()
	historyBefore := len(f.state.historyFor(issue.ID))

	_, err = f.issues.Assign(ctx, issue.ID, managerID, &developerID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// no mutation, no history entry, no email
	current := f.state.issues[issue.ID]
	require.NotNil(t, current.AssignedTo)
	assert.Equal(t, developerID, *current.AssignedTo)
	assert.Equal(t, historyBefore, len(f.state.historyFor(issue.ID)))
	assert.Equal(t, emailsBefore, f.sender.sent())
}

func TestAssignNobodyToNobodyConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	projectID, managerID, _ := seedProject(t, f)

	issue, err := f.issues.Create(ctx, projectID, managerID, IssueCreateInput{
		Title:    "Unassigned",
		Priority: domain.IssuePriorityLow,
		Type:     domain.IssueTypeBug,
	})
	require.NoError(t, err)

	_, err = f.issues.Assign(ctx, issue.ID, managerID, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestAssignNonMemberUnprocessable(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	projectID, managerID, _ := seedProject(t, f)
	outsider := f.state.addUser("outsider", "outsider@example.com")

	issue, err := f.issues.Create(ctx, projectID, managerID, IssueCreateInput{
		Title:    "Needs owner",
		Priority: domain.IssuePriorityMedium,
		Type:     domain.IssueTypeBug,
	})
	require.NoError(t, err)

	_, err = f.issues.Assign(ctx, issue.ID, managerID, &outsider.ID)
	assert.ErrorIs(t, err, domain.ErrUnprocessable)
	assert.NotErrorIs(t, err, domain.ErrForbidden)
}

func TestDeveloperCanOnlySelfAssign(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	projectID, managerID, developerID := seedProject(t, f)

	issue, err := f.issues.Create(ctx, projectID, developerID, IssueCreateInput{
		Title:    "Flaky test",
		Priority: domain.IssuePriorityMedium,
		Type:     domain.IssueTypeBug,
	})
	require.NoError(t, err)

	_, err = f.issues.Assign(ctx, issue.ID, developerID, &managerID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.issues.Assign(ctx, issue.ID, developerID, &developerID)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, developerID, *got.AssignedTo)
}

func TestReporterCannotAssign(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	projectID, managerID, _ := seedProject(t, f)

	reporter := f.state.addUser("reporter", "reporter@example.com")
	_, err := f.members.Invite(context.Background(), projectID, managerID, reporter.Email, domain.RoleReporter)
	require.NoError(t, err)

	issue, err := f.issues.Create(ctx, projectID, reporter.ID, IssueCreateInput{
		Title:    "Typo on landing page",
		Priority: domain.IssuePriorityLow,
		Type:     domain.IssueTypeBug,
	})
	require.NoError(t, err)

	_, err = f.issues.Assign(ctx, issue.ID, reporter.ID, &reporter.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestIssueUpdateRecordsChangedFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	projectID, managerID, _ := seedProject(t, f)

	issue, err := f.issues.Create(ctx, projectID, managerID, IssueCreateInput{
		Title:    "Slow queries",
		Priority: domain.IssuePriorityMedium,
		Type:     domain.IssueTypeBug,
	})
	require.NoError(t, err)

	status := domain.IssueStatusInProgress
	priority := domain.IssuePriorityHigh
	updated, err := f.issues.Update(ctx, issue.ID, managerID, IssueUpdateInput{
		Status:   &status,
		Priority: &priority,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusInProgress, updated.Status)
	assert.Equal(t, domain.IssuePriorityHigh, updated.Priority)

	entries := f.state.historyFor(issue.ID)
	require.Len(t, entries, 2)
	update := entries[1]
	assert.Equal(t, domain.HistoryActionUpdate, update.Action)
	assert.JSONEq(t, `{"status":[1,2],"priority":[2,3]}`, string(update.Changes))
}

func TestIssueUpdateNoChangesSkipsHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	projectID, managerID, _ := seedProject(t, f)

	issue, err := f.issues.Create(ctx, projectID, managerID, IssueCreateInput{
		Title:    "As is",
		Priority: domain.IssuePriorityLow,
		Type:     domain.IssueTypeBug,
	})
	require.NoError(t, err)

	sameTitle := "As is"
	_, err = f.issues.Update(ctx, issue.ID, managerID, IssueUpdateInput{Title: &sameTitle})
	require.NoError(t, err)
	assert.Len(t, f.state.historyFor(issue.ID), 1)
}

func TestIssueRemovePermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	projectID, managerID, developerID := seedProject(t, f)

	issue, err := f.issues.Create(ctx, projectID, managerID, IssueCreateInput{
		Title:    "Obsolete",
		Priority: domain.IssuePriorityLow,
		Type:     domain.IssueTypeFeature,
	})
	require.NoError(t, err)

	// removal follows the same ownership rule as editing
	err = f.issues.Remove(ctx, issue.ID, developerID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	require.NoError(t, f.issues.Remove(ctx, issue.ID, managerID))
	_, err = f.issues.Get(ctx, issue.ID, managerID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIssueDescriptionSanitized(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	projectID, managerID, _ := seedProject(t, f)

	dirty := `<script>alert(1)</script><b>bold</b>`
	issue, err := f.issues.Create(ctx, projectID, managerID, IssueCreateInput{
		Title:       "XSS attempt",
		Description: &dirty,
		Priority:    domain.IssuePriorityHigh,
		Type:        domain.IssueTypeBug,
	})
	require.NoError(t, err)
	require.NotNil(t, issue.Description)
	assert.NotContains(t, *issue.Description, "<script>")
	assert.Contains(t, *issue.Description, "<b>bold</b>")
}

func TestIssueListScopedToMembers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	projectID, managerID, _ := seedProject(t, f)
	outsider := f.state.addUser("outsider", "outsider@example.com")

	_, err := f.issues.Create(ctx, projectID, managerID, IssueCreateInput{
		Title:    "Members only",
		Priority: domain.IssuePriorityLow,
		Type:     domain.IssueTypeBug,
	})
	require.NoError(t, err)

	issues, count, err := f.issues.List(ctx, projectID, outsider.ID, repository.IssueFilter{}, repository.ListParams{Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Zero(t, count)

	issues, count, err = f.issues.List(ctx, projectID, managerID, repository.IssueFilter{}, repository.ListParams{Limit: 20})
	require.NoError(t, err)
	assert.Len(t, issues, 1)
	assert.Equal(t, 1, count)
}
