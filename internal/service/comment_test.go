package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/bugtracker/internal/domain"
)

func seedIssue(t *testing.T, f *fixture) (int64, int64, int64, int64) {
	t.Helper()
	projectID, managerID, developerID := seedProject(t, f)

	issue, err := f.issues.Create(context.Background(), projectID, developerID, IssueCreateInput{
		Title:    "Broken layout",
		Priority: domain.IssuePriorityMedium,
		Type:     domain.IssueTypeBug,
	})
	require.NoError(t, err)
	return projectID, managerID, developerID, issue.ID
}

func TestCommentCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, managerID, _, issueID := seedIssue(t, f)

	comment, err := f.comments.Create(ctx, issueID, managerID, "Can you add a screenshot?")
	require.NoError(t, err)
	assert.Equal(t, managerID, comment.AuthorID)

	entries := f.state.historyFor(issueID)
	last := entries[len(entries)-1]
	assert.Equal(t, domain.HistorySubjectComment, last.Subject)
	assert.Equal(t, domain.HistoryActionCreate, last.Action)
	assert.Equal(t, comment.ID, last.SubjectID)
}

func TestCommentTextSanitized(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, managerID, _, issueID := seedIssue(t, f)

	comment, err := f.comments.Create(ctx, issueID, managerID, `<img src=x onerror=alert(1)>fine`)
	require.NoError(t, err)
	assert.NotContains(t, comment.Text, "onerror")
	assert.Contains(t, comment.Text, "fine")
}

func TestCommentMutationAuthorOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, managerID, developerID, issueID := seedIssue(t, f)

	comment, err := f.comments.Create(ctx, issueID, developerID, "My note")
	require.NoError(t, err)

	// even a manager cannot edit or remove someone else's comment
	_, err = f.comments.Update(ctx, issueID, comment.ID, managerID, "Overwritten")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	err = f.comments.Remove(ctx, issueID, comment.ID, managerID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	updated, err := f.comments.Update(ctx, issueID, comment.ID, developerID, "Edited note")
	require.NoError(t, err)
	assert.Equal(t, "Edited note", updated.Text)

	require.NoError(t, f.comments.Remove(ctx, issueID, comment.ID, developerID))
	_, err = f.comments.Get(ctx, issueID, comment.ID, developerID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCommentSurvivesMembershipRemoval(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	projectID, managerID, developerID := seedProject(t, f)
	issue, err := f.issues.Create(ctx, projectID, managerID, IssueCreateInput{
		Title:    "Persistent",
		Priority: domain.IssuePriorityLow,
		Type:     domain.IssueTypeBug,
	})
	require.NoError(t, err)
	issueID := issue.ID

	comment, err := f.comments.Create(ctx, issueID, developerID, "Before leaving")
	require.NoError(t, err)

	require.NoError(t, f.members.Remove(ctx, projectID, managerID, developerID))

	got, err := f.comments.Get(ctx, issueID, comment.ID, managerID)
	require.NoError(t, err)
	assert.Equal(t, developerID, got.AuthorID)
}
