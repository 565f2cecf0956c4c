package service

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/sumire/bugtracker/internal/domain"
	"github.com/sumire/bugtracker/internal/mail"
	"github.com/sumire/bugtracker/internal/repository"
)

// memState is the shared in-memory backing for the fake stores used in the
// service tests. The per-interface wrappers below exist because the store
// interfaces reuse method names with different signatures.
type memState struct {
	nextID int64

	users      map[int64]domain.User
	projects   map[int64]domain.Project
	subdomains map[string]int64
	roles      map[[2]int64]domain.Role // (projectID, userID)
	issues     map[int64]domain.Issue
	comments   map[int64]domain.Comment
	attach     map[int64]domain.Attachment
	history    []domain.HistoryEntry
}

func newMemState() *memState {
	return &memState{
		users:      make(map[int64]domain.User),
		projects:   make(map[int64]domain.Project),
		subdomains: make(map[string]int64),
		roles:      make(map[[2]int64]domain.Role),
		issues:     make(map[int64]domain.Issue),
		comments:   make(map[int64]domain.Comment),
		attach:     make(map[int64]domain.Attachment),
	}
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memState) addUser(username, email string) domain.User {
	u := domain.User{ID: s.id(), Username: username, Email: email}
	s.users[u.ID] = u
	return u
}

func (s *memState) role(projectID, userID int64) domain.Role {
	return s.roles[[2]int64{projectID, userID}]
}

func (s *memState) historyFor(issueID int64) []domain.HistoryEntry {
	var out []domain.HistoryEntry
	for _, e := range s.history {
		if e.IssueID == issueID {
			out = append(out, e)
		}
	}
	return out
}

// fakeTx runs the function directly; the fakes have no rollback, so the
// services under test must not write anything before a rejected check.
type fakeTx struct{}

func (fakeTx) Transact(_ context.Context, fn func(q repository.Querier) error) error {
	return fn(nil)
}

// fakeUsers implements UserStore.
type fakeUsers struct{ s *memState }

func (f fakeUsers) FindByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := f.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (f fakeUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range f.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f fakeUsers) FindByProviderID(_ context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error) {
	for _, u := range f.s.users {
		if u.Provider != nil && *u.Provider == provider && u.ProviderID != nil && *u.ProviderID == providerID {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f fakeUsers) Create(_ context.Context, _ repository.Querier, user domain.User) (*domain.User, error) {
	for _, u := range f.s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, domain.ErrConflict
		}
	}
	user.ID = f.s.id()
	f.s.users[user.ID] = user
	return &user, nil
}

func (f fakeUsers) UpsertOAuth(ctx context.Context, user domain.User) (*domain.User, error) {
	if existing, err := f.FindByProviderID(ctx, *user.Provider, *user.ProviderID); err == nil {
		return existing, nil
	}
	user.ID = f.s.id()
	f.s.users[user.ID] = user
	return &user, nil
}

func (f fakeUsers) SetPassword(_ context.Context, userID int64, hash string) error {
	u, ok := f.s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = &hash
	f.s.users[userID] = u
	return nil
}

func (f fakeUsers) UsernameExists(_ context.Context, username string) (bool, error) {
	for _, u := range f.s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

// fakeProjects implements ProjectStore.
type fakeProjects struct{ s *memState }

func (f fakeProjects) FindByIDForUser(_ context.Context, projectID, userID int64) (*domain.Project, error) {
	p, ok := f.s.projects[projectID]
	role := f.s.role(projectID, userID)
	if !ok || role == domain.RoleNone {
		return nil, domain.ErrNotFound
	}
	p.Role = role
	return &p, nil
}

func (f fakeProjects) FindBySubdomainForUser(ctx context.Context, subdomain string, userID int64) (*domain.Project, error) {
	projectID, ok := f.s.subdomains[subdomain]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return f.FindByIDForUser(ctx, projectID, userID)
}

func (f fakeProjects) ListForUser(_ context.Context, userID int64, _ repository.ProjectFilter, _ repository.ListParams) ([]domain.Project, int, error) {
	var out []domain.Project
	for id, p := range f.s.projects {
		if role := f.s.role(id, userID); role != domain.RoleNone {
			p.Role = role
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (f fakeProjects) Create(_ context.Context, _ repository.Querier, project domain.Project) (*domain.Project, error) {
	project.ID = f.s.id()
	f.s.projects[project.ID] = project
	return &project, nil
}

func (f fakeProjects) CreateIdentifier(_ context.Context, _ repository.Querier, projectID int64, subdomain string) error {
	if _, taken := f.s.subdomains[subdomain]; taken {
		return domain.ErrConflict
	}
	for sub, id := range f.s.subdomains {
		if id == projectID {
			delete(f.s.subdomains, sub)
		}
	}
	f.s.subdomains[subdomain] = projectID
	p := f.s.projects[projectID]
	p.Subdomain = subdomain
	p.SubdomainUpdatedAt = time.Now()
	f.s.projects[projectID] = p
	return nil
}

func (f fakeProjects) Update(_ context.Context, _ repository.Querier, project domain.Project) error {
	current, ok := f.s.projects[project.ID]
	if !ok {
		return domain.ErrNotFound
	}
	project.Subdomain = current.Subdomain
	project.SubdomainUpdatedAt = current.SubdomainUpdatedAt
	f.s.projects[project.ID] = project
	return nil
}

func (f fakeProjects) UpdateSubdomain(ctx context.Context, q repository.Querier, projectID int64, subdomain string) error {
	return f.CreateIdentifier(ctx, q, projectID, subdomain)
}

// fakeMembers implements MemberStore.
type fakeMembers struct{ s *memState }

func (f fakeMembers) GetRole(_ context.Context, projectID, userID int64) (domain.Role, error) {
	return f.s.role(projectID, userID), nil
}

func (f fakeMembers) Get(_ context.Context, projectID, memberID, requestorID int64) (*domain.Member, error) {
	if f.s.role(projectID, requestorID) == domain.RoleNone {
		return nil, domain.ErrNotFound
	}
	role := f.s.role(projectID, memberID)
	if role == domain.RoleNone {
		return nil, domain.ErrNotFound
	}
	u := f.s.users[memberID]
	return &domain.Member{
		ProjectID: projectID,
		UserID:    memberID,
		Role:      role,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}, nil
}

func (f fakeMembers) List(_ context.Context, projectID, requestorID int64, _ repository.MemberFilter, _ repository.ListParams) ([]domain.Member, int, error) {
	if f.s.role(projectID, requestorID) == domain.RoleNone {
		return nil, 0, domain.ErrNotFound
	}
	var out []domain.Member
	for key, role := range f.s.roles {
		if key[0] != projectID {
			continue
		}
		u := f.s.users[key[1]]
		out = append(out, domain.Member{ProjectID: projectID, UserID: key[1], Role: role, Username: u.Username, Email: u.Email})
	}
	return out, len(out), nil
}

func (f fakeMembers) Create(_ context.Context, _ repository.Querier, projectID, userID int64, role domain.Role) error {
	key := [2]int64{projectID, userID}
	if f.s.roles[key] != domain.RoleNone {
		return domain.ErrConflict
	}
	f.s.roles[key] = role
	return nil
}

func (f fakeMembers) UpdateRole(_ context.Context, _ repository.Querier, projectID, userID int64, role domain.Role) error {
	key := [2]int64{projectID, userID}
	if f.s.roles[key] == domain.RoleNone {
		return domain.ErrNotFound
	}
	f.s.roles[key] = role
	return nil
}

func (f fakeMembers) Delete(_ context.Context, _ repository.Querier, projectID, userID int64) error {
	key := [2]int64{projectID, userID}
	if f.s.roles[key] == domain.RoleNone {
		return domain.ErrNotFound
	}
	delete(f.s.roles, key)
	return nil
}

// fakeIssues implements IssueStore.
type fakeIssues struct{ s *memState }

func (f fakeIssues) FindByIDForUser(_ context.Context, issueID, userID int64) (*domain.Issue, error) {
	i, ok := f.s.issues[issueID]
	if !ok || f.s.role(i.ProjectID, userID) == domain.RoleNone {
		return nil, domain.ErrNotFound
	}
	return &i, nil
}

func (f fakeIssues) List(_ context.Context, projectID, userID int64, _ repository.IssueFilter, _ repository.ListParams) ([]domain.Issue, int, error) {
	// Non-members see an empty page, same as the membership EXISTS condition
	// in the real query.
	if f.s.role(projectID, userID) == domain.RoleNone {
		return []domain.Issue{}, 0, nil
	}
	var out []domain.Issue
	for _, i := range f.s.issues {
		if i.ProjectID == projectID {
			out = append(out, i)
		}
	}
	return out, len(out), nil
}

func (f fakeIssues) Create(_ context.Context, _ repository.Querier, issue domain.Issue) (*domain.Issue, error) {
	issue.ID = f.s.id()
	f.s.issues[issue.ID] = issue
	return &issue, nil
}

func (f fakeIssues) Update(_ context.Context, _ repository.Querier, issue domain.Issue) error {
	if _, ok := f.s.issues[issue.ID]; !ok {
		return domain.ErrNotFound
	}
	f.s.issues[issue.ID] = issue
	return nil
}

func (f fakeIssues) UpdateAssignee(_ context.Context, _ repository.Querier, issueID int64, assigneeID *int64) error {
	i, ok := f.s.issues[issueID]
	if !ok {
		return domain.ErrNotFound
	}
	i.AssignedTo = assigneeID
	f.s.issues[issueID] = i
	return nil
}

func (f fakeIssues) Delete(_ context.Context, _ repository.Querier, issueID int64) error {
	if _, ok := f.s.issues[issueID]; !ok {
		return domain.ErrNotFound
	}
	delete(f.s.issues, issueID)
	return nil
}

// fakeComments implements CommentStore.
type fakeComments struct{ s *memState }

func (f fakeComments) Get(ctx context.Context, commentID, issueID, userID int64) (*domain.Comment, error) {
	c, ok := f.s.comments[commentID]
	if !ok || c.IssueID != issueID {
		return nil, domain.ErrNotFound
	}
	if _, err := (fakeIssues{f.s}).FindByIDForUser(ctx, issueID, userID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (f fakeComments) List(ctx context.Context, issueID, userID int64, _ repository.CommentFilter, _ repository.ListParams) ([]domain.Comment, int, error) {
	if _, err := (fakeIssues{f.s}).FindByIDForUser(ctx, issueID, userID); err != nil {
		return nil, 0, err
	}
	var out []domain.Comment
	for _, c := range f.s.comments {
		if c.IssueID == issueID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (f fakeComments) Create(_ context.Context, _ repository.Querier, comment domain.Comment) (*domain.Comment, error) {
	comment.ID = f.s.id()
	f.s.comments[comment.ID] = comment
	return &comment, nil
}

func (f fakeComments) Update(_ context.Context, _ repository.Querier, commentID int64, text string) error {
	c, ok := f.s.comments[commentID]
	if !ok {
		return domain.ErrNotFound
	}
	c.Text = text
	f.s.comments[commentID] = c
	return nil
}

func (f fakeComments) Delete(_ context.Context, _ repository.Querier, commentID int64) error {
	if _, ok := f.s.comments[commentID]; !ok {
		return domain.ErrNotFound
	}
	delete(f.s.comments, commentID)
	return nil
}

// fakeAttachments implements AttachmentStore.
type fakeAttachments struct{ s *memState }

func (f fakeAttachments) Get(ctx context.Context, attachmentID, issueID, userID int64) (*domain.Attachment, error) {
	a, ok := f.s.attach[attachmentID]
	if !ok || a.IssueID != issueID {
		return nil, domain.ErrNotFound
	}
	if _, err := (fakeIssues{f.s}).FindByIDForUser(ctx, issueID, userID); err != nil {
		return nil, err
	}
	return &a, nil
}

func (f fakeAttachments) ListForIssue(ctx context.Context, issueID, userID int64, _ repository.AttachmentFilter, _ repository.ListParams) ([]domain.Attachment, int, error) {
	if _, err := (fakeIssues{f.s}).FindByIDForUser(ctx, issueID, userID); err != nil {
		return nil, 0, err
	}
	var out []domain.Attachment
	for _, a := range f.s.attach {
		if a.IssueID == issueID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (f fakeAttachments) ListForComment(ctx context.Context, issueID, commentID, userID int64, _ repository.AttachmentFilter, _ repository.ListParams) ([]domain.Attachment, int, error) {
	if _, err := (fakeIssues{f.s}).FindByIDForUser(ctx, issueID, userID); err != nil {
		return nil, 0, err
	}
	var out []domain.Attachment
	for _, a := range f.s.attach {
		if a.IssueID == issueID && a.CommentID != nil && *a.CommentID == commentID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (f fakeAttachments) Create(_ context.Context, _ repository.Querier, attachment domain.Attachment) (*domain.Attachment, error) {
	attachment.ID = f.s.id()
	f.s.attach[attachment.ID] = attachment
	return &attachment, nil
}

func (f fakeAttachments) Delete(_ context.Context, _ repository.Querier, attachmentID int64) error {
	if _, ok := f.s.attach[attachmentID]; !ok {
		return domain.ErrNotFound
	}
	delete(f.s.attach, attachmentID)
	return nil
}

// memFiles is an in-memory storage.Store.
type memFiles struct {
	files map[string][]byte
}

func newMemFiles() *memFiles {
	return &memFiles{files: make(map[string][]byte)}
}

func (m *memFiles) Save(_ context.Context, key string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	m.files[key] = data
	return nil
}

func (m *memFiles) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.files[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memFiles) Remove(_ context.Context, key string) error {
	delete(m.files, key)
	return nil
}

// fakeHistory implements HistoryStore.
type fakeHistory struct{ s *memState }

func (f fakeHistory) Append(_ context.Context, _ repository.Querier, entry domain.HistoryEntry) error {
	entry.ID = f.s.id()
	entry.CreatedAt = time.Now()
	f.s.history = append(f.s.history, entry)
	return nil
}

func (f fakeHistory) List(ctx context.Context, issueID, userID int64, _ repository.HistoryFilter, _ repository.ListParams) ([]domain.HistoryEntry, int, error) {
	if _, err := (fakeIssues{f.s}).FindByIDForUser(ctx, issueID, userID); err != nil {
		return nil, 0, err
	}
	entries := f.s.historyFor(issueID)
	return entries, len(entries), nil
}

// fakeSender records every batch handed to it.
type fakeSender struct {
	batches [][]mail.Message
	err     error
}

func (s *fakeSender) Send(_ context.Context, messages []mail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, messages)
	return nil
}

func (s *fakeSender) sent() int {
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

// stubTokens issues a fixed invite token.
type stubTokens struct{}

func (stubTokens) GenerateInviteToken(int64) (string, error) { return "invite-token", nil }
