package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/bugtracker/internal/domain"
)

func newAuthService() (*AuthService, *memState) {
	state := newMemState()
	svc := NewAuthService(fakeUsers{s: state}, fakeTx{}, AuthConfig{
		JWTSecret:   "test-secret",
		FrontendURL: "http://localhost:3000",
	})
	return svc, state
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	user, pair, err := svc.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	require.NotNil(t, user.PasswordHash)
	assert.NotEqual(t, "correct horse", *user.PasswordHash)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	got, loginPair, err := svc.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, loginPair.AccessToken)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "pw123456"})
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, RegisterInput{Username: "alice2", Email: "alice@example.com", Password: "pw123456"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "pw123456"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, _, err = svc.Login(ctx, "nobody@example.com", "pw123456")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLoginRejectsPasswordlessAccount(t *testing.T) {
	svc, state := newAuthService()

	user := state.addUser("oauth_user", "oauth@example.com")
	require.Nil(t, user.PasswordHash)

	_, _, err := svc.Login(context.Background(), "oauth@example.com", "anything")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestValidateToken(t *testing.T) {
	svc, _ := newAuthService()

	user, pair, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice", Email: "alice@example.com", Password: "pw123456",
	})
	require.NoError(t, err)

	userID, err := svc.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	// A refresh token is not valid where an access token is expected.
	_, err = svc.ValidateToken(pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc, _ := newAuthService()
	other := NewAuthService(fakeUsers{s: newMemState()}, fakeTx{}, AuthConfig{JWTSecret: "other-secret"})

	_, pair, err := other.Register(context.Background(), RegisterInput{
		Username: "mallory", Email: "mallory@example.com", Password: "pw123456",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefreshAccessToken(t *testing.T) {
	svc, _ := newAuthService()

	user, pair, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice", Email: "alice@example.com", Password: "pw123456",
	})
	require.NoError(t, err)

	fresh, err := svc.RefreshAccessToken(pair.RefreshToken)
	require.NoError(t, err)

	userID, err := svc.ValidateToken(fresh.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	// An access token cannot be used to refresh.
	_, err = svc.RefreshAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestActivateSetsFirstPassword(t *testing.T) {
	svc, state := newAuthService()
	ctx := context.Background()

	invitee := state.addUser("invited", "invited@example.com")
	token, err := svc.GenerateInviteToken(invitee.ID)
	require.NoError(t, err)

	pair, err := svc.Activate(ctx, token, "chosen password")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	got, _, err := svc.Login(ctx, "invited@example.com", "chosen password")
	require.NoError(t, err)
	assert.Equal(t, invitee.ID, got.ID)
}

func TestActivateRejectsAccessToken(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, pair, err := svc.Register(ctx, RegisterInput{
		Username: "alice", Email: "alice@example.com", Password: "pw123456",
	})
	require.NoError(t, err)

	_, err = svc.Activate(ctx, pair.AccessToken, "new password")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
