package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bissquit/leavedesk/internal/auth/token"
	"github.com/bissquit/leavedesk/internal/domain"
	"github.com/bissquit/leavedesk/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAuth implements platform.Auth for testing.
type mockAuth struct {
	account   *platform.AuthUser
	signInErr error
	getErr    error

	gotEmail string
	gotToken string
}

func (m *mockAuth) SignInWithPassword(_ context.Context, email, password string) (*platform.AuthUser, error) {
	m.gotEmail = email
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	if m.account == nil || password != "secret" {
		return nil, nil
	}
	return m.account, nil
}

func (m *mockAuth) GetUser(_ context.Context, raw string) (*platform.AuthUser, error) {
	m.gotToken = raw
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.account, nil
}

func newCodec(t *testing.T, now func() time.Time) *token.Codec {
	t.Helper()
	c, err := token.NewCodec("test-secret", 0, token.WithClock(now))
	require.NoError(t, err)
	return c
}

func TestSignIn(t *testing.T) {
	account := &platform.AuthUser{ID: "acct-1", Email: "a@x.com"}
	codec := newCodec(t, time.Now)

	t.Run("issues a bearer token for the account", func(t *testing.T) {
		m := &mockAuth{account: account}
		service := NewService(m, codec)

		resp, err := service.SignIn(context.Background(), " A@X.com", "secret")
		require.NoError(t, err)
		assert.Equal(t, "bearer", resp.TokenType)
		assert.Equal(t, "a@x.com", m.gotEmail)

		claims, err := codec.Parse(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "A@X.com", claims.Email, "claim keeps the submitted address")
		assert.Equal(t, "acct-1", claims.Subject)
	})

	t.Run("wrong password", func(t *testing.T) {
		service := NewService(&mockAuth{account: account}, codec)
		_, err := service.SignIn(context.Background(), "a@x.com", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown account", func(t *testing.T) {
		service := NewService(&mockAuth{}, codec)
		_, err := service.SignIn(context.Background(), "b@x.com", "secret")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("platform failure", func(t *testing.T) {
		service := NewService(&mockAuth{signInErr: platform.ErrUnavailable}, codec)
		_, err := service.SignIn(context.Background(), "a@x.com", "secret")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestResolveToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	codec := newCodec(t, clock)

	valid, _, err := codec.Issue("acct-1", "a@x.com")
	require.NoError(t, err)

	t.Run("composes identity from metadata", func(t *testing.T) {
		m := &mockAuth{account: &platform.AuthUser{
			ID:    "acct-1",
			Email: "a@x.com",
			UserMetadata: map[string]any{
				"first_name": "Ann",
				"last_name":  "Lee",
				"role":       "MANAGER",
			},
		}}
		service := NewService(m, codec)

		identity, err := service.ResolveToken(context.Background(), valid)
		require.NoError(t, err)
		assert.Equal(t, &domain.Identity{Email: "a@x.com", FirstName: "Ann", LastName: "Lee", Role: domain.RoleManager}, identity)
		assert.Equal(t, valid, m.gotToken)
	})

	t.Run("defaults missing metadata", func(t *testing.T) {
		service := NewService(&mockAuth{account: &platform.AuthUser{ID: "acct-1", Email: "a@x.com"}}, codec)

		identity, err := service.ResolveToken(context.Background(), valid)
		require.NoError(t, err)
		assert.Equal(t, "", identity.FirstName)
		assert.Equal(t, "", identity.LastName)
		assert.Equal(t, domain.RoleMember, identity.Role)
	})

	noEmail, _, err := codec.Issue("acct-1", "")
	require.NoError(t, err)
	expired, _, err := newCodec(t, func() time.Time { return now.Add(-31 * time.Minute) }).Issue("acct-1", "a@x.com")
	require.NoError(t, err)
	account := &platform.AuthUser{ID: "acct-1", Email: "a@x.com"}

	tests := []struct {
		name string
		raw  string
		auth *mockAuth
	}{
		{name: "garbage", raw: "not-a-token", auth: &mockAuth{account: account}},
		{name: "missing email claim", raw: noEmail, auth: &mockAuth{account: account}},
		{name: "expired", raw: expired, auth: &mockAuth{account: account}},
		{name: "no platform account", raw: valid, auth: &mockAuth{}},
		{name: "platform failure", raw: valid, auth: &mockAuth{getErr: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(tt.auth, codec)
			_, err := service.ResolveToken(context.Background(), tt.raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
