//go:build integration

package app

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/bissquit/leavedesk/internal/config"
	"github.com/bissquit/leavedesk/internal/domain"
	platformpostgres "github.com/bissquit/leavedesk/internal/platform/postgres"
	"github.com/bissquit/leavedesk/internal/pkg/postgres"
	"github.com/bissquit/leavedesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDriver(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := testutil.NewPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	cfg := newTestConfig()
	cfg.Platform.Driver = config.DriverPostgres
	cfg.Platform.Identities = nil
	cfg.Database.URL = pgContainer.ConnectionString

	srv := newTestServer(t, cfg)
	client := newTestClient(t, srv)

	db, err := postgres.Connect(ctx, postgres.Config{URL: pgContainer.ConnectionString, MaxOpenConns: 2, ConnectAttempts: 3})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	_, err = platformpostgres.New(db, nil).CreateIdentity(ctx, "boss@x.com", "s3cret-pass", map[string]any{
		"first_name": "Bo",
		"role":       "MANAGER",
	})
	require.NoError(t, err)

	resp, err := client.GET("/readyz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	client.LoginAs(t, "boss@x.com", "s3cret-pass")
	resp, err = client.GET("/users/me")
	require.NoError(t, err)
	var identity domain.Identity
	testutil.DecodeJSON(t, resp, &identity)
	assert.Equal(t, domain.Identity{Email: "boss@x.com", FirstName: "Bo", Role: domain.RoleManager}, identity)

	resp, err = client.PostForm("/token", url.Values{"username": {"boss@x.com"}, "password": {"nope"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.POST("/users", map[string]string{"email": "m@x.com", "first_name": "M", "last_name": "G", "role": "MANAGER"})
	require.NoError(t, err)
	var manager domain.User
	testutil.DecodeJSON(t, resp, &manager)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, manager.CreatedAt, manager.UpdatedAt)

	resp, err = client.POST("/users", map[string]string{"email": "u@x.com", "first_name": "U", "last_name": "S"})
	require.NoError(t, err)
	var member domain.User
	testutil.DecodeJSON(t, resp, &member)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.POST("/users", map[string]string{"email": "u@x.com", "first_name": "U", "last_name": "S"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	assignment := map[string]string{"manager_id": manager.ID, "member_id": member.ID}
	resp, err = client.POST("/users/manager-assignment", assignment)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.POST("/users/manager-assignment", assignment)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.GET("/users/" + manager.ID + "/team")
	require.NoError(t, err)
	var team []domain.User
	testutil.DecodeJSON(t, resp, &team)
	require.Len(t, team, 1)
	assert.Equal(t, member.ID, team[0].ID)

	resp, err = client.PUT("/users/"+member.ID, map[string]string{"role": "ADMIN"})
	require.NoError(t, err)
	var updated domain.User
	testutil.DecodeJSON(t, resp, &updated)
	assert.Equal(t, domain.RoleAdmin, updated.Role)
	assert.True(t, updated.CreatedAt.Equal(member.CreatedAt))
}
