package users_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/leavedesk/internal/domain"
	"github.com/bissquit/leavedesk/internal/platform"
	"github.com/bissquit/leavedesk/internal/platform/memory"
	"github.com/bissquit/leavedesk/internal/users"
	"github.com/bissquit/leavedesk/internal/users/store"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(tables platform.Tables) http.Handler {
	r := chi.NewRouter()
	users.NewHandler(users.NewService(store.NewRepository(tables))).RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["detail"]
}

func createUser(t *testing.T, h http.Handler, email string, role domain.Role) domain.User {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/users",
		`{"email":"`+email+`","first_name":"F","last_name":"L","role":"`+string(role)+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[domain.User](t, rec)
}

func TestCreateUser(t *testing.T) {
	h := newRouter(memory.New(nil))

	rec := do(t, h, http.MethodPost, "/users", `{"email":"a@x.com","first_name":"A","last_name":"B","role":"MEMBER"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	user := decode[domain.User](t, rec)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, domain.RoleMember, user.Role)
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)
}

func TestCreateUser_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantDetail string
	}{
		{
			name:       "invalid role",
			body:       `{"email":"b@x.com","first_name":"A","last_name":"B","role":"BOSS"}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "Invalid role. Must be one of: MEMBER, MANAGER, ADMIN",
		},
		{
			name:       "duplicate email",
			body:       `{"email":"a@x.com","first_name":"A","last_name":"B"}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "Email already registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(memory.New(nil))
			createUser(t, h, "a@x.com", domain.RoleMember)

			rec := do(t, h, http.MethodPost, "/users", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantDetail, detail(t, rec))

			list := decode[[]domain.User](t, do(t, h, http.MethodGet, "/users", ""))
			assert.Len(t, list, 1)
		})
	}
}

func TestCreateUser_MalformedBody(t *testing.T) {
	h := newRouter(memory.New(nil))

	for _, body := range []string{`{`, `{"email":"not-an-email","first_name":"A","last_name":"B"}`, `{"email":"a@x.com"}`} {
		rec := do(t, h, http.MethodPost, "/users", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
	}
}

func TestCreateUser_ReportsFieldNames(t *testing.T) {
	h := newRouter(memory.New(nil))

	rec := do(t, h, http.MethodPost, "/users", `{"email":"a@x.com"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[struct {
		Detail []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"detail"`
	}](t, rec)
	fields := make([]string, 0, len(body.Detail))
	for _, d := range body.Detail {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"first_name", "last_name"}, fields)
}

func TestUpdateUser(t *testing.T) {
	h := newRouter(memory.New(nil))
	user := createUser(t, h, "a@x.com", domain.RoleMember)

	t.Run("applies supplied fields", func(t *testing.T) {
		rec := do(t, h, http.MethodPut, "/users/"+user.ID, `{"first_name":"Ann","role":null}`)
		require.Equal(t, http.StatusOK, rec.Code)
		updated := decode[domain.User](t, rec)
		assert.Equal(t, "Ann", updated.FirstName)
		assert.Equal(t, "L", updated.LastName)
		assert.Equal(t, domain.RoleMember, updated.Role)
	})

	t.Run("invalid role", func(t *testing.T) {
		rec := do(t, h, http.MethodPut, "/users/"+user.ID, `{"role":"OWNER"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid role. Must be one of: MEMBER, MANAGER, ADMIN", detail(t, rec))
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := do(t, h, http.MethodPut, "/users/missing", `{"first_name":"X"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found", detail(t, rec))

		list := decode[[]domain.User](t, do(t, h, http.MethodGet, "/users", ""))
		assert.Len(t, list, 1)
	})
}

func TestTeamFlow(t *testing.T) {
	h := newRouter(memory.New(nil))
	manager := createUser(t, h, "m@x.com", domain.RoleManager)
	member := createUser(t, h, "u@x.com", domain.RoleMember)
	assignment := `{"manager_id":"` + manager.ID + `","member_id":"` + member.ID + `"}`

	rec := do(t, h, http.MethodPost, "/users/manager-assignment", assignment)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rel := decode[domain.ManagerMemberRelation](t, rec)
	assert.NotEmpty(t, rel.ID)
	assert.Equal(t, manager.ID, rel.ManagerID)
	assert.Equal(t, member.ID, rel.MemberID)

	rec = do(t, h, http.MethodGet, "/users/"+manager.ID+"/team", "")
	require.Equal(t, http.StatusOK, rec.Code)
	team := decode[[]domain.User](t, rec)
	require.Len(t, team, 1)
	assert.Equal(t, member.ID, team[0].ID)

	rec = do(t, h, http.MethodPost, "/users/manager-assignment", assignment)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Relationship already exists", detail(t, rec))

	rec = do(t, h, http.MethodGet, "/users/"+member.ID+"/team", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "User is not a manager", detail(t, rec))

	rec = do(t, h, http.MethodGet, "/users/missing/team", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/users/manager-assignment",
		`{"manager_id":"`+manager.ID+`","member_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Manager or member not found", detail(t, rec))

	rec = do(t, h, http.MethodPost, "/users/manager-assignment",
		`{"manager_id":"`+member.ID+`","member_id":"`+manager.ID+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User does not have MANAGER role", detail(t, rec))
}

func TestEmptyTeamIsEmptyArray(t *testing.T) {
	h := newRouter(memory.New(nil))
	manager := createUser(t, h, "m@x.com", domain.RoleManager)

	rec := do(t, h, http.MethodGet, "/users/"+manager.ID+"/team", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

// downTables simulates an unreachable platform.
type downTables struct{}

func (downTables) Select(context.Context, string, ...platform.Filter) (platform.Result, error) {
	return platform.Result{}, platform.ErrUnavailable
}

func (downTables) Insert(context.Context, string, platform.Row) (platform.Result, error) {
	return platform.Result{}, platform.ErrUnavailable
}

func (downTables) Update(context.Context, string, platform.Row, ...platform.Filter) (platform.Result, error) {
	return platform.Result{}, platform.ErrUnavailable
}

func (downTables) Ping(context.Context) error { return platform.ErrUnavailable }

func TestPlatformUnavailable(t *testing.T) {
	h := newRouter(downTables{})

	rec := do(t, h, http.MethodGet, "/users", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Service unavailable", detail(t, rec))
}
