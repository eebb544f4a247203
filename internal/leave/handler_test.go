package leave

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/leavedesk/internal/domain"
	"github.com/bissquit/leavedesk/internal/pkg/ctxlog"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func newRouter() http.Handler {
	r := chi.NewRouter()
	NewHandler().RegisterRoutes(r)
	return r
}

func TestCreateRequest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "valid request is accepted but not implemented",
			body:       `{"user_id":"u1","leave_type":"VACATION","start_date":"2024-07-01","end_date":"2024-07-05","reason":"trip"}`,
			wantStatus: http.StatusNotImplemented,
		},
		{
			name:       "single day",
			body:       `{"user_id":"u1","leave_type":"SICK","start_date":"2024-07-01","end_date":"2024-07-01"}`,
			wantStatus: http.StatusNotImplemented,
		},
		{
			name:       "unknown leave type",
			body:       `{"user_id":"u1","leave_type":"SABBATICAL","start_date":"2024-07-01","end_date":"2024-07-05"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "bad date",
			body:       `{"user_id":"u1","leave_type":"SICK","start_date":"07/01/2024","end_date":"2024-07-05"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "end before start",
			body:       `{"user_id":"u1","leave_type":"SICK","start_date":"2024-07-05","end_date":"2024-07-01"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "missing user",
			body:       `{"leave_type":"SICK","start_date":"2024-07-01","end_date":"2024-07-01"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "malformed json",
			body:       `{"user_id":`,
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/leave/requests", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			newRouter().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestGetBalance(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/leave/balance/u1", nil)
	rec := httptest.NewRecorder()

	newRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.JSONEq(t, `{"detail":"Leave management is not implemented yet"}`, rec.Body.String())
}

func TestToDomain(t *testing.T) {
	reason := "trip"
	req := CreateLeaveRequest{UserID: "u1", LeaveType: "VACATION", StartDate: "2024-07-01", EndDate: "2024-07-05", Reason: &reason}

	got := req.ToDomain()

	assert.Equal(t, domain.LeaveTypeVacation, got.LeaveType)
	assert.Equal(t, domain.LeaveStatusPending, got.Status)
	assert.Equal(t, &reason, got.Reason)
}

func TestCreateRequest_LogsPendingRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	body := `{"user_id":"u1","leave_type":"VACATION","start_date":"2024-07-01","end_date":"2024-07-05"}`
	req := httptest.NewRequest(http.MethodPost, "/leave/requests", strings.NewReader(body))
	req = req.WithContext(ctxlog.WithLogger(req.Context(), logger))
	rec := httptest.NewRecorder()

	newRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Contains(t, buf.String(), "user_id=u1")
	assert.Contains(t, buf.String(), "leave_type=VACATION")
	assert.Contains(t, buf.String(), "status=PENDING")
}
