package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/leavedesk/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMissing = errors.New("missing")

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["detail"]
}

func TestHandleError(t *testing.T) {
	mappings := []ErrorMapping{
		{Error: errMissing, Status: http.StatusNotFound, Message: "Thing not found"},
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"mapped", fmt.Errorf("lookup: %w", errMissing), http.StatusNotFound, "Thing not found"},
		{"platform down", fmt.Errorf("select: dial postgres://app@db:5432/leavedesk: %w", platform.ErrUnavailable), http.StatusServiceUnavailable, MsgServiceUnavailable},
		{"unmapped", errors.New("boom"), http.StatusInternalServerError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			HandleError(context.Background(), rec, tt.err, mappings)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantDetail, decodeDetail(t, rec))
		})
	}
}

func TestHandleError_EmptyMessageUsesError(t *testing.T) {
	rec := httptest.NewRecorder()

	HandleError(context.Background(), rec, errMissing, []ErrorMapping{{Error: errMissing, Status: http.StatusBadRequest}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing", decodeDetail(t, rec))
}

func TestValidationError(t *testing.T) {
	type input struct {
		FirstName string `json:"first_name" validate:"required"`
	}

	t.Run("field errors", func(t *testing.T) {
		rec := httptest.NewRecorder()

		ValidationError(rec, NewValidator().Struct(input{}))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var body struct {
			Detail []FieldError `json:"detail"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, []FieldError{{Field: "first_name", Message: "required"}}, body.Detail)
	})

	t.Run("other error", func(t *testing.T) {
		rec := httptest.NewRecorder()

		ValidationError(rec, errors.New("unexpected EOF"))

		var body struct {
			Detail []FieldError `json:"detail"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, []FieldError{{Message: "unexpected EOF"}}, body.Detail)
	})
}
