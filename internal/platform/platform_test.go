package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decoded struct {
	ID        string    `json:"id"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

func TestDecode(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		row  Row
	}{
		{"typed values", Row{"id": "a", "count": 2, "created_at": ts}},
		{"json values", Row{"id": "a", "count": float64(2), "created_at": "2024-01-02T03:04:05+00:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode[decoded](tt.row)
			require.NoError(t, err)
			assert.Equal(t, "a", got.ID)
			assert.Equal(t, 2, got.Count)
			assert.True(t, ts.Equal(got.CreatedAt))
		})
	}
}

func TestDecode_TypeMismatch(t *testing.T) {
	_, err := Decode[decoded](Row{"count": "many"})
	assert.Error(t, err)
}

func TestDecodeAll_EmptyResult(t *testing.T) {
	got, err := DecodeAll[decoded](Result{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResultFirst(t *testing.T) {
	_, ok := Result{}.First()
	assert.False(t, ok)

	row, ok := Result{Rows: []Row{{"id": "x"}, {"id": "y"}}}.First()
	require.True(t, ok)
	assert.Equal(t, "x", row["id"])
}

func TestMetadataString(t *testing.T) {
	var nilUser *AuthUser
	assert.Equal(t, "MEMBER", nilUser.MetadataString("role", "MEMBER"))

	u := &AuthUser{UserMetadata: map[string]any{"role": "ADMIN", "first_name": "", "age": 3}}
	assert.Equal(t, "ADMIN", u.MetadataString("role", "MEMBER"))
	assert.Equal(t, "", u.MetadataString("first_name", ""))
	assert.Equal(t, "x", u.MetadataString("age", "x"))
	assert.Equal(t, "x", u.MetadataString("missing", "x"))
}

type failingPlatform struct {
	Platform
	err error
}

func (f *failingPlatform) Select(context.Context, string, ...Filter) (Result, error) {
	return Result{}, f.err
}

func TestInstrumentPassesThrough(t *testing.T) {
	inner := &failingPlatform{err: ErrUnavailable}
	p := Instrument(inner, "test")

	_, err := p.Select(context.Background(), "users")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "unavailable", outcome(ErrUnavailable))
	assert.Equal(t, "conflict", outcome(ErrConflict))
	assert.Equal(t, "error", outcome(errors.New("x")))
}
