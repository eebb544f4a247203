// Package platform describes the hosted data and identity platform the
// services delegate persistence and sign-in to.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Platform errors.
var (
	// ErrUnavailable means the platform could not be reached or refused the
	// service credentials. Handlers report it as 503.
	ErrUnavailable = errors.New("platform unavailable")
	// ErrConflict means a write violated a uniqueness constraint.
	ErrConflict = errors.New("unique constraint violation")
)

// Row is a single table row keyed by column name.
type Row map[string]any

// Result holds the rows returned by a table call. An empty result is not an error.
type Result struct {
	Rows []Row
}

// Empty reports whether the call returned no rows.
func (r Result) Empty() bool {
	return len(r.Rows) == 0
}

// First returns the first row, if any.
func (r Result) First() (Row, bool) {
	if r.Empty() {
		return nil, false
	}
	return r.Rows[0], true
}

// Op is a filter comparison.
type Op string

// Supported filter operations.
const (
	OpEq Op = "eq"
	OpIn Op = "in"
)

// Filter restricts the rows a call applies to.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq matches rows whose column equals value.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// In matches rows whose column is one of values.
func In(column string, values []string) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

// Tables is the table-query side of the platform.
type Tables interface {
	Select(ctx context.Context, table string, filters ...Filter) (Result, error)
	Insert(ctx context.Context, table string, row Row) (Result, error)
	Update(ctx context.Context, table string, patch Row, filters ...Filter) (Result, error)
	Ping(ctx context.Context) error
}

// AuthUser is an account known to the platform's identity service.
type AuthUser struct {
	ID           string
	Email        string
	UserMetadata map[string]any
}

// MetadataString returns the metadata value for key, or fallback when it is
// missing or not a non-empty string.
func (u *AuthUser) MetadataString(key, fallback string) string {
	if u == nil || u.UserMetadata == nil {
		return fallback
	}
	if s, ok := u.UserMetadata[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// Auth is the identity side of the platform.
type Auth interface {
	// SignInWithPassword returns nil without error when the credentials are rejected.
	SignInWithPassword(ctx context.Context, email, password string) (*AuthUser, error)
	// GetUser returns nil without error when the token does not map to a user.
	GetUser(ctx context.Context, token string) (*AuthUser, error)
}

// Platform bundles both sides of the collaborator.
type Platform interface {
	Tables
	Auth
	Close()
}

// TokenVerifier checks a bearer token and returns its subject. Drivers that
// host identities themselves use it to resolve tokens.
type TokenVerifier interface {
	VerifySubject(token string) (string, error)
}

// Decode converts a row into T through its JSON field names.
func Decode[T any](row Row) (T, error) {
	var out T
	data, err := json.Marshal(row)
	if err != nil {
		return out, fmt.Errorf("encode row: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode row: %w", err)
	}
	return out, nil
}

// DecodeAll converts every row of res into T.
func DecodeAll[T any](res Result) ([]T, error) {
	out := make([]T, 0, len(res.Rows))
	for _, row := range res.Rows {
		v, err := Decode[T](row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
