// Package memory provides an in-process platform used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/bissquit/leavedesk/internal/platform"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultConstraints mirrors the unique indexes of the postgres schema.
var DefaultConstraints = map[string][][]string{
	"users":                    {{"email"}},
	"manager_member_relations": {{"manager_id", "member_id"}},
}

// Identity seeds a sign-in account.
type Identity struct {
	Email    string
	Password string
	Metadata map[string]any
}

type identity struct {
	user *platform.AuthUser
	hash []byte
}

// Platform keeps tables and identities in memory.
type Platform struct {
	mu          sync.RWMutex
	tables      map[string][]platform.Row
	constraints map[string][][]string
	identities  map[string]*identity
	verifier    platform.TokenVerifier
	now         func() time.Time
}

// New creates an empty platform. verifier resolves bearer tokens to identity ids.
func New(verifier platform.TokenVerifier) *Platform {
	return &Platform{
		tables:      make(map[string][]platform.Row),
		constraints: DefaultConstraints,
		identities:  make(map[string]*identity),
		verifier:    verifier,
		now:         time.Now,
	}
}

// AddIdentity registers a sign-in account and returns its id.
func (p *Platform) AddIdentity(seed Identity) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ident := range p.identities {
		if strings.EqualFold(ident.user.Email, seed.Email) {
			return "", fmt.Errorf("identity %s: %w", seed.Email, platform.ErrConflict)
		}
	}

	id := uuid.NewString()
	p.identities[id] = &identity{
		user: &platform.AuthUser{
			ID:           id,
			Email:        seed.Email,
			UserMetadata: seed.Metadata,
		},
		hash: hash,
	}
	return id, nil
}

// Select returns copies of the rows matching all filters.
func (p *Platform) Select(_ context.Context, table string, filters ...platform.Filter) (platform.Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var res platform.Result
	for _, row := range p.tables[table] {
		if matches(row, filters) {
			res.Rows = append(res.Rows, clone(row))
		}
	}
	return res, nil
}

// Insert stores row, assigning id and timestamps when absent.
func (p *Platform) Insert(_ context.Context, table string, row platform.Row) (platform.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := clone(row)
	if _, ok := stored["id"]; !ok {
		stored["id"] = uuid.NewString()
	}
	now := p.now().UTC()
	if _, ok := stored["created_at"]; !ok {
		stored["created_at"] = now
	}

	if err := p.checkUnique(table, stored, -1); err != nil {
		return platform.Result{}, err
	}

	p.tables[table] = append(p.tables[table], stored)
	return platform.Result{Rows: []platform.Row{clone(stored)}}, nil
}

// Update applies patch to every matching row and returns the new versions.
func (p *Platform) Update(_ context.Context, table string, patch platform.Row, filters ...platform.Filter) (platform.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows := p.tables[table]
	var res platform.Result
	for i, row := range rows {
		if !matches(row, filters) {
			continue
		}
		updated := clone(row)
		for k, v := range patch {
			updated[k] = v
		}
		if err := p.checkUnique(table, updated, i); err != nil {
			return platform.Result{}, err
		}
		rows[i] = updated
		res.Rows = append(res.Rows, clone(updated))
	}
	return res, nil
}

// Ping always succeeds.
func (p *Platform) Ping(_ context.Context) error {
	return nil
}

// SignInWithPassword checks the password against the seeded identity.
func (p *Platform) SignInWithPassword(_ context.Context, email, password string) (*platform.AuthUser, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, ident := range p.identities {
		if !strings.EqualFold(ident.user.Email, email) {
			continue
		}
		if bcrypt.CompareHashAndPassword(ident.hash, []byte(password)) != nil {
			return nil, nil
		}
		u := *ident.user
		return &u, nil
	}
	return nil, nil
}

// GetUser resolves a token issued for one of the seeded identities.
func (p *Platform) GetUser(_ context.Context, token string) (*platform.AuthUser, error) {
	if p.verifier == nil {
		return nil, fmt.Errorf("memory platform: no token verifier: %w", platform.ErrUnavailable)
	}
	subject, err := p.verifier.VerifySubject(token)
	if err != nil {
		return nil, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	ident, ok := p.identities[subject]
	if !ok {
		return nil, nil
	}
	u := *ident.user
	return &u, nil
}

// Close is a no-op.
func (p *Platform) Close() {}

// checkUnique must be called with the write lock held. skip is the index of
// the row being replaced, or -1 for inserts.
func (p *Platform) checkUnique(table string, candidate platform.Row, skip int) error {
	for _, columns := range p.constraints[table] {
		for i, existing := range p.tables[table] {
			if i == skip {
				continue
			}
			if sameValues(existing, candidate, columns) {
				return fmt.Errorf("%s (%s): %w", table, strings.Join(columns, ", "), platform.ErrConflict)
			}
		}
	}
	return nil
}

func sameValues(a, b platform.Row, columns []string) bool {
	for _, c := range columns {
		if a[c] == nil || !reflect.DeepEqual(a[c], b[c]) {
			return false
		}
	}
	return true
}

func matches(row platform.Row, filters []platform.Filter) bool {
	for _, f := range filters {
		switch f.Op {
		case platform.OpEq:
			if !reflect.DeepEqual(row[f.Column], f.Value) {
				return false
			}
		case platform.OpIn:
			values, _ := f.Value.([]string)
			found := false
			for _, v := range values {
				if row[f.Column] == v {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func clone(row platform.Row) platform.Row {
	out := make(platform.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
