// Package store implements the user directory repository on the platform's
// table interface.
package store

import (
	"context"
	"fmt"

	"github.com/bissquit/leavedesk/internal/domain"
	"github.com/bissquit/leavedesk/internal/platform"
	"github.com/bissquit/leavedesk/internal/users"
)

// Platform table names.
const (
	UsersTable     = "users"
	RelationsTable = "manager_member_relations"
)

// Repository implements users.Repository on top of platform tables.
type Repository struct {
	tables platform.Tables
}

// NewRepository creates a repository that reads and writes through tables.
func NewRepository(tables platform.Tables) *Repository {
	return &Repository{tables: tables}
}

// ListUsers returns every user row.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	res, err := r.tables.Select(ctx, UsersTable)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return platform.DecodeAll[domain.User](res)
}

// GetUserByID returns users.ErrUserNotFound when no row has the id.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getUser(ctx, platform.Eq("id", id))
}

// GetUserByEmail returns users.ErrUserNotFound when no row has the email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, platform.Eq("email", email))
}

func (r *Repository) getUser(ctx context.Context, filter platform.Filter) (*domain.User, error) {
	res, err := r.tables.Select(ctx, UsersTable, filter)
	if err != nil {
		return nil, fmt.Errorf("get user by %s: %w", filter.Column, err)
	}
	row, ok := res.First()
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return decodeUser(row)
}

// CreateUser inserts user and returns the stored row.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	row := platform.Row{
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"role":       string(user.Role),
		"created_at": user.CreatedAt,
		"updated_at": user.UpdatedAt,
	}
	if user.ID != "" {
		row["id"] = user.ID
	}

	res, err := r.tables.Insert(ctx, UsersTable, row)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	stored, ok := res.First()
	if !ok {
		return nil, users.ErrNoRow
	}
	return decodeUser(stored)
}

// UpdateUser writes the non-nil fields of patch plus updated_at.
func (r *Repository) UpdateUser(ctx context.Context, id string, patch users.UserPatch) (*domain.User, error) {
	row := platform.Row{"updated_at": patch.UpdatedAt}
	if patch.FirstName != nil {
		row["first_name"] = *patch.FirstName
	}
	if patch.LastName != nil {
		row["last_name"] = *patch.LastName
	}
	if patch.Role != nil {
		row["role"] = string(*patch.Role)
	}

	res, err := r.tables.Update(ctx, UsersTable, row, platform.Eq("id", id))
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	stored, ok := res.First()
	if !ok {
		return nil, users.ErrNoRow
	}
	return decodeUser(stored)
}

// GetRelation returns users.ErrRelationNotFound when the pair is not linked.
func (r *Repository) GetRelation(ctx context.Context, managerID, memberID string) (*domain.ManagerMemberRelation, error) {
	res, err := r.tables.Select(ctx, RelationsTable,
		platform.Eq("manager_id", managerID),
		platform.Eq("member_id", memberID),
	)
	if err != nil {
		return nil, fmt.Errorf("get relation: %w", err)
	}
	row, ok := res.First()
	if !ok {
		return nil, users.ErrRelationNotFound
	}
	return decodeRelation(row)
}

// CreateRelation inserts rel and returns the stored row.
func (r *Repository) CreateRelation(ctx context.Context, rel *domain.ManagerMemberRelation) (*domain.ManagerMemberRelation, error) {
	res, err := r.tables.Insert(ctx, RelationsTable, platform.Row{
		"id":         rel.ID,
		"manager_id": rel.ManagerID,
		"member_id":  rel.MemberID,
		"created_at": rel.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("insert relation: %w", err)
	}
	stored, ok := res.First()
	if !ok {
		return nil, users.ErrNoRow
	}
	return decodeRelation(stored)
}

// ListTeam returns the members linked to managerID, in relation order.
func (r *Repository) ListTeam(ctx context.Context, managerID string) ([]domain.User, error) {
	res, err := r.tables.Select(ctx, RelationsTable, platform.Eq("manager_id", managerID))
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	relations, err := platform.DecodeAll[domain.ManagerMemberRelation](res)
	if err != nil {
		return nil, err
	}
	if len(relations) == 0 {
		return []domain.User{}, nil
	}

	memberIDs := make([]string, 0, len(relations))
	for _, rel := range relations {
		memberIDs = append(memberIDs, rel.MemberID)
	}

	res, err = r.tables.Select(ctx, UsersTable, platform.In("id", memberIDs))
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	members, err := platform.DecodeAll[domain.User](res)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.User, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	team := make([]domain.User, 0, len(members))
	for _, id := range memberIDs {
		if m, ok := byID[id]; ok {
			team = append(team, m)
		}
	}
	return team, nil
}

func decodeUser(row platform.Row) (*domain.User, error) {
	user, err := platform.Decode[domain.User](row)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func decodeRelation(row platform.Row) (*domain.ManagerMemberRelation, error) {
	rel, err := platform.Decode[domain.ManagerMemberRelation](row)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}
