// Package users provides HTTP handlers and business logic for the user
// directory: user records and manager to member relationships.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/leavedesk/internal/domain"
	"github.com/bissquit/leavedesk/internal/pkg/ctxlog"
	"github.com/bissquit/leavedesk/internal/platform"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Service implements the user directory.
type Service struct {
	repo  Repository
	now   func() time.Time
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator overrides how relation ids are generated.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// NewService creates a new user directory service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUserInput holds data for creating a user. A nil Role means MEMBER.
type CreateUserInput struct {
	Email     string
	FirstName string
	LastName  string
	Role      *string
}

// UpdateUserInput holds the fields of an update. Nil fields stay unchanged.
type UpdateUserInput struct {
	FirstName *string
	LastName  *string
	Role      *string
}

// AssignManagerInput links a member to a manager.
type AssignManagerInput struct {
	ManagerID string
	MemberID  string
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// ListUsers returns every user.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	list, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.User{}
	}
	return list, nil
}

// GetUser returns the user with id.
func (s *Service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// CreateUser validates the role, rejects duplicate emails and stores the user
// with equal created_at and updated_at.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	role := domain.RoleMember
	if input.Role != nil {
		role = domain.Role(*input.Role)
	}
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	email := NormalizeEmail(input.Email)
	_, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrEmailExists
	case !errors.Is(err, ErrUserNotFound):
		return nil, fmt.Errorf("check email: %w", err)
	}

	now := s.timestamp()
	user, err := s.repo.CreateUser(ctx, &domain.User{
		Email:     email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		switch {
		case errors.Is(err, platform.ErrConflict):
			return nil, ErrEmailExists
		case errors.Is(err, ErrNoRow):
			return nil, ErrCreateFailed
		}
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("user created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// UpdateUser applies the supplied fields to an existing user and always
// refreshes updated_at.
func (s *Service) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	if _, err := s.repo.GetUserByID(ctx, id); err != nil {
		return nil, err
	}

	patch := UserPatch{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		UpdatedAt: s.timestamp(),
	}
	if input.Role != nil {
		role := domain.Role(*input.Role)
		if !role.IsValid() {
			return nil, ErrInvalidRole
		}
		patch.Role = &role
	}

	user, err := s.repo.UpdateUser(ctx, id, patch)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return nil, ErrUpdateFailed
		}
		return nil, err
	}
	return user, nil
}

// GetTeam returns the members managed by managerID. The user must exist and
// hold the MANAGER role.
func (s *Service) GetTeam(ctx context.Context, managerID string) ([]domain.User, error) {
	manager, err := s.repo.GetUserByID(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if manager.Role != domain.RoleManager {
		return nil, ErrNotManager
	}

	team, err := s.repo.ListTeam(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		team = []domain.User{}
	}
	return team, nil
}

// AssignManager records that input.MemberID reports to input.ManagerID.
// Both users are looked up before either lookup failure is reported.
func (s *Service) AssignManager(ctx context.Context, input AssignManagerInput) (*domain.ManagerMemberRelation, error) {
	manager, managerErr := s.repo.GetUserByID(ctx, input.ManagerID)
	_, memberErr := s.repo.GetUserByID(ctx, input.MemberID)
	for _, err := range []error{managerErr, memberErr} {
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
	}
	if managerErr != nil || memberErr != nil {
		return nil, ErrManagerOrMemberNotFound
	}

	if manager.Role != domain.RoleManager {
		return nil, ErrManagerRoleRequired
	}

	_, err := s.repo.GetRelation(ctx, input.ManagerID, input.MemberID)
	switch {
	case err == nil:
		return nil, ErrRelationExists
	case !errors.Is(err, ErrRelationNotFound):
		return nil, fmt.Errorf("check relation: %w", err)
	}

	rel, err := s.repo.CreateRelation(ctx, &domain.ManagerMemberRelation{
		ID:        s.newID(),
		ManagerID: input.ManagerID,
		MemberID:  input.MemberID,
		CreatedAt: s.timestamp(),
	})
	if err != nil {
		switch {
		case errors.Is(err, platform.ErrConflict):
			return nil, ErrRelationExists
		case errors.Is(err, ErrNoRow):
			return nil, ErrRelationFailed
		}
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("manager assigned",
		"relation_id", rel.ID,
		"manager_id", rel.ManagerID,
		"member_id", rel.MemberID,
	)
	return rel, nil
}

// timestamp returns the current UTC time at the storage precision of
// PostgreSQL timestamptz.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
