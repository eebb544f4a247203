package users

import (
	"context"
	"time"

	"github.com/bissquit/leavedesk/internal/domain"
)

// Repository defines the data operations of the user directory.
type Repository interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	UpdateUser(ctx context.Context, id string, patch UserPatch) (*domain.User, error)

	GetRelation(ctx context.Context, managerID, memberID string) (*domain.ManagerMemberRelation, error)
	CreateRelation(ctx context.Context, rel *domain.ManagerMemberRelation) (*domain.ManagerMemberRelation, error)
	ListTeam(ctx context.Context, managerID string) ([]domain.User, error)
}

// UserPatch lists the columns an update touches. Nil fields stay unchanged.
type UserPatch struct {
	FirstName *string
	LastName  *string
	Role      *domain.Role
	UpdatedAt time.Time
}
