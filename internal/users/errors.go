package users

import "errors"

// Directory errors.
var (
	ErrUserNotFound            = errors.New("user not found")
	ErrInvalidRole             = errors.New("invalid role")
	ErrEmailExists             = errors.New("email already registered")
	ErrNotManager              = errors.New("user is not a manager")
	ErrManagerOrMemberNotFound = errors.New("manager or member not found")
	ErrManagerRoleRequired     = errors.New("user does not have manager role")
	ErrRelationExists          = errors.New("relationship already exists")
	ErrRelationNotFound        = errors.New("relationship not found")
	ErrCreateFailed            = errors.New("failed to create user")
	ErrUpdateFailed            = errors.New("failed to update user")
	ErrRelationFailed          = errors.New("failed to create relationship")

	// ErrNoRow is returned by a Repository when a write came back without a row.
	ErrNoRow = errors.New("platform returned no row")
)
