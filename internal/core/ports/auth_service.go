package ports

import (
	"context"
	"time"

	"github.com/qrstock/inventory-api/internal/core/domain"
)

// LoginResult is returned by a successful credential validation.
type LoginResult struct {
	Username string
	Role     domain.Role
	Client   string
	// Token and ExpiresAt are empty when token issuance is disabled.
	Token     string
	ExpiresAt time.Time
}

// SaveUserInput carries the fields of a user create/update.
type SaveUserInput struct {
	Username string
	Type     string
	Password string // may be empty on update to keep the current password
	Client   string
}

// AuthService validates credentials and manages user accounts.
type AuthService interface {
	Validate(ctx context.Context, username, loginType, password string) (*LoginResult, error)
	Authenticate(ctx context.Context, username, password string) (*domain.Principal, error)

	ListUsers(ctx context.Context, caller domain.Principal) ([]*domain.Credential, error)
	// SaveUser creates the user or updates it when it already exists.
	SaveUser(ctx context.Context, caller domain.Principal, input SaveUserInput) (created bool, err error)
	// UpdateUser fails with domain.ErrUserNotFound when the user does not exist.
	UpdateUser(ctx context.Context, caller domain.Principal, input SaveUserInput) error
	DeleteUser(ctx context.Context, caller domain.Principal, username string) error
}
