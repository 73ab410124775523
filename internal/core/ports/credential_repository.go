package ports

import (
	"context"

	"github.com/qrstock/inventory-api/internal/core/domain"
)

// CredentialRepository defines persistence operations for user accounts.
// Usernames passed in are already normalized.
type CredentialRepository interface {
	// FindByUsername returns domain.ErrUserNotFound when the user does not exist.
	FindByUsername(ctx context.Context, username string) (*domain.Credential, error)
	List(ctx context.Context) ([]*domain.Credential, error)
	// Save creates the user or replaces an existing one with the same username.
	// created reports which of the two happened.
	Save(ctx context.Context, c *domain.Credential) (created bool, err error)
	// Delete returns domain.ErrUserNotFound when the user does not exist.
	Delete(ctx context.Context, username string) error
}
