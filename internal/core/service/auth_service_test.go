package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

type stubCredentialRepo struct {
	users map[string]*domain.Credential
}

func newStubCredentialRepo(users ...*domain.Credential) *stubCredentialRepo {
	r := &stubCredentialRepo{users: make(map[string]*domain.Credential)}
	for _, u := range users {
		r.users[u.Username] = u
	}
	return r
}

func cloneCredential(c *domain.Credential) *domain.Credential {
	clone := *c
	return &clone
}

func (r *stubCredentialRepo) FindByUsername(_ context.Context, username string) (*domain.Credential, error) {
	u, ok := r.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneCredential(u), nil
}

func (r *stubCredentialRepo) List(_ context.Context) ([]*domain.Credential, error) {
	out := make([]*domain.Credential, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneCredential(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *stubCredentialRepo) Save(_ context.Context, c *domain.Credential) (bool, error) {
	_, exists := r.users[c.Username]
	r.users[c.Username] = cloneCredential(c)
	return !exists, nil
}

func (r *stubCredentialRepo) Delete(_ context.Context, username string) error {
	if _, ok := r.users[username]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, username)
	return nil
}

const rootUser = "root@example.com"

func newTestAuthService(repo *stubCredentialRepo) *AuthService {
	return NewAuthService(repo, AuthOptions{Superadmins: []string{"ROOT@example.com "}}, discardLogger)
}

func seededRepo() *stubCredentialRepo {
	return newStubCredentialRepo(
		&domain.Credential{Username: "worker@example.com", Role: domain.RoleWorker, Password: "w-pass", Client: "acme"},
		&domain.Credential{Username: "admin@example.com", Role: domain.RoleAdmin, Password: "a-pass"},
		&domain.Credential{Username: rootUser, Role: domain.RoleSuperadmin, Password: "r-pass"},
		&domain.Credential{Username: "rogue@example.com", Role: domain.RoleSuperadmin, Password: "x-pass"},
	)
}

func rootPrincipal() domain.Principal {
	return domain.Principal{Username: rootUser, Role: domain.RoleSuperadmin}
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

func TestAuthService_Validate_Success(t *testing.T) {
	svc := newTestAuthService(seededRepo())

	res, err := svc.Validate(context.Background(), "  Worker@Example.com ", "mecanico", "w-pass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Role != domain.RoleWorker || res.Client != "acme" || res.Username != "worker@example.com" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Token != "" {
		t.Fatal("no token expected without a JWT secret")
	}
}

func TestAuthService_Validate_WrongPassword(t *testing.T) {
	svc := newTestAuthService(seededRepo())

	if _, err := svc.Validate(context.Background(), "worker@example.com", "worker", "nope"); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestAuthService_Validate_UnknownUser(t *testing.T) {
	svc := newTestAuthService(seededRepo())

	if _, err := svc.Validate(context.Background(), "ghost@example.com", "worker", "x"); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestAuthService_Validate_TypeMismatch(t *testing.T) {
	svc := newTestAuthService(seededRepo())

	if _, err := svc.Validate(context.Background(), "worker@example.com", "admin", "w-pass"); !errors.Is(err, domain.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestAuthService_Validate_SuperadminThroughAdminPath(t *testing.T) {
	svc := newTestAuthService(seededRepo())

	res, err := svc.Validate(context.Background(), rootUser, "admin", "r-pass")
	if err != nil {
		t.Fatalf("superadmin must log in through the admin path: %v", err)
	}
	if res.Role != domain.RoleSuperadmin {
		t.Fatalf("expected superadmin role, got %s", res.Role)
	}
}

func TestAuthService_Validate_SuperadminRejectedOnWorkerPath(t *testing.T) {
	svc := newTestAuthService(seededRepo())

	if _, err := svc.Validate(context.Background(), rootUser, "worker", "r-pass"); !errors.Is(err, domain.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestAuthService_Validate_SuperadminNotAllowListed(t *testing.T) {
	svc := newTestAuthService(seededRepo())

	if _, err := svc.Validate(context.Background(), "rogue@example.com", "superadmin", "x-pass"); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestAuthService_Validate_BcryptPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo := newStubCredentialRepo(&domain.Credential{Username: "carol", Role: domain.RoleAdmin, Password: string(hash)})
	svc := newTestAuthService(repo)

	if _, err := svc.Validate(context.Background(), "carol", "administrador", "s3cret"); err != nil {
		t.Fatalf("bcrypt password rejected: %v", err)
	}
	if _, err := svc.Validate(context.Background(), "carol", "administrador", string(hash)); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("presenting the hash itself must fail, got %v", err)
	}
}

func TestAuthService_Validate_IssuesToken(t *testing.T) {
	svc := NewAuthService(seededRepo(), AuthOptions{
		Superadmins: []string{rootUser},
		JWTSecret:   "secret",
		TokenTTL:    time.Hour,
	}, discardLogger)

	res, err := svc.Validate(context.Background(), "admin@example.com", "admin", "a-pass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Token == "" || res.ExpiresAt.IsZero() {
		t.Fatal("expected token and expiry")
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(res.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	if claims["role"] != string(domain.RoleAdmin) || claims["username"] != "admin@example.com" {
		t.Fatalf("unexpected claims: %v", claims)
	}
}

// ---------------------------------------------------------------------------
// User management
// ---------------------------------------------------------------------------

func TestAuthService_ListUsers_RequiresSuperadmin(t *testing.T) {
	svc := newTestAuthService(seededRepo())

	if _, err := svc.ListUsers(context.Background(), domain.Principal{Username: "admin@example.com", Role: domain.RoleAdmin}); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for admin, got %v", err)
	}
	if _, err := svc.ListUsers(context.Background(), domain.Principal{Username: "rogue@example.com", Role: domain.RoleSuperadmin}); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for non allow-listed superadmin, got %v", err)
	}

	users, err := svc.ListUsers(context.Background(), rootPrincipal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 4 {
		t.Fatalf("expected 4 users, got %d", len(users))
	}
}

func TestAuthService_SaveUser_CreateThenUpdate(t *testing.T) {
	repo := seededRepo()
	svc := NewAuthService(repo, AuthOptions{Superadmins: []string{rootUser}, HashPasswords: true}, discardLogger)

	created, err := svc.SaveUser(context.Background(), rootPrincipal(), ports.SaveUserInput{
		Username: " New@Example.com", Type: "mecanico", Password: "pw1", Client: "acme",
	})
	if err != nil || !created {
		t.Fatalf("expected creation, got created=%v err=%v", created, err)
	}

	stored := repo.users["new@example.com"]
	if stored == nil || stored.Role != domain.RoleWorker || stored.Client != "acme" {
		t.Fatalf("unexpected stored user: %+v", stored)
	}
	if stored.Password == "pw1" {
		t.Fatal("password must be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("pw1")); err != nil {
		t.Fatalf("stored hash does not match: %v", err)
	}

	created, err = svc.SaveUser(context.Background(), rootPrincipal(), ports.SaveUserInput{
		Username: "new@example.com", Type: "admin", Password: "pw2",
	})
	if err != nil || created {
		t.Fatalf("expected update, got created=%v err=%v", created, err)
	}
	if repo.users["new@example.com"].Role != domain.RoleAdmin {
		t.Fatal("role not updated")
	}
	if _, err := svc.Validate(context.Background(), "new@example.com", "admin", "pw2"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestAuthService_SaveUser_Validation(t *testing.T) {
	svc := newTestAuthService(seededRepo())
	ctx := context.Background()

	if _, err := svc.SaveUser(ctx, rootPrincipal(), ports.SaveUserInput{Username: "x", Type: "guest", Password: "p"}); !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := svc.SaveUser(ctx, rootPrincipal(), ports.SaveUserInput{Username: "x", Type: "super", Password: "p"}); !errors.Is(err, domain.ErrSuperadminNotAllowed) {
		t.Fatalf("expected ErrSuperadminNotAllowed, got %v", err)
	}
	var ve *domain.ValidationError
	if _, err := svc.SaveUser(ctx, rootPrincipal(), ports.SaveUserInput{Username: "x", Type: "worker"}); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for missing password, got %v", err)
	}
}

func TestAuthService_UpdateUser_KeepsPasswordWhenEmpty(t *testing.T) {
	repo := seededRepo()
	svc := newTestAuthService(repo)

	err := svc.UpdateUser(context.Background(), rootPrincipal(), ports.SaveUserInput{
		Username: "worker@example.com", Type: "worker", Client: "globex",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u := repo.users["worker@example.com"]
	if u.Password != "w-pass" || u.Client != "globex" {
		t.Fatalf("unexpected user after update: %+v", u)
	}
}

func TestAuthService_UpdateUser_NotFound(t *testing.T) {
	svc := newTestAuthService(seededRepo())

	err := svc.UpdateUser(context.Background(), rootPrincipal(), ports.SaveUserInput{Username: "ghost", Type: "worker"})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_DeleteUser(t *testing.T) {
	repo := seededRepo()
	svc := newTestAuthService(repo)
	ctx := context.Background()

	if err := svc.DeleteUser(ctx, rootPrincipal(), "WORKER@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.users["worker@example.com"]; ok {
		t.Fatal("user not deleted")
	}
	if err := svc.DeleteUser(ctx, rootPrincipal(), "worker@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := svc.DeleteUser(ctx, rootPrincipal(), rootUser); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden on self delete, got %v", err)
	}
}

func TestAuthService_EnsureSuperadmins(t *testing.T) {
	repo := newStubCredentialRepo()
	svc := newTestAuthService(repo)

	if err := svc.EnsureSuperadmins(context.Background(), ""); err != nil || len(repo.users) != 0 {
		t.Fatalf("empty password must be a no-op, err=%v users=%d", err, len(repo.users))
	}
	if err := svc.EnsureSuperadmins(context.Background(), "boot"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u := repo.users[rootUser]
	if u == nil || u.Role != domain.RoleSuperadmin {
		t.Fatalf("superadmin not bootstrapped: %+v", u)
	}
	if _, err := svc.Validate(context.Background(), rootUser, "admin", "boot"); err != nil {
		t.Fatalf("bootstrapped superadmin cannot log in: %v", err)
	}
}
