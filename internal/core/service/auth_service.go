package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

// AuthOptions configures an AuthService.
type AuthOptions struct {
	// Superadmins is the deployment allow-list of usernames that may hold the
	// superadmin role.
	Superadmins []string
	// HashPasswords stores passwords written through the service as bcrypt hashes.
	HashPasswords bool
	// JWTSecret enables token issuance on successful validation when non-empty.
	JWTSecret string
	TokenTTL  time.Duration
}

// AuthService implements credential validation and user management.
type AuthService struct {
	repo          ports.CredentialRepository
	superadmins   map[string]struct{}
	hashPasswords bool
	jwtSecret     string
	tokenTTL      time.Duration
	logger        zerolog.Logger
}

func NewAuthService(repo ports.CredentialRepository, opts AuthOptions, logger zerolog.Logger) *AuthService {
	allow := make(map[string]struct{}, len(opts.Superadmins))
	for _, u := range opts.Superadmins {
		if n := domain.NormalizeUsername(u); n != "" {
			allow[n] = struct{}{}
		}
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{
		repo:          repo,
		superadmins:   allow,
		hashPasswords: opts.HashPasswords,
		jwtSecret:     opts.JWTSecret,
		tokenTTL:      ttl,
		logger:        logger,
	}
}

// IsSuperadmin reports whether username is on the allow-list.
func (s *AuthService) IsSuperadmin(username string) bool {
	_, ok := s.superadmins[domain.NormalizeUsername(username)]
	return ok
}

// Validate checks a login attempt made through the loginType path.
func (s *AuthService) Validate(ctx context.Context, username, loginType, password string) (*ports.LoginResult, error) {
	cred, err := s.verify(ctx, username, password)
	if err != nil {
		return nil, err
	}

	declared, err := domain.ParseRole(loginType)
	if err != nil || !cred.Role.AcceptsLogin(declared) {
		return nil, domain.ErrTypeMismatch
	}
	if cred.Role == domain.RoleSuperadmin && !s.IsSuperadmin(cred.Username) {
		return nil, domain.ErrNotAllowListed
	}

	result := &ports.LoginResult{
		Username: cred.Username,
		Role:     cred.Role,
		Client:   cred.Client,
	}
	if s.jwtSecret != "" {
		token, exp, err := s.generateToken(cred)
		if err != nil {
			return nil, err
		}
		result.Token = token
		result.ExpiresAt = exp
	}
	return result, nil
}

// Authenticate checks re-presented credentials and returns the caller.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.Principal, error) {
	cred, err := s.verify(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return &domain.Principal{Username: cred.Username, Role: cred.Role, Client: cred.Client}, nil
}

// verify looks the user up and compares the password. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *AuthService) verify(ctx context.Context, username, password string) (*domain.Credential, error) {
	name := domain.NormalizeUsername(username)
	if name == "" || password == "" {
		return nil, domain.ErrNotAuthorized
	}

	cred, err := s.repo.FindByUsername(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrNotAuthorized
		}
		return nil, err
	}
	if !passwordMatches(cred.Password, password) {
		return nil, domain.ErrNotAuthorized
	}
	return cred, nil
}

// passwordMatches accepts bcrypt hashes and legacy plaintext rows.
func passwordMatches(stored, given string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

func (s *AuthService) generateToken(cred *domain.Credential) (string, time.Time, error) {
	exp := time.Now().Add(s.tokenTTL)
	claims := jwt.MapClaims{
		"username":  cred.Username,
		"role":      string(cred.Role),
		"client_id": cred.Client,
		"exp":       exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// requireSuperadmin gates user management: the caller must hold the
// superadmin role and be on the allow-list.
func (s *AuthService) requireSuperadmin(caller domain.Principal) error {
	if caller.Role != domain.RoleSuperadmin || !s.IsSuperadmin(caller.Username) {
		return domain.ErrNotAuthorized
	}
	return nil
}

func (s *AuthService) ListUsers(ctx context.Context, caller domain.Principal) ([]*domain.Credential, error) {
	if err := s.requireSuperadmin(caller); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *AuthService) SaveUser(ctx context.Context, caller domain.Principal, in ports.SaveUserInput) (bool, error) {
	if err := s.requireSuperadmin(caller); err != nil {
		return false, err
	}
	if strings.TrimSpace(in.Password) == "" {
		return false, &domain.ValidationError{Field: "password", Reason: "is required"}
	}

	cred, err := s.buildCredential(in)
	if err != nil {
		return false, err
	}
	if err := s.setPassword(cred, in.Password); err != nil {
		return false, err
	}

	created, err := s.repo.Save(ctx, cred)
	if err != nil {
		return false, err
	}

	s.logger.Info().
		Str("username", cred.Username).
		Str("role", string(cred.Role)).
		Bool("created", created).
		Str("by", caller.Username).
		Msg("user saved")
	return created, nil
}

func (s *AuthService) UpdateUser(ctx context.Context, caller domain.Principal, in ports.SaveUserInput) error {
	if err := s.requireSuperadmin(caller); err != nil {
		return err
	}

	cred, err := s.buildCredential(in)
	if err != nil {
		return err
	}

	current, err := s.repo.FindByUsername(ctx, cred.Username)
	if err != nil {
		return err
	}
	if in.Password == "" {
		cred.Password = current.Password
	} else if err := s.setPassword(cred, in.Password); err != nil {
		return err
	}

	if _, err := s.repo.Save(ctx, cred); err != nil {
		return err
	}
	s.logger.Info().Str("username", cred.Username).Str("by", caller.Username).Msg("user updated")
	return nil
}

func (s *AuthService) DeleteUser(ctx context.Context, caller domain.Principal, username string) error {
	if err := s.requireSuperadmin(caller); err != nil {
		return err
	}

	name := domain.NormalizeUsername(username)
	if name == "" {
		return &domain.ValidationError{Field: "usuario", Reason: "is required"}
	}
	if name == domain.NormalizeUsername(caller.Username) {
		return fmt.Errorf("%w: cannot delete your own account", domain.ErrForbidden)
	}

	if err := s.repo.Delete(ctx, name); err != nil {
		return err
	}
	s.logger.Info().Str("username", name).Str("by", caller.Username).Msg("user deleted")
	return nil
}

// EnsureSuperadmins creates every allow-listed superadmin missing from the
// store with the given password. It is a no-op when password is empty.
func (s *AuthService) EnsureSuperadmins(ctx context.Context, password string) error {
	if password == "" {
		return nil
	}
	for name := range s.superadmins {
		_, err := s.repo.FindByUsername(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return err
		}

		cred := &domain.Credential{Username: name, Role: domain.RoleSuperadmin}
		if err := s.setPassword(cred, password); err != nil {
			return err
		}
		if _, err := s.repo.Save(ctx, cred); err != nil {
			return err
		}
		s.logger.Info().Str("username", name).Msg("bootstrapped superadmin")
	}
	return nil
}

func (s *AuthService) buildCredential(in ports.SaveUserInput) (*domain.Credential, error) {
	name := domain.NormalizeUsername(in.Username)
	if name == "" {
		return nil, &domain.ValidationError{Field: "usuario", Reason: "is required"}
	}
	role, err := domain.ParseRole(in.Type)
	if err != nil {
		return nil, err
	}
	if role == domain.RoleSuperadmin && !s.IsSuperadmin(name) {
		return nil, domain.ErrSuperadminNotAllowed
	}
	return &domain.Credential{
		Username: name,
		Role:     role,
		Client:   strings.TrimSpace(in.Client),
	}, nil
}

func (s *AuthService) setPassword(cred *domain.Credential, password string) error {
	if !s.hashPasswords {
		cred.Password = password
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	cred.Password = string(hash)
	return nil
}
