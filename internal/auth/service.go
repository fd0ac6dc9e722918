package auth

import (
	"context"
	"errors"
	"time"

	"github.com/spothq/spothub/internal/domain/user"
	"github.com/spothq/spothub/internal/security"
)

// Returned for both unknown username and wrong password so the login
// endpoint cannot be used to enumerate accounts.
var ErrInvalidCredentials = errors.New("invalid credentials")

type CredentialStore interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
	Create(ctx context.Context, username, email, passwordHash, role string) (user.User, error)
}

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshJTI       string
	RefreshExpiresAt time.Time
}

// Service owns registration and login. Uniqueness is ultimately enforced
// by the store's constraints; this layer only hashes, defaults the role
// and issues tokens.
type Service struct {
	users CredentialStore
	jwt   *Manager
}

func NewService(users CredentialStore, jwt *Manager) *Service {
	return &Service{users: users, jwt: jwt}
}

func (s *Service) Register(ctx context.Context, username, email, password, role string) (user.User, TokenPair, error) {
	if role == "" {
		role = user.RoleUser
	}

	hash, err := security.HashPassword(password)

	if err != nil {
		return user.User{}, TokenPair{}, err
	}

	u, err := s.users.Create(ctx, username, email, hash, role)

	if err != nil {
		return user.User{}, TokenPair{}, err
	}

	pair, err := s.IssuePair(u)

	if err != nil {
		return user.User{}, TokenPair{}, err
	}

	return u, pair, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (user.User, TokenPair, error) {
	u, err := s.users.GetByUsername(ctx, username)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, TokenPair{}, ErrInvalidCredentials
		}

		return user.User{}, TokenPair{}, err
	}

	err = security.CheckPassword(u.PasswordHash, password)

	if err != nil {
		return user.User{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.IssuePair(u)

	if err != nil {
		return user.User{}, TokenPair{}, err
	}

	return u, pair, nil
}

func (s *Service) IssuePair(u user.User) (TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(u.Username, u.Role)

	if err != nil {
		return TokenPair{}, err
	}

	raw, jti, expiresAt, err := s.jwt.GenerateRefreshToken(u.Username, u.Role)

	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     raw,
		RefreshJTI:       jti,
		RefreshExpiresAt: expiresAt,
	}, nil
}
