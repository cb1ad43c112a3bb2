package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fortuna/pickvs/internal/auth"
	"github.com/fortuna/pickvs/internal/store"
	"github.com/fortuna/pickvs/internal/store/repository"
)

// UserStore persists users
type UserStore interface {
	Create(ctx context.Context, user *store.User) error
	GetByUsername(ctx context.Context, username string) (*store.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*store.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// TokenIssuer signs access tokens
type TokenIssuer interface {
	Issue(userID uuid.UUID) (string, error)
}

// UserService handles registration, login and profiles
type UserService struct {
	users  UserStore
	tokens TokenIssuer
}

// NewUserService creates a new user service
func NewUserService(users UserStore, tokens TokenIssuer) *UserService {
	return &UserService{users: users, tokens: tokens}
}

// Register creates a user with a hashed password
func (s *UserService) Register(ctx context.Context, username, email, password string) (*store.User, error) {
	taken, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	taken, err = s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		// lost a race with a concurrent registration
		var dup *repository.ErrDuplicate
		if errors.As(err, &dup) {
			if dup.Constraint == repository.ConstraintEmail {
				return nil, ErrEmailTaken
			}
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	return user, nil
}

// Login verifies credentials and returns an access token
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return "", fmt.Errorf("checking password: %w", err)
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	return s.tokens.Issue(user.UserID)
}

// Profile returns the stored user
func (s *UserService) Profile(ctx context.Context, userID uuid.UUID) (*store.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}
