// Package service provides the server's business rules for authentication,
// team membership and feedback, delegating persistence to repository
// interfaces.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/FeedbackTracker/internal/models"
	"github.com/atinyakov/FeedbackTracker/internal/repository"
)

// ErrInvalidCredentials is returned for an unknown username or a wrong
// password. The two cases are not distinguished.
var ErrInvalidCredentials = errors.New("invalid credentials")

// authCacheTTL bounds how long a verified username/password pair skips bcrypt.
const authCacheTTL = time.Minute

// UserRepository defines the persistence operations on users.
type UserRepository interface {
	// GetByUsername returns repository.ErrNotFound for an unknown user.
	GetByUsername(ctx context.Context, username string) (repository.Credentials, error)
	// Team returns the direct reports of managerID.
	Team(ctx context.Context, managerID int64) ([]models.User, error)
	// IsTeamMember reports whether employeeID reports to managerID.
	IsTeamMember(ctx context.Context, managerID, employeeID int64) (bool, error)
}

// AuthService verifies Basic credentials against stored bcrypt hashes.
type AuthService struct {
	repo UserRepository
	// verified maps username and password digest to a recently matched user.
	verified *cache.Cache
}

// NewAuthService constructs an AuthService using the provided repository.
func NewAuthService(repo UserRepository) *AuthService {
	return &AuthService{
		repo:     repo,
		verified: cache.New(authCacheTTL, 2*authCacheTTL),
	}
}

func authKey(username, password string) string {
	sum := sha256.Sum256([]byte(password))
	return username + ":" + hex.EncodeToString(sum[:])
}

// Authenticate returns the user identified by username and password.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	key := authKey(username, password)
	if v, ok := s.verified.Get(key); ok {
		return v.(models.User), nil
	}

	c, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, fmt.Errorf("Authenticate: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}

	s.verified.SetDefault(key, c.User)
	return c.User, nil
}
