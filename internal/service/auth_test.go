package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/FeedbackTracker/internal/models"
	"github.com/atinyakov/FeedbackTracker/internal/repository"
)

type mockUserRepo struct {
	GetByUsernameFunc func(ctx context.Context, username string) (repository.Credentials, error)
	TeamFunc          func(ctx context.Context, managerID int64) ([]models.User, error)
	IsTeamMemberFunc  func(ctx context.Context, managerID, employeeID int64) (bool, error)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (repository.Credentials, error) {
	return m.GetByUsernameFunc(ctx, username)
}
func (m *mockUserRepo) Team(ctx context.Context, managerID int64) ([]models.User, error) {
	return m.TeamFunc(ctx, managerID)
}
func (m *mockUserRepo) IsTeamMember(ctx context.Context, managerID, employeeID int64) (bool, error) {
	return m.IsTeamMemberFunc(ctx, managerID, employeeID)
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func TestAuthenticate_Success(t *testing.T) {
	alice := models.User{ID: 1, Username: "manager1", FullName: "Alice Johnson", Role: models.RoleManager}
	hash := hashOf(t, "password123")
	repo := &mockUserRepo{
		GetByUsernameFunc: func(ctx context.Context, username string) (repository.Credentials, error) {
			if username != "manager1" {
				t.Errorf("GetByUsername received %q; want %q", username, "manager1")
			}
			return repository.Credentials{User: alice, PasswordHash: hash}, nil
		},
	}
	svc := NewAuthService(repo)

	got, err := svc.Authenticate(context.Background(), "manager1", "password123")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if got != alice {
		t.Errorf("Authenticate = %+v; want %+v", got, alice)
	}
}

func TestAuthenticate_CachesVerifiedPair(t *testing.T) {
	calls := 0
	hash := hashOf(t, "pw")
	repo := &mockUserRepo{
		GetByUsernameFunc: func(ctx context.Context, username string) (repository.Credentials, error) {
			calls++
			return repository.Credentials{User: models.User{ID: 3, Username: username}, PasswordHash: hash}, nil
		},
	}
	svc := NewAuthService(repo)

	for i := 0; i < 3; i++ {
		if _, err := svc.Authenticate(context.Background(), "employee1", "pw"); err != nil {
			t.Fatalf("Authenticate returned error: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("repository called %d times; want 1", calls)
	}

	if _, err := svc.Authenticate(context.Background(), "employee1", "other"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password after cache hit: err = %v; want ErrInvalidCredentials", err)
	}
}

func TestAuthenticate_InvalidCredentials(t *testing.T) {
	hash := hashOf(t, "right")
	cases := []struct {
		name     string
		username string
		password string
	}{
		{"unknown user", "ghost", "right"},
		{"wrong password", "manager1", "wrong"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockUserRepo{
				GetByUsernameFunc: func(ctx context.Context, username string) (repository.Credentials, error) {
					if username == "ghost" {
						return repository.Credentials{}, repository.ErrNotFound
					}
					return repository.Credentials{User: models.User{ID: 1}, PasswordHash: hash}, nil
				},
			}
			_, err := NewAuthService(repo).Authenticate(context.Background(), tc.username, tc.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("err = %v; want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestAuthenticate_RepositoryError(t *testing.T) {
	wantErr := errors.New("db down")
	repo := &mockUserRepo{
		GetByUsernameFunc: func(ctx context.Context, username string) (repository.Credentials, error) {
			return repository.Credentials{}, wantErr
		},
	}
	_, err := NewAuthService(repo).Authenticate(context.Background(), "manager1", "pw")
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v; want %v", err, wantErr)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("storage failure must not look like bad credentials")
	}
}
