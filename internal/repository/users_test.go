package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func setupUserMock(t *testing.T) (*PostgresUserRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresUserRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

var userColumns = []string{"id", "username", "full_name", "role", "manager_id"}

func TestGetByUsername_Employee(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username = $1`)).
		WithArgs("employee1").
		WillReturnRows(sqlmock.NewRows(append(userColumns, "password_hash")).
			AddRow(3, "employee1", "Charlie Brown", "employee", 1, "$2a$hash"))

	c, err := repo.GetByUsername(context.Background(), "employee1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.User.ID != 3 || c.User.FullName != "Charlie Brown" || !c.User.IsEmployee() {
		t.Errorf("unexpected user: %+v", c.User)
	}
	if c.User.ManagerID == nil || *c.User.ManagerID != 1 {
		t.Errorf("ManagerID = %v; want 1", c.User.ManagerID)
	}
	if c.PasswordHash != "$2a$hash" {
		t.Errorf("PasswordHash = %q", c.PasswordHash)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetByUsername_ManagerHasNoManager(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username = $1`)).
		WithArgs("manager1").
		WillReturnRows(sqlmock.NewRows(append(userColumns, "password_hash")).
			AddRow(1, "manager1", "Alice Johnson", "manager", nil, "h"))

	c, err := repo.GetByUsername(context.Background(), "manager1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.User.ManagerID != nil {
		t.Errorf("ManagerID = %v; want nil", *c.User.ManagerID)
	}
	if err := c.User.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestGetByUsername_NotFound(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username = $1`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(append(userColumns, "password_hash")))

	_, err := repo.GetByUsername(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}

func TestGetByUsername_Error(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username = $1`)).
		WillReturnError(errors.New("query failed"))

	_, err := repo.GetByUsername(context.Background(), "x")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want wrapped query error", err)
	}
}

func TestTeam(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE manager_id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(3, "employee1", "Charlie Brown", "employee", 1).
			AddRow(4, "employee2", "Diana Wilson", "employee", 1))

	team, err := repo.Team(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(team) != 2 || team[0].Username != "employee1" || team[1].Username != "employee2" {
		t.Errorf("unexpected team: %+v", team)
	}
	if *team[0].ManagerID != 1 || *team[1].ManagerID != 1 {
		t.Errorf("manager ids not scanned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTeam_EmptyIsNotNil(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE manager_id = $1`)).
		WillReturnRows(sqlmock.NewRows(userColumns))

	team, err := repo.Team(context.Background(), 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if team == nil || len(team) != 0 {
		t.Errorf("team = %#v; want empty non-nil slice", team)
	}
}

func TestTeam_ScanError(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE manager_id = $1`)).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow("bad", "u", "n", "employee", 1))

	if _, err := repo.Team(context.Background(), 1); err == nil {
		t.Error("expected scan error, got nil")
	}
}

func TestIsTeamMember(t *testing.T) {
	for _, want := range []bool{true, false} {
		repo, mock, cleanup := setupUserMock(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND manager_id = $2`)).
			WithArgs(int64(5), int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(want))

		got, err := repo.IsTeamMember(context.Background(), 2, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("IsTeamMember = %v; want %v", got, want)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		cleanup()
	}
}
