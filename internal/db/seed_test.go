package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// bcryptOf matches a bcrypt hash of password.
type bcryptOf string

func (b bcryptOf) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && bcrypt.CompareHashAndPassword([]byte(s), []byte(b)) == nil
}

func TestSeedUsers(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer dbMock.Close()

	mock.ExpectBegin()
	for _, u := range DemoUsers {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs(u.Username, bcryptOf(SeedPassword), u.FullName, string(u.Role), u.Manager).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, SeedUsers(context.Background(), dbMock, DemoUsers, SeedPassword, zap.NewNop()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedUsers_RollsBackOnError(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer dbMock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	err = SeedUsers(context.Background(), dbMock, DemoUsers[:2], SeedPassword, zap.NewNop())
	assert.ErrorContains(t, err, "seed user manager1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDemoUsers_ManagersFirst(t *testing.T) {
	seen := map[string]bool{}
	for _, u := range DemoUsers {
		if u.Manager != "" {
			assert.True(t, seen[u.Manager], "%s references %s before it exists", u.Username, u.Manager)
		}
		seen[u.Username] = true
	}
}
