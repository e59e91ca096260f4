package db

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/FeedbackTracker/internal/models"
)

// SeedPassword is the password of every demo account.
const SeedPassword = "password123"

// SeedUser is a demo account. Manager names the manager's username for
// employees.
type SeedUser struct {
	Username string
	FullName string
	Role     models.Role
	Manager  string
}

// DemoUsers are the accounts created on an empty database. Managers come
// first so employees can reference them.
var DemoUsers = []SeedUser{
	{Username: "manager1", FullName: "Alice Johnson", Role: models.RoleManager},
	{Username: "manager2", FullName: "Bob Smith", Role: models.RoleManager},
	{Username: "employee1", FullName: "Charlie Brown", Role: models.RoleEmployee, Manager: "manager1"},
	{Username: "employee2", FullName: "Diana Wilson", Role: models.RoleEmployee, Manager: "manager1"},
	{Username: "employee3", FullName: "Eve Davis", Role: models.RoleEmployee, Manager: "manager2"},
	{Username: "employee4", FullName: "Frank Miller", Role: models.RoleEmployee, Manager: "manager2"},
}

const seedUserQuery = `
	INSERT INTO users (username, password_hash, full_name, role, manager_id)
	VALUES ($1, $2, $3, $4, (SELECT id FROM users WHERE username = NULLIF($5, '')))
	ON CONFLICT (username) DO NOTHING`

// SeedUsers inserts users that do not exist yet, all with the same password,
// in a single transaction.
func SeedUsers(ctx context.Context, db *sql.DB, users []SeedUser, password string, log *zap.Logger) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var created int64
	for _, u := range users {
		res, err := tx.ExecContext(ctx, seedUserQuery, u.Username, string(hash), u.FullName, string(u.Role), u.Manager)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			created += n
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if created > 0 {
		log.Info("seeded demo users", zap.Int64("created", created))
	}
	return nil
}
