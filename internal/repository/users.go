// Package repository provides PostgreSQL persistence for users and feedback.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/FeedbackTracker/internal/models"
)

// ErrNotFound is returned when a row does not exist or is not visible to
// the caller.
var ErrNotFound = errors.New("not found")

// PostgresUserRepository reads users and team membership.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a PostgresUserRepository over db.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// Credentials is a user together with their stored password hash.
type Credentials struct {
	User         models.User
	PasswordHash string
}

// GetByUsername returns the user and password hash for username.
func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (Credentials, error) {
	var (
		c         Credentials
		managerID sql.NullInt64
		role      string
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, username, full_name, role, manager_id, password_hash
		  FROM users WHERE username = $1
	`, username).Scan(&c.User.ID, &c.User.Username, &c.User.FullName, &role, &managerID, &c.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, ErrNotFound
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("GetByUsername: %w", err)
	}
	c.User.Role = models.Role(role)
	if managerID.Valid {
		c.User.ManagerID = &managerID.Int64
	}
	return c, nil
}

// Team returns the direct reports of managerID ordered by name.
func (r *PostgresUserRepository) Team(ctx context.Context, managerID int64) ([]models.User, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, username, full_name, role, manager_id
		  FROM users WHERE manager_id = $1
		 ORDER BY full_name, id
	`, managerID)
	if err != nil {
		return nil, fmt.Errorf("Team: %w", err)
	}
	defer rows.Close()

	team := []models.User{}
	for rows.Next() {
		var (
			u    models.User
			mid  sql.NullInt64
			role string
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &role, &mid); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		u.Role = models.Role(role)
		if mid.Valid {
			u.ManagerID = &mid.Int64
		}
		team = append(team, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Team: %w", err)
	}
	return team, nil
}

// IsTeamMember reports whether employeeID reports to managerID.
func (r *PostgresUserRepository) IsTeamMember(ctx context.Context, managerID, employeeID int64) (bool, error) {
	var ok bool
	err := r.DB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND manager_id = $2 AND role = 'employee')
	`, employeeID, managerID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("IsTeamMember: %w", err)
	}
	return ok, nil
}
