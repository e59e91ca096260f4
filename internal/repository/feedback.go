package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atinyakov/FeedbackTracker/internal/models"
)

// pgForeignKeyViolation is the SQLSTATE of a foreign key violation.
const pgForeignKeyViolation = "23503"

const feedbackColumns = `
	f.id, f.manager_id, f.employee_id, u.full_name, f.strengths, f.improvements,
	f.sentiment, f.acknowledged, f.created_at, f.updated_at`

// PostgresFeedbackRepository stores feedback records.
type PostgresFeedbackRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresFeedbackRepository creates a PostgresFeedbackRepository over db.
func NewPostgresFeedbackRepository(db *sql.DB) *PostgresFeedbackRepository {
	return &PostgresFeedbackRepository{DB: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFeedback(s scanner) (models.Feedback, error) {
	var (
		f                models.Feedback
		sentiment        string
		created, updated time.Time
	)
	if err := s.Scan(&f.ID, &f.ManagerID, &f.EmployeeID, &f.EmployeeName, &f.Strengths, &f.Improvements,
		&sentiment, &f.Acknowledged, &created, &updated); err != nil {
		return models.Feedback{}, err
	}
	f.Sentiment = models.Sentiment(sentiment)
	f.CreatedAt = models.NewTimestamp(created)
	f.UpdatedAt = models.NewTimestamp(updated)
	return f, nil
}

func (r *PostgresFeedbackRepository) list(ctx context.Context, op, where string, id int64) ([]models.Feedback, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+feedbackColumns+`
		  FROM feedback f JOIN users u ON u.id = f.employee_id
		 WHERE `+where+` = $1
		 ORDER BY f.created_at DESC, f.id DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	items := []models.Feedback{}
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

// ListByManager returns feedback authored by managerID, newest first.
func (r *PostgresFeedbackRepository) ListByManager(ctx context.Context, managerID int64) ([]models.Feedback, error) {
	return r.list(ctx, "ListByManager", "f.manager_id", managerID)
}

// ListByEmployee returns feedback addressed to employeeID, newest first.
func (r *PostgresFeedbackRepository) ListByEmployee(ctx context.Context, employeeID int64) ([]models.Feedback, error) {
	return r.list(ctx, "ListByEmployee", "f.employee_id", employeeID)
}

// GetByID returns one record.
func (r *PostgresFeedbackRepository) GetByID(ctx context.Context, id int64) (models.Feedback, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+feedbackColumns+`
		  FROM feedback f JOIN users u ON u.id = f.employee_id
		 WHERE f.id = $1
	`, id)
	f, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Feedback{}, ErrNotFound
	}
	if err != nil {
		return models.Feedback{}, fmt.Errorf("GetByID: %w", err)
	}
	return f, nil
}

// Create inserts a record authored by managerID and returns its id.
// A reference to a missing user is reported as ErrNotFound.
func (r *PostgresFeedbackRepository) Create(ctx context.Context, managerID int64, in models.FeedbackInput) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO feedback (manager_id, employee_id, strengths, improvements, sentiment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, managerID, in.EmployeeID, in.Strengths, in.Improvements, string(in.Sentiment)).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("Create: %w", err)
	}
	return id, nil
}

// Update replaces the text and sentiment of a record authored by managerID.
// The employee never changes.
func (r *PostgresFeedbackRepository) Update(ctx context.Context, id, managerID int64, in models.FeedbackInput) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE feedback
		   SET strengths = $1, improvements = $2, sentiment = $3, updated_at = now()
		 WHERE id = $4 AND manager_id = $5
	`, in.Strengths, in.Improvements, string(in.Sentiment), id, managerID)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return expectRow(res)
}

// Acknowledge marks a record addressed to employeeID as acknowledged.
// Acknowledging twice is not an error.
func (r *PostgresFeedbackRepository) Acknowledge(ctx context.Context, id, employeeID int64) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE feedback SET acknowledged = true
		 WHERE id = $1 AND employee_id = $2
	`, id, employeeID)
	if err != nil {
		return fmt.Errorf("Acknowledge: %w", err)
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MemberCounts counts the feedback managerID gave to each direct report,
// including reports with none.
func (r *PostgresFeedbackRepository) MemberCounts(ctx context.Context, managerID int64) (map[string]int, map[int64]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT u.id, u.full_name, COUNT(f.id)
		  FROM users u
		  LEFT JOIN feedback f ON f.employee_id = u.id AND f.manager_id = $1
		 WHERE u.manager_id = $1
		 GROUP BY u.id, u.full_name
	`, managerID)
	if err != nil {
		return nil, nil, fmt.Errorf("MemberCounts: %w", err)
	}
	defer rows.Close()

	byName := map[string]int{}
	byID := map[int64]int{}
	for rows.Next() {
		var (
			id    int64
			name  string
			count int
		)
		if err := rows.Scan(&id, &name, &count); err != nil {
			return nil, nil, fmt.Errorf("scan: %w", err)
		}
		byName[name] += count
		byID[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("MemberCounts: %w", err)
	}
	return byName, byID, nil
}

// SentimentCounts counts managerID's feedback per sentiment. Sentiments
// that never occur are absent.
func (r *PostgresFeedbackRepository) SentimentCounts(ctx context.Context, managerID int64) (map[models.Sentiment]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT sentiment, COUNT(*) FROM feedback
		 WHERE manager_id = $1
		 GROUP BY sentiment
	`, managerID)
	if err != nil {
		return nil, fmt.Errorf("SentimentCounts: %w", err)
	}
	defer rows.Close()

	out := map[models.Sentiment]int{}
	for rows.Next() {
		var (
			s     string
			count int
		)
		if err := rows.Scan(&s, &count); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out[models.Sentiment(s)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SentimentCounts: %w", err)
	}
	return out, nil
}
