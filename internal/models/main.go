// Package models defines the core data structures for users, feedback records
// and analytics snapshots exchanged between the client and the server.
package models

import (
	"errors"
	"strings"
)

// Role identifies what a user is allowed to do.
type Role string

const (
	// RoleManager authors feedback for direct reports and views team analytics.
	RoleManager Role = "manager"
	// RoleEmployee views and acknowledges feedback addressed to them.
	RoleEmployee Role = "employee"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleManager || r == RoleEmployee
}

// User represents an authenticated identity as issued by the server.
type User struct {
	// ID is the unique identifier for the user.
	ID int64 `json:"id"`
	// Username is the login name.
	Username string `json:"username"`
	// FullName is the display name.
	FullName string `json:"full_name"`
	// Role is either manager or employee.
	Role Role `json:"role"`
	// ManagerID references the employee's manager; nil for managers.
	ManagerID *int64 `json:"manager_id,omitempty"`
}

// IsManager reports whether the user holds the manager role.
func (u User) IsManager() bool { return u.Role == RoleManager }

// IsEmployee reports whether the user holds the employee role.
func (u User) IsEmployee() bool { return u.Role == RoleEmployee }

// Validate checks the role/manager shape of an identity: an employee reports
// to exactly one manager, a manager reports to nobody.
func (u User) Validate() error {
	if u.ID <= 0 || u.Username == "" {
		return errors.New("user: missing id or username")
	}
	switch u.Role {
	case RoleManager:
		if u.ManagerID != nil {
			return errors.New("user: manager must not have a manager_id")
		}
	case RoleEmployee:
		if u.ManagerID == nil {
			return errors.New("user: employee must have a manager_id")
		}
	default:
		return errors.New("user: unknown role " + string(u.Role))
	}
	return nil
}

// Sentiment classifies the overall tone of a feedback record.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Neutral  Sentiment = "neutral"
	Negative Sentiment = "negative"
)

// Sentiments returns all sentiment values in canonical order.
func Sentiments() []Sentiment {
	return []Sentiment{Positive, Neutral, Negative}
}

// Valid reports whether s is one of the three known sentiments.
func (s Sentiment) Valid() bool {
	switch s {
	case Positive, Neutral, Negative:
		return true
	}
	return false
}

// ParseSentiment parses a case-insensitive sentiment name.
func ParseSentiment(v string) (Sentiment, error) {
	s := Sentiment(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", errors.New("unknown sentiment " + v)
	}
	return s, nil
}

// Feedback is a single structured feedback record.
type Feedback struct {
	ID           int64     `json:"id"`
	ManagerID    int64     `json:"manager_id"`
	EmployeeID   int64     `json:"employee_id"`
	EmployeeName string    `json:"employee_name"`
	Strengths    string    `json:"strengths"`
	Improvements string    `json:"improvements"`
	Sentiment    Sentiment `json:"sentiment"`
	// Acknowledged flips once from false to true and is never reversed.
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    Timestamp `json:"created_at"`
	UpdatedAt    Timestamp `json:"updated_at"`
}

// FeedbackInput is the request body for creating or updating feedback.
type FeedbackInput struct {
	EmployeeID   int64     `json:"employee_id"`
	Strengths    string    `json:"strengths"`
	Improvements string    `json:"improvements"`
	Sentiment    Sentiment `json:"sentiment"`
}

// Validate checks the form-level constraints of the input. Team membership is
// not checked here; only the server can decide it.
func (in FeedbackInput) Validate() error {
	if in.EmployeeID <= 0 {
		return errors.New("employee_id is required")
	}
	return in.ValidateContent()
}

// ValidateContent checks the text and sentiment fields only. Updates use it
// because the employee of a record never changes.
func (in FeedbackInput) ValidateContent() error {
	if strings.TrimSpace(in.Strengths) == "" {
		return errors.New("strengths are required")
	}
	if strings.TrimSpace(in.Improvements) == "" {
		return errors.New("improvements are required")
	}
	if !in.Sentiment.Valid() {
		return errors.New("sentiment must be one of positive, neutral, negative")
	}
	return nil
}

// AnalyticsSnapshot holds aggregate counts over a feedback collection.
// Missing keys mean a count of zero.
type AnalyticsSnapshot struct {
	MemberFeedbackCounts  map[string]int    `json:"member_feedback_counts"`
	SentimentDistribution map[Sentiment]int `json:"sentiment_distribution"`
	// EmployeeCounts groups by the stable employee id. It is derived locally
	// and never sent over the wire.
	EmployeeCounts map[int64]int `json:"-"`
}

// LoginResponse is the body returned by POST /login.
type LoginResponse struct {
	User    User   `json:"user"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the error body returned by the server.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
