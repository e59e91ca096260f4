package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/atinyakov/FeedbackTracker/internal/models"
	"github.com/atinyakov/FeedbackTracker/internal/repository"
)

var (
	// ErrForbidden is returned when the caller's role may not perform an operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a record or employee does not exist or is
	// not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for a malformed feedback payload.
	ErrInvalidInput = errors.New("invalid input")
)

// Error pairs one of the sentinel errors with the message shown to the client.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string { return e.Detail }

func (e *Error) Unwrap() error { return e.Kind }

func fail(kind error, detail string) error {
	return &Error{Kind: kind, Detail: detail}
}

// FeedbackRepository defines the persistence operations on feedback.
type FeedbackRepository interface {
	ListByManager(ctx context.Context, managerID int64) ([]models.Feedback, error)
	ListByEmployee(ctx context.Context, employeeID int64) ([]models.Feedback, error)
	GetByID(ctx context.Context, id int64) (models.Feedback, error)
	Create(ctx context.Context, managerID int64, in models.FeedbackInput) (int64, error)
	Update(ctx context.Context, id, managerID int64, in models.FeedbackInput) error
	Acknowledge(ctx context.Context, id, employeeID int64) error
	MemberCounts(ctx context.Context, managerID int64) (map[string]int, map[int64]int, error)
	SentimentCounts(ctx context.Context, managerID int64) (map[models.Sentiment]int, error)
}

// Recorder observes successful feedback mutations.
type Recorder interface {
	FeedbackEvent(kind string)
}

// Mutation kinds passed to Recorder.
const (
	EventCreated      = "created"
	EventUpdated      = "updated"
	EventAcknowledged = "acknowledged"
)

// FeedbackService enforces who may read and mutate which feedback.
type FeedbackService struct {
	users    UserRepository
	feedback FeedbackRepository
	rec      Recorder
}

// NewFeedbackService constructs a FeedbackService. rec may be nil.
func NewFeedbackService(users UserRepository, feedback FeedbackRepository, rec Recorder) *FeedbackService {
	return &FeedbackService{users: users, feedback: feedback, rec: rec}
}

func (s *FeedbackService) record(kind string) {
	if s.rec != nil {
		s.rec.FeedbackEvent(kind)
	}
}

// Team returns the caller's direct reports.
func (s *FeedbackService) Team(ctx context.Context, caller models.User) ([]models.User, error) {
	if !caller.IsManager() {
		return nil, fail(ErrForbidden, "Only managers can view team members")
	}
	return s.users.Team(ctx, caller.ID)
}

// List returns the feedback the caller authored (manager) or received
// (employee), newest first.
func (s *FeedbackService) List(ctx context.Context, caller models.User) ([]models.Feedback, error) {
	if caller.IsManager() {
		return s.feedback.ListByManager(ctx, caller.ID)
	}
	return s.feedback.ListByEmployee(ctx, caller.ID)
}

// Create stores feedback from the caller to one of their direct reports.
func (s *FeedbackService) Create(ctx context.Context, caller models.User, in models.FeedbackInput) (models.Feedback, error) {
	if !caller.IsManager() {
		return models.Feedback{}, fail(ErrForbidden, "Only managers can submit feedback")
	}
	if err := in.Validate(); err != nil {
		return models.Feedback{}, fail(ErrInvalidInput, err.Error())
	}
	notInTeam := fail(ErrNotFound, "Employee not found or not in your team")

	ok, err := s.users.IsTeamMember(ctx, caller.ID, in.EmployeeID)
	if err != nil {
		return models.Feedback{}, err
	}
	if !ok {
		return models.Feedback{}, notInTeam
	}

	id, err := s.feedback.Create(ctx, caller.ID, in)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Feedback{}, notInTeam
	}
	if err != nil {
		return models.Feedback{}, err
	}
	created, err := s.feedback.GetByID(ctx, id)
	if err != nil {
		return models.Feedback{}, fmt.Errorf("load created feedback: %w", err)
	}
	s.record(EventCreated)
	return created, nil
}

// Update replaces the text and sentiment of a record the caller authored.
// The employee field of in is ignored.
func (s *FeedbackService) Update(ctx context.Context, caller models.User, id int64, in models.FeedbackInput) (models.Feedback, error) {
	if !caller.IsManager() {
		return models.Feedback{}, fail(ErrForbidden, "Only managers can update feedback")
	}
	if err := in.ValidateContent(); err != nil {
		return models.Feedback{}, fail(ErrInvalidInput, err.Error())
	}

	err := s.feedback.Update(ctx, id, caller.ID, in)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Feedback{}, fail(ErrNotFound, "Feedback not found or not authorized")
	}
	if err != nil {
		return models.Feedback{}, err
	}
	updated, err := s.feedback.GetByID(ctx, id)
	if err != nil {
		return models.Feedback{}, fmt.Errorf("load updated feedback: %w", err)
	}
	s.record(EventUpdated)
	return updated, nil
}

// Acknowledge marks a record addressed to the caller as acknowledged.
// Repeating it succeeds.
func (s *FeedbackService) Acknowledge(ctx context.Context, caller models.User, id int64) error {
	if !caller.IsEmployee() {
		return fail(ErrForbidden, "Only employees can acknowledge feedback")
	}
	err := s.feedback.Acknowledge(ctx, id, caller.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(ErrNotFound, "Feedback not found or not authorized")
	}
	if err != nil {
		return err
	}
	s.record(EventAcknowledged)
	return nil
}

// Analytics returns per-member and per-sentiment counts over the caller's
// feedback. Every direct report appears, with zero if they have none.
func (s *FeedbackService) Analytics(ctx context.Context, caller models.User) (models.AnalyticsSnapshot, error) {
	if !caller.IsManager() {
		return models.AnalyticsSnapshot{}, fail(ErrForbidden, "Only managers can view analytics")
	}
	byName, byID, err := s.feedback.MemberCounts(ctx, caller.ID)
	if err != nil {
		return models.AnalyticsSnapshot{}, err
	}
	sentiments, err := s.feedback.SentimentCounts(ctx, caller.ID)
	if err != nil {
		return models.AnalyticsSnapshot{}, err
	}
	return models.AnalyticsSnapshot{
		MemberFeedbackCounts:  byName,
		SentimentDistribution: sentiments,
		EmployeeCounts:        byID,
	}, nil
}
