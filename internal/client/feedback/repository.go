// Package feedback caches the feedback visible to the live session and
// performs the role-gated mutations on it.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/atinyakov/FeedbackTracker/internal/analytics"
	"github.com/atinyakov/FeedbackTracker/internal/client/api"
	"github.com/atinyakov/FeedbackTracker/internal/client/session"
	"github.com/atinyakov/FeedbackTracker/internal/models"
)

var (
	// ErrRoleNotPermitted is returned locally when the session's role may not
	// perform the operation. No request is sent.
	ErrRoleNotPermitted = errors.New("operation not permitted for this role")
	// ErrNotFound is returned when the record is not in the cached collection.
	ErrNotFound = errors.New("feedback not found")
	// ErrSessionChanged is returned when the session ended or changed while a
	// request was in flight. The response is discarded.
	ErrSessionChanged = errors.New("session changed during request")
)

// API is the subset of the REST client the repository needs.
type API interface {
	ListFeedback(ctx context.Context, cred api.Credential) ([]models.Feedback, error)
	CreateFeedback(ctx context.Context, cred api.Credential, in models.FeedbackInput) (models.Feedback, error)
	UpdateFeedback(ctx context.Context, cred api.Credential, id int64, in models.FeedbackInput) (models.Feedback, error)
	AcknowledgeFeedback(ctx context.Context, cred api.Credential, id int64) error
	Team(ctx context.Context, cred api.Credential) ([]models.User, error)
	Analytics(ctx context.Context, cred api.Credential) (models.AnalyticsSnapshot, error)
}

const (
	teamTTL     = 5 * time.Minute
	teamCleanup = 10 * time.Minute
)

// Repository holds the feedback collection for the live session.
type Repository struct {
	api      API
	sessions session.Provider
	log      *zap.Logger
	teams    *cache.Cache

	mu    sync.Mutex
	owner *session.Session
	items []models.Feedback
	stale bool
	// acked holds ids the server confirmed as acknowledged for ackedBy.
	ackedBy *session.Session
	acked   map[int64]bool
}

// New returns an empty Repository.
func New(client API, sessions session.Provider, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{
		api:      client,
		sessions: sessions,
		log:      log,
		teams:    cache.New(teamTTL, teamCleanup),
		acked:    map[int64]bool{},
	}
}

// live returns the current session or ErrUnauthenticated.
func (r *Repository) live() (*session.Session, error) {
	s, ok := r.sessions.Current()
	if !ok {
		return nil, session.ErrUnauthenticated
	}
	return s, nil
}

// settle checks a finished request against the session it was sent under.
// A rejected credential ends that session; a session that changed meanwhile
// turns the outcome into ErrSessionChanged.
func (r *Repository) settle(s *session.Session, err error) error {
	if errors.Is(err, api.ErrUnauthorized) {
		r.sessions.Invalidate(s)
		r.drop()
		return err
	}
	if cur, ok := r.sessions.Current(); !ok || cur != s {
		r.log.Debug("discarding response for a previous session")
		return ErrSessionChanged
	}
	return err
}

func (r *Repository) drop() {
	r.mu.Lock()
	r.owner = nil
	r.items = nil
	r.stale = false
	r.ackedBy = nil
	clear(r.acked)
	r.mu.Unlock()
	r.teams.Flush()
}

// List fetches the feedback visible to the session and replaces the cached
// collection with it, in server order.
func (r *Repository) List(ctx context.Context) ([]models.Feedback, error) {
	s, err := r.live()
	if err != nil {
		return nil, err
	}
	items, err := r.api.ListFeedback(ctx, s.Credential)
	if err := r.settle(s, err); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.owner = s
	r.items = items
	r.stale = false
	for id := range r.confirmed(s) {
		// a listing sent before the confirmation arrived may still report it pending
		if i := indexOf(r.items, id); i >= 0 {
			r.items[i].Acknowledged = true
		}
	}
	return slices.Clone(r.items), nil
}

// confirmed returns the acknowledgements the server accepted under s.
// The caller holds r.mu.
func (r *Repository) confirmed(s *session.Session) map[int64]bool {
	if r.ackedBy != s {
		r.ackedBy = s
		clear(r.acked)
	}
	return r.acked
}

// Items returns the cached collection. A collection fetched under a
// different session is never returned.
func (r *Repository) Items() []models.Feedback {
	s, ok := r.sessions.Current()
	r.mu.Lock()
	defer r.mu.Unlock()
	if !ok || r.owner != s {
		return nil
	}
	return slices.Clone(r.items)
}

// Get returns one cached record.
func (r *Repository) Get(id int64) (models.Feedback, bool) {
	s, ok := r.sessions.Current()
	r.mu.Lock()
	defer r.mu.Unlock()
	if !ok || r.owner != s {
		return models.Feedback{}, false
	}
	i := indexOf(r.items, id)
	if i < 0 {
		return models.Feedback{}, false
	}
	return r.items[i], true
}

// Stale reports whether a mutation succeeded since the last List.
func (r *Repository) Stale() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stale
}

// Create submits new feedback. Only managers may create; the server decides
// whether the employee is on the manager's team.
func (r *Repository) Create(ctx context.Context, in models.FeedbackInput) (models.Feedback, error) {
	s, err := r.live()
	if err != nil {
		return models.Feedback{}, err
	}
	if !s.User.IsManager() {
		return models.Feedback{}, ErrRoleNotPermitted
	}

	created, err := r.api.CreateFeedback(ctx, s.Credential, in)
	if err := r.settle(s, err); err != nil {
		return models.Feedback{}, err
	}
	r.markStale(s)
	r.log.Info("feedback created", zap.Int64("id", created.ID), zap.Int64("employee_id", in.EmployeeID))
	return created, nil
}

// Update replaces the text and sentiment of a cached record. The employee
// is taken from the record and cannot change.
func (r *Repository) Update(ctx context.Context, id int64, in models.FeedbackInput) (models.Feedback, error) {
	s, err := r.live()
	if err != nil {
		return models.Feedback{}, err
	}
	if !s.User.IsManager() {
		return models.Feedback{}, ErrRoleNotPermitted
	}
	existing, ok := r.Get(id)
	if !ok {
		return models.Feedback{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	in.EmployeeID = existing.EmployeeID

	updated, err := r.api.UpdateFeedback(ctx, s.Credential, id, in)
	if err := r.settle(s, err); err != nil {
		return models.Feedback{}, err
	}
	r.markStale(s)
	r.log.Info("feedback updated", zap.Int64("id", id))
	return updated, nil
}

func (r *Repository) markStale(s *session.Session) {
	r.mu.Lock()
	if r.owner == s {
		r.stale = true
	}
	r.mu.Unlock()
}

// Acknowledge marks a record as seen by its employee. The cached record only
// changes once the server confirms; a failed request leaves it untouched so
// the call can be retried. A record already known to be acknowledged
// succeeds without a request.
func (r *Repository) Acknowledge(ctx context.Context, id int64) error {
	s, err := r.live()
	if err != nil {
		return err
	}
	if !s.User.IsEmployee() {
		return ErrRoleNotPermitted
	}

	r.mu.Lock()
	done := r.confirmed(s)[id]
	if r.owner == s {
		if i := indexOf(r.items, id); i >= 0 && r.items[i].Acknowledged {
			done = true
		}
	}
	r.mu.Unlock()
	if done {
		return nil
	}

	err = r.api.AcknowledgeFeedback(ctx, s.Credential, id)
	var ve *api.ValidationError
	if errors.As(err, &ve) && ve.StatusCode == http.StatusConflict {
		err = nil
	}
	if err := r.settle(s, err); err != nil {
		r.log.Warn("acknowledge failed", zap.Int64("id", id), zap.Error(err))
		return err
	}

	r.mu.Lock()
	r.confirmed(s)[id] = true
	if r.owner == s {
		if i := indexOf(r.items, id); i >= 0 {
			r.items[i].Acknowledged = true
		}
	}
	r.mu.Unlock()
	r.log.Info("feedback acknowledged", zap.Int64("id", id))
	return nil
}

// Team returns the manager's direct reports. The roster is cached per
// identity for a few minutes.
func (r *Repository) Team(ctx context.Context) ([]models.User, error) {
	s, err := r.live()
	if err != nil {
		return nil, err
	}
	if !s.User.IsManager() {
		return nil, ErrRoleNotPermitted
	}

	key := teamKey(s)
	if v, ok := r.teams.Get(key); ok {
		return slices.Clone(v.([]models.User)), nil
	}
	team, err := r.api.Team(ctx, s.Credential)
	if err := r.settle(s, err); err != nil {
		return nil, err
	}
	r.teams.Flush()
	r.teams.SetDefault(key, team)
	return slices.Clone(team), nil
}

func teamKey(s *session.Session) string {
	return strconv.FormatInt(s.User.ID, 10) + ":" + string(s.Credential)
}

// Analytics returns the server-side aggregate for the manager's team.
func (r *Repository) Analytics(ctx context.Context) (models.AnalyticsSnapshot, error) {
	s, err := r.live()
	if err != nil {
		return models.AnalyticsSnapshot{}, err
	}
	if !s.User.IsManager() {
		return models.AnalyticsSnapshot{}, ErrRoleNotPermitted
	}
	snap, err := r.api.Analytics(ctx, s.Credential)
	if err := r.settle(s, err); err != nil {
		return models.AnalyticsSnapshot{}, err
	}
	return snap, nil
}

// Dashboard is what the landing screen shows.
type Dashboard struct {
	Items     []models.Feedback
	Analytics models.AnalyticsSnapshot
}

// Dashboard refreshes the collection and then loads the analytics, one
// after the other, so both describe the same state. Employees get an
// aggregate of their own records.
func (r *Repository) Dashboard(ctx context.Context) (Dashboard, error) {
	items, err := r.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	s, err := r.live()
	if err != nil {
		return Dashboard{}, err
	}
	if !s.User.IsManager() {
		return Dashboard{Items: items, Analytics: analytics.Aggregate(items)}, nil
	}
	snap, err := r.Analytics(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	snap.EmployeeCounts = analytics.Aggregate(items).EmployeeCounts
	return Dashboard{Items: items, Analytics: snap}, nil
}

func indexOf(items []models.Feedback, id int64) int {
	return slices.IndexFunc(items, func(f models.Feedback) bool { return f.ID == id })
}
