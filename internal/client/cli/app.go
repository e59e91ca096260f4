// Package cli is the interactive shell over the client core: it reads
// commands, consults the view model for what the user may do and renders
// results as text.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/FeedbackTracker/internal/analytics"
	"github.com/atinyakov/FeedbackTracker/internal/client/api"
	"github.com/atinyakov/FeedbackTracker/internal/client/feedback"
	"github.com/atinyakov/FeedbackTracker/internal/client/session"
	"github.com/atinyakov/FeedbackTracker/internal/client/view"
	"github.com/atinyakov/FeedbackTracker/internal/models"
)

const recentOnDashboard = 5

// Sessions is the part of the session manager the shell drives.
type Sessions interface {
	Current() (*session.Session, bool)
	Login(ctx context.Context, username, password string) (*session.Session, error)
	Logout(ctx context.Context)
}

// Feedback is the part of the repository the shell drives.
type Feedback interface {
	List(ctx context.Context) ([]models.Feedback, error)
	Items() []models.Feedback
	Get(id int64) (models.Feedback, bool)
	Create(ctx context.Context, in models.FeedbackInput) (models.Feedback, error)
	Update(ctx context.Context, id int64, in models.FeedbackInput) (models.Feedback, error)
	Acknowledge(ctx context.Context, id int64) error
	Team(ctx context.Context) ([]models.User, error)
	Analytics(ctx context.Context) (models.AnalyticsSnapshot, error)
	Dashboard(ctx context.Context) (feedback.Dashboard, error)
}

// App holds the shell's collaborators.
type App struct {
	sessions Sessions
	repo     Feedback
	prompt   *Prompter
	out      io.Writer
	log      *zap.Logger
	now      func() time.Time
}

// NewApp returns an App reading commands from in and printing to out.
func NewApp(sessions Sessions, repo Feedback, in io.Reader, out io.Writer, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		sessions: sessions,
		repo:     repo,
		prompt:   NewPrompter(bufio.NewReader(in), out),
		out:      out,
		log:      log,
		now:      time.Now,
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// model builds the view model for the live session. Roster and items come
// from the repository's cache; pass nil to use the cached items.
func (a *App) model(items []models.Feedback, roster []models.User) (*view.Model, bool) {
	s, ok := a.sessions.Current()
	if !ok {
		return nil, false
	}
	if items == nil {
		items = a.repo.Items()
	}
	return view.New(s.User, items, roster), true
}

// require checks that the live session may use c and reports why not.
func (a *App) require(c view.Capability) (*view.Model, bool) {
	m, ok := a.model(nil, nil)
	if !ok {
		a.printf("Please log in first.\n")
		return nil, false
	}
	if !m.Can(c) {
		a.printf("Access denied.\n")
		return nil, false
	}
	return m, true
}

// report prints err in terms the user can act on.
func (a *App) report(err error) {
	var ve *api.ValidationError
	switch {
	case errors.Is(err, session.ErrUnauthenticated):
		a.printf("Please log in first.\n")
	case errors.Is(err, api.ErrInvalidCredentials):
		a.printf("Invalid username or password.\n")
	case errors.Is(err, api.ErrUnauthorized):
		a.printf("Your session has expired. Please log in again.\n")
	case errors.Is(err, feedback.ErrRoleNotPermitted):
		a.printf("Access denied.\n")
	case errors.Is(err, feedback.ErrNotFound):
		a.printf("Feedback not found.\n")
	case errors.Is(err, feedback.ErrSessionChanged):
		a.printf("The session changed while the request was running; result discarded.\n")
	case errors.As(err, &ve):
		a.printf("Error: %s\n", ve.Message)
	case api.IsTransport(err):
		a.printf("Server unavailable: %v\n", err)
	default:
		a.printf("Error: %v\n", err)
	}
	a.log.Debug("command failed", zap.Error(err))
}

// Login prompts for credentials and authenticates.
func (a *App) Login(ctx context.Context) error {
	username, err := a.prompt.Text("Username")
	if err != nil {
		return err
	}
	password, err := a.prompt.Password("Password")
	if err != nil {
		return err
	}
	s, err := a.sessions.Login(ctx, username, password)
	if err != nil {
		a.report(err)
		return err
	}
	a.printf("Welcome, %s (%s).\n", s.User.FullName, s.User.Role)
	return nil
}

// Logout ends the session.
func (a *App) Logout(ctx context.Context) error {
	a.sessions.Logout(ctx)
	a.printf("Logged out.\n")
	return nil
}

// WhoAmI prints the live identity and its navigation.
func (a *App) WhoAmI(context.Context) error {
	m, ok := a.model(nil, nil)
	if !ok {
		a.printf("Not logged in.\n")
		return nil
	}
	u := m.User()
	a.printf("%s (%s), %s\n", u.FullName, u.Username, u.Role)
	labels := make([]string, 0, len(m.Navigation()))
	for _, e := range m.Navigation() {
		labels = append(labels, e.Label)
	}
	a.printf("Menu: %s\n", strings.Join(labels, " | "))
	return nil
}

// Dashboard prints the counters and the most recent feedback.
func (a *App) Dashboard(ctx context.Context) error {
	m, ok := a.require(view.Dashboard)
	if !ok {
		return nil
	}
	d, err := a.repo.Dashboard(ctx)
	if err != nil {
		a.report(err)
		return err
	}
	var roster []models.User
	if m.Can(view.TeamOverview) {
		if roster, err = a.repo.Team(ctx); err != nil {
			a.report(err)
			return err
		}
	}
	m, _ = a.model(d.Items, roster)

	st := m.Stats(a.now())
	if m.Can(view.TeamOverview) {
		a.printf("Team members: %d\n", st.TeamSize)
	}
	a.printf("Total feedback: %d\nAcknowledged: %d\nPending: %d\nThis month: %d\n",
		st.Total, st.Acknowledged, st.Pending, st.CreatedThisMonth)
	a.printSentiments(d.Analytics)

	recent := m.Recent(recentOnDashboard)
	if len(recent) == 0 {
		a.printf("No feedback yet.\n")
		return nil
	}
	a.printf("\nRecent feedback:\n")
	a.printRecords(m, recent)
	return nil
}

func (a *App) printSentiments(snap models.AnalyticsSnapshot) {
	parts := make([]string, 0, len(models.Sentiments()))
	for _, s := range models.Sentiments() {
		if n, ok := snap.SentimentDistribution[s]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", s, n))
		}
	}
	if len(parts) > 0 {
		a.printf("Sentiment: %s\n", strings.Join(parts, " "))
	}
}

func (a *App) printRecords(m *view.Model, items []models.Feedback) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMPLOYEE\tSENTIMENT\tCREATED\tSTATUS\tACTIONS")
	for _, f := range items {
		status := "pending"
		if f.Acknowledged {
			status = "acknowledged"
		}
		var actions []string
		if m.CanEdit(f) {
			actions = append(actions, "edit")
		}
		if m.CanAcknowledge(f) {
			actions = append(actions, "ack")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.EmployeeName, f.Sentiment, formatDate(f.CreatedAt), status, strings.Join(actions, ","))
	}
	tw.Flush()
}

func formatDate(t models.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

// List refreshes and prints the feedback visible to the session.
func (a *App) List(ctx context.Context) error {
	if _, ok := a.require(view.Dashboard); !ok {
		return nil
	}
	items, err := a.repo.List(ctx)
	if err != nil {
		a.report(err)
		return err
	}
	m, _ := a.model(items, nil)
	if len(items) == 0 {
		a.printf("No feedback.\n")
		return nil
	}
	a.printRecords(m, items)
	return nil
}

// Show prints one record in full.
func (a *App) Show(ctx context.Context, arg string) error {
	if _, ok := a.require(view.Dashboard); !ok {
		return nil
	}
	id, ok := a.parseID(arg, "show")
	if !ok {
		return nil
	}
	f, err := a.lookup(ctx, id)
	if err != nil {
		a.report(err)
		return err
	}
	m, _ := a.model(nil, nil)
	a.printf("Feedback #%d for %s\n", f.ID, f.EmployeeName)
	a.printf("Sentiment:    %s\n", f.Sentiment)
	a.printf("Strengths:    %s\n", f.Strengths)
	a.printf("Improvements: %s\n", f.Improvements)
	a.printf("Created:      %s\n", formatDate(f.CreatedAt))
	a.printf("Updated:      %s\n", formatDate(f.UpdatedAt))
	a.printf("Acknowledged: %t\n", f.Acknowledged)
	if m.CanAcknowledge(f) {
		a.printf("Type 'ack %d' to acknowledge.\n", f.ID)
	}
	return nil
}

// lookup finds a record in the cache, refreshing it once on a miss.
func (a *App) lookup(ctx context.Context, id int64) (models.Feedback, error) {
	if f, ok := a.repo.Get(id); ok {
		return f, nil
	}
	if _, err := a.repo.List(ctx); err != nil {
		return models.Feedback{}, err
	}
	if f, ok := a.repo.Get(id); ok {
		return f, nil
	}
	return models.Feedback{}, feedback.ErrNotFound
}

func (a *App) parseID(arg, cmd string) (int64, bool) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if arg == "" || err != nil || id <= 0 {
		a.printf("Usage: %s <id>\n", cmd)
		return 0, false
	}
	return id, true
}

// Team prints one line per direct report.
func (a *App) Team(ctx context.Context) error {
	if _, ok := a.require(view.TeamOverview); !ok {
		return nil
	}
	roster, err := a.repo.Team(ctx)
	if err != nil {
		a.report(err)
		return err
	}
	items, err := a.repo.List(ctx)
	if err != nil {
		a.report(err)
		return err
	}
	m, _ := a.model(items, roster)

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tUSERNAME\tFEEDBACK\tLATEST")
	for _, s := range m.TeamSummaries() {
		latest := "no feedback yet"
		if s.Latest != nil {
			latest = fmt.Sprintf("%s (%s)", formatDate(s.Latest.CreatedAt), s.Latest.Sentiment)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", s.Member.ID, s.Member.FullName, s.Member.Username, s.Count, latest)
	}
	tw.Flush()
	return nil
}

// Give collects and submits new feedback. arg optionally preselects the
// employee id.
func (a *App) Give(ctx context.Context, arg string) error {
	if _, ok := a.require(view.GiveFeedback); !ok {
		return nil
	}
	if arg == "" {
		if err := a.Team(ctx); err != nil {
			return err
		}
		var err error
		if arg, err = a.prompt.Text("Employee ID"); err != nil {
			return err
		}
	}
	employeeID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || employeeID <= 0 {
		a.printf("Employee ID must be a positive number.\n")
		return nil
	}

	in, err := a.readInput(models.FeedbackInput{EmployeeID: employeeID})
	if err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		a.printf("Error: %v\n", err)
		return nil
	}
	created, err := a.repo.Create(ctx, in)
	if err != nil {
		a.report(err)
		return err
	}
	a.printf("Feedback #%d created.\n", created.ID)
	return a.refresh(ctx)
}

// Edit changes the text and sentiment of a record the manager authored.
func (a *App) Edit(ctx context.Context, arg string) error {
	if _, ok := a.require(view.GiveFeedback); !ok {
		return nil
	}
	id, ok := a.parseID(arg, "edit")
	if !ok {
		return nil
	}
	f, err := a.lookup(ctx, id)
	if err != nil {
		a.report(err)
		return err
	}
	if m, _ := a.model(nil, nil); !m.CanEdit(f) {
		a.printf("Access denied.\n")
		return nil
	}

	in, err := a.readInput(models.FeedbackInput{
		EmployeeID:   f.EmployeeID,
		Strengths:    f.Strengths,
		Improvements: f.Improvements,
		Sentiment:    f.Sentiment,
	})
	if err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		a.printf("Error: %v\n", err)
		return nil
	}
	if _, err := a.repo.Update(ctx, id, in); err != nil {
		a.report(err)
		return err
	}
	a.printf("Feedback #%d updated.\n", id)
	return a.refresh(ctx)
}

// readInput prompts for the editable fields, offering cur as defaults.
func (a *App) readInput(cur models.FeedbackInput) (models.FeedbackInput, error) {
	ask := a.prompt.Text
	if cur.Strengths != "" {
		ask = func(p string) (string, error) { return a.prompt.TextDefault(p, cur.Strengths) }
	}
	strengths, err := ask("Strengths")
	if err != nil {
		return cur, err
	}
	ask = a.prompt.Text
	if cur.Improvements != "" {
		ask = func(p string) (string, error) { return a.prompt.TextDefault(p, cur.Improvements) }
	}
	improvements, err := ask("Areas to improve")
	if err != nil {
		return cur, err
	}
	def := string(cur.Sentiment)
	if def == "" {
		def = string(models.Neutral)
	}
	raw, err := a.prompt.TextDefault("Sentiment (positive/neutral/negative)", def)
	if err != nil {
		return cur, err
	}
	sentiment, err := models.ParseSentiment(raw)
	if err != nil {
		sentiment = models.Sentiment(raw)
	}
	return models.FeedbackInput{
		EmployeeID:   cur.EmployeeID,
		Strengths:    strengths,
		Improvements: improvements,
		Sentiment:    sentiment,
	}, nil
}

func (a *App) refresh(ctx context.Context) error {
	if _, err := a.repo.List(ctx); err != nil {
		a.report(err)
		return err
	}
	return nil
}

// Ack acknowledges a record addressed to the employee.
func (a *App) Ack(ctx context.Context, arg string) error {
	m, ok := a.require(view.OwnFeedback)
	if !ok {
		return nil
	}
	id, ok := a.parseID(arg, "ack")
	if !ok {
		return nil
	}
	f, err := a.lookup(ctx, id)
	if err != nil {
		a.report(err)
		return err
	}
	if f.Acknowledged {
		a.printf("Feedback #%d is already acknowledged.\n", id)
		return nil
	}
	if !m.CanAcknowledge(f) {
		a.printf("Access denied.\n")
		return nil
	}
	if err := a.repo.Acknowledge(ctx, id); err != nil {
		a.report(err)
		return err
	}
	a.printf("Feedback #%d acknowledged.\n", id)
	return nil
}

// Stats prints per-member and per-sentiment counts.
func (a *App) Stats(ctx context.Context) error {
	m, ok := a.require(view.Dashboard)
	if !ok {
		return nil
	}
	var snap models.AnalyticsSnapshot
	if m.Can(view.TeamAnalytics) {
		roster, err := a.repo.Team(ctx)
		if err != nil {
			a.report(err)
			return err
		}
		server, err := a.repo.Analytics(ctx)
		if err != nil {
			a.report(err)
			return err
		}
		snap = analytics.WithRoster(server, roster)
	} else {
		items, err := a.repo.List(ctx)
		if err != nil {
			a.report(err)
			return err
		}
		snap = analytics.Aggregate(items)
	}

	a.printf("Total: %d\n", analytics.Total(snap))
	a.printSentiments(snap)
	names := make([]string, 0, len(snap.MemberFeedbackCounts))
	for name := range snap.MemberFeedbackCounts {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		a.printf("  %-24s %d\n", name, snap.MemberFeedbackCounts[name])
	}
	return nil
}
