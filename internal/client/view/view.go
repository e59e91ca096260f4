// Package view derives what the current user may see and do from their
// identity and the cached feedback. It performs no I/O.
package view

import (
	"cmp"
	"slices"
	"time"

	"github.com/atinyakov/FeedbackTracker/internal/models"
)

// Capability names a screen or action.
type Capability string

const (
	Dashboard     Capability = "dashboard"
	TeamOverview  Capability = "team"
	AllFeedback   Capability = "all-feedback"
	OwnFeedback   Capability = "own-feedback"
	GiveFeedback  Capability = "give-feedback"
	TeamAnalytics Capability = "analytics"
)

// NavEntry is one item of the navigation menu.
type NavEntry struct {
	Label      string
	Capability Capability
}

var (
	managerCaps  = []Capability{Dashboard, TeamOverview, AllFeedback, GiveFeedback, TeamAnalytics}
	employeeCaps = []Capability{Dashboard, OwnFeedback}

	managerNav = []NavEntry{
		{Label: "Dashboard", Capability: Dashboard},
		{Label: "Team", Capability: TeamOverview},
		{Label: "Feedback", Capability: AllFeedback},
	}
	employeeNav = []NavEntry{
		{Label: "Dashboard", Capability: Dashboard},
		{Label: "My Feedback", Capability: OwnFeedback},
	}
)

// Model is a read-only projection for one identity.
type Model struct {
	user   models.User
	items  []models.Feedback
	roster []models.User
}

// Record is a feedback record with the actions the viewer may take on it.
type Record struct {
	models.Feedback
	CanEdit        bool
	CanAcknowledge bool
}

// TeamSummary is the per-member line of the team overview.
type TeamSummary struct {
	Member models.User
	Count  int
	// Latest is nil when the member has no feedback.
	Latest *models.Feedback
}

// Stats are the dashboard counters.
type Stats struct {
	Total            int
	Acknowledged     int
	Pending          int
	CreatedThisMonth int
	TeamSize         int
}

// New builds a Model. The roster is only meaningful for managers.
func New(user models.User, items []models.Feedback, roster []models.User) *Model {
	return &Model{
		user:   user,
		items:  slices.Clone(items),
		roster: slices.Clone(roster),
	}
}

// User returns the identity the model was built for.
func (m *Model) User() models.User { return m.user }

// Capabilities lists what the role may use.
func (m *Model) Capabilities() []Capability {
	switch m.user.Role {
	case models.RoleManager:
		return slices.Clone(managerCaps)
	case models.RoleEmployee:
		return slices.Clone(employeeCaps)
	}
	return nil
}

// Can reports whether c is among the role's capabilities.
func (m *Model) Can(c Capability) bool {
	return slices.Contains(m.Capabilities(), c)
}

// Navigation lists the menu entries for the role.
func (m *Model) Navigation() []NavEntry {
	switch m.user.Role {
	case models.RoleManager:
		return slices.Clone(managerNav)
	case models.RoleEmployee:
		return slices.Clone(employeeNav)
	}
	return nil
}

// CanEdit reports whether the viewer authored f.
func (m *Model) CanEdit(f models.Feedback) bool {
	return m.user.IsManager() && m.user.ID == f.ManagerID
}

// CanAcknowledge reports whether the viewer is the unacknowledged recipient
// of f.
func (m *Model) CanAcknowledge(f models.Feedback) bool {
	return m.user.IsEmployee() && m.user.ID == f.EmployeeID && !f.Acknowledged
}

// Records returns the collection in its given order with per-record actions.
func (m *Model) Records() []Record {
	out := make([]Record, len(m.items))
	for i, f := range m.items {
		out[i] = Record{Feedback: f, CanEdit: m.CanEdit(f), CanAcknowledge: m.CanAcknowledge(f)}
	}
	return out
}

// newestFirst returns a copy of items ordered by created_at descending.
// Equal timestamps keep their relative order.
func newestFirst(items []models.Feedback) []models.Feedback {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b models.Feedback) int {
		return b.CreatedAt.Compare(a.CreatedAt.Time)
	})
	return sorted
}

// Recent returns at most n records, newest first.
func (m *Model) Recent(n int) []models.Feedback {
	sorted := newestFirst(m.items)
	if n < 0 {
		n = 0
	}
	return sorted[:min(n, len(sorted))]
}

// TeamSummaries returns one line per roster member, sorted by name, with
// the member's count and newest record.
func (m *Model) TeamSummaries() []TeamSummary {
	if !m.user.IsManager() {
		return nil
	}
	sorted := newestFirst(m.items)
	out := make([]TeamSummary, 0, len(m.roster))
	for _, member := range m.roster {
		s := TeamSummary{Member: member}
		for i := range sorted {
			if sorted[i].EmployeeID != member.ID {
				continue
			}
			if s.Latest == nil {
				latest := sorted[i]
				s.Latest = &latest
			}
			s.Count++
		}
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b TeamSummary) int {
		return cmp.Compare(a.Member.FullName, b.Member.FullName)
	})
	return out
}

// Stats computes the dashboard counters. "This month" is the calendar month
// of now in now's location.
func (m *Model) Stats(now time.Time) Stats {
	st := Stats{Total: len(m.items)}
	if m.user.IsManager() {
		st.TeamSize = len(m.roster)
	}
	y, mon, _ := now.Date()
	for _, f := range m.items {
		if f.Acknowledged {
			st.Acknowledged++
		}
		cy, cm, _ := f.CreatedAt.In(now.Location()).Date()
		if !f.CreatedAt.IsZero() && cy == y && cm == mon {
			st.CreatedThisMonth++
		}
	}
	st.Pending = st.Total - st.Acknowledged
	return st
}
