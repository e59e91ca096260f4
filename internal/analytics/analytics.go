// Package analytics computes aggregate counts over a feedback collection.
//
// Aggregation is a pure function of the input multiset: the order of the
// records never changes the result. Member counts are keyed by employee
// name on the wire, which merges two employees sharing a display name;
// EmployeeCounts keeps the id-keyed view for callers that need to tell
// them apart.
package analytics

import (
	"maps"

	"github.com/atinyakov/FeedbackTracker/internal/models"
)

// Aggregate counts records per sentiment and per employee. Sentiments that
// never occur are omitted. Empty input yields empty, non-nil maps.
func Aggregate(items []models.Feedback) models.AnalyticsSnapshot {
	snap := Empty()
	for _, f := range items {
		snap.SentimentDistribution[f.Sentiment]++
		snap.MemberFeedbackCounts[f.EmployeeName]++
		snap.EmployeeCounts[f.EmployeeID]++
	}
	return snap
}

// Empty returns a snapshot with every map allocated.
func Empty() models.AnalyticsSnapshot {
	return models.AnalyticsSnapshot{
		MemberFeedbackCounts:  map[string]int{},
		SentimentDistribution: map[models.Sentiment]int{},
		EmployeeCounts:        map[int64]int{},
	}
}

// WithRoster returns a copy of snap in which every roster member has a count,
// zero when they received no feedback.
func WithRoster(snap models.AnalyticsSnapshot, roster []models.User) models.AnalyticsSnapshot {
	out := models.AnalyticsSnapshot{
		MemberFeedbackCounts:  cloneOrEmpty(snap.MemberFeedbackCounts),
		SentimentDistribution: cloneOrEmpty(snap.SentimentDistribution),
		EmployeeCounts:        cloneOrEmpty(snap.EmployeeCounts),
	}
	for _, u := range roster {
		if _, ok := out.MemberFeedbackCounts[u.FullName]; !ok {
			out.MemberFeedbackCounts[u.FullName] = 0
		}
		if _, ok := out.EmployeeCounts[u.ID]; !ok {
			out.EmployeeCounts[u.ID] = 0
		}
	}
	return out
}

// Equal compares the wire fields of two snapshots.
func Equal(a, b models.AnalyticsSnapshot) bool {
	return maps.Equal(a.MemberFeedbackCounts, b.MemberFeedbackCounts) &&
		maps.Equal(a.SentimentDistribution, b.SentimentDistribution)
}

// Total returns the number of records behind snap.
func Total(snap models.AnalyticsSnapshot) int {
	n := 0
	for _, c := range snap.SentimentDistribution {
		n += c
	}
	return n
}

func cloneOrEmpty[K comparable](m map[K]int) map[K]int {
	if m == nil {
		return map[K]int{}
	}
	return maps.Clone(m)
}
