package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/atinyakov/FeedbackTracker/internal/middleware"
	"github.com/atinyakov/FeedbackTracker/internal/models"
	handler "github.com/atinyakov/FeedbackTracker/internal/server/handler/http"
	"github.com/atinyakov/FeedbackTracker/internal/service"
)

var (
	mgr = models.User{ID: 1, Username: "manager1", FullName: "Alice Johnson", Role: models.RoleManager}
	emp = models.User{ID: 3, Username: "employee1", FullName: "Charlie Brown", Role: models.RoleEmployee, ManagerID: &mgr.ID}
)

type fakeAuth struct{}

func (fakeAuth) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	if password != "password123" {
		return models.User{}, service.ErrInvalidCredentials
	}
	switch username {
	case mgr.Username:
		return mgr, nil
	case emp.Username:
		return emp, nil
	}
	return models.User{}, service.ErrInvalidCredentials
}

// fakeFeedbackService records calls and returns preconfigured results.
type fakeFeedbackService struct {
	caller  models.User
	gotID   int64
	gotIn   models.FeedbackInput
	items   []models.Feedback
	record  models.Feedback
	team    []models.User
	snap    models.AnalyticsSnapshot
	err     error
	ackErrs map[int64]error
}

func (f *fakeFeedbackService) Team(ctx context.Context, caller models.User) ([]models.User, error) {
	f.caller = caller
	return f.team, f.err
}

func (f *fakeFeedbackService) List(ctx context.Context, caller models.User) ([]models.Feedback, error) {
	f.caller = caller
	return f.items, f.err
}

func (f *fakeFeedbackService) Create(ctx context.Context, caller models.User, in models.FeedbackInput) (models.Feedback, error) {
	f.caller, f.gotIn = caller, in
	return f.record, f.err
}

func (f *fakeFeedbackService) Update(ctx context.Context, caller models.User, id int64, in models.FeedbackInput) (models.Feedback, error) {
	f.caller, f.gotID, f.gotIn = caller, id, in
	return f.record, f.err
}

func (f *fakeFeedbackService) Acknowledge(ctx context.Context, caller models.User, id int64) error {
	f.caller, f.gotID = caller, id
	if err, ok := f.ackErrs[id]; ok {
		return err
	}
	return f.err
}

func (f *fakeFeedbackService) Analytics(ctx context.Context, caller models.User) (models.AnalyticsSnapshot, error) {
	f.caller = caller
	return f.snap, f.err
}

func newServer(t *testing.T, svc *fakeFeedbackService) *httptest.Server {
	t.Helper()
	router := handler.NewRouter(
		fakeAuth{},
		&handler.AuthHandler{},
		&handler.FeedbackHandler{FeedbackService: svc, Logger: zap.NewNop()},
		middleware.NewMetrics(),
		zap.NewNop(),
	)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path string, user *models.User, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.SetBasicAuth(user.Username, "password123")
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func detailOf(t *testing.T, data []byte) string {
	t.Helper()
	var e models.ErrorResponse
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("error body %q: %v", data, err)
	}
	return e.Detail
}

func TestLogin(t *testing.T) {
	ts := newServer(t, &fakeFeedbackService{})

	resp, data := do(t, ts, http.MethodPost, "/login", &emp, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}
	var lr models.LoginResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if lr.User.ID != emp.ID || lr.User.ManagerID == nil || *lr.User.ManagerID != 1 {
		t.Errorf("user = %+v", lr.User)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/login", nil)
	req.SetBasicAuth("manager1", "wrong")
	bad, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusUnauthorized || bad.Header.Get("WWW-Authenticate") != "Basic" {
		t.Errorf("status = %d, challenge = %q; want 401 Basic", bad.StatusCode, bad.Header.Get("WWW-Authenticate"))
	}
}

func TestEveryRouteRequiresCredentials(t *testing.T) {
	ts := newServer(t, &fakeFeedbackService{})
	routes := []struct{ method, path string }{
		{http.MethodPost, "/login"},
		{http.MethodGet, "/team"},
		{http.MethodGet, "/feedback"},
		{http.MethodPost, "/feedback"},
		{http.MethodPut, "/feedback/1"},
		{http.MethodPost, "/feedback/1/acknowledge"},
		{http.MethodGet, "/analytics"},
	}
	for _, rt := range routes {
		resp, data := do(t, ts, rt.method, rt.path, nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d; want 401", rt.method, rt.path, resp.StatusCode)
			continue
		}
		if d := detailOf(t, data); d != "Invalid credentials" {
			t.Errorf("%s %s: detail = %q", rt.method, rt.path, d)
		}
	}
}

func TestManagerOnlyRoutes(t *testing.T) {
	svc := &fakeFeedbackService{}
	ts := newServer(t, svc)

	resp, data := do(t, ts, http.MethodGet, "/team", &emp, nil)
	if resp.StatusCode != http.StatusForbidden || detailOf(t, data) != "Only managers can view team members" {
		t.Errorf("team as employee: %d %s", resp.StatusCode, data)
	}
	resp, data = do(t, ts, http.MethodGet, "/analytics", &emp, nil)
	if resp.StatusCode != http.StatusForbidden || detailOf(t, data) != "Only managers can view analytics" {
		t.Errorf("analytics as employee: %d %s", resp.StatusCode, data)
	}
	if svc.caller.ID != 0 {
		t.Error("service must not be reached for a forbidden role")
	}
}

func TestTeamAndAnalytics(t *testing.T) {
	svc := &fakeFeedbackService{
		team: []models.User{emp},
		snap: models.AnalyticsSnapshot{
			MemberFeedbackCounts:  map[string]int{"Charlie Brown": 1, "Diana Wilson": 0},
			SentimentDistribution: map[models.Sentiment]int{models.Positive: 1},
			EmployeeCounts:        map[int64]int{3: 1},
		},
	}
	ts := newServer(t, svc)

	resp, data := do(t, ts, http.MethodGet, "/team", &mgr, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"full_name":"Charlie Brown"`) {
		t.Errorf("team: %d %s", resp.StatusCode, data)
	}

	resp, data = do(t, ts, http.MethodGet, "/analytics", &mgr, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analytics status = %d", resp.StatusCode)
	}
	var got map[string]map[string]int
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["member_feedback_counts"]["Diana Wilson"] != 0 || len(got["member_feedback_counts"]) != 2 {
		t.Errorf("member counts = %v", got["member_feedback_counts"])
	}
	if len(got) != 2 {
		t.Errorf("unexpected keys in %s", data)
	}
}

func TestList(t *testing.T) {
	svc := &fakeFeedbackService{items: []models.Feedback{{ID: 2}, {ID: 1}}}
	ts := newServer(t, svc)

	resp, data := do(t, ts, http.MethodGet, "/feedback", &emp, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var items []models.Feedback
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 || items[0].ID != 2 {
		t.Errorf("items = %+v", items)
	}
	if svc.caller.ID != emp.ID {
		t.Errorf("caller = %+v; want employee1", svc.caller)
	}
}

func TestCreate(t *testing.T) {
	in := models.FeedbackInput{EmployeeID: 3, Strengths: "s", Improvements: "i", Sentiment: models.Neutral}

	t.Run("created", func(t *testing.T) {
		svc := &fakeFeedbackService{record: models.Feedback{ID: 10, EmployeeID: 3}}
		ts := newServer(t, svc)
		resp, _ := do(t, ts, http.MethodPost, "/feedback", &mgr, in)
		if resp.StatusCode != http.StatusCreated {
			t.Errorf("status = %d; want 201", resp.StatusCode)
		}
		if svc.gotIn != in {
			t.Errorf("input = %+v; want %+v", svc.gotIn, in)
		}
	})

	cases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"forbidden", &service.Error{Kind: service.ErrForbidden, Detail: "Only managers can submit feedback"}, http.StatusForbidden, "Only managers can submit feedback"},
		{"not in team", &service.Error{Kind: service.ErrNotFound, Detail: "Employee not found or not in your team"}, http.StatusNotFound, "Employee not found or not in your team"},
		{"invalid", &service.Error{Kind: service.ErrInvalidInput, Detail: "strengths are required"}, http.StatusUnprocessableEntity, "strengths are required"},
		{"internal", errors.New("db down"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newServer(t, &fakeFeedbackService{err: tc.err})
			resp, data := do(t, ts, http.MethodPost, "/feedback", &mgr, in)
			if resp.StatusCode != tc.status {
				t.Errorf("status = %d; want %d", resp.StatusCode, tc.status)
			}
			if d := detailOf(t, data); d != tc.detail {
				t.Errorf("detail = %q; want %q", d, tc.detail)
			}
		})
	}
}

func TestCreate_RejectsNonJSON(t *testing.T) {
	ts := newServer(t, &fakeFeedbackService{})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/feedback", strings.NewReader("employee_id=3"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(mgr.Username, "password123")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d; want 415", resp.StatusCode)
	}
}

func TestCreate_BadJSON(t *testing.T) {
	ts := newServer(t, &fakeFeedbackService{})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/feedback", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(mgr.Username, "password123")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d; want 422", resp.StatusCode)
	}
}

func TestUpdate(t *testing.T) {
	svc := &fakeFeedbackService{record: models.Feedback{ID: 5, Strengths: "better"}}
	ts := newServer(t, svc)
	in := models.FeedbackInput{EmployeeID: 3, Strengths: "better", Improvements: "i", Sentiment: models.Positive}

	resp, data := do(t, ts, http.MethodPut, "/feedback/5", &mgr, in)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"strengths":"better"`) {
		t.Errorf("update: %d %s", resp.StatusCode, data)
	}
	if svc.gotID != 5 {
		t.Errorf("id = %d; want 5", svc.gotID)
	}

	resp, _ = do(t, ts, http.MethodPut, "/feedback/abc", &mgr, in)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("non-numeric id: status = %d; want 422", resp.StatusCode)
	}
}

func TestAcknowledge(t *testing.T) {
	svc := &fakeFeedbackService{ackErrs: map[int64]error{
		99: &service.Error{Kind: service.ErrNotFound, Detail: "Feedback not found or not authorized"},
	}}
	ts := newServer(t, svc)

	resp, data := do(t, ts, http.MethodPost, "/feedback/7/acknowledge", &emp, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), "Feedback acknowledged") {
		t.Errorf("ack: %d %s", resp.StatusCode, data)
	}
	if svc.gotID != 7 || svc.caller.ID != emp.ID {
		t.Errorf("service got id=%d caller=%d", svc.gotID, svc.caller.ID)
	}

	resp, data = do(t, ts, http.MethodPost, "/feedback/99/acknowledge", &emp, nil)
	if resp.StatusCode != http.StatusNotFound || detailOf(t, data) != "Feedback not found or not authorized" {
		t.Errorf("ack other: %d %s", resp.StatusCode, data)
	}
}

func TestMetricsIsPublic(t *testing.T) {
	ts := newServer(t, &fakeFeedbackService{})
	do(t, ts, http.MethodGet, "/feedback", &mgr, nil)

	resp, data := do(t, ts, http.MethodGet, "/metrics", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}
	if !strings.Contains(string(data), `route="/feedback`) {
		t.Errorf("expected feedback route in metrics:\n%s", data)
	}
}
