// Package api is the HTTP client for the feedback REST API.
//
// Every call takes the session's Basic credential explicitly; the client
// holds no identity of its own. Responses are mapped onto a small error
// taxonomy: ErrInvalidCredentials (login rejected), ErrUnauthorized (live
// credential rejected), *ValidationError (request rejected by the server's
// rules) and *TransportError (network or server failure). Nothing is retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/FeedbackTracker/internal/models"
)

const (
	pathLogin     = "/login"
	pathFeedback  = "/feedback"
	pathTeam      = "/team"
	pathAnalytics = "/analytics"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Client talks to the feedback server.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// New returns a Client for baseURL. A nil httpClient uses a client with a
// ten second timeout; a nil log discards output.
func New(baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
	}
}

// Login performs exactly one authentication request. Any non-2xx response is
// reported as ErrInvalidCredentials; a failure to reach the server is a
// *TransportError.
func (c *Client) Login(ctx context.Context, cred Credential) (models.User, error) {
	var resp models.LoginResponse
	err := c.do(ctx, "login", http.MethodPost, pathLogin, cred, nil, &resp)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) && te.StatusCode == 0 {
			return models.User{}, err
		}
		return models.User{}, ErrInvalidCredentials
	}
	if err := resp.User.Validate(); err != nil {
		return models.User{}, &TransportError{Op: "login", Err: fmt.Errorf("malformed identity: %w", err)}
	}
	return resp.User, nil
}

// ListFeedback returns the feedback visible to the credential's owner, in
// server order.
func (c *Client) ListFeedback(ctx context.Context, cred Credential) ([]models.Feedback, error) {
	var items []models.Feedback
	if err := c.do(ctx, "list feedback", http.MethodGet, pathFeedback, cred, nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Feedback{}
	}
	return items, nil
}

// CreateFeedback submits new feedback. The returned record may be partial
// (some servers answer with the id only).
func (c *Client) CreateFeedback(ctx context.Context, cred Credential, in models.FeedbackInput) (models.Feedback, error) {
	var created models.Feedback
	if err := c.do(ctx, "create feedback", http.MethodPost, pathFeedback, cred, in, &created); err != nil {
		return models.Feedback{}, err
	}
	return created, nil
}

// UpdateFeedback replaces the text and sentiment of feedback id.
func (c *Client) UpdateFeedback(ctx context.Context, cred Credential, id int64, in models.FeedbackInput) (models.Feedback, error) {
	var updated models.Feedback
	if err := c.do(ctx, "update feedback", http.MethodPut, feedbackPath(id), cred, in, &updated); err != nil {
		return models.Feedback{}, err
	}
	return updated, nil
}

// AcknowledgeFeedback marks feedback id as seen by its employee.
func (c *Client) AcknowledgeFeedback(ctx context.Context, cred Credential, id int64) error {
	return c.do(ctx, "acknowledge feedback", http.MethodPost, feedbackPath(id)+"/acknowledge", cred, nil, nil)
}

// Team returns the manager's direct reports.
func (c *Client) Team(ctx context.Context, cred Credential) ([]models.User, error) {
	var team []models.User
	if err := c.do(ctx, "team", http.MethodGet, pathTeam, cred, nil, &team); err != nil {
		return nil, err
	}
	if team == nil {
		team = []models.User{}
	}
	return team, nil
}

// Analytics returns the server-side aggregate for a manager's team.
func (c *Client) Analytics(ctx context.Context, cred Credential) (models.AnalyticsSnapshot, error) {
	var snap models.AnalyticsSnapshot
	if err := c.do(ctx, "analytics", http.MethodGet, pathAnalytics, cred, nil, &snap); err != nil {
		return models.AnalyticsSnapshot{}, err
	}
	if snap.MemberFeedbackCounts == nil {
		snap.MemberFeedbackCounts = map[string]int{}
	}
	if snap.SentimentDistribution == nil {
		snap.SentimentDistribution = map[models.Sentiment]int{}
	}
	return snap, nil
}

func feedbackPath(id int64) string {
	return pathFeedback + "/" + strconv.FormatInt(id, 10)
}

// do sends one request and decodes a 2xx JSON body into out (if non-nil).
func (c *Client) do(ctx context.Context, op, method, path string, cred Credential, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Authorization", cred.Header())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("request completed",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	detail := readDetail(resp)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ValidationError{StatusCode: resp.StatusCode, Message: detail}
	default:
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(detail)}
	}
}

// readDetail extracts the server's message from an error response. It
// understands {"detail": "..."} bodies and falls back to the raw text.
func readDetail(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	text := strings.TrimSpace(string(raw))

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return s
		}
		return string(body.Detail)
	}
	if text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
