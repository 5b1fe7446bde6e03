package hypolabsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Hypolab HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/api",
		Timeout:  10 * time.Second,
	}
}

// Hypothesis represents the API hypothesis model (partial).
type Hypothesis struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Stage          string    `json:"stage"`
	Priority       string    `json:"priority"`
	Status         string    `json:"status"`
	Owner          string    `json:"owner"`
	Team           string    `json:"team"`
	ApprovalStatus string    `json:"approvalStatus"`
	EstimatedValue float64   `json:"estimatedValue"`
	Confidence     int       `json:"confidence"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Stage represents a pipeline stage definition.
type Stage struct {
	ID               int    `json:"id"`
	Code             string `json:"code"`
	Name             string `json:"name"`
	Order            int    `json:"order"`
	IsActive         bool   `json:"isActive"`
	RequiresApproval bool   `json:"requiresApproval"`
}

// Event represents a journal entry.
type Event struct {
	ID      int64  `json:"id"`
	UID     string `json:"uid"`
	TS      string `json:"ts"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// HypothesisPage is one page of a hypothesis listing.
type HypothesisPage struct {
	Data       []Hypothesis `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

// PaginatedEvents wraps journal listings with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

// HypothesisQuery filters ListHypotheses. Zero fields are omitted.
type HypothesisQuery struct {
	Search   string
	Stage    string
	Priority string
	Status   string
	Owner    string
	Page     int
	Limit    int
}

// NewHypothesis is the create payload.
type NewHypothesis struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Stage          string   `json:"stage,omitempty"`
	Priority       string   `json:"priority,omitempty"`
	Owner          string   `json:"owner,omitempty"`
	Team           string   `json:"team,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	EstimatedValue float64  `json:"estimatedValue,omitempty"`
	Confidence     int      `json:"confidence,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListHypotheses returns one page of hypotheses.
func (c *Client) ListHypotheses(ctx context.Context, q HypothesisQuery) (HypothesisPage, error) {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("search", q.Search)
	set("stage", q.Stage)
	set("priority", q.Priority)
	set("status", q.Status)
	set("owner", q.Owner)
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	var resp HypothesisPage
	err := c.do(ctx, http.MethodGet, withQuery("hypotheses", v), nil, &resp)
	return resp, err
}

// CreateHypothesis creates a hypothesis.
func (c *Client) CreateHypothesis(ctx context.Context, in NewHypothesis) (Hypothesis, error) {
	var resp Hypothesis
	err := c.do(ctx, http.MethodPost, "hypotheses", in, &resp)
	return resp, err
}

// MoveHypothesis moves a hypothesis to another stage.
func (c *Client) MoveHypothesis(ctx context.Context, id, stage, comment string) (Hypothesis, error) {
	body := map[string]any{
		"hypothesisId": id,
		"newStage":     stage,
	}
	if comment != "" {
		body["comment"] = comment
	}
	var resp Hypothesis
	err := c.do(ctx, http.MethodPost, "hypotheses/move", body, &resp)
	return resp, err
}

// Stages returns every stage in order.
func (c *Client) Stages(ctx context.Context) ([]Stage, error) {
	var resp []Stage
	err := c.do(ctx, http.MethodGet, "admin/stages", nil, &resp)
	return resp, err
}

// EventsPage returns a journal page newest first.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor, eventType string) (PaginatedEvents, error) {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		v.Set("cursor", cursor)
	}
	if eventType != "" {
		v.Set("type", eventType)
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withQuery("events", v), nil, &resp)
	return resp, err
}

// Login exchanges an email for a bearer token and stores it on the client.
func (c *Client) Login(ctx context.Context, email string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/login", map[string]string{"email": email}, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func withQuery(endpoint string, v url.Values) string {
	if len(v) == 0 {
		return endpoint
	}
	return endpoint + "?" + v.Encode()
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}
