package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/halcyonsec/triage-console/internal/pagination"
)

// Config holds the connection settings for the alert service.
type Config struct {
	// BaseURL is the service root, e.g. https://triage.example.com/api.
	BaseURL string

	// Token is the bearer token sent with every request.
	Token string

	// Workspace scopes every list and mutation call.
	Workspace string

	// Timeout bounds a single HTTP attempt. Defaults to 30s.
	Timeout time.Duration
}

// Client talks to the remote alert/case API. List calls satisfy the
// pagination query-adapter contract directly; retry policy for transient
// failures lives here, never in the pagination controller.
type Client struct {
	baseURL    string
	token      string
	workspace  string
	httpClient *http.Client
	logger     *log.Logger

	maxAttempts  int
	retryBackoff time.Duration
}

// NewClient creates an API client.
func NewClient(config Config, logger *log.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	if config.Workspace == "" {
		return nil, fmt.Errorf("api: workspace is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[api] ", log.LstdFlags)
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	return &Client{
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		token:        config.Token,
		workspace:    config.Workspace,
		httpClient:   httpClient,
		logger:       logger,
		maxAttempts:  3,
		retryBackoff: time.Second,
	}, nil
}

// Workspace returns the workspace id the client is scoped to.
func (c *Client) Workspace() string {
	return c.workspace
}

// ListAlerts fetches one page of alerts. It satisfies
// pagination.QueryFunc[Alert].
func (c *Client) ListAlerts(ctx context.Context, req pagination.PageRequest) (pagination.Page[Alert], error) {
	return listPage[Alert](c, ctx, "/alerts", req)
}

// ListCases fetches one page of cases. It satisfies
// pagination.QueryFunc[Case].
func (c *Client) ListCases(ctx context.Context, req pagination.PageRequest) (pagination.Page[Case], error) {
	return listPage[Case](c, ctx, "/cases", req)
}

// ListTags returns the workspace's tags.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	body, err := c.do(ctx, http.MethodGet, "/tags", nil, nil)
	if err != nil {
		return nil, err
	}
	var tags []Tag
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("api: failed to decode tags: %w", err)
	}
	return tags, nil
}

// UpdateAlert applies a sparse update to one alert.
func (c *Client) UpdateAlert(ctx context.Context, alertID string, update AlertUpdate) error {
	_, err := c.do(ctx, http.MethodPatch, "/alerts/"+url.PathEscape(alertID), nil, update)
	return err
}

// DeleteAlert removes one alert.
func (c *Client) DeleteAlert(ctx context.Context, alertID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/alerts/"+url.PathEscape(alertID), nil, nil)
	return err
}

// AddAlertTag attaches a tag to an alert.
func (c *Client) AddAlertTag(ctx context.Context, alertID, tagID string) error {
	payload := map[string]string{"tag_id": tagID}
	_, err := c.do(ctx, http.MethodPost, "/alerts/"+url.PathEscape(alertID)+"/tags", nil, payload)
	return err
}

// RemoveAlertTag detaches a tag from an alert.
func (c *Client) RemoveAlertTag(ctx context.Context, alertID, tagID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/alerts/"+url.PathEscape(alertID)+"/tags/"+url.PathEscape(tagID), nil, nil)
	return err
}

// UpdateCase applies a sparse update to one case.
func (c *Client) UpdateCase(ctx context.Context, caseID string, update CaseUpdate) error {
	_, err := c.do(ctx, http.MethodPatch, "/cases/"+url.PathEscape(caseID), nil, update)
	return err
}

// DeleteCase removes one case.
func (c *Client) DeleteCase(ctx context.Context, caseID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/cases/"+url.PathEscape(caseID), nil, nil)
	return err
}

// HealthCheck verifies the service is reachable and the token is accepted.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	return err
}

// wirePage mirrors the service's cursor-paginated envelope.
type wirePage struct {
	Items         json.RawMessage `json:"items"`
	NextCursor    *string         `json:"next_cursor"`
	PrevCursor    *string         `json:"prev_cursor"`
	HasMore       bool            `json:"has_more"`
	HasPrevious   bool            `json:"has_previous"`
	TotalEstimate *int            `json:"total_estimate"`
}

// listPage fetches and decodes one page from a list endpoint.
func listPage[T any](c *Client, ctx context.Context, path string, req pagination.PageRequest) (pagination.Page[T], error) {
	var page pagination.Page[T]

	params := url.Values{}
	params.Set("limit", strconv.Itoa(req.Limit))
	if req.Cursor != pagination.FirstPageCursor {
		params.Set("cursor", req.Cursor)
	}
	if req.Filters.SearchTerm != "" {
		params.Set("search_term", req.Filters.SearchTerm)
	}
	if req.Filters.Status != "" {
		params.Set("status", req.Filters.Status)
	}
	if req.Filters.Priority != "" {
		params.Set("priority", req.Filters.Priority)
	}
	if req.Filters.Severity != "" {
		params.Set("severity", req.Filters.Severity)
	}
	for _, tag := range req.Filters.Tags {
		params.Add("tags", tag)
	}

	body, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return page, err
	}

	var wire wirePage
	if err := json.Unmarshal(body, &wire); err != nil {
		return page, fmt.Errorf("api: failed to decode page: %w", err)
	}
	if len(wire.Items) > 0 {
		if err := json.Unmarshal(wire.Items, &page.Items); err != nil {
			return page, fmt.Errorf("api: failed to decode page items: %w", err)
		}
	}
	if wire.NextCursor != nil {
		page.NextCursor = *wire.NextCursor
	}
	if wire.PrevCursor != nil {
		page.PrevCursor = *wire.PrevCursor
	}
	page.HasMore = wire.HasMore
	page.HasPrevious = wire.HasPrevious
	page.TotalEstimate = -1
	if wire.TotalEstimate != nil {
		page.TotalEstimate = *wire.TotalEstimate
	}
	return page, nil
}

// do performs one authenticated request with bounded retries on transient
// failures (network errors, 429, 5xx). Client-side errors are returned as
// *ValidationError without retrying; exhausted transient failures become a
// *FetchError.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload interface{}) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("workspace_id", c.workspace)
	fullURL := c.baseURL + path + "?" + params.Encode()

	var jsonBody []byte
	if payload != nil {
		var err error
		jsonBody, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("api: failed to marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.retryBackoff << (attempt - 1)
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
			c.logger.Printf("Transient failure, retrying in %v: %v", backoff, lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, &pagination.FetchError{Err: ctx.Err()}
			}
		}

		var reqBody io.Reader
		if jsonBody != nil {
			reqBody = bytes.NewReader(jsonBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("api: failed to create request: %w", err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "triage-console/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &pagination.FetchError{Err: ctx.Err()}
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
			if attempt == c.maxAttempts-1 {
				return nil, &pagination.FetchError{Status: resp.StatusCode, Body: truncate(string(body), 200)}
			}
			continue
		case resp.StatusCode >= 400:
			return nil, &pagination.ValidationError{Status: resp.StatusCode, Reason: truncate(string(body), 200)}
		default:
			return body, nil
		}
	}

	return nil, &pagination.FetchError{Err: lastErr}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
