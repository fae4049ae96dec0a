package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/roadcams/conditions-dashboard/internal/model"
)

// ConditionsPath is served by both the classification backend and the dashboard proxy.
const ConditionsPath = "/api/conditions"

const (
	defaultBaseURL = "http://localhost:5000"
	requestTimeout = 10 * time.Second
)

// ErrInvalidPayload means the endpoint answered 2xx with a body that is not JSON.
var ErrInvalidPayload = errors.New("invalid conditions payload")

// StatusError reports a non-success HTTP status from the conditions endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "conditions request failed"
	}
	if e.Body == "" {
		return fmt.Sprintf("backend API responded with %d", e.StatusCode)
	}
	return fmt.Sprintf("backend API responded with %d: %s", e.StatusCode, e.Body)
}

// Client fetches conditions payloads from a base URL.
type Client struct {
	baseURL string
	http    *resty.Client
}

// NewClient builds a client for baseURL; an empty value targets the local backend.
func NewClient(baseURL string) *Client {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{baseURL: baseURL, http: r}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchRaw returns the conditions body unchanged. Transport failures, non-2xx
// statuses and non-JSON bodies are errors.
func (c *Client) FetchRaw(ctx context.Context) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(ConditionsPath)
	if err != nil {
		return nil, fmt.Errorf("fetch conditions: %w", err)
	}
	if !resp.IsSuccess() {
		body := strings.TrimSpace(string(resp.Body()))
		if len(body) > 256 {
			body = body[:256]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: body}
	}
	body := resp.Body()
	if !json.Valid(body) {
		return nil, ErrInvalidPayload
	}
	return body, nil
}

// Fetch returns the decoded conditions snapshot.
func (c *Client) Fetch(ctx context.Context) (*model.Snapshot, error) {
	body, err := c.FetchRaw(ctx)
	if err != nil {
		return nil, err
	}
	return model.ParseSnapshot(body)
}
