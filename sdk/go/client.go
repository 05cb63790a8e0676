package clipflowsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Clipflow HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// QueueItem represents the API queue item model.
type QueueItem struct {
	ID            string  `json:"id"`
	Platform      string  `json:"platform"`
	ClipType      string  `json:"clip_type"`
	PostContent   string  `json:"post_content"`
	Status        string  `json:"status"`
	ScheduledFor  *string `json:"scheduled_for,omitempty"`
	PublishedURL  string  `json:"published_url,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

// RealignJob represents a background realignment run.
type RealignJob struct {
	JobID    string `json:"job_id"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Progress struct {
		Completed int    `json:"completed"`
		Total     int    `json:"total"`
		Phase     string `json:"phase,omitempty"`
	} `json:"progress"`
	Plan   json.RawMessage `json:"plan,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// DispatchResult summarizes a published batch.
type DispatchResult struct {
	Published int `json:"published"`
	Failed    int `json:"failed"`
	Items     []struct {
		ItemID       string  `json:"item_id"`
		Status       string  `json:"status"`
		PostID       string  `json:"post_id,omitempty"`
		ScheduledFor *string `json:"scheduled_for,omitempty"`
		Error        string  `json:"error,omitempty"`
	} `json:"items"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateQueueItem creates a pending queue item.
func (c *Client) CreateQueueItem(ctx context.Context, platform, clipType, content string) (QueueItem, error) {
	body := map[string]any{
		"platform":     platform,
		"clip_type":    clipType,
		"post_content": content,
	}
	var resp QueueItem
	err := c.do(ctx, http.MethodPost, "v0/queue", body, &resp)
	return resp, err
}

// ListQueueItems lists queue items, optionally filtered by status.
func (c *Client) ListQueueItems(ctx context.Context, status string) ([]QueueItem, error) {
	endpoint := "v0/queue"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []QueueItem
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ApproveQueueItem marks a pending item approved.
func (c *Client) ApproveQueueItem(ctx context.Context, id string) (QueueItem, error) {
	var resp QueueItem
	endpoint := fmt.Sprintf("v0/queue/%s/approve", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// StartRealign starts a realignment job and returns its id.
func (c *Client) StartRealign(ctx context.Context, prioritized, dryRun bool) (string, error) {
	body := map[string]any{
		"prioritized": prioritized,
		"dry_run":     dryRun,
	}
	var resp struct {
		JobID string `json:"job_id"`
	}
	err := c.do(ctx, http.MethodPost, "v0/realign", body, &resp)
	return resp.JobID, err
}

// RealignJob fetches a realignment job's status.
func (c *Client) RealignJob(ctx context.Context, jobID string) (RealignJob, error) {
	var resp RealignJob
	endpoint := fmt.Sprintf("v0/realign/jobs/%s", url.PathEscape(jobID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// DispatchApprovals publishes approved items; empty ids means all approved.
func (c *Client) DispatchApprovals(ctx context.Context, itemIDs []string) (DispatchResult, error) {
	if itemIDs == nil {
		itemIDs = []string{}
	}
	body := map[string]any{"item_ids": itemIDs}
	var resp DispatchResult
	err := c.do(ctx, http.MethodPost, "v0/approvals", body, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
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
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
