// Package late provides a client for the remote social scheduling API.
package late

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"clipflow/internal/domain"
)

const defaultBaseURL = "https://api.getlate.dev"

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// Client is a scheduling API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPClient
}

// NewClient creates a new client with the given API key.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// PostFilter narrows ListPosts results.
type PostFilter struct {
	Status   string
	Platform string
}

// PostUpdate carries the mutable fields of a remote post.
type PostUpdate struct {
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	Status       string     `json:"status,omitempty"`
}

// PlatformTarget selects a platform account for a new post.
type PlatformTarget struct {
	Platform  string `json:"platform"`
	AccountID string `json:"accountId"`
}

// CreatePostRequest is the payload for CreatePost.
type CreatePostRequest struct {
	Content          string                    `json:"content"`
	Platforms        []PlatformTarget          `json:"platforms"`
	ScheduledFor     time.Time                 `json:"scheduledFor"`
	MediaURLs        []string                  `json:"mediaUrls,omitempty"`
	PlatformSettings map[string]map[string]any `json:"platformSettings,omitempty"`
}

// CreatedPost is the remote acknowledgement of a created post.
type CreatedPost struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Media is an uploaded media asset.
type Media struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// APIError preserves the remote status code and response body; rate-limit
// signature matching depends on the body text surviving into Error().
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scheduling API error (status %d): %s", e.StatusCode, e.Body)
}

// ListPosts retrieves remote posts matching the filter.
func (c *Client) ListPosts(ctx context.Context, filter PostFilter) ([]domain.RemotePost, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.Platform != "" {
		q.Set("platform", filter.Platform)
	}
	u := c.baseURL + "/v1/posts"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	body, err := c.doJSON(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Posts []wirePost `json:"posts"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parse posts response: %w", err)
	}

	posts := make([]domain.RemotePost, 0, len(response.Posts))
	for _, p := range response.Posts {
		posts = append(posts, p.toDomain())
	}
	return posts, nil
}

// UpdatePost patches a remote post's schedule and/or status.
func (c *Client) UpdatePost(ctx context.Context, id string, update PostUpdate) (domain.RemotePost, error) {
	payload, err := json.Marshal(update)
	if err != nil {
		return domain.RemotePost{}, err
	}
	body, err := c.doJSON(ctx, http.MethodPatch, c.baseURL+"/v1/posts/"+id, payload)
	if err != nil {
		return domain.RemotePost{}, err
	}
	var p wirePost
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.RemotePost{}, fmt.Errorf("parse post response: %w", err)
	}
	return p.toDomain(), nil
}

// CreatePost schedules a new remote post.
func (c *Client) CreatePost(ctx context.Context, req CreatePostRequest) (CreatedPost, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return CreatedPost{}, err
	}
	body, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/posts", payload)
	if err != nil {
		return CreatedPost{}, err
	}
	var created CreatedPost
	if err := json.Unmarshal(body, &created); err != nil {
		return CreatedPost{}, fmt.Errorf("parse create response: %w", err)
	}
	return created, nil
}

// UploadMedia uploads a local file and returns its remote URL.
func (c *Client) UploadMedia(ctx context.Context, path string) (Media, error) {
	f, err := os.Open(path)
	if err != nil {
		return Media{}, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return Media{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return Media{}, err
	}
	if err := mw.Close(); err != nil {
		return Media{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/media", &buf)
	if err != nil {
		return Media{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := c.send(req)
	if err != nil {
		return Media{}, err
	}
	var media Media
	if err := json.Unmarshal(body, &media); err != nil {
		return Media{}, fmt.Errorf("parse media response: %w", err)
	}
	return media, nil
}

func (c *Client) doJSON(ctx context.Context, method, u string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	return body, nil
}

// Wire types (the remote API is camelCase)

type wirePost struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Platforms []struct {
		Platform  string `json:"platform"`
		AccountID string `json:"accountId"`
	} `json:"platforms"`
	Status       string `json:"status"`
	ScheduledFor string `json:"scheduledFor"`
}

func (p wirePost) toDomain() domain.RemotePost {
	post := domain.RemotePost{
		ID:      p.ID,
		Content: p.Content,
		Status:  p.Status,
	}
	for _, pl := range p.Platforms {
		post.Platforms = append(post.Platforms, domain.PostPlatform{Platform: pl.Platform, AccountID: pl.AccountID})
	}
	if p.ScheduledFor != "" {
		if t, err := time.Parse(time.RFC3339, p.ScheduledFor); err == nil {
			post.ScheduledFor = &t
		}
	}
	return post
}
