// Package upstream is the client for the third-party issue API the façade
// fronts. Each operation returns the decoded resource plus response
// metadata (pagination links, rate-limit snapshot) so handlers can pass
// both through to their own callers.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hookbridge/hookbridge/internal/metrics"
	"github.com/hookbridge/hookbridge/internal/models"
)

const defaultBaseURL = "https://api.github.com"

// Config selects the upstream endpoint and one of two auth modes: a
// personal access token, or GitHub App credentials (app id + PEM key).
type Config struct {
	BaseURL       string
	Token         string
	AppID         string
	PrivateKeyPEM string
	Timeout       time.Duration
	UserAgent     string
}

// APIError is a non-2xx reply from the upstream API, preserved so handlers
// can forward the status and message to their own caller.
type APIError struct {
	StatusCode       int    `json:"-"`
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream: %d %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       authProvider
	userAgent  string
}

func New(cfg Config) (*Client, error) {
	var auth authProvider
	switch {
	case cfg.Token != "":
		auth = tokenAuth{token: cfg.Token}
	case cfg.AppID != "" && cfg.PrivateKeyPEM != "":
		a, err := newAppAuth(cfg.AppID, cfg.PrivateKeyPEM)
		if err != nil {
			return nil, err
		}
		auth = a
	default:
		return nil, fmt.Errorf("upstream: either token or app credentials required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "hookbridge"
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		auth:       auth,
		userAgent:  userAgent,
	}, nil
}

// ListIssuesOptions mirrors the upstream list filters the façade exposes.
type ListIssuesOptions struct {
	State   string
	Labels  string
	Page    int
	PerPage int
}

func (o ListIssuesOptions) query() url.Values {
	q := url.Values{}
	if o.State != "" {
		q.Set("state", o.State)
	}
	if o.Labels != "" {
		q.Set("labels", o.Labels)
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(o.PerPage))
	}
	return q
}

func (c *Client) CreateIssue(ctx context.Context, owner, repo string, req *models.NewIssueRequest) (*models.Issue, *Meta, error) {
	var issue models.Issue
	meta, err := c.do(ctx, "create_issue", http.MethodPost,
		fmt.Sprintf("/repos/%s/%s/issues", owner, repo), nil, req, &issue)
	if err != nil {
		return nil, meta, err
	}
	return &issue, meta, nil
}

func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int64) (*models.Issue, *Meta, error) {
	var issue models.Issue
	meta, err := c.do(ctx, "get_issue", http.MethodGet,
		fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number), nil, nil, &issue)
	if err != nil {
		return nil, meta, err
	}
	return &issue, meta, nil
}

func (c *Client) ListIssues(ctx context.Context, owner, repo string, opts ListIssuesOptions) ([]models.Issue, *Meta, error) {
	var issues []models.Issue
	meta, err := c.do(ctx, "list_issues", http.MethodGet,
		fmt.Sprintf("/repos/%s/%s/issues", owner, repo), opts.query(), nil, &issues)
	if err != nil {
		return nil, meta, err
	}
	return issues, meta, nil
}

func (c *Client) UpdateIssue(ctx context.Context, owner, repo string, number int64, req *models.UpdateIssueRequest) (*models.Issue, *Meta, error) {
	var issue models.Issue
	meta, err := c.do(ctx, "update_issue", http.MethodPatch,
		fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number), nil, req, &issue)
	if err != nil {
		return nil, meta, err
	}
	return &issue, meta, nil
}

func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int64, req *models.NewCommentRequest) (*models.Comment, *Meta, error) {
	var comment models.Comment
	meta, err := c.do(ctx, "create_comment", http.MethodPost,
		fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number), nil, req, &comment)
	if err != nil {
		return nil, meta, err
	}
	return &comment, meta, nil
}

// do executes one upstream request. out is decoded from 2xx bodies; non-2xx
// replies come back as *APIError with the upstream status preserved.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) (*Meta, error) {
	var body *bytes.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	} else {
		body = bytes.NewReader(nil)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	authHeader, err := c.auth.authHeader()
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", authHeader)
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(request)
	metrics.UpstreamDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	metrics.UpstreamRequests.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
	meta := parseMeta(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr := json.NewDecoder(resp.Body).Decode(apiErr); decodeErr != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return meta, apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return meta, fmt.Errorf("decode response: %w", err)
		}
	}
	return meta, nil
}
