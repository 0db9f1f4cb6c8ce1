// Package client talks to the job-execution backend over HTTP.
package client

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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patrickspencer/runwatch/internal/jobs"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Client queries and reports job executions.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each request. Zero disables the per-request bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be an absolute http(s) url", baseURL)
	}
	c := &Client{
		base:    u,
		http:    &http.Client{},
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string { return c.base.String() }

// ListJobs fetches one page of executions matching q.
func (c *Client) ListJobs(ctx context.Context, q jobs.Query) (jobs.PageResult, error) {
	var res jobs.PageResult
	err := c.do(ctx, "list jobs", http.MethodGet, "/api/jobs", q.Values(), nil, &res)
	if err != nil {
		return jobs.PageResult{}, err
	}
	if res.Rows == nil {
		res.Rows = []jobs.Job{}
	}
	return res, nil
}

// GetStats fetches per-status counts for the population q's non-status
// filters select.
func (c *Client) GetStats(ctx context.Context, q jobs.Query) (jobs.Stats, error) {
	var s jobs.Stats
	err := c.do(ctx, "get stats", http.MethodGet, "/api/jobs/stats", q.StatsQuery().FilterValues(), nil, &s)
	return s, err
}

// ListAll fetches every execution matching q's filters without paging.
func (c *Client) ListAll(ctx context.Context, q jobs.Query) ([]jobs.Job, error) {
	v := q.FilterValues()
	if q.Sort.Field != "" {
		v.Set("sort", q.Sort.String())
	}
	var rows []jobs.Job
	if err := c.do(ctx, "list all jobs", http.MethodGet, "/api/jobs/all", v, nil, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []jobs.Job{}
	}
	return rows, nil
}

// GetJob fetches one execution by id.
func (c *Client) GetJob(ctx context.Context, id int64) (jobs.Job, error) {
	var j jobs.Job
	err := c.do(ctx, "get job", http.MethodGet, "/api/jobs/"+strconv.FormatInt(id, 10), nil, nil, &j)
	return j, err
}

// StartJob reports a new RUNNING execution.
func (c *Client) StartJob(ctx context.Context, req jobs.StartRequest) (jobs.Job, error) {
	var j jobs.Job
	err := c.do(ctx, "start job", http.MethodPost, "/api/jobs", nil, req, &j)
	return j, err
}

// UpdateJob reports a state change for an existing execution.
func (c *Client) UpdateJob(ctx context.Context, req jobs.UpdateRequest) (jobs.Job, error) {
	var j jobs.Job
	err := c.do(ctx, "update job", http.MethodPut, "/api/jobs", nil, req, &j)
	return j, err
}

// Health checks that the backend answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/api/health", nil, nil, nil)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.endpoint(path, query)
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed",
			zap.String("op", op), zap.String("url", target), zap.String("request_id", reqID), zap.Error(err))
		return &TransportError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		zap.String("op", op),
		zap.String("url", target),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &BackendError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &BackendError{Op: op, StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a failure body, falling back
// to the trimmed raw text.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(data))
}
