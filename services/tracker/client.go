package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	defaultPageSize    = 50
	maxResponseBytes   = 8 << 20
)

// searchFields are the issue fields requested from the search endpoint.
var searchFields = []string{
	"summary", "status", "priority", "issuetype", "assignee",
	"labels", "created", "updated", "resolutiondate",
}

type Config struct {
	BaseURL     string
	Email       string
	APIToken    string
	MaxAttempts int
	BaseDelay   time.Duration
	PageSize    int
	Timeout     time.Duration
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the response body into v. A body that is not valid JSON
// is a PermanentError.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &PermanentError{StatusCode: r.StatusCode, Message: "malformed response body", Err: err}
	}
	return nil
}

// Client is an authenticated HTTP client for the remote tracker. Every
// outbound call of the sync pipeline goes through CallWithRetry.
type Client struct {
	cfg   Config
	http  *http.Client
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff is the wait after the attempt-th (0-based) failed attempt.
func (c *Client) Backoff(attempt int) time.Duration {
	return c.cfg.BaseDelay * time.Duration(1<<attempt)
}

// Call performs a single request without retrying.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	if c.cfg.BaseURL == "" {
		return nil, &PermanentError{Message: "tracker base url is not configured"}
	}
	if c.cfg.Email == "" || c.cfg.APIToken == "" {
		return nil, &PermanentError{Message: "tracker credentials are not configured"}
	}

	u := c.cfg.BaseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &PermanentError{Message: "encode request body", Err: err}
		}
		body = bytes.NewReader(b)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, &PermanentError{Message: "build request", Err: err}
	}
	httpReq.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransientError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, respBody)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
}

// CallWithRetry retries transient failures up to MaxAttempts, waiting
// BaseDelay * 2^attempt between attempts. Permanent errors return at once;
// on exhaustion the last error is returned.
func (c *Client) CallWithRetry(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.Backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		resp, err := c.Call(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}

		zap.L().Warn("transient tracker failure, retrying",
			zap.String("path", req.Path),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.cfg.MaxAttempts),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

// SearchIssues runs a tracker query and pages through every result.
func (c *Client) SearchIssues(ctx context.Context, jql string) ([]Issue, error) {
	var issues []Issue
	startAt := 0
	for {
		query := url.Values{}
		query.Set("jql", jql)
		query.Set("startAt", strconv.Itoa(startAt))
		query.Set("maxResults", strconv.Itoa(c.cfg.PageSize))
		query.Set("fields", strings.Join(searchFields, ","))

		resp, err := c.CallWithRetry(ctx, Request{Method: http.MethodGet, Path: "/rest/api/3/search", Query: query})
		if err != nil {
			return nil, err
		}

		var page searchResponse
		if err := resp.Decode(&page); err != nil {
			return nil, err
		}

		for _, raw := range page.Issues {
			if raw.Key == "" {
				return nil, &PermanentError{StatusCode: resp.StatusCode, Message: "issue without key in search response"}
			}
			issues = append(issues, raw.issue())
		}

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
	}

	zap.L().Debug("tracker search finished", zap.String("jql", jql), zap.Int("issues", len(issues)))
	return issues, nil
}

// Ping verifies the credentials against the tracker's current-user endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.CallWithRetry(ctx, Request{Method: http.MethodGet, Path: "/rest/api/3/myself"})
	if err != nil {
		return err
	}
	var me Assignee
	if err := resp.Decode(&me); err != nil {
		return err
	}
	if me.AccountID == "" {
		return errors.New("tracker: current user has no account id")
	}
	zap.L().Info("tracker credentials verified", zap.String("account", fmt.Sprintf("%s <%s>", me.DisplayName, me.EmailAddress)))
	return nil
}
