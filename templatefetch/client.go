// Package templatefetch loads shared variable templates over HTTP for global
// variables.
package templatefetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/singleflight"

	templating "github.com/goliatone/go-templating"
)

// ErrTemplateNotFound is returned when the server has no template for an id.
var ErrTemplateNotFound = errors.New("templatefetch: template not found")

// StatusError is returned for non 2xx responses.
type StatusError struct {
	ID         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("templatefetch: template %q: status %d", e.ID, e.StatusCode)
	}
	return fmt.Sprintf("templatefetch: template %q: status %d: %s", e.ID, e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrTemplateNotFound && e.StatusCode == http.StatusNotFound
}

const maxErrorBody = 512

// Option configures a Client.
type Option func(*Client)

// WithRetryMax sets how many times a failed request is retried.
func WithRetryMax(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.http.RetryMax = n
		}
	}
}

// WithRetryWait bounds the backoff between retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		if minWait > 0 {
			c.http.RetryWaitMin = minWait
		}
		if maxWait >= minWait && maxWait > 0 {
			c.http.RetryWaitMax = maxWait
		}
	}
}

// WithHTTPClient sets the underlying transport client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http.HTTPClient = client
		}
	}
}

// WithLogger sets the logger used for request and retry logs.
func WithLogger(logger hclog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHeader adds a header to every request, such as an authorization token.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// Client fetches templates from GET {base}/api/templates/{id}. Concurrent
// fetches of one id share a single request.
type Client struct {
	base   string
	http   *retryablehttp.Client
	header http.Header
	logger hclog.Logger
	group  singleflight.Group
}

var _ templating.TemplateFetcher = (*Client)(nil)

// New returns a Client for the server at base.
func New(base string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("templatefetch: base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("templatefetch: base url %q must be absolute", base)
	}

	c := &Client{
		base:   strings.TrimRight(parsed.String(), "/"),
		http:   retryablehttp.NewClient(),
		header: http.Header{},
		logger: hclog.NewNullLogger(),
	}
	c.http.RetryMax = 2
	c.http.RetryWaitMin = 100 * time.Millisecond
	c.http.RetryWaitMax = time.Second
	c.http.ErrorHandler = retryablehttp.PassthroughErrorHandler
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = c.logger.Named("templatefetch")
	c.http.Logger = c.logger
	return c, nil
}

// FetchTemplate implements templating.TemplateFetcher. Concurrent calls for
// one id share a request that outlives any single caller; each caller stops
// waiting when its own ctx is done.
func (c *Client) FetchTemplate(ctx context.Context, id string) (templating.Definition, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("templatefetch: template id is required")
	}
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id, func() (any, error) {
		return c.fetch(detached, id)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("templatefetch: wait for %q: %w", id, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	def := res.Val.(templating.Definition)
	if res.Shared {
		c.logger.Trace("shared template fetch", "template", id)
		def = def.Clone()
	}
	return def, nil
}

func (c *Client) fetch(ctx context.Context, id string) (templating.Definition, error) {
	endpoint := c.base + "/api/templates/" + url.PathEscape(id)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("templatefetch: request %q: %w", id, err)
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range c.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("templatefetch: get %q: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{ID: id, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var def templating.Definition
	if err := json.NewDecoder(resp.Body).Decode(&def); err != nil {
		return nil, fmt.Errorf("templatefetch: decode %q: %w", id, err)
	}
	if def == nil {
		return nil, fmt.Errorf("templatefetch: template %q is empty", id)
	}
	c.logger.Debug("fetched template", "template", id, "type", def.Type())
	return def, nil
}
